package beep

import "testing"

func TestCueSamples(t *testing.T) {
	cues := cueSamples(1)
	for c := cue(0); c < numCues; c++ {
		if len(cues[c]) == 0 {
			t.Errorf("cue %d is empty", c)
		}
	}
	if got, want := len(cues[cueStart]), int(sampleRate*0.2); got != want {
		t.Errorf("start cue = %d samples, want %d", got, want)
	}
	short := cueSamples(0.2)
	if len(short[cueStart]) >= len(cues[cueStart]) {
		t.Error("scaled cue is not shorter")
	}
}

func TestWrongCueHasGap(t *testing.T) {
	s := cueSamples(1)[cueWrong]
	mid := len(s) / 2
	if s[mid] != 0 {
		t.Errorf("expected silence between the two beeps, got %d", s[mid])
	}
}

func TestTickDecays(t *testing.T) {
	s := tick(1000, 0.2, 0.5, 40)
	peak := func(part []int16) int16 {
		var m int16
		for _, v := range part {
			if v < 0 {
				v = -v
			}
			m = max(m, v)
		}
		return m
	}
	n := len(s) / 4
	if peak(s[:n]) <= peak(s[len(s)-n:]) {
		t.Error("tick envelope does not decay")
	}
}

func TestCursorRead(t *testing.T) {
	c := &cursor{pcm: []int16{1, 2, 3, 4, 5}}
	buf := make([]int16, 2)
	var got []int16
	for !c.done() {
		n := c.read(buf)
		got = append(got, buf[:n]...)
	}
	if len(got) != 5 || got[4] != 5 {
		t.Errorf("read %v, want all five samples", got)
	}
	if n := c.read(buf); n != 0 {
		t.Errorf("read after end = %d", n)
	}
}

func TestCursorReadLE(t *testing.T) {
	c := &cursor{pcm: []int16{0x0102, -1}}
	out := []byte{9, 9, 9, 9, 9, 9}
	if n := c.readLE(out); n != 4 {
		t.Fatalf("readLE = %d bytes, want 4", n)
	}
	want := []byte{0x02, 0x01, 0xff, 0xff, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = % x, want % x", out, want)
		}
	}
	if !c.done() {
		t.Error("cursor should be drained")
	}
}

func TestPlayUsesPlatformPlayer(t *testing.T) {
	Init()
	rec := &recordingPlayer{}
	prev := out
	out = rec
	t.Cleanup(func() { out = prev })

	PlayCorrect()
	PlayWrong()

	if len(rec.played) != 2 {
		t.Fatalf("played %d cues, want 2", len(rec.played))
	}
	if len(rec.played[0]) != len(bank[cueCorrect]) || len(rec.played[1]) != len(bank[cueWrong]) {
		t.Error("cues played out of order")
	}
}

type recordingPlayer struct{ played [][]int16 }

func (r *recordingPlayer) play(pcm []int16) { r.played = append(r.played, pcm) }
