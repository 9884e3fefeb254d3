// Package beep plays short cue tones for the listening and answer events.
package beep

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/eventbus"
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

// player is the platform's output: play queues one rendered cue and
// returns without waiting for it to finish.
type player interface {
	play(pcm []int16)
}

var (
	out      player
	bank     [numCues][]int16
	loadOnce sync.Once
)

func load() {
	bank = cueSamples(tickScale)
	out = newPlayer()
}

// Init renders the cues and opens the output ahead of the first cue.
func Init() { loadOnce.Do(load) }

type cue int

const (
	cueStart cue = iota
	cueEnd
	cueCorrect
	cueWrong
	numCues
)

const (
	sampleRate = 44100

	// Listening start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Listening end: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Correct answer: two rising ticks
	correctLow    = 880
	correctHigh   = 1320
	correctVolume = 0.45
	correctDecay  = 25

	// Wrong answer: low pitch double-beep
	wrongFreq   = 350
	wrongVolume = 0.6
	wrongDecay  = 30
)

// cueSamples renders every cue as mono 16-bit PCM. dur scales the tick
// length per platform.
func cueSamples(dur float64) [numCues][]int16 {
	var c [numCues][]int16
	c[cueStart] = tick(startFreq, 0.2*dur, startVolume, startDecay)
	c[cueEnd] = tick(endFreq, 0.2*dur, endVolume, endDecay)
	c[cueCorrect] = sequence(
		tick(correctLow, 0.08, correctVolume, correctDecay),
		silence(0.03),
		tick(correctHigh, 0.12, correctVolume, correctDecay),
	)
	beep := tick(wrongFreq, 0.08, wrongVolume, wrongDecay)
	c[cueWrong] = sequence(beep, silence(0.05), beep)
	return c
}

func tick(freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func silence(duration float64) []int16 {
	return make([]int16, int(float64(sampleRate)*duration))
}

func sequence(parts ...[]int16) []int16 {
	var out []int16
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func play(c cue) {
	if disabled.Load() {
		return
	}
	loadOnce.Do(load)
	if out != nil {
		out.play(bank[c])
	}
}

// cursor hands a cue's samples to a driver in whatever sizes it asks for.
type cursor struct {
	pcm []int16
	pos int
}

func (c *cursor) done() bool { return c.pos >= len(c.pcm) }

func (c *cursor) read(buf []int16) int {
	n := copy(buf, c.pcm[c.pos:])
	c.pos += n
	return n
}

// readLE fills out with little-endian samples and zeroes the rest.
func (c *cursor) readLE(out []byte) int {
	n := 0
	for ; n+1 < len(out) && !c.done(); n += 2 {
		binary.LittleEndian.PutUint16(out[n:], uint16(c.pcm[c.pos]))
		c.pos++
	}
	clear(out[n:])
	return n
}

func PlayStart()   { play(cueStart) }
func PlayEnd()     { play(cueEnd) }
func PlayCorrect() { play(cueCorrect) }
func PlayWrong()   { play(cueWrong) }

// Attach plays the start and answer cues for events on bus. The end cue
// is left to the caller since a turn can also end on trailing silence.
func Attach(bus *eventbus.Bus) (detach func()) {
	unsubs := []func(){
		bus.Subscribe(eventbus.StartListening, func(any) { PlayStart() }),
		bus.Subscribe(eventbus.AnsweredCorrectly, func(any) { PlayCorrect() }),
		bus.Subscribe(eventbus.AnsweredWrong, func(any) { PlayWrong() }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
