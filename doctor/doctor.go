// Package doctor walks through the pieces a speaking exercise depends on
// and reports which of them work on this machine.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/audio"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/clipboard"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/evaluator"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/exercise"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/recognizer"
)

const voiceThreshold = 0.02

type Options struct {
	In  io.Reader
	Out io.Writer

	// ExercisePath is checked first; without one a built-in sample is used.
	ExercisePath string
	Context      audio.Context
	Device       *audio.DeviceInfo
	Recognizer   recognizer.Recognizer
	RecordFor    time.Duration
	// SkipClipboard leaves the system clipboard alone.
	SkipClipboard bool
}

const sampleExercise = `
question: Say "hello"
acceptedAnswers: [hello]
`

type checker struct {
	opts Options
	in   *bufio.Reader
	out  io.Writer
	n    int
	of   int
}

func (c *checker) step(title string) {
	c.n++
	fmt.Fprintf(c.out, "\n[%d/%d] %s\n", c.n, c.of, title)
}

func (c *checker) pass(format string, args ...any) bool {
	fmt.Fprintf(c.out, "  PASS: "+format+"\n", args...)
	return true
}

func (c *checker) fail(format string, args ...any) bool {
	fmt.Fprintf(c.out, "  FAIL: "+format+"\n", args...)
	return false
}

// Run executes the checks in order and returns an exit code (0=all pass,
// 1=any fail). Later checks are skipped once one fails.
func Run(opts Options) int {
	if opts.RecordFor <= 0 {
		opts.RecordFor = 3 * time.Second
	}
	c := &checker{opts: opts, in: bufio.NewReader(opts.In), out: opts.Out, of: 4}

	fmt.Fprintln(c.out, "speak-the-words doctor - system diagnostics")
	fmt.Fprintln(c.out, "============================================")

	cfg, ok := c.checkExercise()
	var pcm []byte
	if ok {
		pcm, ok = c.checkMicrophone()
	}
	if ok {
		ok = c.checkRecognition(cfg, pcm)
	}
	if ok {
		ok = c.checkClipboard(cfg)
	}

	fmt.Fprintln(c.out)
	if ok {
		fmt.Fprintln(c.out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(c.out, "Some checks failed. See details above.")
	return 1
}

func (c *checker) checkExercise() (*exercise.Config, bool) {
	c.step("Exercise content")
	var (
		cfg *exercise.Config
		err error
	)
	if c.opts.ExercisePath != "" {
		cfg, err = exercise.Load(c.opts.ExercisePath)
	} else {
		fmt.Fprintln(c.out, "  no -exercise given, using a sample")
		cfg, err = exercise.Parse([]byte(sampleExercise))
	}
	if err != nil {
		return nil, c.fail("%v", err)
	}
	fmt.Fprintf(c.out, "  Question: %s\n", cfg.PlainQuestion())
	fmt.Fprintf(c.out, "  Accepted: %s\n", strings.Join(cfg.AcceptedAnswers, ", "))
	return cfg, c.pass("language %s", cfg.InputLanguage)
}

func (c *checker) checkMicrophone() ([]byte, bool) {
	c.step("Microphone")
	if c.opts.Context == nil {
		return nil, c.fail("no audio context")
	}
	devices, err := c.opts.Context.Devices()
	if err != nil {
		return nil, c.fail("cannot list devices: %v", err)
	}
	if len(devices) == 0 {
		return nil, c.fail("no capture devices found")
	}
	name := "system default"
	if c.opts.Device != nil {
		name = c.opts.Device.Name
	}
	fmt.Fprintf(c.out, "  Using device: %s\n", name)
	if audio.IsBluetooth(name) {
		fmt.Fprintln(c.out, "  Warning: Bluetooth microphones often hurt recognition")
	}
	if mime, ok := audio.Negotiate(audio.NewProbe(c.opts.Context)); ok {
		fmt.Fprintf(c.out, "  Answers can be exported as %s\n", mime)
	} else {
		fmt.Fprintln(c.out, "  Answer export is not available")
	}

	fmt.Fprintf(c.out, "Press Enter and say the answer (%.0fs)...", c.opts.RecordFor.Seconds())
	c.in.ReadString('\n')

	pcm, err := recordAudio(c.opts.Context, c.opts.Device, c.opts.RecordFor, c.out)
	if err != nil {
		return nil, c.fail("recording error: %v", err)
	}
	if len(pcm) == 0 {
		return nil, c.fail("no audio captured")
	}
	if peak := peakRMS(pcm); peak < voiceThreshold {
		fmt.Fprintf(c.out, "  Warning: no voice detected (peak level %.3f)\n", peak)
	}
	return pcm, c.pass("recorded %.1f KB", float64(len(pcm))/1024)
}

func (c *checker) checkRecognition(cfg *exercise.Config, pcm []byte) bool {
	c.step("Speech recognition")
	if c.opts.Recognizer == nil {
		return c.fail("no recognizer; set DEEPGRAM_API_KEY or GROQ_API_KEY")
	}
	sess, err := c.opts.Recognizer.NewSession(context.Background(), recognizer.SessionConfig{
		Language:     cfg.InputLanguage.String(),
		Alternatives: 5,
	})
	if err != nil {
		return c.fail("session error: %v", err)
	}
	sess.Feed(pcm)
	res, err := sess.Close()
	if err != nil {
		return c.fail("recognition error: %v", err)
	}

	candidates := cfg.Normalizer().NormalizeAll(res.Candidates)
	if res.NoSpeech || len(candidates) == 0 {
		return c.fail("no speech recognized")
	}
	fmt.Fprintf(c.out, "  Heard: %s\n", strings.Join(candidates, " | "))
	for _, m := range res.Metrics {
		fmt.Fprintf(c.out, "  %s\n", m)
	}
	if evaluator.Evaluate(candidates[0], cfg.AcceptedAnswers) {
		return c.pass("%q would be scored correct", candidates[0])
	}
	return c.pass("%q would be scored wrong (recognizer works)", candidates[0])
}

func (c *checker) checkClipboard(cfg *exercise.Config) bool {
	c.step("Clipboard")
	if c.opts.SkipClipboard {
		fmt.Fprintln(c.out, "  skipped")
		return true
	}
	prev, _ := clipboard.Read()
	text, err := clipboard.CopySolution(cfg.AcceptedAnswers)
	if err != nil {
		return c.fail("copy failed: %v", err)
	}
	got, err := clipboard.Read()
	clipboard.Copy(prev)
	if err != nil {
		return c.fail("could not read clipboard: %v", err)
	}
	if got != text {
		return c.fail("clipboard returned %q, want %q", got, text)
	}
	return c.pass("solution copy works")
}

func recordAudio(ctx audio.Context, device *audio.DeviceInfo, d time.Duration, out io.Writer) ([]byte, error) {
	var pcmBuf []byte
	var bufMu sync.Mutex
	var stopped bool

	captureDevice, err := ctx.NewCapture(device, audio.DefaultConfig())
	if err != nil {
		return nil, err
	}
	defer captureDevice.Close()

	captureDevice.SetCallback(func(data []byte, frameCount uint32) {
		bufMu.Lock()
		defer bufMu.Unlock()
		if !stopped {
			pcmBuf = append(pcmBuf, data...)
		}
	})

	if err := captureDevice.Start(); err != nil {
		return nil, err
	}

	// Replayed captures finish early.
	var done <-chan struct{}
	if r, ok := captureDevice.(interface{ AudioDone() <-chan struct{} }); ok {
		done = r.AudioDone()
	}

	fmt.Fprint(out, "  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(d)
loop:
	for {
		select {
		case <-ticker.C:
			fmt.Fprint(out, ".")
		case <-done:
			break loop
		case <-timeout:
			break loop
		}
	}

	bufMu.Lock()
	stopped = true
	raw := pcmBuf
	bufMu.Unlock()
	captureDevice.Stop()
	fmt.Fprintln(out, " done")

	return raw, nil
}

// peakRMS is the loudest 100ms window of 16-bit mono pcm, in [0,1].
func peakRMS(pcm []byte) float64 {
	const window = 1600 * 2
	var peak float64
	for off := 0; off+2 <= len(pcm); off += window {
		end := min(off+window, len(pcm))
		var sum float64
		n := 0
		for i := off; i+1 < end; i += 2 {
			s := float64(int16(uint16(pcm[i])|uint16(pcm[i+1])<<8)) / math.MaxInt16
			sum += s * s
			n++
		}
		if n > 0 {
			peak = max(peak, math.Sqrt(sum/float64(n)))
		}
	}
	return peak
}
