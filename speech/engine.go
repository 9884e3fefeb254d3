// Package speech connects a capture device and a recognizer to the event
// bus: it listens on start-listening and publishes recognized.
package speech

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/audio"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/evaluator"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/eventbus"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/log"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/recognizer"
)

type State int

const (
	StateIdle State = iota
	StateListening
	StateRecognizing
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateRecognizing:
		return "recognizing"
	}
	return "idle"
}

type Options struct {
	Context      audio.Context
	Device       *audio.DeviceInfo
	Recognizer   recognizer.Recognizer
	Normalizer   *evaluator.Normalizer
	Language     string
	Alternatives int
	Endpoint     EndpointConfig
	// OnState, if set, is called on every state change. It may be called
	// from any goroutine.
	OnState func(State)
	// OnError, if set, receives capture and recognition failures.
	OnError func(error)
}

type turn struct {
	sess    recognizer.Session
	ctx     context.Context
	cancel  context.CancelFunc
	peak    atomic.Uint64 // math.Float64bits of the loudest chunk this tick
	tickerQ chan struct{}
}

type Engine struct {
	opts Options
	bus  *eventbus.Bus

	mu      sync.Mutex
	capture audio.CaptureDevice
	active  *turn
	state   State
	unsubs  []func()
	wg      sync.WaitGroup
}

func New(opts Options) *Engine {
	if opts.Alternatives < 1 {
		opts.Alternatives = 5
	}
	if opts.Endpoint.Tick <= 0 {
		opts.Endpoint = DefaultEndpointConfig()
	}
	return &Engine{opts: opts}
}

// Attach subscribes the engine to bus. start-listening opens a turn,
// stop-listening finishes it, stop-all-media abandons it.
func (e *Engine) Attach(bus *eventbus.Bus) {
	e.mu.Lock()
	e.bus = bus
	e.mu.Unlock()
	e.unsubs = append(e.unsubs,
		bus.Subscribe(eventbus.StartListening, func(any) { e.Start() }),
		bus.Subscribe(eventbus.StopListening, func(any) { e.Stop() }),
		bus.Subscribe(eventbus.StopAllMedia, func(any) { e.Cancel() }),
	)
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	changed := e.state != s
	e.state = s
	e.mu.Unlock()
	if changed && e.opts.OnState != nil {
		e.opts.OnState(s)
	}
}

func (e *Engine) fail(err error) {
	log.Warnf("speech: %v", err)
	if e.opts.OnError != nil {
		e.opts.OnError(err)
	}
}

func (e *Engine) ensureCapture() (audio.CaptureDevice, error) {
	if e.capture != nil {
		return e.capture, nil
	}
	if e.opts.Context == nil {
		return nil, errors.New("no audio context")
	}
	c, err := e.opts.Context.NewCapture(e.opts.Device, audio.DefaultConfig())
	if err != nil {
		return nil, err
	}
	e.capture = c
	return c, nil
}

// Start opens a listening turn. It is a no-op while a turn is active or
// a previous utterance is still being recognized. A turn that cannot be
// opened is reported as abandoned.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.active != nil || e.state == StateRecognizing {
		e.mu.Unlock()
		return
	}
	capture, err := e.ensureCapture()
	if err != nil {
		e.mu.Unlock()
		e.fail(err)
		e.abandon()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := e.opts.Recognizer.NewSession(ctx, recognizer.SessionConfig{
		Language:     e.opts.Language,
		Alternatives: e.opts.Alternatives,
	})
	if err != nil {
		cancel()
		e.mu.Unlock()
		e.fail(err)
		e.abandon()
		return
	}

	t := &turn{sess: sess, ctx: ctx, cancel: cancel, tickerQ: make(chan struct{})}
	capture.SetCallback(func(data []byte, _ uint32) {
		sess.Feed(data)
		level := rms(data)
		for {
			old := t.peak.Load()
			if math.Float64frombits(old) >= level || t.peak.CompareAndSwap(old, math.Float64bits(level)) {
				break
			}
		}
	})
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		cancel()
		e.mu.Unlock()
		e.fail(err)
		e.abandon()
		return
	}
	e.active = t
	e.mu.Unlock()

	log.Info("listening_start")
	e.setState(StateListening)

	e.wg.Add(1)
	go e.watch(t)
}

func (e *Engine) watch(t *turn) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.opts.Endpoint.Tick)
	defer ticker.Stop()
	mon := newEndpointMonitor(e.opts.Endpoint)

	for {
		select {
		case <-t.tickerQ:
			return
		case <-ticker.C:
		}
		level := math.Float64frombits(t.peak.Swap(0))
		ev := mon.Tick(level >= e.opts.Endpoint.Threshold)
		switch ev {
		case EndpointUtteranceEnd, EndpointMaxLength:
			log.Debugf("speech: %s", ev)
			e.finish(t, true)
			return
		case EndpointNoInput:
			log.Info("no_speech")
			e.finish(t, false)
			e.abandon()
			return
		}
	}
}

// Stop ends the active turn and recognizes what was heard.
func (e *Engine) Stop() {
	e.mu.Lock()
	t := e.active
	e.mu.Unlock()
	if t != nil {
		e.finish(t, true)
	}
}

// Cancel ends the active turn without recognizing it.
func (e *Engine) Cancel() {
	e.mu.Lock()
	t := e.active
	e.mu.Unlock()
	if t != nil {
		e.finish(t, false)
	}
}

func (e *Engine) finish(t *turn, recognize bool) {
	e.mu.Lock()
	if e.active != t {
		e.mu.Unlock()
		return
	}
	e.active = nil
	e.capture.Stop()
	e.capture.ClearCallback()
	close(t.tickerQ)
	if recognize {
		e.state = StateRecognizing
	}
	e.mu.Unlock()

	if !recognize {
		t.cancel()
		e.setState(StateIdle)
		return
	}
	if e.opts.OnState != nil {
		e.opts.OnState(StateRecognizing)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer t.cancel()
		e.recognize(t)
	}()
}

func (e *Engine) recognize(t *turn) {
	start := time.Now()
	defer e.setState(StateIdle)
	res, err := t.sess.Close()
	if err != nil {
		if t.ctx.Err() == nil {
			e.fail(err)
		}
		e.abandon()
		return
	}
	var audioS float64
	if res.Batch != nil {
		audioS = res.Batch.AudioLengthS
	}
	log.Recognition(e.opts.Recognizer.Name(), len(res.Candidates), audioS, float64(time.Since(start).Milliseconds()))

	candidates := res.Candidates
	if e.opts.Normalizer != nil {
		candidates = e.opts.Normalizer.NormalizeAll(candidates)
	}
	if res.NoSpeech || len(candidates) == 0 {
		log.Info("no_speech")
		e.abandon()
		return
	}
	e.publish(eventbus.Recognized, candidates)
}

// abandon tells the other listeners that the turn ended with nothing to
// evaluate, so anything they recorded for it is dropped.
func (e *Engine) abandon() {
	e.publish(eventbus.TurnAbandoned, nil)
}

func (e *Engine) publish(ev eventbus.Event, payload any) {
	e.mu.Lock()
	bus := e.bus
	e.mu.Unlock()
	if bus != nil {
		bus.Publish(ev, payload)
	}
}

// Wait blocks until in-flight recognitions have published.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close abandons any active turn, detaches from the bus and releases the
// capture device.
func (e *Engine) Close() {
	e.Cancel()
	for _, u := range e.unsubs {
		u()
	}
	e.unsubs = nil
	e.wg.Wait()
	e.mu.Lock()
	if e.capture != nil {
		e.capture.Close()
		e.capture = nil
	}
	e.mu.Unlock()
}
