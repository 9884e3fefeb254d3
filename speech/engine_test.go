package speech

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/audio"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/evaluator"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/eventbus"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/recognizer"
)

type recorded struct {
	mu        sync.Mutex
	got       [][]string
	errs      []error
	abandoned int
}

func (r *recorded) abandons() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abandoned
}

func (r *recorded) results() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.got...)
}

func (r *recorded) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func setup(t *testing.T, rec recognizer.Recognizer, mutate func(*Options)) (*Engine, *eventbus.Bus, *audio.FakeContext, *recorded) {
	t.Helper()
	actx := audio.NewFakeContextPCM(nil, false)
	out := &recorded{}
	opts := Options{
		Context:    actx,
		Recognizer: rec,
		Normalizer: evaluator.NewNormalizer(language.English),
		Language:   "en-US",
		OnError: func(err error) {
			out.mu.Lock()
			out.errs = append(out.errs, err)
			out.mu.Unlock()
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	e := New(opts)
	bus := eventbus.New()
	e.Attach(bus)
	bus.Subscribe(eventbus.Recognized, func(p any) {
		out.mu.Lock()
		out.got = append(out.got, p.([]string))
		out.mu.Unlock()
	})
	bus.Subscribe(eventbus.TurnAbandoned, func(any) {
		out.mu.Lock()
		out.abandoned++
		out.mu.Unlock()
	})
	t.Cleanup(e.Close)
	return e, bus, actx, out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEngineStopPublishesNormalized(t *testing.T) {
	rec := recognizer.NewFake([]string{"Paris!", "PARI", "..."}, nil)
	e, bus, actx, out := setup(t, rec, nil)

	bus.Publish(eventbus.StartListening, nil)
	if e.State() != StateListening {
		t.Fatalf("State = %v, want listening", e.State())
	}
	capture := actx.Captures()[0]
	if !capture.Running() {
		t.Fatal("capture not running")
	}
	capture.Emit(sine(1600, 0.5))

	bus.Publish(eventbus.StopListening, nil)
	e.Wait()

	if capture.Running() {
		t.Error("capture still running after stop")
	}
	got := out.results()
	if len(got) != 1 || !reflect.DeepEqual(got[0], []string{"paris", "pari"}) {
		t.Errorf("recognized = %q", got)
	}
	if rec.FedBytes() != 3200 {
		t.Errorf("FedBytes = %d, want 3200", rec.FedBytes())
	}
	if rec.Language() != "en-US" {
		t.Errorf("recognizer language = %q", rec.Language())
	}
	if e.State() != StateIdle {
		t.Errorf("State = %v, want idle", e.State())
	}
	if n := out.abandons(); n != 0 {
		t.Errorf("recognized turn reported %d abandons", n)
	}
}

func TestEngineStartTwiceIsNoop(t *testing.T) {
	rec := recognizer.NewFake([]string{"a"}, nil)
	e, bus, actx, _ := setup(t, rec, nil)

	bus.Publish(eventbus.StartListening, nil)
	bus.Publish(eventbus.StartListening, nil)
	if rec.Sessions() != 1 {
		t.Errorf("Sessions = %d, want 1", rec.Sessions())
	}
	if n := actx.Captures()[0].Starts(); n != 1 {
		t.Errorf("capture starts = %d, want 1", n)
	}
	e.Stop()
	e.Wait()

	bus.Publish(eventbus.StartListening, nil)
	if rec.Sessions() != 2 {
		t.Errorf("Sessions = %d, want 2 after a new turn", rec.Sessions())
	}
	if len(actx.Captures()) != 1 {
		t.Errorf("capture device should be reused, got %d", len(actx.Captures()))
	}
}

func TestEngineNoSpeechPublishesNothing(t *testing.T) {
	e, bus, _, out := setup(t, recognizer.NewFake([]string{"", "?!"}, nil), nil)

	bus.Publish(eventbus.StartListening, nil)
	e.Stop()
	e.Wait()

	if got := out.results(); len(got) != 0 {
		t.Errorf("recognized = %q, want none", got)
	}
	if n := out.abandons(); n != 1 {
		t.Errorf("abandons = %d, want 1", n)
	}
}

func TestEngineStopAllMediaCancels(t *testing.T) {
	rec := recognizer.NewFake([]string{"paris"}, nil)
	e, bus, actx, out := setup(t, rec, nil)

	bus.Publish(eventbus.StartListening, nil)
	bus.Publish(eventbus.StopAllMedia, nil)
	e.Wait()

	if actx.Captures()[0].Running() {
		t.Error("capture still running")
	}
	if got := out.results(); len(got) != 0 {
		t.Errorf("recognized = %q, want none", got)
	}
	if e.State() != StateIdle {
		t.Errorf("State = %v", e.State())
	}
	// the stop-all-media sender already ends the other recordings
	if n := out.abandons(); n != 0 {
		t.Errorf("abandons = %d, want 0", n)
	}
}

func TestEngineEndpointStopsTurn(t *testing.T) {
	rec := recognizer.NewFake([]string{"paris"}, nil)
	var states []State
	var smu sync.Mutex
	e, bus, actx, out := setup(t, rec, func(o *Options) {
		o.Endpoint = EndpointConfig{
			Tick:            5 * time.Millisecond,
			Threshold:       0.02,
			Onset:           5 * time.Millisecond,
			TrailingSilence: 25 * time.Millisecond,
			NoInput:         time.Second,
			MaxUtterance:    time.Second,
		}
		o.OnState = func(s State) {
			smu.Lock()
			states = append(states, s)
			smu.Unlock()
		}
	})

	bus.Publish(eventbus.StartListening, nil)
	capture := actx.Captures()[0]
	for i := 0; i < 10; i++ {
		capture.Emit(sine(160, 0.5))
		time.Sleep(2 * time.Millisecond)
	}

	waitFor(t, func() bool { return len(out.results()) == 1 })
	e.Wait()

	smu.Lock()
	defer smu.Unlock()
	want := []State{StateListening, StateRecognizing, StateIdle}
	if !reflect.DeepEqual(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestEngineNoInputTimeout(t *testing.T) {
	rec := recognizer.NewFake([]string{"paris"}, nil)
	e, bus, actx, out := setup(t, rec, func(o *Options) {
		o.Endpoint = EndpointConfig{
			Tick:            2 * time.Millisecond,
			Threshold:       0.02,
			Onset:           2 * time.Millisecond,
			TrailingSilence: 10 * time.Millisecond,
			NoInput:         20 * time.Millisecond,
			MaxUtterance:    time.Second,
		}
	})

	bus.Publish(eventbus.StartListening, nil)
	waitFor(t, func() bool { return e.State() == StateIdle })
	e.Wait()

	if actx.Captures()[0].Running() {
		t.Error("capture still running after no-input timeout")
	}
	if got := out.results(); len(got) != 0 {
		t.Errorf("recognized = %q, want none", got)
	}
	if n := out.abandons(); n != 1 {
		t.Errorf("abandons = %d, want 1", n)
	}
}

func TestEngineCaptureFailure(t *testing.T) {
	rec := recognizer.NewFake([]string{"paris"}, nil)
	e, bus, actx, out := setup(t, rec, nil)
	actx.StartErr = errors.New("permission denied")

	bus.Publish(eventbus.StartListening, nil)

	if e.State() != StateIdle {
		t.Errorf("State = %v, want idle", e.State())
	}
	if errs := out.errors(); len(errs) != 1 {
		t.Errorf("errors = %v, want one", errs)
	}
	if n := out.abandons(); n != 1 {
		t.Errorf("abandons = %d, want 1", n)
	}
}

func TestEngineRecognizerFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	e, bus, _, out := setup(t, recognizer.NewFake(nil, boom), nil)

	bus.Publish(eventbus.StartListening, nil)
	e.Stop()
	e.Wait()

	errs := out.errors()
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Errorf("errors = %v", errs)
	}
	if len(out.results()) != 0 {
		t.Error("nothing should be published on failure")
	}
	if n := out.abandons(); n != 1 {
		t.Errorf("abandons = %d, want 1", n)
	}
	if e.State() != StateIdle {
		t.Errorf("State = %v, want idle", e.State())
	}
}

func TestEngineIdleOnlyAfterPublishing(t *testing.T) {
	rec := recognizer.NewFake([]string{"paris"}, nil)
	e, bus, _, _ := setup(t, rec, nil)
	var during State
	bus.Subscribe(eventbus.Recognized, func(any) { during = e.State() })

	bus.Publish(eventbus.StartListening, nil)
	e.Stop()
	e.Wait()

	if during != StateRecognizing {
		t.Errorf("State while publishing = %v, want recognizing", during)
	}
}
