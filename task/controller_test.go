package task

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/audio"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/encoder"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/eventbus"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/exercise"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/recognizer"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/report"
)

const parisExercise = `
contentId: paris
question: "<p>What is the capital of France?</p>"
acceptedAnswers: [paris]
correctAnswerText: Correct!
incorrectAnswerText: Wrong.
`

type harness struct {
	ctl     *Controller
	bus     *eventbus.Bus
	host    *fakeHost
	view    *fakeView
	tracker *fakeTracker
	events  []eventbus.Event
}

func newHarness(t *testing.T, doc string, snap *Snapshot) *harness {
	t.Helper()
	cfg, err := exercise.Parse([]byte(doc))
	require.NoError(t, err)

	h := &harness{
		bus:     eventbus.New(),
		host:    newFakeHost(),
		view:    &fakeView{},
		tracker: &fakeTracker{},
	}
	for _, ev := range []eventbus.Event{
		eventbus.StartListening, eventbus.StopListening, eventbus.StopAllMedia,
		eventbus.AnsweredCorrectly, eventbus.AnsweredWrong, eventbus.ResetTask,
		eventbus.ShowSolution, eventbus.Resize,
	} {
		ev := ev
		h.bus.Subscribe(ev, func(any) { h.events = append(h.events, ev) })
	}
	h.ctl = New(Options{
		Config:     cfg,
		Bus:        h.bus,
		Recognizer: recognizer.NewFake(nil, nil),
		Host:       h.host,
		View:       h.view,
		Tracker:    h.tracker,
		Snapshot:   snap,
	})
	t.Cleanup(h.ctl.Close)
	return h
}

func (h *harness) recognize(candidates ...string) {
	h.bus.Publish(eventbus.Recognized, candidates)
}

func TestInitialState(t *testing.T) {
	h := newHarness(t, parisExercise, nil)

	assert.True(t, h.ctl.Supported())
	assert.Equal(t, StateTask, h.ctl.ViewState())
	assert.Equal(t, 0, h.ctl.Score())
	assert.Equal(t, 1, h.ctl.MaxScore())
	assert.False(t, h.ctl.IsAnswered())
	assert.Equal(t, "What is the capital of France?", h.host.intro)
	assert.Equal(t, "Push to speak", h.host.content)
	assert.False(t, h.host.shown(ControlTryAgain))
	assert.False(t, h.host.shown(ControlShowSolution))
	assert.Empty(t, h.tracker.states)
}

func TestCorrectAnswer(t *testing.T) {
	h := newHarness(t, parisExercise, nil)

	h.recognize("paris", "pari")

	assert.Equal(t, StateResults, h.ctl.ViewState())
	assert.Equal(t, 1, h.ctl.Score())
	assert.True(t, h.ctl.IsAnswered())
	assert.False(t, h.host.shown(ControlTryAgain))
	assert.False(t, h.host.shown(ControlShowSolution))
	require.NotNil(t, h.host.feedback)
	assert.Equal(t, feedback{"Correct!", 1, 1}, *h.host.feedback)
	assert.Equal(t, []string{"paris"}, h.view.answered)
	assert.Equal(t, []bool{true}, h.view.correct)

	assert.Equal(t, []eventbus.Event{eventbus.StopAllMedia, eventbus.AnsweredCorrectly, eventbus.Resize}, h.events)
	assert.Equal(t, []ViewState{StateResults}, h.tracker.states)

	require.Len(t, h.tracker.outcomes, 1)
	st := h.tracker.outcomes[0]
	assert.Equal(t, 1, st.Result.Score.Raw)
	assert.Equal(t, "paris", st.Result.Response)
	assert.Equal(t, []string{"paris"}, st.Object.Definition.CorrectResponsesPattern)
	assert.NoError(t, report.Validate(st))
}

func TestWrongAnswer(t *testing.T) {
	h := newHarness(t, parisExercise, nil)

	h.recognize("london")

	assert.Equal(t, StateResults, h.ctl.ViewState())
	assert.Equal(t, 0, h.ctl.Score())
	assert.True(t, h.ctl.IsAnswered())
	assert.True(t, h.host.shown(ControlTryAgain))
	assert.True(t, h.host.shown(ControlShowSolution))
	assert.Equal(t, feedback{"Wrong.", 0, 1}, *h.host.feedback)
	assert.Contains(t, h.events, eventbus.AnsweredWrong)
	assert.NotContains(t, h.events, eventbus.AnsweredCorrectly)

	require.Len(t, h.tracker.outcomes, 1)
	assert.False(t, h.tracker.outcomes[0].Result.Success)
}

func TestOnlyFirstCandidateIsEvaluated(t *testing.T) {
	h := newHarness(t, parisExercise, nil)
	h.recognize("pari", "paris")
	assert.Equal(t, 0, h.ctl.Score())
}

func TestReplayInResultsEmitsNoSecondRecord(t *testing.T) {
	h := newHarness(t, parisExercise, nil)

	h.recognize("paris")
	h.recognize("paris")

	assert.Equal(t, StateResults, h.ctl.ViewState())
	assert.Len(t, h.tracker.outcomes, 1)
	assert.Equal(t, []ViewState{StateResults, StateResults}, h.tracker.states)
}

func TestEmptyOutcomeIgnored(t *testing.T) {
	h := newHarness(t, parisExercise, nil)

	h.recognize()
	h.bus.Publish(eventbus.Recognized, "paris")

	assert.Equal(t, StateTask, h.ctl.ViewState())
	assert.Empty(t, h.events)
	assert.Empty(t, h.tracker.outcomes)
}

func TestResetAfterAnswer(t *testing.T) {
	h := newHarness(t, parisExercise, nil)
	h.recognize("london")
	h.events = nil

	h.ctl.ResetTask()

	assert.Equal(t, StateTask, h.ctl.ViewState())
	assert.Equal(t, 0, h.ctl.Score())
	assert.False(t, h.ctl.IsAnswered())
	assert.Nil(t, h.host.feedback)
	assert.False(t, h.host.shown(ControlTryAgain))
	assert.False(t, h.host.shown(ControlShowSolution))
	assert.Equal(t, 1, h.view.restores)
	assert.Equal(t, []eventbus.Event{eventbus.ResetTask, eventbus.Resize}, h.events)

	assert.Equal(t, Snapshot{ViewState: StateTask, LastInterpretations: []string{}}, h.ctl.CurrentState())
	data, err := json.Marshal(h.ctl.CurrentState())
	require.NoError(t, err)
	assert.JSONEq(t, `{"viewState":"task","lastInterpretations":[]}`, string(data))
}

func TestResetFromEveryState(t *testing.T) {
	for _, setup := range []func(h *harness){
		func(h *harness) {},
		func(h *harness) { h.recognize("paris") },
		func(h *harness) { h.recognize("rome"); h.ctl.ShowSolutions() },
	} {
		h := newHarness(t, parisExercise, nil)
		setup(h)
		h.ctl.ResetTask()
		assert.Equal(t, StateTask, h.ctl.ViewState())
		assert.Equal(t, 0, h.ctl.Score())
		assert.False(t, h.ctl.IsAnswered())
		assert.Empty(t, h.ctl.Interpretations())
	}
}

func TestAnswerAgainAfterReset(t *testing.T) {
	h := newHarness(t, parisExercise, nil)
	h.recognize("london")
	h.ctl.ResetTask()
	h.recognize("paris")

	assert.Equal(t, 1, h.ctl.Score())
	require.Len(t, h.tracker.outcomes, 2)
	assert.Equal(t, 0, h.tracker.outcomes[0].Result.Score.Raw)
	assert.Equal(t, 1, h.tracker.outcomes[1].Result.Score.Raw)
}

func TestShowSolutionOnlyFromResults(t *testing.T) {
	h := newHarness(t, parisExercise, nil)

	h.ctl.ShowSolutions()
	assert.Equal(t, StateTask, h.ctl.ViewState())
	assert.Empty(t, h.view.solutions)
	assert.Empty(t, h.tracker.states)

	h.recognize("london")
	h.ctl.ShowSolutions()

	assert.Equal(t, StateSolutions, h.ctl.ViewState())
	assert.False(t, h.host.shown(ControlShowSolution))
	assert.True(t, h.host.shown(ControlTryAgain))
	assert.Equal(t, [][]string{{"paris"}}, h.view.solutions)
	assert.Equal(t, []ViewState{StateResults, StateSolutions}, h.tracker.states)
	assert.Contains(t, h.events, eventbus.ShowSolution)

	h.ctl.ShowSolutions()
	assert.Len(t, h.view.solutions, 1, "second show-solution must be ignored")
}

func TestSetViewStateInvalidIgnored(t *testing.T) {
	h := newHarness(t, parisExercise, nil)
	h.recognize("london")

	h.ctl.SetViewState("finished")
	h.ctl.SetViewState("")
	h.ctl.SetViewState("RESULTS")

	assert.Equal(t, StateResults, h.ctl.ViewState())
	assert.Equal(t, 0, h.view.restores)
}

func TestSetViewState(t *testing.T) {
	h := newHarness(t, parisExercise, nil)

	h.ctl.SetViewState("solutions")
	assert.Equal(t, StateTask, h.ctl.ViewState())
	h.ctl.SetViewState("results")
	assert.Equal(t, StateTask, h.ctl.ViewState(), "results needs an answer")

	h.recognize("london")
	h.ctl.SetViewState("solutions")
	assert.Equal(t, StateSolutions, h.ctl.ViewState())

	h.ctl.SetViewState("results")
	assert.Equal(t, StateResults, h.ctl.ViewState())
	assert.Len(t, h.tracker.outcomes, 1)

	h.ctl.SetViewState("task")
	assert.Equal(t, StateTask, h.ctl.ViewState())
}

func TestRestoreSolutions(t *testing.T) {
	h := newHarness(t, parisExercise, &Snapshot{
		ViewState:           StateSolutions,
		LastInterpretations: []string{"paris"},
	})

	assert.Equal(t, StateSolutions, h.ctl.ViewState())
	assert.Equal(t, 1, h.ctl.Score())
	assert.True(t, h.ctl.IsAnswered())
	assert.Equal(t, [][]string{{"paris"}}, h.view.solutions)
	assert.Empty(t, h.tracker.outcomes, "restore must not re-publish the record")
	assert.Equal(t, []ViewState{StateResults, StateSolutions}, h.tracker.states)
	assert.Equal(t, Snapshot{ViewState: StateSolutions, LastInterpretations: []string{"paris"}}, h.ctl.CurrentState())
}

func TestRestoreResultsThenNewOutcome(t *testing.T) {
	h := newHarness(t, parisExercise, &Snapshot{
		ViewState:           StateResults,
		LastInterpretations: []string{"london"},
	})

	assert.Equal(t, StateResults, h.ctl.ViewState())
	assert.True(t, h.host.shown(ControlTryAgain))
	assert.Empty(t, h.tracker.outcomes)

	h.recognize("paris")
	assert.Empty(t, h.tracker.outcomes, "outcome in results is not reported")

	h.ctl.ResetTask()
	h.recognize("paris")
	assert.Len(t, h.tracker.outcomes, 1)
}

func TestRestoreIgnoresInconsistentSnapshots(t *testing.T) {
	for _, snap := range []*Snapshot{
		{ViewState: StateTask, LastInterpretations: []string{"paris"}},
		{ViewState: StateSolutions},
		{ViewState: "bogus", LastInterpretations: []string{"paris"}},
	} {
		h := newHarness(t, parisExercise, snap)
		assert.Equal(t, StateTask, h.ctl.ViewState(), "snapshot %+v", snap)
		assert.False(t, h.ctl.IsAnswered())
		assert.Empty(t, h.tracker.states)
		assert.Empty(t, h.ctl.CurrentState().LastInterpretations)
	}
}

func TestUnsupportedWithoutRecognizer(t *testing.T) {
	cfg, err := exercise.Parse([]byte(parisExercise))
	require.NoError(t, err)
	bus := eventbus.New()
	host := newFakeHost()
	view := &fakeView{}

	ctl := New(Options{Config: cfg, Bus: bus, Host: host, View: view})

	assert.False(t, ctl.Supported())
	assert.Equal(t, "Your system does not support speech recognition.", view.unsupported)
	assert.Zero(t, bus.Subscribers(eventbus.Recognized))
	assert.Empty(t, host.calls)

	started := false
	bus.Subscribe(eventbus.StartListening, func(any) { started = true })
	ctl.Listen()
	bus.Publish(eventbus.Recognized, []string{"paris"})
	ctl.ShowSolutions()
	ctl.ResetTask()

	assert.False(t, started)
	assert.Equal(t, StateTask, ctl.ViewState())
	assert.Zero(t, view.restores)
}

func TestBehaviourFlagsHideControls(t *testing.T) {
	h := newHarness(t, parisExercise+"behaviour: {enableRetry: false, enableSolutionsButton: false}\n", nil)

	h.recognize("london")

	assert.False(t, h.host.shown(ControlTryAgain))
	assert.False(t, h.host.shown(ControlShowSolution))
}

func TestListenOnlyInTaskState(t *testing.T) {
	h := newHarness(t, parisExercise, nil)

	h.ctl.Listen()
	h.ctl.StopListening()
	assert.Equal(t, []eventbus.Event{eventbus.StartListening, eventbus.StopListening}, h.events)

	h.recognize("paris")
	h.events = nil
	h.ctl.Listen()
	assert.NotContains(t, h.events, eventbus.StartListening)
}

func TestOutcomeRecordOnDemand(t *testing.T) {
	h := newHarness(t, parisExercise, nil)
	h.recognize("paris")

	st := h.ctl.OutcomeRecord()

	require.NotNil(t, st)
	assert.Equal(t, 1, st.Result.Score.Raw)
	assert.Equal(t, "paris", st.Result.Response)
	assert.Len(t, h.tracker.outcomes, 1, "on-demand records are not tracked")
	assert.NotEqual(t, h.tracker.outcomes[0].ID, st.ID)

	h.ctl.ResetTask()
	st = h.ctl.OutcomeRecord()
	assert.Equal(t, 0, st.Result.Score.Raw)
	assert.Equal(t, "", st.Result.Response)
}

func TestCaptureStopsBeforeEvaluation(t *testing.T) {
	h := newHarness(t, parisExercise, nil)

	actx := audio.NewFakeContextPCM(nil, false)
	coord := audio.NewCoordinator(audio.CoordinatorConfig{
		Context:   actx,
		Probe:     audio.FakeProbe{Capture: true, Codecs: true, MIMEs: []string{encoder.MIMEFlac}},
		ContentID: "paris",
	})
	coord.Attach(h.bus)
	defer coord.Close()

	var order []string
	h.bus.Subscribe(eventbus.ExportFile, func(p any) {
		order = append(order, "export:"+p.(audio.Export).MIME)
	})
	h.bus.Subscribe(eventbus.AnsweredCorrectly, func(any) { order = append(order, "answered") })

	h.ctl.Listen()
	require.True(t, coord.Recording())
	actx.Captures()[0].Emit(make([]byte, 640))

	h.recognize("paris")

	assert.False(t, coord.Recording())
	assert.Equal(t, []string{"export:audio/flac", "answered"}, order)
	assert.Equal(t, 1, h.ctl.Score())
}

func TestCaptureFailureDoesNotBlockScoring(t *testing.T) {
	h := newHarness(t, parisExercise, nil)

	actx := audio.NewFakeContextPCM(nil, false)
	actx.StartErr = assert.AnError
	coord := audio.NewCoordinator(audio.CoordinatorConfig{
		Context: actx,
		Probe:   audio.FakeProbe{Capture: true},
	})
	coord.Attach(h.bus)
	defer coord.Close()

	h.ctl.Listen()
	h.recognize("paris")

	assert.Equal(t, 1, h.ctl.Score())
	assert.Len(t, h.tracker.outcomes, 1)
}
