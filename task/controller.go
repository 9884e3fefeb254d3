// Package task owns the view-state machine of one exercise: it evaluates
// recognition outcomes, drives the host controls and reports results.
package task

import (
	"sync"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/evaluator"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/eventbus"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/exercise"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/l10n"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/log"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/recognizer"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/report"
)

type Options struct {
	Config *exercise.Config
	Bus    *eventbus.Bus
	// Recognizer only has to be non-nil; without one the controller shows
	// the unsupported notice and stays inert.
	Recognizer recognizer.Recognizer
	Host       Host
	View       View
	Tracker    Tracker
	Builder    *report.Builder
	Snapshot   *Snapshot
}

type Controller struct {
	cfg       *exercise.Config
	bus       *eventbus.Bus
	host      Host
	view      View
	tracker   Tracker
	builder   *report.Builder
	supported bool
	unsubs    []func()

	mu              sync.Mutex
	state           ViewState
	score           int
	answered        bool
	interpretations []string
}

func New(opts Options) *Controller {
	c := &Controller{
		cfg:     opts.Config,
		bus:     opts.Bus,
		host:    opts.Host,
		view:    opts.View,
		tracker: opts.Tracker,
		builder: opts.Builder,
		state:   StateTask,
	}
	if c.tracker == nil {
		c.tracker = nopTracker{}
	}
	if c.builder == nil {
		c.builder = report.NewBuilder(c.cfg, report.NewActor(""))
	}

	if opts.Recognizer == nil {
		log.Warn("no speech recognizer available")
		c.view.ShowUnsupported(c.strings().T(l10n.NotSupported))
		return c
	}
	c.supported = true

	c.host.SetIntroduction(c.cfg.PlainQuestion())
	c.host.SetContent(c.strings().T(l10n.InputLabel))
	c.host.HideControl(ControlTryAgain)
	c.host.HideControl(ControlShowSolution)

	c.unsubs = append(c.unsubs, c.bus.Subscribe(eventbus.Recognized, c.onRecognized))

	if opts.Snapshot != nil {
		c.restore(opts.Snapshot)
	}
	return c
}

func (c *Controller) strings() *l10n.Table { return c.cfg.Strings() }

// Supported is false when no recognizer was available at construction.
func (c *Controller) Supported() bool { return c.supported }

func (c *Controller) onRecognized(payload any) {
	candidates, ok := payload.([]string)
	if !ok || len(candidates) == 0 {
		log.Warnf("task: ignoring empty recognition outcome (%T)", payload)
		return
	}
	c.outcome(candidates, false)
}

// outcome evaluates candidates[0]. replay marks evaluation of restored
// interpretations, which never produces a statement.
func (c *Controller) outcome(candidates []string, replay bool) {
	c.bus.Publish(eventbus.StopAllMedia, nil)

	response := candidates[0]
	correct := evaluator.Evaluate(response, c.cfg.AcceptedAnswers)
	score := 0
	if correct {
		score = report.MaxScore
	}

	c.mu.Lock()
	prev := c.state
	c.state = StateResults
	c.score = score
	c.answered = true
	c.interpretations = append([]string(nil), candidates...)
	c.mu.Unlock()

	var st *report.Statement
	if prev == StateTask && !replay {
		st = c.builder.Build(score, response)
	}

	c.view.MarkAnswered(response, correct)
	if correct {
		c.host.HideControl(ControlTryAgain)
		c.host.HideControl(ControlShowSolution)
	} else {
		c.toggle(ControlTryAgain, c.cfg.Behaviour.EnableRetry)
		c.toggle(ControlShowSolution, c.cfg.Behaviour.EnableSolutionsButton)
	}
	feedback := c.cfg.IncorrectAnswerText
	if correct {
		feedback = c.cfg.CorrectAnswerText
	}
	c.host.SetFeedback(feedback, score, report.MaxScore)

	if correct {
		c.bus.Publish(eventbus.AnsweredCorrectly, nil)
	} else {
		c.bus.Publish(eventbus.AnsweredWrong, nil)
	}
	c.bus.Publish(eventbus.Resize, nil)

	log.ViewState(string(prev), string(StateResults), replay)
	c.tracker.StateChanged(StateResults)

	if st != nil {
		log.Outcome(response, score, report.MaxScore, correct)
		if err := report.Validate(st); err != nil {
			log.Warnf("task: %v", err)
		}
		log.Statement(st)
		c.tracker.Outcome(st)
	}
}

func (c *Controller) toggle(ctl Control, show bool) {
	if show {
		c.host.ShowControl(ctl)
	} else {
		c.host.HideControl(ctl)
	}
}

// ResetTask returns to the task state from any state and clears the turn.
func (c *Controller) ResetTask() {
	if !c.supported {
		return
	}
	c.mu.Lock()
	prev := c.state
	c.state = StateTask
	c.score = 0
	c.answered = false
	c.interpretations = nil
	c.mu.Unlock()

	c.builder.MarkStart()
	c.host.RemoveFeedback()
	c.host.HideControl(ControlTryAgain)
	c.host.HideControl(ControlShowSolution)
	c.view.Restore()
	c.bus.Publish(eventbus.ResetTask, nil)
	c.bus.Publish(eventbus.Resize, nil)
	log.ViewState(string(prev), string(StateTask), false)
}

// ShowSolutions moves results to solutions. From any other state it does
// nothing.
func (c *Controller) ShowSolutions() {
	if !c.supported {
		return
	}
	c.mu.Lock()
	if c.state != StateResults {
		c.mu.Unlock()
		return
	}
	c.state = StateSolutions
	c.mu.Unlock()

	c.host.HideControl(ControlShowSolution)
	c.view.MarkShowingSolution(append([]string(nil), c.cfg.AcceptedAnswers...))
	c.bus.Publish(eventbus.ShowSolution, nil)
	c.bus.Publish(eventbus.Resize, nil)
	log.ViewState(string(StateResults), string(StateSolutions), false)
	c.tracker.StateChanged(StateSolutions)
}

// SetViewState moves to the named state through the legal transitions.
// Unknown names are ignored, as is results without an answer to show.
func (c *Controller) SetViewState(name string) {
	target, ok := ParseViewState(name)
	if !ok {
		log.Debugf("task: ignoring unknown view state %q", name)
		return
	}
	switch target {
	case StateTask:
		c.ResetTask()
	case StateResults:
		c.mu.Lock()
		interps := append([]string(nil), c.interpretations...)
		c.mu.Unlock()
		if c.supported && len(interps) > 0 {
			c.outcome(interps, true)
		}
	case StateSolutions:
		c.ShowSolutions()
	}
}

// Listen asks the recognizer to start a turn. It only does so in the
// task state.
func (c *Controller) Listen() {
	if !c.supported || c.ViewState() != StateTask {
		return
	}
	c.bus.Publish(eventbus.StartListening, nil)
}

// StopListening ends the current turn early; the recognizer still
// reports what it heard.
func (c *Controller) StopListening() {
	if c.supported {
		c.bus.Publish(eventbus.StopListening, nil)
	}
}

func (c *Controller) restore(s *Snapshot) {
	state, ok := ParseViewState(string(s.ViewState))
	// interpretations only replay for a state that showed them; a task
	// snapshot carrying some is inconsistent and starts fresh
	if !ok || state == StateTask || len(s.LastInterpretations) == 0 {
		return
	}
	c.outcome(s.LastInterpretations, true)
	if state == StateSolutions {
		c.ShowSolutions()
	}
}

func (c *Controller) Score() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.score
}

func (c *Controller) MaxScore() int { return report.MaxScore }

func (c *Controller) IsAnswered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answered
}

func (c *Controller) ViewState() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Interpretations returns the candidates of the last evaluated turn.
func (c *Controller) Interpretations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.interpretations...)
}

// CurrentState returns the snapshot to persist.
func (c *Controller) CurrentState() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ViewState:           c.state,
		LastInterpretations: append([]string{}, c.interpretations...),
	}
}

// OutcomeRecord builds a statement for the current score without a new
// turn. It is not passed to the tracker.
func (c *Controller) OutcomeRecord() *report.Statement {
	c.mu.Lock()
	score := c.score
	response := ""
	if len(c.interpretations) > 0 {
		response = c.interpretations[0]
	}
	c.mu.Unlock()
	return c.builder.Build(score, response)
}

// Close detaches the controller from the bus.
func (c *Controller) Close() {
	for _, u := range c.unsubs {
		u()
	}
	c.unsubs = nil
}
