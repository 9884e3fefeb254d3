package task

import "github.com/Klasmart-Engineering/h5p-speak-the-words/report"

type Control string

const (
	ControlTryAgain     Control = "try-again"
	ControlShowSolution Control = "show-solution"
)

// Host is the surrounding question framework.
type Host interface {
	HideControl(c Control)
	ShowControl(c Control)
	SetFeedback(text string, score, maxScore int)
	RemoveFeedback()
	SetIntroduction(text string)
	SetContent(text string)
}

// View is the widget's own rendering surface.
type View interface {
	MarkAnswered(response string, correct bool)
	MarkShowingSolution(accepted []string)
	Restore()
	ShowUnsupported(message string)
}

// Tracker receives session-tracking notifications.
type Tracker interface {
	StateChanged(s ViewState)
	Outcome(st *report.Statement)
}

type nopTracker struct{}

func (nopTracker) StateChanged(ViewState)    {}
func (nopTracker) Outcome(*report.Statement) {}
