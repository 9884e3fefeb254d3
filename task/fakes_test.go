package task

import (
	"sync"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/report"
)

type feedback struct {
	text     string
	score    int
	maxScore int
}

type fakeHost struct {
	mu       sync.Mutex
	visible  map[Control]bool
	feedback *feedback
	intro    string
	content  string
	calls    []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{visible: map[Control]bool{}}
}

func (h *fakeHost) HideControl(c Control) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visible[c] = false
	h.calls = append(h.calls, "hide:"+string(c))
}

func (h *fakeHost) ShowControl(c Control) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visible[c] = true
	h.calls = append(h.calls, "show:"+string(c))
}

func (h *fakeHost) SetFeedback(text string, score, maxScore int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.feedback = &feedback{text, score, maxScore}
}

func (h *fakeHost) RemoveFeedback() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.feedback = nil
}

func (h *fakeHost) SetIntroduction(text string) { h.intro = text }
func (h *fakeHost) SetContent(text string)      { h.content = text }

func (h *fakeHost) shown(c Control) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visible[c]
}

type fakeView struct {
	answered    []string
	correct     []bool
	solutions   [][]string
	restores    int
	unsupported string
}

func (v *fakeView) MarkAnswered(response string, correct bool) {
	v.answered = append(v.answered, response)
	v.correct = append(v.correct, correct)
}

func (v *fakeView) MarkShowingSolution(accepted []string) {
	v.solutions = append(v.solutions, accepted)
}

func (v *fakeView) Restore()                    { v.restores++ }
func (v *fakeView) ShowUnsupported(msg string) { v.unsupported = msg }

type fakeTracker struct {
	states   []ViewState
	outcomes []*report.Statement
}

func (t *fakeTracker) StateChanged(s ViewState)       { t.states = append(t.states, s) }
func (t *fakeTracker) Outcome(st *report.Statement) { t.outcomes = append(t.outcomes, st) }
