package task

import (
	"encoding/json"
	"fmt"
)

type ViewState string

const (
	StateTask      ViewState = "task"
	StateResults   ViewState = "results"
	StateSolutions ViewState = "solutions"
)

// ParseViewState accepts only the three view-state names.
func ParseViewState(s string) (ViewState, bool) {
	switch v := ViewState(s); v {
	case StateTask, StateResults, StateSolutions:
		return v, true
	}
	return "", false
}

// Snapshot is the resumable part of a session, as handed to the host.
type Snapshot struct {
	ViewState           ViewState `json:"viewState"`
	LastInterpretations []string  `json:"lastInterpretations"`
}

// ParseSnapshot decodes a stored snapshot. An unknown or missing view
// state decodes as task.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if _, ok := ParseViewState(string(s.ViewState)); !ok {
		s.ViewState = StateTask
	}
	if s.LastInterpretations == nil {
		s.LastInterpretations = []string{}
	}
	return &s, nil
}
