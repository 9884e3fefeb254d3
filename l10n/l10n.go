// Package l10n holds the user-facing strings of an exercise.
package l10n

import (
	"sort"
	"strings"
)

const (
	InputLabel              = "inputLabel"
	StopInputLabel          = "stopInputLabel"
	ListeningLabel          = "listeningLabel"
	TryAgainButtonLabel     = "tryAgainButtonLabel"
	ShowSolutionButtonLabel = "showSolutionButtonLabel"
	CopySolutionLabel       = "copySolutionLabel"
	QuitLabel               = "quitLabel"
	AnswerLabel             = "answerLabel"
	CorrectAnswersLabel     = "correctAnswersText"
	ScoreLabel              = "scoreLabel"
	NotSupported            = "speechRecognitionNotSupported"
	CaptureUnavailable      = "captureUnavailable"
	Copied                  = "copied"
)

var defaults = map[string]string{
	InputLabel:              "Push to speak",
	StopInputLabel:          "Stop listening",
	ListeningLabel:          "Listening...",
	TryAgainButtonLabel:     "Retry",
	ShowSolutionButtonLabel: "Show solution",
	CopySolutionLabel:       "Copy solution",
	QuitLabel:               "Quit",
	AnswerLabel:             "Your answer:",
	CorrectAnswersLabel:     "Correct answer(s):",
	ScoreLabel:              "You got @score of @total points",
	NotSupported:            "Your system does not support speech recognition.",
	CaptureUnavailable:      "Audio recording is not available; answers are still scored.",
	Copied:                  "Copied to clipboard",
}

// Table resolves keys against author overrides first, then the built-in
// English defaults.
type Table struct {
	overrides map[string]string
}

func New(overrides map[string]string) *Table {
	o := make(map[string]string, len(overrides))
	for k, v := range overrides {
		if v != "" {
			o[k] = v
		}
	}
	return &Table{overrides: o}
}

// T returns the string for key, or key itself when nothing is defined.
func (t *Table) T(key string) string {
	if t != nil {
		if s, ok := t.overrides[key]; ok {
			return s
		}
	}
	if s, ok := defaults[key]; ok {
		return s
	}
	return key
}

// Format returns T(key) with every "@name" placeholder replaced by vars[name].
func (t *Table) Format(key string, vars map[string]string) string {
	s := t.T(key)
	if len(vars) == 0 {
		return s
	}
	// longest first: NewReplacer matches in argument order
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	pairs := make([]string, 0, len(vars)*2)
	for _, k := range names {
		pairs = append(pairs, "@"+k, vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Keys lists every key with a built-in default, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
