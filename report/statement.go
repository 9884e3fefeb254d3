package report

import "time"

const (
	VerbAnswered    = "http://adlnet.gov/expapi/verbs/answered"
	InteractionType = "http://adlnet.gov/expapi/activities/cmi.interaction"
	FillIn          = "fill-in"
	MaxScore        = 1
)

// Statement is an xAPI "answered" statement for one completed turn.
type Statement struct {
	ID        string    `json:"id"`
	Actor     Actor     `json:"actor"`
	Verb      Verb      `json:"verb"`
	Object    Activity  `json:"object"`
	Result    Result    `json:"result"`
	Context   *Context  `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Actor struct {
	ObjectType string   `json:"objectType"`
	Name       string   `json:"name,omitempty"`
	Account    *Account `json:"account,omitempty"`
}

type Account struct {
	HomePage string `json:"homePage"`
	Name     string `json:"name"`
}

// LangMap maps a language tag to display text.
type LangMap map[string]string

type Verb struct {
	ID      string  `json:"id"`
	Display LangMap `json:"display"`
}

type Activity struct {
	ObjectType string      `json:"objectType"`
	ID         string      `json:"id"`
	Definition *Definition `json:"definition,omitempty"`
}

type Definition struct {
	Name                    LangMap  `json:"name,omitempty"`
	Description             LangMap  `json:"description,omitempty"`
	Type                    string   `json:"type"`
	InteractionType         string   `json:"interactionType"`
	CorrectResponsesPattern []string `json:"correctResponsesPattern"`
}

type Score struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Raw    int     `json:"raw"`
	Scaled float64 `json:"scaled"`
}

type Result struct {
	Score      Score  `json:"score"`
	Success    bool   `json:"success"`
	Completion bool   `json:"completion"`
	Response   string `json:"response"`
	Duration   string `json:"duration,omitempty"`
}

type Context struct {
	Registration      string             `json:"registration,omitempty"`
	Language          string             `json:"language,omitempty"`
	ContextActivities *ContextActivities `json:"contextActivities,omitempty"`
	Extensions        map[string]any     `json:"extensions,omitempty"`
}

type ContextActivities struct {
	Parent   []Activity `json:"parent,omitempty"`
	Category []Activity `json:"category,omitempty"`
}
