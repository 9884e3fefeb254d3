// Package report builds the outcome record emitted once per answered turn.
package report

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/exercise"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/validation"
)

//go:embed statement.schema.json
var statementSchemaJSON []byte

var statementSchema = validation.MustCompile(statementSchemaJSON, "statement.schema.json")

var ErrInvalidStatement = errors.New("invalid statement")

const (
	// ActivityBase prefixes content ids to form activity IRIs.
	ActivityBase = "urn:speak-the-words:content:"
	homePage     = "urn:speak-the-words"
	category     = "urn:speak-the-words:library:H5P.SpeakTheWords-1.5"
)

// Builder holds the per-exercise parts of every statement. It is safe
// for concurrent use.
type Builder struct {
	actor        Actor
	activityID   string
	parentID     string
	title        string
	question     string
	accepted     []string
	lang         string
	registration string
	now          func() time.Time

	mu      sync.Mutex
	started time.Time
}

// NewActor returns an account-based agent for user.
func NewActor(user string) Actor {
	if user == "" {
		user = "anonymous"
	}
	return Actor{
		ObjectType: "Agent",
		Name:       user,
		Account:    &Account{HomePage: homePage, Name: user},
	}
}

func NewBuilder(cfg *exercise.Config, actor Actor) *Builder {
	id := ActivityBase + cfg.ContentID
	parent := ""
	if cfg.SubContentID != "" {
		parent = id
		id = id + "?subContentId=" + cfg.SubContentID
	}
	b := &Builder{
		actor:        actor,
		activityID:   id,
		parentID:     parent,
		title:        cfg.Title,
		question:     cfg.PlainQuestion(),
		accepted:     append([]string(nil), cfg.AcceptedAnswers...),
		lang:         cfg.InputLanguage.String(),
		registration: uuid.NewString(),
		now:          time.Now,
	}
	b.started = b.now()
	return b
}

// MarkStart records the start of a new turn; Build reports the time since.
func (b *Builder) MarkStart() {
	b.mu.Lock()
	b.started = b.now()
	b.mu.Unlock()
}

// Build returns a fresh statement for score (0 or 1) and response.
func (b *Builder) Build(score int, response string) *Statement {
	b.mu.Lock()
	now := b.now()
	elapsed := now.Sub(b.started)
	b.mu.Unlock()

	if score < 0 {
		score = 0
	} else if score > MaxScore {
		score = MaxScore
	}

	def := &Definition{
		Description:             LangMap{"en-US": b.question},
		Type:                    InteractionType,
		InteractionType:         FillIn,
		CorrectResponsesPattern: append([]string(nil), b.accepted...),
	}
	if b.title != "" {
		def.Name = LangMap{"en-US": b.title}
	}

	ctx := &Context{
		Registration: b.registration,
		Language:     b.lang,
		ContextActivities: &ContextActivities{
			Category: []Activity{{ObjectType: "Activity", ID: category}},
		},
	}
	if b.parentID != "" {
		ctx.ContextActivities.Parent = []Activity{{ObjectType: "Activity", ID: b.parentID}}
	}

	return &Statement{
		ID:    uuid.NewString(),
		Actor: b.actor,
		Verb:  Verb{ID: VerbAnswered, Display: LangMap{"en-US": "answered"}},
		Object: Activity{
			ObjectType: "Activity",
			ID:         b.activityID,
			Definition: def,
		},
		Result: Result{
			Score: Score{
				Min:    0,
				Max:    MaxScore,
				Raw:    score,
				Scaled: float64(score) / MaxScore,
			},
			Success:    score == MaxScore,
			Completion: true,
			Response:   response,
			Duration:   ISODuration(elapsed),
		},
		Context:   ctx,
		Timestamp: now.UTC(),
	}
}

// Validate checks st against the embedded statement schema.
func Validate(st *Statement) error {
	if errs := validation.ValidateJSON(statementSchema, st); len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidStatement, strings.Join(errs, "; "))
	}
	return nil
}

// ISODuration formats d as an ISO 8601 duration with centisecond precision.
func ISODuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := float64(d.Round(10*time.Millisecond)) / float64(time.Second)

	var b strings.Builder
	b.WriteString("PT")
	if h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	fmt.Fprintf(&b, "%sS", strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", s), "0"), "."))
	return b.String()
}
