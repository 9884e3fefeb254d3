// Package exercise loads the author-supplied content of one exercise.
package exercise

import (
	_ "embed"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/evaluator"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/l10n"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/validation"
)

//go:embed schema.json
var schemaJSON []byte

var exerciseSchema = validation.MustCompile(schemaJSON, "exercise.schema.json")

var (
	ErrNoQuestion = errors.New("exercise has no question")
	ErrNoAnswers  = errors.New("exercise has no accepted answers")
	ErrLanguage   = errors.New("invalid input language")
	ErrInvalid    = errors.New("invalid exercise document")
)

const DefaultLanguage = "en-US"

type Behaviour struct {
	EnableRetry           bool
	EnableSolutionsButton bool
}

// Config is immutable after Load. AcceptedAnswers are entity-decoded and
// normalized for InputLanguage, in author order with duplicates removed.
type Config struct {
	ContentID           string
	SubContentID        string
	Title               string
	Question            string
	AcceptedAnswers     []string
	CorrectAnswerText   string
	IncorrectAnswerText string
	InputLanguage       language.Tag
	Behaviour           Behaviour

	strings    *l10n.Table
	normalizer *evaluator.Normalizer
}

type rawBehaviour struct {
	EnableRetry           *bool `yaml:"enableRetry"`
	EnableSolutionsButton *bool `yaml:"enableSolutionsButton"`
}

type rawConfig struct {
	ContentID           string            `yaml:"contentId"`
	SubContentID        string            `yaml:"subContentId"`
	Title               string            `yaml:"title"`
	Question            string            `yaml:"question"`
	AcceptedAnswers     []string          `yaml:"acceptedAnswers"`
	CorrectAnswerText   string            `yaml:"correctAnswerText"`
	IncorrectAnswerText string            `yaml:"incorrectAnswerText"`
	InputLanguage       string            `yaml:"inputLanguage"`
	L10n                map[string]string `yaml:"l10n"`
	Behaviour           rawBehaviour      `yaml:"behaviour"`
}

// Load reads a YAML or JSON exercise file. A missing contentId is derived
// from the absolute path so the same file always reports under one id.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading exercise file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.ContentID == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		cfg.ContentID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String()
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	if errs := validation.ValidateYAML(exerciseSchema, data); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing exercise: %w", err)
	}

	if strings.TrimSpace(PlainText(raw.Question)) == "" {
		return nil, ErrNoQuestion
	}

	langName := raw.InputLanguage
	if langName == "" {
		langName = DefaultLanguage
	}
	tag, err := language.Parse(langName)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrLanguage, langName, err)
	}

	norm := evaluator.NewNormalizer(tag)
	answers := decodeAnswers(raw.AcceptedAnswers, norm)
	if len(answers) == 0 {
		return nil, ErrNoAnswers
	}

	return &Config{
		ContentID:           raw.ContentID,
		SubContentID:        raw.SubContentID,
		Title:               raw.Title,
		Question:            raw.Question,
		AcceptedAnswers:     answers,
		CorrectAnswerText:   raw.CorrectAnswerText,
		IncorrectAnswerText: raw.IncorrectAnswerText,
		InputLanguage:       tag,
		Behaviour: Behaviour{
			EnableRetry:           boolOr(raw.Behaviour.EnableRetry, true),
			EnableSolutionsButton: boolOr(raw.Behaviour.EnableSolutionsButton, true),
		},
		strings:    l10n.New(raw.L10n),
		normalizer: norm,
	}, nil
}

func decodeAnswers(in []string, norm *evaluator.Normalizer) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		v := norm.Normalize(html.UnescapeString(a))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Strings returns the translation table with the author's overrides.
func (c *Config) Strings() *l10n.Table { return c.strings }

// Normalizer folds utterances the same way the accepted answers were folded.
func (c *Config) Normalizer() *evaluator.Normalizer { return c.normalizer }

// PlainQuestion is the question with markup removed and entities decoded.
func (c *Config) PlainQuestion() string {
	return PlainText(c.Question)
}

var strict = bluemonday.StrictPolicy()

// PlainText strips all HTML from s and decodes entities.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
