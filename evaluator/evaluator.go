// Package evaluator decides whether a recognized utterance answers the
// question.
package evaluator

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Evaluate reports whether candidate is exactly one of accepted.
// Comparison is case-sensitive; callers normalize both sides first.
func Evaluate(candidate string, accepted []string) bool {
	for _, a := range accepted {
		if a == candidate {
			return true
		}
	}
	return false
}

// Normalizer folds text into the form Evaluate compares: lower case for
// the exercise language, punctuation dropped, whitespace collapsed.
type Normalizer struct {
	mu    sync.Mutex
	lower cases.Caser
}

func NewNormalizer(tag language.Tag) *Normalizer {
	return &Normalizer{lower: cases.Lower(tag)}
}

func (n *Normalizer) Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
			// skip
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lower.String(b.String())
}

// NormalizeAll normalizes each entry and drops those that end up empty.
func (n *Normalizer) NormalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if v := n.Normalize(s); v != "" {
			out = append(out, v)
		}
	}
	return out
}
