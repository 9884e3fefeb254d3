// Package recognizer sends recorded speech to a hosted recognition API
// and returns ranked candidate transcripts.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

var ErrNoAPIKey = errors.New("no recognition API key configured")

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Alternative is one hypothesis from the API.
type Alternative struct {
	Transcript string
	Confidence float64
}

// Result is the raw API answer; Alternatives are ordered best first.
type Result struct {
	Alternatives []Alternative
	Metrics      *NetworkMetrics
	RateLimit    string
	Duration     float64
}

type Recognizer interface {
	Name() string
	SetLanguage(lang string)
	Language() string
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

type baseRecognizer struct {
	client *TracedClient
	apiURL string
	lang   string
}

func (b *baseRecognizer) SetLanguage(lang string) { b.lang = lang }

func (b *baseRecognizer) Language() string { return b.lang }

// New picks a backend. An explicit provider must have its key set; with
// no provider Deepgram is preferred for its ranked alternatives.
func New(provider string) (Recognizer, error) {
	dgKey := os.Getenv("DEEPGRAM_API_KEY")
	groqKey := os.Getenv("GROQ_API_KEY")

	switch strings.ToLower(provider) {
	case "deepgram":
		if dgKey == "" {
			return nil, fmt.Errorf("%w: set DEEPGRAM_API_KEY", ErrNoAPIKey)
		}
		return NewDeepgram(dgKey), nil
	case "groq":
		if groqKey == "" {
			return nil, fmt.Errorf("%w: set GROQ_API_KEY", ErrNoAPIKey)
		}
		return NewGroq(groqKey), nil
	case "":
	default:
		return nil, fmt.Errorf("unknown provider %q (want deepgram or groq)", provider)
	}

	if dgKey != "" {
		return NewDeepgram(dgKey), nil
	}
	if groqKey != "" {
		return NewGroq(groqKey), nil
	}
	return nil, fmt.Errorf("%w: set DEEPGRAM_API_KEY or GROQ_API_KEY", ErrNoAPIKey)
}

// baseLanguage returns the primary subtag of a BCP 47 tag ("fr-CA" -> "fr").
func baseLanguage(tag string) string {
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		return strings.ToLower(tag[:i])
	}
	return strings.ToLower(tag)
}
