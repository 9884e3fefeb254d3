package recognizer

import (
	"context"
	"fmt"
	"sync"
)

// Fake returns canned candidates from every session.
type Fake struct {
	mu         sync.Mutex
	candidates []string
	err        error
	lang       string
	fed        int
	sessions   int
}

func NewFake(candidates []string, err error) *Fake {
	return &Fake{candidates: candidates, err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) SetLanguage(lang string) {
	f.mu.Lock()
	f.lang = lang
	f.mu.Unlock()
}

func (f *Fake) Language() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lang
}

// SetCandidates changes what sessions opened from now on return.
func (f *Fake) SetCandidates(c []string) {
	f.mu.Lock()
	f.candidates = append([]string(nil), c...)
	f.mu.Unlock()
}

// SetErr makes sessions opened from now on fail on Close with err.
func (f *Fake) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// FedBytes is the total PCM passed to Feed across all sessions.
func (f *Fake) FedBytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fed
}

func (f *Fake) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

func (f *Fake) NewSession(_ context.Context, cfg SessionConfig) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	if cfg.Language != "" {
		f.lang = cfg.Language
	}
	return &fakeSession{parent: f, candidates: append([]string(nil), f.candidates...), err: f.err}, nil
}

type fakeSession struct {
	parent     *Fake
	candidates []string
	err        error
}

func (s *fakeSession) Feed(pcm []byte) {
	s.parent.mu.Lock()
	s.parent.fed += len(pcm)
	s.parent.mu.Unlock()
}

func (s *fakeSession) Close() (SessionResult, error) {
	if s.err != nil {
		return SessionResult{}, fmt.Errorf("fake recognizer error: %w", s.err)
	}
	alts := make([]Alternative, len(s.candidates))
	for i, c := range s.candidates {
		alts[i] = Alternative{Transcript: c}
	}
	candidates := rankedCandidates(alts)
	r := SessionResult{
		Candidates: candidates,
		NoSpeech:   len(candidates) == 0,
		Batch:      &BatchStats{AudioLengthS: 1.0, TotalTimeMs: 10},
		Metrics:    []string{"total: 10ms (fake)"},
	}
	r.captureMemStats()
	return r, nil
}
