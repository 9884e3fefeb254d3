package encoder

import (
	"sync"
	"time"
)

// tally tracks what every encoder reports regardless of container.
type tally struct {
	mu         sync.Mutex
	frames     uint64
	encodeTime time.Duration
	closed     bool
}

func (t *tally) TotalFrames() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

func (t *tally) AddEncodeTime(d time.Duration) {
	t.mu.Lock()
	t.encodeTime += d
	t.mu.Unlock()
}

func (t *tally) EncodeTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.encodeTime
}
