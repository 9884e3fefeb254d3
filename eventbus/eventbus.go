// Package eventbus is the synchronous publish/subscribe channel shared by
// the parts of one exercise instance.
package eventbus

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/log"
)

// Event names a bus topic.
type Event string

const (
	StartListening    Event = "start-listening"
	StopListening     Event = "stop-listening"
	Recognized        Event = "recognized"
	StopAllMedia      Event = "stop-all-media"
	TurnAbandoned     Event = "turn-abandoned"
	AnsweredCorrectly Event = "answered-correctly"
	AnsweredWrong     Event = "answered-wrong"
	ResetTask         Event = "reset-task"
	ShowSolution      Event = "show-solution"
	Resize            Event = "resize"
	ExportFile        Event = "export-file"
)

// Handler receives the payload passed to Publish. Payload types per event:
// Recognized carries []string, ExportFile carries audio.Export, the rest nil.
type Handler func(payload any)

type subscription struct {
	id uint64
	h  Handler
}

type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[Event][]subscription
}

func New() *Bus {
	return &Bus{subs: make(map[Event][]subscription)}
}

// Subscribe appends h to the subscribers of ev and returns a function
// that removes it again.
func (b *Bus) Subscribe(ev Event, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[ev] = append(b.subs[ev], subscription{id: id, h: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[ev]
		for i, s := range list {
			if s.id == id {
				b.subs[ev] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish calls every subscriber of ev in registration order and returns
// once all of them have run. A subscriber that panics is logged and
// skipped; delivery continues with the next one. Handlers may publish.
func (b *Bus) Publish(ev Event, payload any) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs[ev]))
	copy(subs, b.subs[ev])
	b.mu.Unlock()

	for _, s := range subs {
		if err := invoke(s.h, payload); err != nil {
			log.Errorf("eventbus: %s subscriber failed: %v", ev, err)
		}
	}
}

// Subscribers reports how many handlers are registered for ev.
func (b *Bus) Subscribers(ev Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[ev])
}

func invoke(h Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	h(payload)
	return nil
}
