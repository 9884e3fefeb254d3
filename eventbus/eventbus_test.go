package eventbus

import (
	"reflect"
	"testing"
)

func TestPublishOrder(t *testing.T) {
	b := New()
	var got []int
	for i := range 3 {
		b.Subscribe(Resize, func(any) { got = append(got, i) })
	}
	b.Publish(Resize, nil)
	if !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("order = %v, want [0 1 2]", got)
	}
}

func TestPublishDuplicatesDeliverTwice(t *testing.T) {
	b := New()
	n := 0
	b.Subscribe(StopAllMedia, func(any) { n++ })
	b.Publish(StopAllMedia, nil)
	b.Publish(StopAllMedia, nil)
	if n != 2 {
		t.Errorf("deliveries = %d, want 2", n)
	}
}

func TestPublishPayload(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe(Recognized, func(p any) { got = p.([]string) })
	b.Publish(Recognized, []string{"paris", "pari"})
	if !reflect.DeepEqual(got, []string{"paris", "pari"}) {
		t.Errorf("payload = %v", got)
	}
}

func TestPanickingSubscriberIsolated(t *testing.T) {
	b := New()
	reached := false
	b.Subscribe(ResetTask, func(any) { panic("boom") })
	b.Subscribe(ResetTask, func(any) { reached = true })
	b.Publish(ResetTask, nil)
	if !reached {
		t.Error("subscriber after panicking one was not called")
	}
}

func TestEventsAreIndependent(t *testing.T) {
	b := New()
	called := false
	b.Subscribe(AnsweredWrong, func(any) { called = true })
	b.Publish(AnsweredCorrectly, nil)
	if called {
		t.Error("handler for another event was called")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	var got []string
	unA := b.Subscribe(ShowSolution, func(any) { got = append(got, "a") })
	b.Subscribe(ShowSolution, func(any) { got = append(got, "b") })
	unC := b.Subscribe(ShowSolution, func(any) { got = append(got, "c") })

	unA()
	unC()
	unA() // no-op
	b.Publish(ShowSolution, nil)

	if !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("got %v, want [b]", got)
	}
	if n := b.Subscribers(ShowSolution); n != 1 {
		t.Errorf("Subscribers = %d, want 1", n)
	}
}

func TestNestedPublish(t *testing.T) {
	b := New()
	var trace []Event
	b.Subscribe(StopAllMedia, func(any) { trace = append(trace, StopAllMedia) })
	b.Subscribe(Recognized, func(any) {
		b.Publish(StopAllMedia, nil)
		trace = append(trace, Recognized)
	})
	b.Publish(Recognized, []string{"x"})
	if !reflect.DeepEqual(trace, []Event{StopAllMedia, Recognized}) {
		t.Errorf("trace = %v", trace)
	}
}

func TestSubscribeDuringPublish(t *testing.T) {
	b := New()
	late := 0
	b.Subscribe(Resize, func(any) {
		b.Subscribe(Resize, func(any) { late++ })
	})
	b.Publish(Resize, nil)
	if late != 0 {
		t.Errorf("handler added during publish ran %d times in the same publish", late)
	}
}
