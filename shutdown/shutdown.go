// Package shutdown turns termination signals into a callback.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
)

// Watch calls fn once with the first termination signal received. The
// returned stop detaches the watcher; fn is not called after stop returns.
func Watch(fn func(os.Signal)) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case s := <-ch:
			fn(s)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
			wg.Wait()
		})
	}
}
