package call

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of work into a single flush after a
// quiescence window. Every Publish supersedes the previous pending flush,
// so the flush runs only once the burst has gone quiet for a full window.
//
// The flush closure runs on the timer's goroutine; callers that need the
// serial worker re-post from inside the closure. The caller is responsible
// for re-checking call identity inside the closure, since the session may
// have been torn down or replaced while the window ran.
type debouncer struct {
	window time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window}
}

// Publish schedules flush to run after the quiescence window, replacing
// any pending flush.
func (d *debouncer) Publish(flush func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, flush)
}

// Stop cancels any pending flush.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
