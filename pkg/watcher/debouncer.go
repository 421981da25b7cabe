package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDuration coalesces the burst of events one save produces.
const DefaultDebounceDuration = 200 * time.Millisecond

// Debouncer runs only the last of a burst of triggers, once the burst has
// been quiet for the configured duration.
type Debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	timer    *time.Timer
	gen      uint64
}

// NewDebouncer creates a debouncer. A non-positive duration uses
// DefaultDebounceDuration.
func NewDebouncer(d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &Debouncer{duration: d}
}

// Duration returns the quiet period.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}

// Trigger schedules fn, replacing any pending call.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		current := gen == d.gen
		d.mu.Unlock()
		// A timer that fired while being replaced must not run.
		if current {
			fn()
		}
	})
}

// Cancel drops any pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}
