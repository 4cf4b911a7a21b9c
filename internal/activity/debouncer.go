// Package activity coalesces bursts of user interactions into single session
// activity updates.
package activity

import (
	"sync"
	"time"
)

// Scheduler runs f once after d and returns a function that cancels it.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// Debouncer calls fn once per burst, delay after the last Touch.
type Debouncer struct {
	sched Scheduler
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	gen     uint64
	stop    func() bool
	stopped bool
}

// NewDebouncer returns a Debouncer. A zero delay calls fn synchronously on
// every Touch.
func NewDebouncer(sched Scheduler, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{sched: sched, delay: delay, fn: fn}
}

// Touch records an interaction and reschedules the pending call.
func (d *Debouncer) Touch() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.delay <= 0 {
		d.mu.Unlock()
		d.fn()
		return
	}

	d.cancelLocked()
	gen := d.gen
	d.stop = d.sched.AfterFunc(d.delay, func() { d.fire(gen) })
	d.mu.Unlock()
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop != nil
}

// Stop cancels any pending call. Later Touches are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

func (d *Debouncer) cancelLocked() {
	d.gen++
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.stopped {
		d.mu.Unlock()
		return
	}
	d.stop = nil
	d.mu.Unlock()

	d.fn()
}
