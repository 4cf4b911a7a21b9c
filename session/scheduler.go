package session

import "time"

// Scheduler supplies the current time and one-shot timers. The store never
// reads the wall clock directly, so tests can drive expiry deterministically.
//
// AfterFunc follows the context.AfterFunc convention: stop prevents f from
// running and reports whether it did so.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SystemScheduler is the real clock.
type SystemScheduler struct{}

func (SystemScheduler) Now() time.Time { return time.Now() }

func (SystemScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
