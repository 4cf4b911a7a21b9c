// Package botdetect scores interaction cadence. Interactions closer together
// than a fast interval raise the score; slower ones let it decay.
package botdetect

import (
	"sync"
	"time"
)

// Message accompanies every bot-detected event.
const Message = "Suspicious activity detected. Please refresh the page."

// Config tunes the detector.
type Config struct {
	FastInterval time.Duration
	// Threshold is exceeded, not reached, to trip.
	Threshold int
	Decay     int
}

// Detector is safe for concurrent use.
type Detector struct {
	cfg Config

	mu    sync.Mutex
	score int
	last  time.Time
}

// New returns a Detector whose first interaction is measured from start.
func New(cfg Config, start time.Time) *Detector {
	return &Detector{cfg: cfg, last: start}
}

// Observe records an interaction at now and reports whether the score
// exceeded the threshold. Tripping resets the score.
func (d *Detector) Observe(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	gap := now.Sub(d.last)
	d.last = now

	if gap < d.cfg.FastInterval {
		d.score++
		if d.score > d.cfg.Threshold {
			d.score = 0
			return true
		}
		return false
	}

	d.score -= d.cfg.Decay
	if d.score < 0 {
		d.score = 0
	}
	return false
}

// Score returns the current score.
func (d *Detector) Score() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.score
}

// Reset zeroes the score.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.score = 0
}
