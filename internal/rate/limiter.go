package rate

import (
	"context"
	"sync"
	"time"
)

// Ledger is a sliding-window attempt ledger.
type Ledger interface {
	// Allow records an attempt for key and reports true when fewer than max
	// attempts fall inside the trailing window. A denied attempt is not
	// recorded.
	Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error)
	// Reset forgets every attempt for key.
	Reset(ctx context.Context, key string) error
}

// Memory is an in-process [Ledger]. Keys are never evicted; only their
// timestamp lists shrink.
type Memory struct {
	now func() time.Time

	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewMemory creates an empty ledger. A nil now uses time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:      now,
		attempts: make(map[string][]time.Time),
	}
}

func (m *Memory) Allow(_ context.Context, key string, max int, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, ErrInvalidPolicy
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	recent := prune(m.attempts[key], now, window)
	if len(recent) >= max {
		m.attempts[key] = recent
		return false, nil
	}

	m.attempts[key] = append(recent, now)
	return true, nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.attempts, key)
	m.mu.Unlock()
	return nil
}

// prune keeps timestamps younger than window, reusing ts's backing array.
func prune(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	return kept
}
