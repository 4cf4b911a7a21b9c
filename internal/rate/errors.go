package rate

import "errors"

var (
	// ErrInvalidPolicy is returned when a check is made with a non-positive window.
	ErrInvalidPolicy = errors.New("rate policy window must be positive")
	// ErrRedisUnavailable wraps Redis failures from the [Redis] ledger.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
