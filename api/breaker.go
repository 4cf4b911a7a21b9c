package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig configures the optional circuit breaker. Transport failures
// and 5xx responses count as failures.
type BreakerConfig struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears counts while closed; zero never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
}

var errBreakerRejected = errors.New("circuit breaker rejected call")

type breaker struct {
	cb *gobreaker.CircuitBreaker
}

func newBreaker(cfg BreakerConfig, logger *zap.Logger) *breaker {
	if cfg.Name == "" {
		cfg.Name = "backend"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	threshold := cfg.ConsecutiveFailures

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("backend circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// do runs fn through the breaker. A nil breaker runs fn directly.
func (b *breaker) do(fn func() (*rawResponse, error)) (*rawResponse, error) {
	if b == nil {
		return fn()
	}

	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", errBreakerRejected, err)
	}

	res, _ := out.(*rawResponse)
	return res, err
}

// BreakerState reports the breaker state name, or "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.cb.State().String()
}
