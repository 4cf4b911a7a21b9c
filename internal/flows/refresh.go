package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/merbs-org/clientauth/api"
)

// RefreshDeps captures backend token refresh dependencies.
type RefreshDeps struct {
	HasSession         func(ctx context.Context) bool
	CallRefresh        func(ctx context.Context) (*api.Envelope, error)
	AttachBackendToken func(ctx context.Context, token string, expiresAt time.Time) error
	ParseBackendToken  BackendTokenParser

	MetricInc func(int)
	Warn      func(string, ...any)

	RefreshSuccess int
	RefreshFailure int

	EngineNotReady   error
	NotAuthenticated error
	RefreshFailed    error
}

// RunRefresh exchanges the current backend token for a new one and stores it
// on the session. It returns the new token's expiry, zero when unknown.
func RunRefresh(ctx context.Context, deps RefreshDeps) (time.Time, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.HasSession == nil || deps.CallRefresh == nil || deps.AttachBackendToken == nil {
		return time.Time{}, deps.EngineNotReady
	}
	if !deps.HasSession(ctx) {
		return time.Time{}, deps.NotAuthenticated
	}

	env, err := deps.CallRefresh(ctx)
	if err != nil {
		deps.MetricInc(deps.RefreshFailure)
		return time.Time{}, fmt.Errorf("%w: %w", deps.RefreshFailed, err)
	}
	if !env.Success {
		deps.MetricInc(deps.RefreshFailure)
		return time.Time{}, fmt.Errorf("%w: %s", deps.RefreshFailed, env.Error)
	}
	payload, err := api.Decode[api.RefreshPayload](env)
	if err != nil || payload.Token == "" {
		deps.MetricInc(deps.RefreshFailure)
		return time.Time{}, fmt.Errorf("%w: response carries no token", deps.RefreshFailed)
	}

	exp := backendExpiry(payload.Token, deps.ParseBackendToken, deps.Warn)
	if err := deps.AttachBackendToken(ctx, payload.Token, exp); err != nil {
		deps.MetricInc(deps.RefreshFailure)
		return time.Time{}, fmt.Errorf("%w: %w", deps.RefreshFailed, err)
	}

	deps.MetricInc(deps.RefreshSuccess)
	return exp, nil
}
