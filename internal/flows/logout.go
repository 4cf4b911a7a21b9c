package flows

import (
	"context"
	"errors"

	"github.com/merbs-org/clientauth/api"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	CallLogout   func(ctx context.Context) (*api.Envelope, error)
	ClearSession func(ctx context.Context)

	MetricInc func(int)
	Warn      func(string, ...any)

	LogoutMetric        int
	BackendLogoutFailed int
}

// RunLogout notifies the backend and then clears the local session whatever
// the backend said. It reports whether the backend call succeeded.
func RunLogout(ctx context.Context, deps LogoutDeps) bool {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}

	notified := RunBackendLogout(ctx, deps)
	if deps.ClearSession != nil {
		deps.ClearSession(ctx)
	}
	deps.MetricInc(deps.LogoutMetric)
	return notified
}

// RunBackendLogout only notifies the backend. Failures are logged, never
// returned.
func RunBackendLogout(ctx context.Context, deps LogoutDeps) bool {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.CallLogout == nil {
		return false
	}
	if _, err := deps.CallLogout(ctx); err != nil {
		deps.MetricInc(deps.BackendLogoutFailed)
		deps.Warn("backend logout failed", "error", logDetail(err))
		return false
	}
	return true
}

// logDetail prefers the unsanitized api detail for logs.
func logDetail(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.LogString()
	}
	return err.Error()
}
