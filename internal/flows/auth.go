package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/merbs-org/clientauth/api"
	"github.com/merbs-org/clientauth/sanitize"
	"github.com/merbs-org/clientauth/session"
)

// AuthOutcome is the result of a successful login or registration.
type AuthOutcome struct {
	User         session.Identity
	SessionToken string
	BackendToken string
}

// AuthMetrics carries metric IDs needed by login/register flows.
type AuthMetrics struct {
	LoginSuccess        int
	LoginFailure        int
	LoginRateLimited    int
	RegisterSuccess     int
	RegisterFailure     int
	RegisterRateLimited int
	SessionCreated      int
	LimiterUnavailable  int
}

// AuthErrors carries host-level sentinel errors used by login/register flows.
type AuthErrors struct {
	EngineNotReady         error
	LoginRateLimited       error
	RegisterRateLimited    error
	LoginRejected          error
	RegistrationRejected   error
	RateLimiterUnavailable error
}

// AuthDeps captures login and registration dependencies.
type AuthDeps struct {
	Login    RatePolicy
	Register RatePolicy

	Allow     func(ctx context.Context, key string, max int, window time.Duration) (bool, error)
	ResetRate func(ctx context.Context, key string) error

	CallLogin    func(ctx context.Context, email, password string) (*api.Envelope, error)
	CallRegister func(ctx context.Context, req api.RegisterRequest) (*api.Envelope, error)

	// CreateSession replaces the current session. It must apply the backend
	// token in the same step so concurrent logins cannot mix sessions.
	CreateSession     func(ctx context.Context, user session.Identity, backend BackendToken) (string, error)
	ParseBackendToken BackendTokenParser

	// NewError builds the host's user-facing error from a display message and
	// the underlying cause.
	NewError func(message string, cause error) error

	MetricInc func(int)
	Warn      func(string, ...any)

	Metrics AuthMetrics
	Errors  AuthErrors
}

type authOp struct {
	name        string
	policy      RatePolicy
	resetOnOK   bool
	limitedErr  error
	rejectedErr error
	success     int
	failure     int
	rateLimited int
}

// RunLogin gates the attempt on the login policy, authenticates against the
// backend and creates the session. The login ledger entry is reset on success.
func RunLogin(ctx context.Context, email, password string, deps AuthDeps) (*AuthOutcome, error) {
	if deps.CallLogin == nil {
		return nil, deps.Errors.EngineNotReady
	}
	op := authOp{
		name:        "login",
		policy:      deps.Login,
		resetOnOK:   true,
		limitedErr:  deps.Errors.LoginRateLimited,
		rejectedErr: deps.Errors.LoginRejected,
		success:     deps.Metrics.LoginSuccess,
		failure:     deps.Metrics.LoginFailure,
		rateLimited: deps.Metrics.LoginRateLimited,
	}
	return runAuth(ctx, op, email, func(ctx context.Context) (*api.Envelope, error) {
		return deps.CallLogin(ctx, email, password)
	}, deps)
}

// RunRegister is RunLogin for account creation. Its ledger entry is left in
// place on success.
func RunRegister(ctx context.Context, req api.RegisterRequest, deps AuthDeps) (*AuthOutcome, error) {
	if deps.CallRegister == nil {
		return nil, deps.Errors.EngineNotReady
	}
	op := authOp{
		name:        "register",
		policy:      deps.Register,
		limitedErr:  deps.Errors.RegisterRateLimited,
		rejectedErr: deps.Errors.RegistrationRejected,
		success:     deps.Metrics.RegisterSuccess,
		failure:     deps.Metrics.RegisterFailure,
		rateLimited: deps.Metrics.RegisterRateLimited,
	}
	return runAuth(ctx, op, req.Email, func(ctx context.Context) (*api.Envelope, error) {
		return deps.CallRegister(ctx, req)
	}, deps)
}

func runAuth(
	ctx context.Context,
	op authOp,
	identity string,
	call func(context.Context) (*api.Envelope, error),
	deps AuthDeps,
) (*AuthOutcome, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.Allow == nil || deps.CreateSession == nil || deps.NewError == nil {
		return nil, deps.Errors.EngineNotReady
	}

	key := op.policy.Key(identity)
	allowed, err := deps.Allow(ctx, key, op.policy.MaxAttempts, op.policy.Window)
	if err != nil {
		deps.MetricInc(deps.Metrics.LimiterUnavailable)
		deps.Warn("rate limiter unavailable, denying attempt", "op", op.name, "error", err)
		return nil, deps.NewError(sanitize.GenericErrorMessage, fmt.Errorf("%w: %v", deps.Errors.RateLimiterUnavailable, err))
	}
	if !allowed {
		deps.MetricInc(op.rateLimited)
		return nil, deps.NewError(op.policy.LimitedMessage, op.limitedErr)
	}

	env, err := call(ctx)
	if err != nil {
		deps.MetricInc(op.failure)
		return nil, deps.NewError(sanitize.ErrorMessage(err), fmt.Errorf("%w: %w", op.rejectedErr, err))
	}

	payload, ok := authPayload(env)
	if !ok {
		deps.MetricInc(op.failure)
		msg := op.policy.FallbackMessage
		if env != nil && env.Error != "" {
			msg = env.Error
		}
		return nil, deps.NewError(sanitize.Message(msg), fmt.Errorf("%w: %s", op.rejectedErr, msg))
	}

	user := session.Identity{
		ID:        payload.User.ID,
		Email:     payload.User.Email,
		FirstName: payload.User.FirstName,
		LastName:  payload.User.LastName,
	}
	backend := BackendToken{Token: payload.Token}
	if backend.Token != "" {
		backend.ExpiresAt = backendExpiry(backend.Token, deps.ParseBackendToken, deps.Warn)
	}
	token, err := deps.CreateSession(ctx, user, backend)
	if err != nil {
		deps.MetricInc(op.failure)
		return nil, deps.NewError(sanitize.ErrorMessage(err), err)
	}
	deps.MetricInc(deps.Metrics.SessionCreated)

	if op.resetOnOK && deps.ResetRate != nil {
		if err := deps.ResetRate(ctx, key); err != nil {
			deps.Warn("rate limiter reset failed", "op", op.name, "error", err)
		}
	}

	deps.MetricInc(op.success)
	return &AuthOutcome{
		User:         user,
		SessionToken: token,
		BackendToken: payload.Token,
	}, nil
}

// authPayload accepts an envelope only when it reports success and carries a
// user with an id.
func authPayload(env *api.Envelope) (api.AuthPayload, bool) {
	if env == nil || !env.Success {
		return api.AuthPayload{}, false
	}
	payload, err := api.Decode[api.AuthPayload](env)
	if err != nil || payload.User == nil || payload.User.ID == "" {
		return api.AuthPayload{}, false
	}
	return payload, true
}
