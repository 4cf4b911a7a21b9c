package clientauth

import (
	"context"
	"fmt"
	"time"

	"github.com/merbs-org/clientauth/api"
	"github.com/merbs-org/clientauth/internal/flows"
	"github.com/merbs-org/clientauth/internal/logging"
	"github.com/merbs-org/clientauth/sanitize"
	"github.com/merbs-org/clientauth/session"
	"go.uber.org/zap"
)

// Login authenticates against the backend. The attempt is gated by the login
// policy before any network call; on success a session is created, the warning
// is cleared and the identity's attempt ledger is reset. Every returned error
// is an [*Error] whose text may be displayed.
//
// Concurrent logins are not serialized: the session reflects whichever
// response completes last.
func (e *Engine) Login(ctx context.Context, email, password string) (session.Identity, error) {
	if e.closed.Load() {
		return session.Identity{}, errNotReady()
	}

	e.inFlight.Add(1)
	defer e.inFlight.Add(-1)

	start := time.Now()
	outcome, err := flows.RunLogin(ctx, email, password, e.flows.Auth)
	e.metrics.Observe(MetricLoginLatency, time.Since(start))
	if err != nil {
		e.logger.Debug("login failed", zap.Error(err))
		return session.Identity{}, err
	}

	e.logger.Info("signed in", zap.String("user_id", outcome.User.ID))
	return outcome.User, nil
}

// Register creates an account and signs it in. It is gated by the registration
// policy; unlike Login it leaves the attempt ledger untouched on success.
func (e *Engine) Register(ctx context.Context, req api.RegisterRequest) (session.Identity, error) {
	if e.closed.Load() {
		return session.Identity{}, errNotReady()
	}

	e.inFlight.Add(1)
	defer e.inFlight.Add(-1)

	outcome, err := flows.RunRegister(ctx, req, e.flows.Auth)
	if err != nil {
		e.logger.Debug("registration failed", zap.Error(err))
		return session.Identity{}, err
	}

	e.logger.Info("registered and signed in", zap.String("user_id", outcome.User.ID))
	return outcome.User, nil
}

// Logout notifies the backend (failures are logged, not returned) and then
// clears the local session.
func (e *Engine) Logout(ctx context.Context) {
	flows.RunLogout(ctx, e.flows.Logout)
	e.logger.Info("signed out")
}

// Start restores a persisted session. A valid session makes the engine
// Authenticated-Unverified immediately and is verified against the backend in
// the background; a rejected or failed verification signs out. Without a
// session the legacy storage key is removed. Start runs once; later calls are
// no-ops.
func (e *Engine) Start(ctx context.Context) error {
	if e.closed.Load() {
		return errNotReady()
	}

	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true

	sess, ok := e.store.Get(ctx)
	if !ok {
		e.mu.Unlock()
		e.store.RemoveLegacy(ctx)
		return nil
	}
	user := sess.User
	e.identity = &user
	e.unverified = true
	e.mu.Unlock()

	e.metricInc(MetricSessionRestored)
	e.logger.Info("session restored, verifying", zap.String("user_id", user.ID))

	e.background(func(ctx context.Context) {
		e.verifyRestored(ctx, sess.Token)
	})
	return nil
}

// Verify checks the current session against the backend and signs out when it
// is rejected.
func (e *Engine) Verify(ctx context.Context) error {
	sess, ok := e.store.Get(ctx)
	if !ok {
		return ErrNotAuthenticated
	}
	return e.verifyRestored(ctx, sess.Token)
}

// verifyRestored verifies the session identified by token. A failure only
// signs out if that session is still current and ctx is live.
func (e *Engine) verifyRestored(ctx context.Context, token string) error {
	err := flows.RunVerify(ctx, e.flows.Verify)

	if err != nil {
		if ctx.Err() != nil {
			return newError(sanitize.ErrorMessage(err), err)
		}
		e.logger.Warn("session verification failed, signing out", zap.Error(err))
		if e.currentToken(ctx) == token {
			flows.RunLogout(ctx, e.flows.Logout)
		}
		return newError(sanitize.ErrorMessage(err), err)
	}

	e.mu.Lock()
	if cur, ok := e.store.Get(ctx); ok && cur.Token == token {
		e.unverified = false
	}
	e.mu.Unlock()
	return nil
}

// Refresh exchanges the backend token for a new one and returns its expiry,
// zero when the token carries none.
func (e *Engine) Refresh(ctx context.Context) (time.Time, error) {
	if e.closed.Load() {
		return time.Time{}, errNotReady()
	}
	exp, err := flows.RunRefresh(ctx, e.flows.Refresh)
	if err != nil {
		return time.Time{}, newError(sanitize.ErrorMessage(err), err)
	}
	return exp, nil
}

func (e *Engine) currentToken(ctx context.Context) string {
	sess, ok := e.store.Get(ctx)
	if !ok {
		return ""
	}
	return sess.Token
}

// createSession replaces the session and the engine identity in one step so
// the last completed login wins consistently.
func (e *Engine) createSession(ctx context.Context, user session.Identity, backend flows.BackendToken) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	token, err := e.store.Create(ctx, user)
	if err != nil {
		return "", err
	}
	if backend.Token != "" {
		if err := e.store.SetBackendToken(ctx, backend.Token, backend.ExpiresAt); err != nil {
			e.logger.Warn("backend token not stored", zap.Error(err))
		}
	}

	e.identity = &user
	e.unverified = false
	e.warning = false
	if e.bot != nil {
		e.bot.Reset()
	}
	return token, nil
}

func (e *Engine) attachBackendToken(ctx context.Context, token string, expiresAt time.Time) error {
	return e.store.SetBackendToken(ctx, token, expiresAt)
}

func (e *Engine) hasSession(ctx context.Context) bool {
	_, ok := e.store.Get(ctx)
	return ok
}

func (e *Engine) buildFlowDeps() flows.Deps {
	metricInc := func(id int) { e.metricInc(MetricID(id)) }
	warn := logging.WarnFunc(e.logger)
	rl := e.config.RateLimit

	return flows.Deps{
		Auth: flows.AuthDeps{
			Login: flows.RatePolicy{
				KeyPrefix:       "login_",
				MaxAttempts:     rl.LoginMaxAttempts,
				Window:          rl.LoginWindow,
				LimitedMessage:  fmt.Sprintf("Too many login attempts. Please try again in %s.", cooldownText(rl.LoginWindow)),
				FallbackMessage: "Login failed",
			},
			Register: flows.RatePolicy{
				KeyPrefix:       "register_",
				MaxAttempts:     rl.RegisterMaxAttempts,
				Window:          rl.RegisterWindow,
				LimitedMessage:  fmt.Sprintf("Too many registration attempts. Please try again in %s.", cooldownText(rl.RegisterWindow)),
				FallbackMessage: "Registration failed",
			},
			Allow:             e.limiter.Allow,
			ResetRate:         e.limiter.Reset,
			CallLogin:         e.api.Auth.Login,
			CallRegister:      e.api.Auth.Register,
			CreateSession:     e.createSession,
			ParseBackendToken: api.ParseBackendToken,
			NewError:          newError,
			MetricInc:         metricInc,
			Warn:              warn,
			Metrics: flows.AuthMetrics{
				LoginSuccess:        int(MetricLoginSuccess),
				LoginFailure:        int(MetricLoginFailure),
				LoginRateLimited:    int(MetricLoginRateLimited),
				RegisterSuccess:     int(MetricRegisterSuccess),
				RegisterFailure:     int(MetricRegisterFailure),
				RegisterRateLimited: int(MetricRegisterRateLimited),
				SessionCreated:      int(MetricSessionCreated),
				LimiterUnavailable:  int(MetricRateLimiterUnavailable),
			},
			Errors: flows.AuthErrors{
				EngineNotReady:         errNotReady(),
				LoginRateLimited:       ErrLoginRateLimited,
				RegisterRateLimited:    ErrRegisterRateLimited,
				LoginRejected:          ErrLoginRejected,
				RegistrationRejected:   ErrRegistrationRejected,
				RateLimiterUnavailable: ErrRateLimiterUnavailable,
			},
		},
		Logout: flows.LogoutDeps{
			CallLogout:          e.api.Auth.Logout,
			ClearSession:        e.clearLocal,
			MetricInc:           metricInc,
			Warn:                warn,
			LogoutMetric:        int(MetricLogout),
			BackendLogoutFailed: int(MetricBackendLogoutFailed),
		},
		Verify: flows.VerifyDeps{
			CallVerify:         e.api.Auth.Verify,
			MetricInc:          metricInc,
			VerifySuccess:      int(MetricVerifySuccess),
			VerifyFailure:      int(MetricVerifyFailure),
			EngineNotReady:     errNotReady(),
			VerificationFailed: ErrVerificationFailed,
		},
		Refresh: flows.RefreshDeps{
			HasSession:         e.hasSession,
			CallRefresh:        e.api.Auth.Refresh,
			AttachBackendToken: e.attachBackendToken,
			ParseBackendToken:  api.ParseBackendToken,
			MetricInc:          metricInc,
			Warn:               warn,
			RefreshSuccess:     int(MetricRefreshSuccess),
			RefreshFailure:     int(MetricRefreshFailure),
			EngineNotReady:     errNotReady(),
			NotAuthenticated:   ErrNotAuthenticated,
			RefreshFailed:      ErrRefreshFailed,
		},
	}
}

// cooldownText renders a window as "15 minutes" or "1 hour".
func cooldownText(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	case d >= time.Minute && d%time.Minute == 0:
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	default:
		return d.Round(time.Second).String()
	}
}
