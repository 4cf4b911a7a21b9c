package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/merbs-org/clientauth/api"
	"github.com/merbs-org/clientauth/sanitize"
	"github.com/merbs-org/clientauth/session"
)

var (
	errNotReady    = errors.New("not ready")
	errLimited     = errors.New("limited")
	errRejected    = errors.New("rejected")
	errUnavailable = errors.New("unavailable")
)

type displayError struct {
	msg   string
	cause error
}

func (e *displayError) Error() string { return e.msg }
func (e *displayError) Unwrap() error { return e.cause }

type authHarness struct {
	allowed    bool
	allowErr   error
	resetKeys  []string
	allowKeys  []string
	created    []BackendToken
	createErr  error
	metrics    map[int]int
	callErr    error
	env        *api.Envelope
	loginCalls int
}

const (
	mLoginOK = iota + 1
	mLoginFail
	mLoginLimited
	mRegisterOK
	mRegisterFail
	mRegisterLimited
	mSessionCreated
	mLimiterDown
)

func okEnvelope(t *testing.T, data any) *api.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &api.Envelope{Success: true, Data: raw}
}

func (h *authHarness) deps() AuthDeps {
	h.metrics = map[int]int{}
	return AuthDeps{
		Login: RatePolicy{
			KeyPrefix:       "login_",
			MaxAttempts:     5,
			Window:          15 * time.Minute,
			LimitedMessage:  "Too many login attempts. Please try again in 15 minutes.",
			FallbackMessage: "Login failed",
		},
		Register: RatePolicy{
			KeyPrefix:       "register_",
			MaxAttempts:     3,
			Window:          time.Hour,
			LimitedMessage:  "Too many registration attempts. Please try again in 1 hour.",
			FallbackMessage: "Registration failed",
		},
		Allow: func(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
			h.allowKeys = append(h.allowKeys, key)
			return h.allowed, h.allowErr
		},
		ResetRate: func(_ context.Context, key string) error {
			h.resetKeys = append(h.resetKeys, key)
			return nil
		},
		CallLogin: func(context.Context, string, string) (*api.Envelope, error) {
			h.loginCalls++
			return h.env, h.callErr
		},
		CallRegister: func(context.Context, api.RegisterRequest) (*api.Envelope, error) {
			return h.env, h.callErr
		},
		CreateSession: func(_ context.Context, _ session.Identity, bt BackendToken) (string, error) {
			h.created = append(h.created, bt)
			return "tok", h.createErr
		},
		ParseBackendToken: func(string) (api.BackendClaims, error) {
			return api.BackendClaims{ExpiresAt: time.Unix(1700000000, 0)}, nil
		},
		NewError: func(msg string, cause error) error {
			return &displayError{msg: msg, cause: cause}
		},
		MetricInc: func(id int) { h.metrics[id]++ },
		Metrics: AuthMetrics{
			LoginSuccess:        mLoginOK,
			LoginFailure:        mLoginFail,
			LoginRateLimited:    mLoginLimited,
			RegisterSuccess:     mRegisterOK,
			RegisterFailure:     mRegisterFail,
			RegisterRateLimited: mRegisterLimited,
			SessionCreated:      mSessionCreated,
			LimiterUnavailable:  mLimiterDown,
		},
		Errors: AuthErrors{
			EngineNotReady:         errNotReady,
			LoginRateLimited:       errLimited,
			RegisterRateLimited:    errLimited,
			LoginRejected:          errRejected,
			RegistrationRejected:   errRejected,
			RateLimiterUnavailable: errUnavailable,
		},
	}
}

func TestRunLoginSuccess(t *testing.T) {
	h := &authHarness{allowed: true}
	h.env = okEnvelope(t, map[string]any{
		"user":  map[string]any{"id": "u1", "email": "ada@example.com"},
		"token": "backend.jwt.token",
	})
	deps := h.deps()

	out, err := RunLogin(context.Background(), "ada@example.com", "pw", deps)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if out.User.ID != "u1" || out.SessionToken != "tok" || out.BackendToken != "backend.jwt.token" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(h.created) != 1 || h.created[0].Token != "backend.jwt.token" || h.created[0].ExpiresAt.IsZero() {
		t.Fatalf("backend token not passed to session creation: %+v", h.created)
	}
	if len(h.allowKeys) != 1 || h.allowKeys[0] != "login_ada@example.com" {
		t.Fatalf("unexpected ledger keys %v", h.allowKeys)
	}
	if len(h.resetKeys) != 1 || h.resetKeys[0] != "login_ada@example.com" {
		t.Fatalf("expected ledger reset, got %v", h.resetKeys)
	}
	if h.metrics[mLoginOK] != 1 || h.metrics[mSessionCreated] != 1 {
		t.Fatalf("unexpected metrics %v", h.metrics)
	}
}

func TestRunLoginRateLimitedSkipsBackend(t *testing.T) {
	h := &authHarness{allowed: false}
	deps := h.deps()

	_, err := RunLogin(context.Background(), "ada@example.com", "pw", deps)
	if !errors.Is(err, errLimited) {
		t.Fatalf("expected limited error, got %v", err)
	}
	if err.Error() != deps.Login.LimitedMessage {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if h.loginCalls != 0 {
		t.Fatalf("backend called %d times", h.loginCalls)
	}
	if h.metrics[mLoginLimited] != 1 {
		t.Fatalf("unexpected metrics %v", h.metrics)
	}
}

func TestRunLoginLimiterErrorFailsClosed(t *testing.T) {
	h := &authHarness{allowErr: errors.New("dial tcp: refused")}
	deps := h.deps()

	_, err := RunLogin(context.Background(), "ada@example.com", "pw", deps)
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if err.Error() != sanitize.GenericErrorMessage {
		t.Fatalf("limiter detail leaked: %q", err.Error())
	}
	if h.loginCalls != 0 || h.metrics[mLimiterDown] != 1 {
		t.Fatalf("calls=%d metrics=%v", h.loginCalls, h.metrics)
	}
}

func TestRunLoginBackendFailures(t *testing.T) {
	tests := []struct {
		name    string
		env     *api.Envelope
		callErr error
		wantMsg string
	}{
		{
			name:    "transport error with safe text",
			callErr: &api.Error{Kind: api.KindHTTP, Status: 401, Message: "Invalid credentials"},
			wantMsg: "Invalid credentials",
		},
		{
			name:    "transport error with unsafe text",
			callErr: fmt.Errorf("dial tcp 10.0.0.3:5432: connection refused"),
			wantMsg: sanitize.GenericErrorMessage,
		},
		{
			name:    "unsuccessful envelope with safe error",
			env:     &api.Envelope{Success: false, Error: "User not found"},
			wantMsg: "User not found",
		},
		{
			name:    "unsuccessful envelope without error",
			env:     &api.Envelope{Success: false},
			wantMsg: sanitize.GenericErrorMessage,
		},
		{
			name:    "success without user id",
			env:     &api.Envelope{Success: true, Data: json.RawMessage(`{"user":{"email":"x"}}`)},
			wantMsg: sanitize.GenericErrorMessage,
		},
		{
			name:    "success without data",
			env:     &api.Envelope{Success: true},
			wantMsg: sanitize.GenericErrorMessage,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &authHarness{allowed: true, env: tc.env, callErr: tc.callErr}
			deps := h.deps()

			_, err := RunLogin(context.Background(), "ada@example.com", "pw", deps)
			if !errors.Is(err, errRejected) {
				t.Fatalf("expected rejected error, got %v", err)
			}
			if err.Error() != tc.wantMsg {
				t.Fatalf("message = %q, want %q", err.Error(), tc.wantMsg)
			}
			if len(h.created) != 0 || len(h.resetKeys) != 0 {
				t.Fatal("failed login must not create a session or reset the ledger")
			}
			if h.metrics[mLoginFail] != 1 {
				t.Fatalf("unexpected metrics %v", h.metrics)
			}
		})
	}
}

func TestRunLoginSessionCreateFailure(t *testing.T) {
	h := &authHarness{allowed: true, createErr: errors.New("entropy exhausted")}
	h.env = okEnvelope(t, map[string]any{"user": map[string]any{"id": "u1"}})
	deps := h.deps()

	_, err := RunLogin(context.Background(), "ada@example.com", "pw", deps)
	if err == nil || err.Error() != sanitize.GenericErrorMessage {
		t.Fatalf("unexpected error %v", err)
	}
	if len(h.resetKeys) != 0 {
		t.Fatal("ledger reset after failed session creation")
	}
}

func TestRunRegisterKeepsLedger(t *testing.T) {
	h := &authHarness{allowed: true}
	h.env = okEnvelope(t, map[string]any{"user": map[string]any{"id": "u2"}})
	deps := h.deps()

	out, err := RunRegister(context.Background(), api.RegisterRequest{Email: "ada@example.com"}, deps)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if out.User.ID != "u2" {
		t.Fatalf("unexpected user %+v", out.User)
	}
	if h.allowKeys[0] != "register_ada@example.com" {
		t.Fatalf("unexpected ledger key %q", h.allowKeys[0])
	}
	if len(h.resetKeys) != 0 {
		t.Fatalf("registration must not reset the ledger, got %v", h.resetKeys)
	}
	if len(h.created) != 1 || h.created[0].Token != "" {
		t.Fatalf("unexpected backend token %+v", h.created)
	}
	if h.metrics[mRegisterOK] != 1 {
		t.Fatalf("unexpected metrics %v", h.metrics)
	}
}

func TestRunAuthMissingDeps(t *testing.T) {
	_, err := RunLogin(context.Background(), "a", "b", AuthDeps{Errors: AuthErrors{EngineNotReady: errNotReady}})
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestRunLogoutClearsDespiteBackendFailure(t *testing.T) {
	var cleared bool
	var warned []string
	metrics := map[int]int{}
	deps := LogoutDeps{
		CallLogout: func(context.Context) (*api.Envelope, error) {
			return nil, &api.Error{Kind: api.KindHTTP, Status: 500, Message: sanitize.GenericErrorMessage, Detail: "boom"}
		},
		ClearSession:        func(context.Context) { cleared = true },
		MetricInc:           func(id int) { metrics[id]++ },
		Warn:                func(msg string, kv ...any) { warned = append(warned, fmt.Sprint(kv...)) },
		LogoutMetric:        1,
		BackendLogoutFailed: 2,
	}

	if RunLogout(context.Background(), deps) {
		t.Fatal("backend failure reported as success")
	}
	if !cleared {
		t.Fatal("session not cleared")
	}
	if metrics[1] != 1 || metrics[2] != 1 {
		t.Fatalf("unexpected metrics %v", metrics)
	}
	if len(warned) != 1 || !strings.Contains(warned[0], "status=500: boom") {
		t.Fatalf("expected unsanitized detail in log, got %v", warned)
	}
}

func TestRunBackendLogoutDoesNotClear(t *testing.T) {
	var cleared bool
	deps := LogoutDeps{
		CallLogout:   func(context.Context) (*api.Envelope, error) { return &api.Envelope{Success: true}, nil },
		ClearSession: func(context.Context) { cleared = true },
	}
	if !RunBackendLogout(context.Background(), deps) {
		t.Fatal("expected success")
	}
	if cleared {
		t.Fatal("backend-only logout cleared the session")
	}
}

func TestRunVerify(t *testing.T) {
	tests := []struct {
		name    string
		env     *api.Envelope
		callErr error
		wantErr bool
	}{
		{name: "confirmed", env: &api.Envelope{Success: true, Data: json.RawMessage(`{"user":{"id":"u1"}}`)}},
		{name: "unsuccessful", env: &api.Envelope{Success: false, Data: json.RawMessage(`{}`)}, wantErr: true},
		{name: "no data", env: &api.Envelope{Success: true}, wantErr: true},
		{name: "null data", env: &api.Envelope{Success: true, Data: json.RawMessage(`null`)}, wantErr: true},
		{name: "transport", callErr: errors.New("timeout"), wantErr: true},
	}
	failed := errors.New("verification failed")

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := RunVerify(context.Background(), VerifyDeps{
				CallVerify:         func(context.Context) (*api.Envelope, error) { return tc.env, tc.callErr },
				VerificationFailed: failed,
			})
			if tc.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, failed) {
				t.Fatalf("expected sentinel, got %v", err)
			}
		})
	}
}

func TestRunRefresh(t *testing.T) {
	notAuth := errors.New("not authenticated")
	failed := errors.New("refresh failed")
	exp := time.Unix(1800000000, 0)

	var attached string
	deps := RefreshDeps{
		HasSession: func(context.Context) bool { return true },
		CallRefresh: func(context.Context) (*api.Envelope, error) {
			return &api.Envelope{Success: true, Data: json.RawMessage(`{"token":"new.jwt"}`)}, nil
		},
		AttachBackendToken: func(_ context.Context, tok string, at time.Time) error {
			attached = tok
			if !at.Equal(exp) {
				t.Fatalf("unexpected expiry %v", at)
			}
			return nil
		},
		ParseBackendToken: func(string) (api.BackendClaims, error) { return api.BackendClaims{ExpiresAt: exp}, nil },
		NotAuthenticated:  notAuth,
		RefreshFailed:     failed,
	}

	got, err := RunRefresh(context.Background(), deps)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !got.Equal(exp) || attached != "new.jwt" {
		t.Fatalf("got %v attached %q", got, attached)
	}

	deps.HasSession = func(context.Context) bool { return false }
	if _, err := RunRefresh(context.Background(), deps); !errors.Is(err, notAuth) {
		t.Fatalf("expected not authenticated, got %v", err)
	}

	deps.HasSession = func(context.Context) bool { return true }
	deps.CallRefresh = func(context.Context) (*api.Envelope, error) {
		return &api.Envelope{Success: true, Data: json.RawMessage(`{}`)}, nil
	}
	if _, err := RunRefresh(context.Background(), deps); !errors.Is(err, failed) {
		t.Fatalf("expected refresh failure, got %v", err)
	}
}

func TestRunRefreshUnparseableTokenKeepsToken(t *testing.T) {
	var attached string
	var at time.Time
	var warned int
	deps := RefreshDeps{
		HasSession: func(context.Context) bool { return true },
		CallRefresh: func(context.Context) (*api.Envelope, error) {
			return &api.Envelope{Success: true, Data: json.RawMessage(`{"token":"opaque"}`)}, nil
		},
		AttachBackendToken: func(_ context.Context, tok string, exp time.Time) error {
			attached, at = tok, exp
			return nil
		},
		ParseBackendToken: api.ParseBackendToken,
		Warn:              func(string, ...any) { warned++ },
	}

	exp, err := RunRefresh(context.Background(), deps)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if attached != "opaque" || !at.IsZero() || !exp.IsZero() || warned != 1 {
		t.Fatalf("attached=%q at=%v exp=%v warned=%d", attached, at, exp, warned)
	}
}
