package flows

import (
	"time"

	"github.com/merbs-org/clientauth/api"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// auth methods to the matching flow implementation.
type Deps struct {
	Auth    AuthDeps
	Logout  LogoutDeps
	Verify  VerifyDeps
	Refresh RefreshDeps
}

// RatePolicy is one caller-supplied limiter policy.
type RatePolicy struct {
	KeyPrefix   string
	MaxAttempts int
	Window      time.Duration
	// LimitedMessage is shown verbatim when the gate denies an attempt.
	LimitedMessage string
	// FallbackMessage is used when the backend rejects without an error text.
	FallbackMessage string
}

// Key returns the ledger key for identity.
func (p RatePolicy) Key(identity string) string {
	return p.KeyPrefix + identity
}

// BackendToken is a token issued by the backend, with its expiry when known.
type BackendToken struct {
	Token     string
	ExpiresAt time.Time
}

// BackendTokenParser reads the expiry of a backend-issued token.
type BackendTokenParser func(token string) (api.BackendClaims, error)

func noopMetric(int) {}

func noopWarn(string, ...any) {}

// backendExpiry reads the expiry of token. Parse failures only lose the
// expiry.
func backendExpiry(token string, parse BackendTokenParser, warn func(string, ...any)) time.Time {
	if parse == nil {
		return time.Time{}
	}
	claims, err := parse(token)
	if err != nil {
		warn("backend token unparseable, expiry unknown", "error", err)
		return time.Time{}
	}
	return claims.ExpiresAt
}
