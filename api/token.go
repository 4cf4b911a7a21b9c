package api

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnparseableToken is returned when a backend token is not a JWT.
var ErrUnparseableToken = errors.New("backend token is not a parseable jwt")

// BackendClaims are the fields the client reads from a backend-issued token.
type BackendClaims struct {
	Subject   string
	ExpiresAt time.Time
}

// ParseBackendToken reads claims from a backend JWT without verifying its
// signature; the client holds no key and uses the result only to schedule
// refreshes. A token without exp yields a zero ExpiresAt.
func ParseBackendToken(token string) (BackendClaims, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return BackendClaims{}, errors.Join(ErrUnparseableToken, err)
	}

	out := BackendClaims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
