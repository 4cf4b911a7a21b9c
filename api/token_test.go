package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackendToken(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("server-only-key"))
	require.NoError(t, err)

	claims, err := ParseBackendToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.True(t, exp.Equal(claims.ExpiresAt))
}

func TestParseBackendTokenWithoutExpiry(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u"}).
		SignedString([]byte("k"))
	require.NoError(t, err)

	claims, err := ParseBackendToken(signed)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.IsZero())
}

func TestParseBackendTokenRejectsGarbage(t *testing.T) {
	_, err := ParseBackendToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrUnparseableToken)
}
