package internal

import (
	"crypto/rand"
	"encoding/hex"
)

// SessionTokenSize is the number of random bytes behind a session token.
const SessionTokenSize = 32

// NewSessionToken returns 256 bits from crypto/rand as 64 lowercase hex
// characters.
func NewSessionToken() (string, error) {
	var raw [SessionTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// ValidSessionToken reports whether token has the shape produced by
// NewSessionToken.
func ValidSessionToken(token string) bool {
	if len(token) != SessionTokenSize*2 {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
