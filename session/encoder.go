package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/merbs-org/clientauth/internal"
)

// ErrCorrupt is returned by Decode when a persisted blob is unreadable or
// missing required fields.
var ErrCorrupt = errors.New("session blob corrupt")

// record is the persisted JSON shape. Timestamps are Unix milliseconds.
type record struct {
	User             Identity `json:"user"`
	Timestamp        int64    `json:"timestamp"`
	LastActivity     int64    `json:"lastActivity"`
	SessionID        string   `json:"sessionId"`
	BackendToken     string   `json:"backendToken,omitempty"`
	BackendExpiresAt int64    `json:"backendExpiresAt,omitempty"`
}

// Encode serializes s into the persisted JSON shape.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	r := record{
		User:         s.User,
		Timestamp:    s.CreatedAt.UnixMilli(),
		LastActivity: s.LastActivity.UnixMilli(),
		SessionID:    s.Token,
		BackendToken: s.BackendToken,
	}
	if !s.BackendExpiresAt.IsZero() {
		r.BackendExpiresAt = s.BackendExpiresAt.UnixMilli()
	}

	return json.Marshal(r)
}

// Decode parses a persisted blob. The session id must have the shape of a
// generated token. It does not check validity against a clock.
func Decode(data []byte) (*Session, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !internal.ValidSessionToken(r.SessionID) || r.User.ID == "" || r.Timestamp <= 0 || r.LastActivity <= 0 {
		return nil, ErrCorrupt
	}

	s := &Session{
		User:         r.User,
		CreatedAt:    time.UnixMilli(r.Timestamp),
		LastActivity: time.UnixMilli(r.LastActivity),
		Token:        r.SessionID,
		BackendToken: r.BackendToken,
	}
	if r.BackendExpiresAt > 0 {
		s.BackendExpiresAt = time.UnixMilli(r.BackendExpiresAt)
	}
	return s, nil
}
