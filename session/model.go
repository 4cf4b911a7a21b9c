package session

import "time"

// Identity is the authenticated user as reported by the backend.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Session is a snapshot of the current session record. Values returned by the
// store are copies; mutating them has no effect.
type Session struct {
	User         Identity
	CreatedAt    time.Time
	LastActivity time.Time
	// Token is 64 lowercase hex characters.
	Token string

	BackendToken     string
	BackendExpiresAt time.Time
}

// Valid reports whether s is within timeout of both its creation and its last
// activity at now.
func (s *Session) Valid(now time.Time, timeout time.Duration) bool {
	if s == nil {
		return false
	}
	return now.Sub(s.CreatedAt) < timeout && now.Sub(s.LastActivity) < timeout
}
