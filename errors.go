package clientauth

import (
	"errors"

	"github.com/merbs-org/clientauth/sanitize"
)

var (
	// ErrLoginRateLimited is wrapped when the login gate denies an attempt.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRegisterRateLimited is wrapped when the registration gate denies an attempt.
	ErrRegisterRateLimited = errors.New("registration rate limited")
	// ErrLoginRejected is wrapped when the backend or transport fails a login.
	ErrLoginRejected = errors.New("login rejected")
	// ErrRegistrationRejected is wrapped when the backend or transport fails a registration.
	ErrRegistrationRejected = errors.New("registration rejected")
	// ErrRateLimiterUnavailable is wrapped when the attempt ledger cannot be consulted.
	ErrRateLimiterUnavailable = errors.New("rate limiter unavailable")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrVerificationFailed is wrapped when the backend does not confirm a restored session.
	ErrVerificationFailed = errors.New("session verification failed")
	// ErrRefreshFailed is wrapped when a backend token refresh fails.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrEngineNotReady is returned when the engine is used after Close or was
	// not built by [Builder.Build].
	ErrEngineNotReady = errors.New("engine not ready")
)

// Error is a failure whose Error text is safe to display. Unwrap exposes the
// sentinel and cause for errors.Is and errors.As.
type Error struct {
	Message string
	Err     error
}

func newError(message string, cause error) error {
	return &Error{Message: message, Err: cause}
}

// errNotReady is returned by calls on a closed engine.
func errNotReady() error {
	return newError(sanitize.GenericErrorMessage, ErrEngineNotReady)
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// DisplayMessage returns the text of err that may be shown to a user.
func DisplayMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return sanitize.ErrorMessage(err)
}
