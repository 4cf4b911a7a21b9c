package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call.
type Kind uint8

const (
	// KindNetwork is a transport failure before a response arrived.
	KindNetwork Kind = iota + 1
	// KindTimeout means the per-call deadline elapsed.
	KindTimeout
	// KindHTTP is a non-2xx response.
	KindHTTP
	// KindProtocol is a 2xx response whose body is not a JSON object.
	KindProtocol
	// KindCircuitOpen means the circuit breaker refused the call.
	KindCircuitOpen
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindProtocol:
		return "protocol"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

const (
	TimeoutMessage        = "Request timeout - please try again"
	UploadTimeoutMessage  = "Upload timeout - please try again"
	InvalidResponseFormat = "Invalid response format"
)

var (
	// ErrCircuitOpen is wrapped by errors of kind KindCircuitOpen.
	ErrCircuitOpen = errors.New("backend circuit open")
	// ErrTimeout is wrapped by errors of kind KindTimeout.
	ErrTimeout = errors.New("request timeout")
)

// Error is returned for every failed call.
type Error struct {
	Kind   Kind
	Status int
	// Message is safe to display.
	Message string
	// Detail is the unsanitized server or transport message.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LogString renders the error with its unsanitized detail for logs.
func (e *Error) LogString() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s status=%d: %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// IsKind reports whether err is an [*Error] of kind k.
func IsKind(err error, k Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == k
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
