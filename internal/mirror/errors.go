package mirror

import (
	"errors"
	"fmt"
	"syscall"
)

// Sentinel errors returned by the engine facade and carried by
// notifications.
var (
	ErrNotAuthenticated  = errors.New("mirror: not authenticated")
	ErrSessionActive     = errors.New("mirror: session already started")
	ErrSessionClosed     = errors.New("mirror: session closed")
	ErrOperationInFlight = errors.New("mirror: an operation is already in flight")
	ErrListFailed        = errors.New("mirror: listing failed")
	ErrLocalDir          = errors.New("mirror: creating local directory failed")
	ErrTransportClosed   = errors.New("mirror: transport closed unexpectedly")
	ErrQueueOutOfOrder   = errors.New("mirror: completed download does not match queue head")
)

// AuthReason classifies an authentication failure.
type AuthReason string

const (
	AuthRefused AuthReason = "refused"
	AuthUnknown AuthReason = "unknown"
)

// AuthError reports a failed connect or login.
type AuthError struct {
	Host   string
	Reason AuthReason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Reason == AuthRefused {
		return fmt.Sprintf("mirror: connection to %s refused: %v", e.Host, e.Err)
	}

	return fmt.Sprintf("mirror: authentication with %s failed: %v", e.Host, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// classifyAuthFailure builds an AuthError, telling a refused TCP connection
// apart from every other cause.
func classifyAuthFailure(host string, err error) *AuthError {
	reason := AuthUnknown
	if errors.Is(err, syscall.ECONNREFUSED) {
		reason = AuthRefused
	}

	return &AuthError{Host: host, Reason: reason, Err: err}
}

// ListError reports a failed directory listing. It wraps ErrListFailed.
type ListError struct {
	Path string
	Err  error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("mirror: listing %q: %v", e.Path, e.Err)
}

func (e *ListError) Unwrap() []error { return []error{ErrListFailed, e.Err} }
