package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the registry.
var ErrSessionNotFound = errors.New("session not found")

// FailureKind classifies the terminal outcome of a remote call.
type FailureKind string

const (
	// KindUnreachable covers connection failures and timeouts. Retryable.
	KindUnreachable FailureKind = "unreachable"
	// KindRemoteError covers any other error response from the backend. Retryable.
	KindRemoteError FailureKind = "remote_error"
	// KindInvalidRequest means the caller input was malformed. Terminal.
	KindInvalidRequest FailureKind = "invalid_request"
	// KindSessionNotFound means the backend does not know the session ID.
	// Terminal for message and lookup operations; delete treats it as success.
	KindSessionNotFound FailureKind = "session_not_found"
	// KindPoolExhausted means no pool slot became available within the wait bound.
	KindPoolExhausted FailureKind = "pool_exhausted"
	// KindInvalidRelease indicates a caller bug: releasing a session that is not
	// in use or does not belong to the pool.
	KindInvalidRelease FailureKind = "invalid_release"
	// KindCanceled marks work items stopped by batch cancellation: items the
	// limiter never admitted, or admitted items whose remaining retries were
	// called off between attempts. In-flight remote calls are never
	// interrupted.
	KindCanceled FailureKind = "canceled"
)

// Failure is a classified error from a remote operation or pool misuse.
type Failure struct {
	Kind FailureKind
	Op   string // operation name, e.g. "create_session"
	Err  error  // underlying cause, may be nil
}

// NewFailure builds a classified failure wrapping cause.
func NewFailure(kind FailureKind, op string, cause error) *Failure {
	return &Failure{Kind: kind, Op: op, Err: cause}
}

// Failf builds a classified failure from a format string.
func Failf(kind FailureKind, op, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind, f.Err)
}

// Unwrap exposes the cause for errors.Is/errors.As chains.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Retryable reports whether the failure is transient and eligible for backoff
// retry. Only Unreachable and RemoteError qualify; everything else is a caller
// or data error that retrying cannot fix.
func (f *Failure) Retryable() bool {
	return f.Kind == KindUnreachable || f.Kind == KindRemoteError
}

// KindOf extracts the failure kind from an error chain.
// Returns the empty string for nil or unclassified errors.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Retryable reports whether err carries a retryable failure classification.
// Unclassified errors are treated as terminal.
func Retryable(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Retryable()
	}
	return false
}
