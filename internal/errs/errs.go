// Package errs defines the error taxonomy shared by the comment engine.
// Every error surfaced to a view carries a Kind, a human-readable message and
// an explicit retryable flag consulted by the retry policy.
package errs

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Kind classifies an engine error.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindRateLimit         Kind = "rate_limit"
	KindTransient         Kind = "transient"
	KindAuthorization     Kind = "authorization"
	KindTimeout           Kind = "timeout"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
	KindRequest           Kind = "request"
	KindInternal          Kind = "internal"
)

// DefaultMessage is shown when an error carries no message of its own.
const DefaultMessage = "An unexpected error occurred"

// Error is the engine's error type.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a non-retryable error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to cause. Only KindTransient is marked
// retryable.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Retryable: kind == KindTransient,
		Err:       cause,
	}
}

// Validation reports content rejected before submission.
func Validation(reason string) *Error {
	return New(KindValidation, reason)
}

// RateLimited reports a submission blocked by the client-side cooldown.
func RateLimited(message string) *Error {
	return New(KindRateLimit, message)
}

// Transient reports a failure that is safe to retry.
func Transient(message string, cause error) *Error {
	return Wrap(KindTransient, message, cause)
}

// Unauthorized reports a write attempted without the required rights.
func Unauthorized(message string) *Error {
	return New(KindAuthorization, message)
}

// Timeout reports an operation that did not settle before its deadline.
// Timeouts raised by the engine's own watchdogs are surfaced, not retried.
func Timeout(message string) *Error {
	return New(KindTimeout, message)
}

// IsRetryable reports whether err was explicitly marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns a human-readable message suitable for display.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return DefaultMessage
}

// IsNetworkError reports whether err looks like a connectivity failure:
// dial errors, timeouts, refused connections or a dropped transport.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"network", "timeout", "failed to fetch", "connection refused"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
