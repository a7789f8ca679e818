// Package domainerrors provides coded errors for the currency module.
//
// Every error that crosses a package boundary carries a Code so callers can
// branch on the class of failure without string matching. Codes also drive
// the HTTP error envelope and the retry policy in the submission path.
//
// Usage:
//
//	return dErrors.New(dErrors.CodeValidation, "image exceeds 10MB limit")
//	return dErrors.Wrap(err, dErrors.CodeNetwork, "detection request failed")
//
//	if dErrors.HasCode(err, dErrors.CodeTimeout) { ... }
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. The string value is the wire form used in
// HTTP error envelopes and metrics labels.
type Code string

// Submission and session failure classes. Exactly one of these is attached
// to any error surfaced to a caller of the public operations.
const (
	// CodeValidation marks client-side input rejection. Never retried and
	// never sent over the network.
	CodeValidation Code = "validation_error"

	// CodeNetwork marks a request that produced no HTTP response at all
	// (connection refused, DNS failure, reset mid-flight).
	CodeNetwork Code = "network_error"

	// CodeTimeout marks an attempt that exceeded its per-attempt deadline.
	CodeTimeout Code = "timeout_error"

	// CodeServer marks a non-2xx response from the recognition service.
	// The upstream status travels on the error via WithStatus.
	CodeServer Code = "server_error"

	// CodeConfiguration marks an operator error: missing bootstrap config or
	// an upstream response revealing a missing API credential. Not retryable
	// by the user; requires operator intervention.
	CodeConfiguration Code = "configuration_error"

	// CodeAuth marks identity bootstrap failure after all fallbacks.
	CodeAuth Code = "auth_error"

	// CodeSync marks a degraded history view after a subscription failure.
	// Non-fatal: the last known records remain readable.
	CodeSync Code = "sync_error"

	// CodeUnknown is the classifier's total fallback.
	CodeUnknown Code = "unknown_error"
)

// Infrastructure classes shared by stores, handlers and platform code.
const (
	CodeInternal           Code = "internal_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvariantViolation Code = "invariant_violation"
	CodeNotFound           Code = "not_found"
	CodeBadRequest         Code = "bad_request"
	CodeUnavailable        Code = "unavailable"
)

// Error is a coded domain error. It optionally wraps a cause and, for
// CodeServer, carries the upstream HTTP status.
type Error struct {
	Code    Code
	Message string

	// Status is the upstream HTTP status for CodeServer errors, 0 otherwise.
	Status int

	cause error
}

// Error returns the message, with the cause appended when present.
func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithStatus attaches an upstream HTTP status and returns the same error.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// New creates a coded error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error around a cause. A nil cause yields a plain
// coded error so call sites don't need to branch.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether the outermost coded error in the chain carries the
// given code. Inner codes do not count: wrapping reclassifies.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeUnknown when the chain carries none.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeUnknown
}

// StatusOf returns the upstream HTTP status carried by the chain, or 0.
func StatusOf(err error) int {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Status
	}
	return 0
}
