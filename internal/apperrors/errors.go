// Package apperrors defines the stable error codes the engine exposes to
// callers. Every failure carries a machine-readable code plus a human-readable
// message; internal detail never crosses the HTTP boundary.
package apperrors

import "errors"

// Kind groups codes by retry semantics
type Kind string

const (
	// KindValidation is a bad input shape or range, never retried automatically
	KindValidation Kind = "validation"
	// KindNotFound is a missing entity
	KindNotFound Kind = "not_found"
	// KindConflict is contention that is safe to retry with backoff
	KindConflict Kind = "conflict"
	// KindState is an illegal transition, surfaced to the caller and not retried
	KindState Kind = "state"
)

// Error is a caller-visible engine error
type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Validation creates a ValidationError
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// NotFound creates a NotFoundError
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Conflict creates a ConflictError
func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// State creates a StateError
func State(code, message string) *Error {
	return &Error{Kind: KindState, Code: code, Message: message}
}

// From extracts an *Error from an error chain, if present
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code
func HasCode(err error, code string) bool {
	e, ok := From(err)
	return ok && e.Code == code
}
