// Package domainerrors provides coded domain errors. Services and handlers
// create them at the point of failure; the HTTP layer maps codes onto status
// codes without inspecting message text.
//
// Import as:
//
//	dErrors "montoit/pkg/domain-errors"
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. The string value is the wire-level error
// identifier returned to clients.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_failed"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeRateLimited  Code = "rate_limited"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal_error"
)

// Error is a domain error with a machine-readable code and a human-readable
// message. It may wrap an underlying cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New constructs a domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs a domain error around an underlying cause. The cause is
// preserved for errors.Is/As chains but never serialized to clients.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is treats two domain errors with the same code as equivalent, so sentinel
// comparisons like errors.Is(err, dErrors.New(CodeNotFound, "")) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncategorized errors so nothing leaks as a surprise 400.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
