package verification

import (
	"errors"
	"fmt"
)

// ErrorKind is the flow-level error taxonomy. Callers branch on kind, never
// on message text.
type ErrorKind string

const (
	// ErrUploadFailed: evidence transfer failed before any verification
	// attempt. Raised before any persisted state changes.
	ErrUploadFailed ErrorKind = "upload_failed"
	// ErrProviderUnavailable: network/HTTP failure talking to the vendor.
	ErrProviderUnavailable ErrorKind = "provider_unavailable"
	// ErrInvalidParameters: unsupported type/idType/country combination.
	// Validated locally; no network call is made.
	ErrInvalidParameters ErrorKind = "invalid_parameters"
	// ErrVerificationRejected: the vendor ran successfully but declared the
	// evidence invalid. A business outcome, not a system failure.
	ErrVerificationRejected ErrorKind = "verification_rejected"
)

// FlowError tags a verification-flow failure with its kind.
type FlowError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *FlowError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.cause
}

// NewFlowError constructs a tagged flow error.
func NewFlowError(kind ErrorKind, message string) *FlowError {
	return &FlowError{Kind: kind, Message: message}
}

// WrapFlowError tags an underlying cause.
func WrapFlowError(kind ErrorKind, message string, cause error) *FlowError {
	return &FlowError{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the flow-error kind, or "" for untagged errors.
func KindOf(err error) ErrorKind {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
