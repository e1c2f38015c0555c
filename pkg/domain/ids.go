// Package domain holds shared domain primitives: typed identifiers parsed at
// trust boundaries so internal code never passes raw strings around.
package domain

import (
	"github.com/google/uuid"

	dErrors "montoit/pkg/domain-errors"
)

// UserID identifies a marketplace user. Distinct from other ID types at
// compile time.
type UserID uuid.UUID

// ParseUserID constructs a UserID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil
// UUID; no other errors are expected.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "user id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "user id must be a valid UUID")
	}
	if u == uuid.Nil {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "user id cannot be the nil UUID")
	}
	return UserID(u), nil
}

// NewUserID generates a fresh random UserID.
func NewUserID() UserID {
	return UserID(uuid.New())
}

func (id UserID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the ID is the zero value.
func (id UserID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// JobID is the KYC vendor's opaque job identifier. It is vendor-issued, so
// the only structural guarantees we enforce are non-emptiness and a sane
// length bound.
type JobID string

const maxJobIDLen = 128

// ParseJobID validates an externally supplied job identifier.
func ParseJobID(s string) (JobID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "job id cannot be empty")
	}
	if len(s) > maxJobIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "job id too long")
	}
	return JobID(s), nil
}

func (id JobID) String() string {
	return string(id)
}

// IsNil reports whether the job ID is unset.
func (id JobID) IsNil() bool {
	return id == ""
}
