// Package profile exposes the slice of the user profile this subsystem is
// allowed to touch: the KYC-verified flag and the vendor-confirmed full name.
package profile

import (
	"context"
	"time"

	id "montoit/pkg/domain"
)

// Profile is the projection of the profiles row owned here.
type Profile struct {
	UserID            id.UserID
	FullName          string
	SmileIDVerified   bool
	SmileIDVerifiedAt *time.Time
}

// Store updates profile rows. MarkKYCVerified is only ever called on a
// positive vendor outcome; failed verifications never touch the profile.
type Store interface {
	Find(ctx context.Context, userID id.UserID) (*Profile, error)

	// MarkKYCVerified flips the verified flag and records when. fullName is
	// applied only when non-empty; a vendor result without a confident name
	// match leaves the existing name alone.
	MarkKYCVerified(ctx context.Context, userID id.UserID, fullName string, at time.Time) error
}
