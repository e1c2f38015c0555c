// Package store persists verification records. Implementations must merge at
// the field level keyed by user_id: a channel's patch may never touch the
// other two channels' columns. That guarantee is what lets the three flows
// write concurrently without locking.
package store

import (
	"context"
	"time"

	"montoit/internal/verification"
	id "montoit/pkg/domain"
)

// Store is interface-driven to keep the domain logic testable and to allow
// swapping in-memory and PostgreSQL persistence without rewiring services.
type Store interface {
	// Find returns the record for a user, or sentinel.ErrNotFound. A missing
	// record is the normal state for a brand-new user, not a fault.
	Find(ctx context.Context, userID id.UserID) (*verification.Record, error)

	// FindByJobID resolves the record owning a vendor job id.
	FindByJobID(ctx context.Context, jobID id.JobID) (*verification.Record, error)

	// UpsertKYC creates the record if absent and merges the KYC channel patch.
	UpsertKYC(ctx context.Context, userID id.UserID, patch KYCPatch) error

	// UpsertFace creates the record if absent and merges the face channel patch.
	UpsertFace(ctx context.Context, userID id.UserID, patch FacePatch) error

	// UpsertDocument creates the record if absent and merges the document
	// channel patch.
	UpsertDocument(ctx context.Context, userID id.UserID, patch DocumentPatch) error
}

// KYCPatch is a field-level partial update of the KYC channel. Nil pointers
// mean "leave unchanged"; pointers to zero values clear the field (used when
// a restart wipes the previous attempt's job id and result).
type KYCPatch struct {
	Status      *verification.ChannelStatus
	JobID       *id.JobID
	JobType     *verification.JobType
	IDType      *verification.IDType
	CountryCode *string
	Result      *verification.ProviderResult
	VerifiedAt  *time.Time
}

// FacePatch is a field-level partial update of the face channel.
type FacePatch struct {
	Status           *verification.ChannelStatus
	SelfieImageURL   *string
	MatchScore       *float64
	Confidence       *float64
	LivenessDetected *bool
	Error            *string
}

// DocumentPatch is a field-level partial update of the document channel.
type DocumentPatch struct {
	Status       *verification.ChannelStatus
	DocumentType *verification.DocumentType
	ImageURL     *string
	Extracted    *verification.ExtractedDocument
	Confidence   *float64
	Expired      *bool
	Error        *string
}
