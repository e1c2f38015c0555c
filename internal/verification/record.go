package verification

import (
	"time"

	id "montoit/pkg/domain"
)

// Record is the per-user verification row. It is owned jointly by the three
// channel flows; each flow writes only its own field group. Created lazily on
// the first attempt by any channel and never deleted by this subsystem.
type Record struct {
	UserID id.UserID

	KYC      KYCChannel
	Face     FaceChannel
	Document DocumentChannel

	UpdatedAt time.Time
}

// KYCChannel holds the vendor-job channel state. Job parameters are frozen at
// job-creation time; the job ID, once set for an attempt, is never mutated
// without first resetting the channel for a new attempt.
type KYCChannel struct {
	Status      ChannelStatus
	JobID       id.JobID
	JobType     JobType
	IDType      IDType
	CountryCode string
	// Result is the typed vendor payload, set only once the job is terminal.
	// Never partially written.
	Result     *ProviderResult
	VerifiedAt *time.Time
}

// FaceChannel holds the selfie liveness/face-match channel state. Score and
// confidence fields are meaningful only at a terminal status.
type FaceChannel struct {
	Status           ChannelStatus
	SelfieImageURL   string
	MatchScore       *float64
	Confidence       *float64
	LivenessDetected *bool
	Error            string
}

// DocumentChannel holds the document OCR/validation channel state.
type DocumentChannel struct {
	Status       ChannelStatus
	DocumentType DocumentType
	ImageURL     string
	Extracted    *ExtractedDocument
	Confidence   *float64
	Expired      *bool
	Error        string
}

// ExtractedDocument is the structured OCR output persisted for a validated
// document.
type ExtractedDocument struct {
	FullName       string `json:"full_name,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
	IssuedDate     string `json:"issued_date,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
}

// NewRecord returns an empty record with every channel at not_started.
func NewRecord(userID id.UserID) *Record {
	return &Record{
		UserID:   userID,
		KYC:      KYCChannel{Status: StatusNotStarted},
		Face:     FaceChannel{Status: StatusNotStarted},
		Document: DocumentChannel{Status: StatusNotStarted},
	}
}

// UnifiedStatus is the derived view over all three channels. It is recomputed
// on every read and never persisted, so a channel regression (e.g. a re-run
// after document expiry) is reflected immediately.
type UnifiedStatus struct {
	IdentityVerified bool
	SmileIDVerified  bool
	FaceVerified     bool
	DocumentVerified bool
}

// Unify derives the single "is this user trustworthy" determination. A nil
// record (brand-new user) unifies to all-false.
//
// IdentityVerified holds iff all three channels sit at the terminal-success
// sentinel simultaneously; partial completion never implies overall
// verification.
func Unify(rec *Record) UnifiedStatus {
	if rec == nil {
		return UnifiedStatus{}
	}
	u := UnifiedStatus{
		SmileIDVerified:  rec.KYC.Status == StatusVerified,
		FaceVerified:     rec.Face.Status == StatusVerified,
		DocumentVerified: rec.Document.Status == StatusVerified,
	}
	u.IdentityVerified = u.SmileIDVerified && u.FaceVerified && u.DocumentVerified
	return u
}
