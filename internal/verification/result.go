package verification

import (
	"encoding/json"

	dErrors "montoit/pkg/domain-errors"
)

// ProviderOutcome is the vendor's verdict on a completed job.
type ProviderOutcome string

const (
	OutcomeVerified    ProviderOutcome = "VERIFIED"
	OutcomeNotVerified ProviderOutcome = "NOT_VERIFIED"
	OutcomeFailed      ProviderOutcome = "FAILED"
)

// ProviderResult is the typed form of the vendor's result payload, parsed at
// the HTTP boundary so internal code never operates on raw JSON. The raw
// payload is retained verbatim for persistence and audit.
type ProviderResult struct {
	Outcome    ProviderOutcome
	Confidence float64

	IDNumber    string
	FullName    string
	DateOfBirth string
	Gender      string
	Address     string

	Biometric *BiometricResult
	Document  *DocumentCheckResult

	Errors []string
	Raw    json.RawMessage
}

// Verified reports whether the vendor positively verified the identity.
func (r *ProviderResult) Verified() bool {
	return r != nil && r.Outcome == OutcomeVerified
}

// BiometricResult carries the face-match portion of a KYC result.
type BiometricResult struct {
	FaceMatch     bool
	LivenessCheck bool
	Confidence    float64
}

// DocumentCheckResult carries the document-validation portion of a KYC result.
type DocumentCheckResult struct {
	DocumentType     string
	IssuingCountry   string
	IssuingAuthority string
	ExpiryDate       string
}

// providerResultWire mirrors the vendor's result JSON.
type providerResultWire struct {
	VerificationStatus string   `json:"verification_status"`
	ConfidenceScore    float64  `json:"confidence_score"`
	IDNumber           string   `json:"id_number"`
	FullName           string   `json:"full_name"`
	DateOfBirth        string   `json:"date_of_birth"`
	Gender             string   `json:"gender"`
	Address            string   `json:"address"`
	Errors             []string `json:"errors"`

	Biometric *biometricWire     `json:"biometric_verification,omitempty"`
	Document  *documentCheckWire `json:"document_verification,omitempty"`
}

type biometricWire struct {
	FaceMatch     bool    `json:"face_match"`
	LivenessCheck bool    `json:"liveness_check"`
	Confidence    float64 `json:"confidence"`
}

type documentCheckWire struct {
	DocumentType     string `json:"document_type"`
	IssuingCountry   string `json:"issuing_country"`
	IssuingAuthority string `json:"issuing_authority"`
	ExpiryDate       string `json:"expiry_date"`
}

// ParseProviderResult converts the vendor's raw result payload into the typed
// structure. Unknown verification_status values map to OutcomeFailed rather
// than erroring: the vendor's vocabulary has drifted before, and a terminal
// payload must never be dropped.
func ParseProviderResult(raw json.RawMessage) (*ProviderResult, error) {
	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "empty provider result")
	}

	var wire providerResultWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInvalidInput, "malformed provider result", err)
	}

	result := &ProviderResult{
		Outcome:     parseOutcome(wire.VerificationStatus),
		Confidence:  wire.ConfidenceScore,
		IDNumber:    wire.IDNumber,
		FullName:    wire.FullName,
		DateOfBirth: wire.DateOfBirth,
		Gender:      wire.Gender,
		Address:     wire.Address,
		Errors:      wire.Errors,
		Raw:         raw,
	}

	if wire.Biometric != nil {
		result.Biometric = &BiometricResult{
			FaceMatch:     wire.Biometric.FaceMatch,
			LivenessCheck: wire.Biometric.LivenessCheck,
			Confidence:    wire.Biometric.Confidence,
		}
	}
	if wire.Document != nil {
		result.Document = &DocumentCheckResult{
			DocumentType:     wire.Document.DocumentType,
			IssuingCountry:   wire.Document.IssuingCountry,
			IssuingAuthority: wire.Document.IssuingAuthority,
			ExpiryDate:       wire.Document.ExpiryDate,
		}
	}

	return result, nil
}

// WirePayload returns the result in the vendor's JSON shape. The verbatim raw
// payload is preferred when present; results assembled from callbacks are
// re-encoded.
func (r *ProviderResult) WirePayload() (json.RawMessage, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}

	wire := providerResultWire{
		VerificationStatus: string(r.Outcome),
		ConfidenceScore:    r.Confidence,
		IDNumber:           r.IDNumber,
		FullName:           r.FullName,
		DateOfBirth:        r.DateOfBirth,
		Gender:             r.Gender,
		Address:            r.Address,
		Errors:             r.Errors,
	}
	if r.Biometric != nil {
		wire.Biometric = &biometricWire{
			FaceMatch:     r.Biometric.FaceMatch,
			LivenessCheck: r.Biometric.LivenessCheck,
			Confidence:    r.Biometric.Confidence,
		}
	}
	if r.Document != nil {
		wire.Document = &documentCheckWire{
			DocumentType:     r.Document.DocumentType,
			IssuingCountry:   r.Document.IssuingCountry,
			IssuingAuthority: r.Document.IssuingAuthority,
			ExpiryDate:       r.Document.ExpiryDate,
		}
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "encode provider result", err)
	}
	return payload, nil
}

func parseOutcome(s string) ProviderOutcome {
	switch ProviderOutcome(s) {
	case OutcomeVerified:
		return OutcomeVerified
	case OutcomeNotVerified:
		return OutcomeNotVerified
	default:
		return OutcomeFailed
	}
}
