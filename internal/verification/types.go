package verification

import (
	dErrors "montoit/pkg/domain-errors"
)

// Type selects which KYC vendor product a job runs.
type Type string

const (
	TypeBiometric Type = "biometric"
	TypeDocument  Type = "document"
	TypeSmartCard Type = "smart_card"
)

// ParseType validates a verification type from external input.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeBiometric, TypeDocument, TypeSmartCard:
		return Type(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unsupported verification type")
}

// JobType is the vendor's job-type code for a verification type.
type JobType string

const (
	JobTypeBiometric JobType = "BIOMETRIC_VERIFICATION"
	JobTypeDocument  JobType = "DOCUMENT_VERIFICATION"
	JobTypeSmartCard JobType = "SMART_CARD_VERIFICATION"
)

// JobTypeFor maps a verification type onto the vendor's job-type code.
func JobTypeFor(t Type) JobType {
	switch t {
	case TypeDocument:
		return JobTypeDocument
	case TypeSmartCard:
		return JobTypeSmartCard
	default:
		return JobTypeBiometric
	}
}

// IDType identifies the government document backing a KYC job.
type IDType string

const (
	IDTypeNationalID     IDType = "NATIONAL_ID"
	IDTypePassport       IDType = "PASSPORT"
	IDTypeDrivingLicense IDType = "DRIVING_LICENSE"
	IDTypeVoterCard      IDType = "VOTER_CARD"
)

// supportedIDTypes is keyed by ISO country code. The marketplace currently
// operates in Côte d'Ivoire only; other countries fall back to the CI set.
var supportedIDTypes = map[string][]IDType{
	"CI": {IDTypeNationalID, IDTypePassport, IDTypeDrivingLicense, IDTypeVoterCard},
}

// SupportedIDTypes lists the ID types accepted for a country.
func SupportedIDTypes(country string) []IDType {
	if types, ok := supportedIDTypes[country]; ok {
		return types
	}
	return supportedIDTypes["CI"]
}

// ValidateJobParams checks a (type, idType, country) combination locally,
// before any network call. Invalid combinations never reach the vendor.
func ValidateJobParams(t Type, idType IDType, country string) error {
	if _, err := ParseType(string(t)); err != nil {
		return err
	}
	if country == "" {
		return dErrors.New(dErrors.CodeValidation, "country is required")
	}
	for _, supported := range SupportedIDTypes(country) {
		if idType == supported {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeValidation, "unsupported id type for country")
}

// DocumentType identifies the declared type of an uploaded document in the
// document OCR channel.
type DocumentType string

const (
	DocumentNationalID    DocumentType = "national_id"
	DocumentPassport      DocumentType = "passport"
	DocumentDriverLicense DocumentType = "driver_license"
	DocumentVoterCard     DocumentType = "voter_card"
)

// ParseDocumentType validates a document type from external input.
func ParseDocumentType(s string) (DocumentType, error) {
	switch DocumentType(s) {
	case DocumentNationalID, DocumentPassport, DocumentDriverLicense, DocumentVoterCard:
		return DocumentType(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unsupported document type")
}
