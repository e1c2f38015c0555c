package handler

import (
	"encoding/json"

	"montoit/internal/verification"
	"montoit/internal/verification/kyc"
	dErrors "montoit/pkg/domain-errors"
)

// StartKYCRequest is the body of POST /verification/kyc.
type StartKYCRequest struct {
	Type    string `json:"type"`
	IDType  string `json:"id_type"`
	Country string `json:"country"`

	parsedType   verification.Type
	parsedIDType verification.IDType
}

// Validate parses the request into domain types. Field-level validation only;
// the service re-checks the full combination.
func (r *StartKYCRequest) Validate() error {
	t, err := verification.ParseType(r.Type)
	if err != nil {
		return err
	}
	if r.IDType == "" {
		return dErrors.New(dErrors.CodeValidation, "id_type is required")
	}
	if r.Country == "" {
		return dErrors.New(dErrors.CodeValidation, "country is required")
	}
	r.parsedType = t
	r.parsedIDType = verification.IDType(r.IDType)
	return nil
}

// ParsedType returns the parsed verification type. Only valid after Validate.
func (r *StartKYCRequest) ParsedType() verification.Type {
	return r.parsedType
}

// ParsedIDType returns the parsed id type. Only valid after Validate.
func (r *StartKYCRequest) ParsedIDType() verification.IDType {
	return r.parsedIDType
}

// callbackRequest is the body of the vendor callback endpoint.
type callbackRequest struct {
	JobID         string            `json:"job_id"`
	ResultCode    string            `json:"result_code"`
	ResultText    string            `json:"result_text"`
	PartnerParams map[string]string `json:"partner_params"`
	Result        json.RawMessage   `json:"result"`
	Timestamp     string            `json:"timestamp"`
	Signature     string            `json:"signature"`
}

func (r *callbackRequest) Validate() error {
	if r.ResultCode == "" {
		return dErrors.New(dErrors.CodeValidation, "result_code is required")
	}
	if r.Timestamp == "" || r.Signature == "" {
		return dErrors.New(dErrors.CodeValidation, "timestamp and signature are required")
	}
	return nil
}

func (r *callbackRequest) toPayload() kyc.CallbackPayload {
	return kyc.CallbackPayload{
		JobID:         r.JobID,
		ResultCode:    r.ResultCode,
		ResultText:    r.ResultText,
		PartnerParams: r.PartnerParams,
		Result:        r.Result,
		Timestamp:     r.Timestamp,
		Signature:     r.Signature,
	}
}
