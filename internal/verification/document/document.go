// Package document implements the document verification channel: upload the
// scan, call the OCR/validation endpoint, persist the extracted data.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"montoit/internal/platform/config"
	"montoit/internal/verification"
	id "montoit/pkg/domain"
)

// MaxDocumentSize bounds document uploads. Scans run larger than selfies.
const MaxDocumentSize = 10 << 20

// AllowedDocumentTypes lists the accepted document MIME types.
var AllowedDocumentTypes = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}

// ValidateRequest is the OCR endpoint's input.
type ValidateRequest struct {
	UserID       id.UserID
	DocumentURL  string
	DocumentType verification.DocumentType
}

// ValidateResult is the OCR endpoint's verdict.
type ValidateResult struct {
	Valid      bool
	Extracted  *verification.ExtractedDocument
	Confidence float64
	Expired    bool
	Error      string
}

// Validator calls the document OCR/validation endpoint.
type Validator interface {
	Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error)
}

// HTTPValidator is the production Validator.
type HTTPValidator struct {
	cfg    config.Endpoint
	client *http.Client
}

var _ Validator = (*HTTPValidator)(nil)

func NewHTTPValidator(cfg config.Endpoint) *HTTPValidator {
	return &HTTPValidator{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type validateWire struct {
	Valid      bool                            `json:"valid"`
	Extracted  *verification.ExtractedDocument `json:"extracted_data,omitempty"`
	Confidence float64                         `json:"confidence"`
	Expired    bool                            `json:"expired"`
	Error      string                          `json:"error,omitempty"`
}

func (v *HTTPValidator) Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error) {
	payload, err := json.Marshal(map[string]string{
		"user_id":       req.UserID.String(),
		"document_url":  req.DocumentURL,
		"document_type": string(req.DocumentType),
	})
	if err != nil {
		return nil, verification.WrapFlowError(verification.ErrProviderUnavailable, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.cfg.BaseURL+"/v1/documents/validate", bytes.NewReader(payload))
	if err != nil {
		return nil, verification.WrapFlowError(verification.ErrProviderUnavailable, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return nil, verification.WrapFlowError(verification.ErrProviderUnavailable, "call document endpoint", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, verification.WrapFlowError(verification.ErrProviderUnavailable, "read document response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, verification.NewFlowError(verification.ErrProviderUnavailable,
			"document endpoint returned "+resp.Status)
	}

	var wire validateWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, verification.WrapFlowError(verification.ErrProviderUnavailable, "decode document response", err)
	}
	return &ValidateResult{
		Valid:      wire.Valid,
		Extracted:  wire.Extracted,
		Confidence: wire.Confidence,
		Expired:    wire.Expired,
		Error:      wire.Error,
	}, nil
}
