// Package face implements the selfie verification channel: upload the selfie,
// call the face-match endpoint, persist the outcome.
package face

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

// MaxSelfieSize bounds selfie uploads.
const MaxSelfieSize = 5 << 20

// AllowedSelfieTypes lists the accepted selfie MIME types.
var AllowedSelfieTypes = []string{"image/jpeg", "image/png", "image/webp"}

// VerifyRequest is the face endpoint's input. ReferenceImageURL is optional;
// when set the endpoint matches the selfie against it instead of the id
// document photo on file.
type VerifyRequest struct {
	UserID            id.UserID
	SelfieURL         string
	ReferenceImageURL string
	LivenessChecks    bool
}

// VerifyResult is the face endpoint's verdict.
type VerifyResult struct {
	Verified         bool
	MatchScore       float64
	Confidence       float64
	LivenessDetected bool
	Error            string
}

// Verifier calls the face-match endpoint.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

// HTTPVerifier is the production Verifier.
type HTTPVerifier struct {
	cfg    config.Endpoint
	client *http.Client
}

var _ Verifier = (*HTTPVerifier)(nil)

func NewHTTPVerifier(cfg config.Endpoint) *HTTPVerifier {
	return &HTTPVerifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type verifyRequestWire struct {
	UserID            string `json:"user_id"`
	SelfieURL         string `json:"selfie_url"`
	ReferenceImageURL string `json:"reference_image_url,omitempty"`
	LivenessChecks    bool   `json:"liveness_checks"`
}

type verifyWire struct {
	Verified         bool    `json:"verified"`
	MatchScore       float64 `json:"match_score"`
	Confidence       float64 `json:"confidence"`
	LivenessDetected bool    `json:"liveness_detected"`
	Error            string  `json:"error,omitempty"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	payload, err := json.Marshal(verifyRequestWire{
		UserID:            req.UserID.String(),
		SelfieURL:         req.SelfieURL,
		ReferenceImageURL: req.ReferenceImageURL,
		LivenessChecks:    req.LivenessChecks,
	})
	if err != nil {
		return nil, verification.WrapFlowError(verification.ErrProviderUnavailable, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.cfg.BaseURL+"/v1/face/verify", bytes.NewReader(payload))
	if err != nil {
		return nil, verification.WrapFlowError(verification.ErrProviderUnavailable, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return nil, verification.WrapFlowError(verification.ErrProviderUnavailable, "call face endpoint", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, verification.WrapFlowError(verification.ErrProviderUnavailable, "read face response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, verification.NewFlowError(verification.ErrProviderUnavailable,
			"face endpoint returned "+resp.Status)
	}

	var wire verifyWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, verification.WrapFlowError(verification.ErrProviderUnavailable, "decode face response", err)
	}
	return &VerifyResult{
		Verified:         wire.Verified,
		MatchScore:       wire.MatchScore,
		Confidence:       wire.Confidence,
		LivenessDetected: wire.LivenessDetected,
		Error:            wire.Error,
	}, nil
}
