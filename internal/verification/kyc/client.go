// Package kyc orchestrates identity-verification jobs against the Smile ID
// vendor: job creation, polling, callbacks and cancellation.
package kyc

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"montoit/internal/platform/config"
	"montoit/internal/verification"
	id "montoit/pkg/domain"
)

// Client talks to the vendor's job API. Mock implementations back the unit
// tests; HTTPClient is the production implementation.
type Client interface {
	// CreateJob submits a new verification job.
	CreateJob(ctx context.Context, req CreateJobRequest) (*JobStatus, error)

	// GetJob fetches the current state of a job. A job the vendor no longer
	// knows about returns (nil, nil), not an error.
	GetJob(ctx context.Context, jobID id.JobID) (*JobStatus, error)

	// CancelJob asks the vendor to stop a job. Best effort.
	CancelJob(ctx context.Context, jobID id.JobID) error
}

// CreateJobRequest carries the frozen job parameters.
type CreateJobRequest struct {
	UserID  id.UserID
	JobType verification.JobType
	IDType  verification.IDType
	Country string
}

// JobStatus is the vendor's view of one job.
type JobStatus struct {
	JobID       id.JobID
	Status      verification.ChannelStatus
	Result      json.RawMessage
	CompletedAt *time.Time
}

// MapVendorStatus converts the vendor's status vocabulary to ours. Unknown
// values map to pending so a vocabulary drift degrades to extra polling
// instead of a wedged attempt.
func MapVendorStatus(s string) verification.ChannelStatus {
	switch s {
	case "SUBMITTED":
		return verification.StatusSubmitted
	case "PROCESSING":
		return verification.StatusProcessing
	case "COMPLETED":
		return verification.StatusCompleted
	case "FAILED":
		return verification.StatusFailed
	default:
		return verification.StatusPending
	}
}

// HTTPClient is the production vendor client.
type HTTPClient struct {
	cfg    config.SmileID
	client *http.Client
	logger *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg config.SmileID, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

type createJobWire struct {
	PartnerID     string            `json:"partner_id"`
	JobType       string            `json:"job_type"`
	IDType        string            `json:"id_type"`
	CountryCode   string            `json:"country_code"`
	PartnerParams map[string]string `json:"partner_params"`
	CallbackURL   string            `json:"callback_url,omitempty"`
}

type jobStatusWire struct {
	JobID       string          `json:"job_id"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func (c *HTTPClient) CreateJob(ctx context.Context, req CreateJobRequest) (*JobStatus, error) {
	body := createJobWire{
		PartnerID:   c.cfg.PartnerID,
		JobType:     string(req.JobType),
		IDType:      string(req.IDType),
		CountryCode: req.Country,
		PartnerParams: map[string]string{
			"user_id": req.UserID.String(),
		},
		CallbackURL: c.cfg.CallbackURL,
	}

	var wire jobStatusWire
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", body, &wire); err != nil {
		return nil, err
	}
	if wire.JobID == "" {
		return nil, verification.NewFlowError(verification.ErrProviderUnavailable,
			"vendor accepted job without returning a job id")
	}
	return toJobStatus(wire), nil
}

func (c *HTTPClient) GetJob(ctx context.Context, jobID id.JobID) (*JobStatus, error) {
	var wire jobStatusWire
	err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID.String()), nil, &wire)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return toJobStatus(wire), nil
}

func (c *HTTPClient) CancelJob(ctx context.Context, jobID id.JobID) error {
	path := "/v1/jobs/" + url.PathEscape(jobID.String()) + "/cancel"
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// statusError distinguishes HTTP status failures so GetJob can treat 404 as
// "job unknown".
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("vendor returned status %d", e.code)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return verification.WrapFlowError(verification.ErrProviderUnavailable, "encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return verification.WrapFlowError(verification.ErrProviderUnavailable, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return verification.WrapFlowError(verification.ErrProviderUnavailable, "call vendor", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return verification.WrapFlowError(verification.ErrProviderUnavailable, "read vendor response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("vendor request failed",
			"method", method,
			"path", path,
			"status_code", resp.StatusCode,
			"body", string(respBody),
		)
		return verification.WrapFlowError(verification.ErrProviderUnavailable,
			"vendor request failed", &statusError{code: resp.StatusCode})
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return verification.WrapFlowError(verification.ErrProviderUnavailable, "decode vendor response", err)
	}
	return nil
}

// sign authenticates the request the way the vendor expects: an HMAC-SHA256
// of "timestamp:<unix seconds>" keyed with the partner API key.
func (c *HTTPClient) sign(req *http.Request) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(c.cfg.APIKey))
	mac.Write([]byte("timestamp:" + ts))

	req.Header.Set("X-Partner-ID", c.cfg.PartnerID)
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
}

func toJobStatus(wire jobStatusWire) *JobStatus {
	return &JobStatus{
		JobID:       id.JobID(wire.JobID),
		Status:      MapVendorStatus(wire.Status),
		Result:      wire.Result,
		CompletedAt: wire.CompletedAt,
	}
}
