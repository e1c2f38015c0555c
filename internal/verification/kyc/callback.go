package kyc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"montoit/internal/verification"
	"montoit/internal/verification/store"
	id "montoit/pkg/domain"
	dErrors "montoit/pkg/domain-errors"
	"montoit/pkg/platform/sentinel"
	"montoit/pkg/requestcontext"
)

// Vendor result codes delivered on callbacks. 1210 through 1216 are the
// verified family; each encodes which checks contributed to the match.
const (
	resultCodeSubmitted  = "1201"
	resultCodeProcessing = "1202"
	resultCodeFailed     = "1203"
)

// CallbackPayload is the vendor's asynchronous job notification.
type CallbackPayload struct {
	JobID         string            `json:"job_id"`
	ResultCode    string            `json:"result_code"`
	ResultText    string            `json:"result_text"`
	PartnerParams map[string]string `json:"partner_params"`
	Result        json.RawMessage   `json:"result"`
	Timestamp     string            `json:"timestamp"`
	Signature     string            `json:"signature"`
}

// ValidSignature checks a callback's HMAC. Same scheme as outbound request
// signing: SHA-256 over "timestamp:<value>" keyed with the partner API key.
func ValidSignature(apiKey, timestamp, signature string) bool {
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte("timestamp:" + timestamp))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ProcessCallback applies a vendor notification to the owning record.
// Unknown result codes are acknowledged and ignored so the vendor does not
// retry forever over a vocabulary mismatch.
func (s *Service) ProcessCallback(ctx context.Context, payload CallbackPayload) error {
	rec, err := s.resolveRecord(ctx, payload)
	if err != nil {
		return err
	}

	next, isVerified := statusForResultCode(payload.ResultCode)
	if next == "" {
		s.logger.Warn("unknown callback result code",
			"job_id", payload.JobID,
			"result_code", payload.ResultCode,
		)
		return nil
	}

	var result *verification.ProviderResult
	if len(payload.Result) > 0 && next.Terminal() {
		parsed, err := verification.ParseProviderResult(payload.Result)
		if err != nil {
			s.logger.Error("parse callback result", "job_id", payload.JobID, "error", err)
		} else {
			result = parsed
		}
	}

	if !rec.KYC.Status.CanTransition(next) {
		s.logger.Info("callback ignored, would regress status",
			"job_id", payload.JobID,
			"current", rec.KYC.Status.String(),
			"incoming", next.String(),
		)
		return nil
	}

	patch := store.KYCPatch{Status: &next}
	if result != nil {
		patch.Result = result
	}
	if isVerified {
		at := requestcontext.Now(ctx)
		patch.VerifiedAt = &at
	}
	if err := s.store.UpsertKYC(ctx, rec.UserID, patch); err != nil {
		return err
	}

	if next.Terminal() {
		s.metrics.IncrementOutcome("kyc", next.String())
	}
	if isVerified {
		s.propagateProfile(ctx, rec.UserID, result)
	}

	s.logger.Info("kyc callback applied",
		"user_id", rec.UserID.String(),
		"job_id", payload.JobID,
		"status", next.String(),
	)
	return nil
}

func (s *Service) resolveRecord(ctx context.Context, payload CallbackPayload) (*verification.Record, error) {
	if payload.JobID != "" {
		rec, err := s.store.FindByJobID(ctx, id.JobID(payload.JobID))
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
	}

	// Fall back to the user id we embedded in partner_params at job creation.
	raw := payload.PartnerParams["user_id"]
	if raw == "" {
		return nil, dErrors.New(dErrors.CodeNotFound, "callback matches no known job")
	}
	userID, err := id.ParseUserID(raw)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeNotFound, "callback matches no known job", err)
	}
	rec, err := s.store.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "callback matches no known job")
		}
		return nil, err
	}
	return rec, nil
}

// statusForResultCode maps a vendor result code to a channel status. The
// second return reports the verified family (1210..1216).
func statusForResultCode(code string) (verification.ChannelStatus, bool) {
	switch code {
	case resultCodeSubmitted:
		return verification.StatusSubmitted, false
	case resultCodeProcessing:
		return verification.StatusProcessing, false
	case resultCodeFailed:
		return verification.StatusFailed, false
	case "1210", "1211", "1212", "1213", "1214", "1215", "1216":
		return verification.StatusVerified, true
	}
	return "", false
}
