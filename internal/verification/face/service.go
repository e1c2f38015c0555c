package face

import (
	"context"
	"log/slog"
	"time"

	"montoit/internal/upload"
	"montoit/internal/verification"
	"montoit/internal/verification/metrics"
	"montoit/internal/verification/store"
	id "montoit/pkg/domain"
)

// Outcome is the flow's answer to a selfie submission. The flow never returns
// an error: every failure mode is folded into the outcome so a handler can
// always render a definitive response.
type Outcome struct {
	Success          bool
	Status           verification.ChannelStatus
	ImageURL         string
	MatchScore       *float64
	Confidence       *float64
	LivenessDetected *bool
	Error            string
	// FailureKind is set for system failures (upload, endpoint); empty when
	// the endpoint ran and simply said no.
	FailureKind verification.ErrorKind
}

// Service runs the selfie verification flow.
type Service struct {
	store    store.Store
	uploads  upload.Gateway
	verifier Verifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(
	st store.Store,
	uploads upload.Gateway,
	verifier Verifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:    st,
		uploads:  uploads,
		verifier: verifier,
		metrics:  m,
		logger:   logger,
	}
}

// VerifyFace runs the full flow: upload, endpoint call, persist. An upload
// failure short-circuits before any status write, so a user whose photo never
// left the device is not marked as having attempted verification.
// referenceImageURL may be empty; liveness is always requested.
func (s *Service) VerifyFace(ctx context.Context, userID id.UserID, image []byte, referenceImageURL string) *Outcome {
	uploaded, err := s.uploads.Upload(ctx, image, "selfies/"+userID.String(), upload.Options{
		MaxSize:      MaxSelfieSize,
		AllowedTypes: AllowedSelfieTypes,
	})
	if err != nil {
		s.logger.Warn("selfie upload failed", "user_id", userID.String(), "error", err)
		return &Outcome{
			Status:      verification.StatusNotStarted,
			Error:       err.Error(),
			FailureKind: verification.ErrUploadFailed,
		}
	}
	s.metrics.ObserveUploadSize("face", int(uploaded.Size))

	// A restart clears the previous attempt's error along with the reset to
	// pending, so a stale message never survives into a fresh attempt.
	pending := verification.StatusPending
	noError := ""
	if err := s.store.UpsertFace(ctx, userID, store.FacePatch{
		Status:         &pending,
		SelfieImageURL: &uploaded.URL,
		Error:          &noError,
	}); err != nil {
		s.logger.Error("persist face pending state", "user_id", userID.String(), "error", err)
	}

	start := time.Now()
	result, err := s.verifier.Verify(ctx, VerifyRequest{
		UserID:            userID,
		SelfieURL:         uploaded.URL,
		ReferenceImageURL: referenceImageURL,
		LivenessChecks:    true,
	})
	s.metrics.ObserveVendorLatency("face", time.Since(start))
	if err != nil {
		s.logger.Error("face endpoint failed", "user_id", userID.String(), "error", err)
		errStatus := verification.StatusError
		msg := err.Error()
		s.persist(ctx, userID, store.FacePatch{Status: &errStatus, Error: &msg})
		s.metrics.IncrementOutcome("face", errStatus.String())
		return &Outcome{
			Status:      errStatus,
			ImageURL:    uploaded.URL,
			Error:       msg,
			FailureKind: verification.ErrProviderUnavailable,
		}
	}

	status := verification.StatusFailed
	if result.Verified {
		status = verification.StatusVerified
	}
	patch := store.FacePatch{
		Status:           &status,
		MatchScore:       &result.MatchScore,
		Confidence:       &result.Confidence,
		LivenessDetected: &result.LivenessDetected,
	}
	// The endpoint's own error text is persisted verbatim for support triage.
	patch.Error = &result.Error
	s.persist(ctx, userID, patch)
	s.metrics.IncrementOutcome("face", status.String())

	s.logger.Info("face verification finished",
		"user_id", userID.String(),
		"status", status.String(),
		"match_score", result.MatchScore,
		"liveness", result.LivenessDetected,
	)
	return &Outcome{
		Success:          result.Verified,
		Status:           status,
		ImageURL:         uploaded.URL,
		MatchScore:       &result.MatchScore,
		Confidence:       &result.Confidence,
		LivenessDetected: &result.LivenessDetected,
		Error:            result.Error,
	}
}

// persist logs store failures instead of surfacing them; the user already has
// a definitive answer and a lost write is recoverable by re-running the flow.
func (s *Service) persist(ctx context.Context, userID id.UserID, patch store.FacePatch) {
	if err := s.store.UpsertFace(ctx, userID, patch); err != nil {
		s.logger.Error("persist face outcome", "user_id", userID.String(), "error", err)
	}
}
