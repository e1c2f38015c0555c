package document

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

// Outcome is the flow's answer to a document submission. Like the face flow,
// every failure mode folds into the outcome; the flow never returns an error.
type Outcome struct {
	Success     bool
	Status      verification.ChannelStatus
	Extracted   *verification.ExtractedDocument
	Confidence  *float64
	Expired     *bool
	Error       string
	FailureKind verification.ErrorKind
}

// Service runs the document verification flow.
type Service struct {
	store     store.Store
	uploads   upload.Gateway
	validator Validator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(
	st store.Store,
	uploads upload.Gateway,
	validator Validator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:     st,
		uploads:   uploads,
		validator: validator,
		metrics:   m,
		logger:    logger,
	}
}

// VerifyDocument runs the full flow: upload, OCR call, persist. An upload
// failure short-circuits before any status write.
func (s *Service) VerifyDocument(ctx context.Context, userID id.UserID, docType verification.DocumentType, blob []byte) *Outcome {
	uploaded, err := s.uploads.Upload(ctx, blob, "documents/"+userID.String(), upload.Options{
		MaxSize:      MaxDocumentSize,
		AllowedTypes: AllowedDocumentTypes,
	})
	if err != nil {
		s.logger.Warn("document upload failed", "user_id", userID.String(), "error", err)
		return &Outcome{
			Status:      verification.StatusNotStarted,
			Error:       err.Error(),
			FailureKind: verification.ErrUploadFailed,
		}
	}
	s.metrics.ObserveUploadSize("document", int(uploaded.Size))

	// Resetting to pending also clears any error left by a prior attempt.
	pending := verification.StatusPending
	noError := ""
	if err := s.store.UpsertDocument(ctx, userID, store.DocumentPatch{
		Status:       &pending,
		DocumentType: &docType,
		ImageURL:     &uploaded.URL,
		Error:        &noError,
	}); err != nil {
		s.logger.Error("persist document pending state", "user_id", userID.String(), "error", err)
	}

	start := time.Now()
	result, err := s.validator.Validate(ctx, ValidateRequest{
		UserID:       userID,
		DocumentURL:  uploaded.URL,
		DocumentType: docType,
	})
	s.metrics.ObserveVendorLatency("document", time.Since(start))
	if err != nil {
		s.logger.Error("document endpoint failed", "user_id", userID.String(), "error", err)
		errStatus := verification.StatusError
		msg := err.Error()
		s.persist(ctx, userID, store.DocumentPatch{Status: &errStatus, Error: &msg})
		s.metrics.IncrementOutcome("document", errStatus.String())
		return &Outcome{
			Status:      errStatus,
			Error:       msg,
			FailureKind: verification.ErrProviderUnavailable,
		}
	}

	status := verification.StatusFailed
	if result.Valid {
		status = verification.StatusVerified
	}
	patch := store.DocumentPatch{
		Status:     &status,
		Confidence: &result.Confidence,
		Expired:    &result.Expired,
		Error:      &result.Error,
	}
	if result.Extracted != nil {
		patch.Extracted = result.Extracted
	}
	s.persist(ctx, userID, patch)
	s.metrics.IncrementOutcome("document", status.String())

	s.logger.Info("document verification finished",
		"user_id", userID.String(),
		"status", status.String(),
		"document_type", string(docType),
		"expired", result.Expired,
	)
	return &Outcome{
		Success:    result.Valid,
		Status:     status,
		Extracted:  result.Extracted,
		Confidence: &result.Confidence,
		Expired:    &result.Expired,
		Error:      result.Error,
	}
}

func (s *Service) persist(ctx context.Context, userID id.UserID, patch store.DocumentPatch) {
	if err := s.store.UpsertDocument(ctx, userID, patch); err != nil {
		s.logger.Error("persist document outcome", "user_id", userID.String(), "error", err)
	}
}
