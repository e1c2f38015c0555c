package kyc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"montoit/internal/profile"
	"montoit/internal/verification"
	"montoit/internal/verification/metrics"
	"montoit/internal/verification/store"
	id "montoit/pkg/domain"
	"montoit/pkg/platform/circuit"
	"montoit/pkg/platform/sentinel"
	"montoit/pkg/requestcontext"
)

// minNameConfidence is the vendor confidence score below which a returned
// full name is not trusted enough to overwrite the user's profile.
const minNameConfidence = 80.0

// Service drives the KYC job lifecycle: initialization, status polling,
// vendor callbacks and cancellation. All state lives in the verification
// store; the service itself is stateless and safe for concurrent use.
type Service struct {
	store    store.Store
	profiles profile.Store
	client   Client
	breaker  *circuit.Breaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(
	st store.Store,
	profiles profile.Store,
	client Client,
	breaker *circuit.Breaker,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:    st,
		profiles: profiles,
		client:   client,
		breaker:  breaker,
		metrics:  m,
		logger:   logger,
	}
}

// InitializeVerification starts a KYC job for the user, or returns the
// already-running one. Side effects happen in a fixed order: the pending
// state is persisted before the vendor call, and the job id after it, so a
// crash between the two leaves a record that is visibly pending rather than
// silently lost.
func (s *Service) InitializeVerification(ctx context.Context, userID id.UserID, t verification.Type, idType verification.IDType, country string) (*verification.Job, error) {
	if err := verification.ValidateJobParams(t, idType, country); err != nil {
		return nil, verification.WrapFlowError(verification.ErrInvalidParameters, "invalid job parameters", err)
	}

	rec, err := s.store.Find(ctx, userID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	if rec != nil && rec.KYC.Status.InFlight() && !rec.KYC.JobID.IsNil() {
		s.logger.Info("reusing in-flight kyc job",
			"user_id", userID.String(),
			"job_id", rec.KYC.JobID.String(),
		)
		return jobFromRecord(rec), nil
	}

	jobType := verification.JobTypeFor(t)
	pending := verification.StatusPending
	emptyJob := id.JobID("")
	err = s.store.UpsertKYC(ctx, userID, store.KYCPatch{
		Status:      &pending,
		JobID:       &emptyJob,
		JobType:     &jobType,
		IDType:      &idType,
		CountryCode: &country,
	})
	if err != nil {
		return nil, err
	}

	status, err := s.callCreate(ctx, CreateJobRequest{
		UserID:  userID,
		JobType: jobType,
		IDType:  idType,
		Country: country,
	})
	if err != nil {
		// The record stays at pending with no job id. A retry goes through
		// the create path again; the empty job id is what distinguishes a
		// never-submitted attempt from an in-flight one.
		return nil, err
	}

	submitted := verification.StatusSubmitted
	if status.Status.InFlight() {
		submitted = status.Status
	}
	err = s.store.UpsertKYC(ctx, userID, store.KYCPatch{
		Status: &submitted,
		JobID:  &status.JobID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("kyc job created",
		"user_id", userID.String(),
		"job_id", status.JobID.String(),
		"job_type", string(jobType),
	)
	return &verification.Job{
		ID:        status.JobID,
		UserID:    userID,
		Type:      t,
		JobType:   jobType,
		IDType:    idType,
		Country:   country,
		Status:    submitted,
		CreatedAt: requestcontext.Now(ctx),
	}, nil
}

// GetVerificationStatus returns the current state of the user's KYC attempt,
// refreshing it from the vendor when the job is still in flight. Returns
// (nil, nil) when the user has no known attempt, and also when the vendor no
// longer knows an in-flight job. Safe to call repeatedly;
// re-polling a terminal job performs no vendor call and no write.
func (s *Service) GetVerificationStatus(ctx context.Context, userID id.UserID) (*verification.Job, error) {
	rec, err := s.store.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if rec.KYC.Status == verification.StatusNotStarted || rec.KYC.JobID.IsNil() {
		return nil, nil
	}
	if rec.KYC.Status.Terminal() {
		return jobFromRecord(rec), nil
	}

	status, err := s.callGet(ctx, rec.KYC.JobID)
	if err != nil {
		s.metrics.IncrementPoll("error")
		return nil, err
	}
	if status == nil {
		// Vendor no longer knows the job. Surface that as "no job" rather
		// than the stale local snapshot, so callers can tell vendor-unknown
		// apart from failed and the poller stops instead of spinning.
		s.logger.Warn("vendor does not know job",
			"user_id", userID.String(),
			"job_id", rec.KYC.JobID.String(),
		)
		s.metrics.IncrementPoll("unknown")
		return nil, nil
	}

	return s.applyJobStatus(ctx, rec, status)
}

// applyJobStatus merges a fresh vendor status into the record, upgrading
// completed jobs with a positive outcome to verified and propagating the
// confirmed name to the profile.
func (s *Service) applyJobStatus(ctx context.Context, rec *verification.Record, status *JobStatus) (*verification.Job, error) {
	next := status.Status
	patch := store.KYCPatch{}

	var result *verification.ProviderResult
	if next == verification.StatusCompleted && len(status.Result) > 0 {
		parsed, err := verification.ParseProviderResult(status.Result)
		if err != nil {
			s.logger.Error("parse vendor result",
				"job_id", rec.KYC.JobID.String(),
				"error", err,
			)
		} else {
			result = parsed
			patch.Result = result
			if result.Verified() {
				next = verification.StatusVerified
			}
		}
	}

	if !rec.KYC.Status.CanTransition(next) {
		// Stale or out-of-order vendor response. Never regress.
		s.metrics.IncrementPoll("unchanged")
		return jobFromRecord(rec), nil
	}

	patch.Status = &next
	if next == verification.StatusVerified {
		at := requestcontext.Now(ctx)
		patch.VerifiedAt = &at
	}
	if err := s.store.UpsertKYC(ctx, rec.UserID, patch); err != nil {
		return nil, err
	}

	if next == rec.KYC.Status {
		s.metrics.IncrementPoll("unchanged")
	} else if next.Terminal() {
		s.metrics.IncrementPoll("terminal")
		s.metrics.IncrementOutcome("kyc", next.String())
	} else {
		s.metrics.IncrementPoll("updated")
	}

	if next == verification.StatusVerified {
		s.propagateProfile(ctx, rec.UserID, result)
	}

	rec.KYC.Status = next
	if result != nil {
		rec.KYC.Result = result
	}
	return jobFromRecord(rec), nil
}

// propagateProfile marks the profile KYC-verified. The vendor-returned full
// name is applied only above the confidence floor; below it the verification
// still counts but the name is left alone.
func (s *Service) propagateProfile(ctx context.Context, userID id.UserID, result *verification.ProviderResult) {
	fullName := ""
	if result != nil && result.FullName != "" && result.Confidence >= minNameConfidence {
		fullName = result.FullName
	}
	if err := s.profiles.MarkKYCVerified(ctx, userID, fullName, requestcontext.Now(ctx)); err != nil {
		// Verification state is already durable; profile propagation is
		// retried on the next poll or callback.
		s.logger.Error("mark profile verified", "user_id", userID.String(), "error", err)
	}
}

// CancelVerification stops the user's in-flight attempt. The vendor call is
// best effort; locally the attempt is always marked cancelled so the user can
// restart immediately.
func (s *Service) CancelVerification(ctx context.Context, userID id.UserID) error {
	rec, err := s.store.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return verification.NewFlowError(verification.ErrInvalidParameters, "no verification to cancel")
		}
		return err
	}
	if rec.KYC.Status.Terminal() || rec.KYC.Status == verification.StatusNotStarted {
		return verification.NewFlowError(verification.ErrInvalidParameters, "no verification in flight")
	}

	if !rec.KYC.JobID.IsNil() {
		if err := s.client.CancelJob(ctx, rec.KYC.JobID); err != nil {
			s.logger.Warn("vendor cancel failed",
				"user_id", userID.String(),
				"job_id", rec.KYC.JobID.String(),
				"error", err,
			)
		}
	}

	cancelled := verification.StatusCancelled
	if err := s.store.UpsertKYC(ctx, userID, store.KYCPatch{Status: &cancelled}); err != nil {
		return err
	}
	s.metrics.IncrementOutcome("kyc", cancelled.String())
	return nil
}

func (s *Service) callCreate(ctx context.Context, req CreateJobRequest) (*JobStatus, error) {
	if s.breaker != nil && s.breaker.IsOpen() {
		return nil, verification.NewFlowError(verification.ErrProviderUnavailable, "vendor circuit open")
	}
	start := time.Now()
	status, err := s.client.CreateJob(ctx, req)
	s.metrics.ObserveVendorLatency("create_job", time.Since(start))
	s.recordBreaker(err)
	return status, err
}

func (s *Service) callGet(ctx context.Context, jobID id.JobID) (*JobStatus, error) {
	if s.breaker != nil && s.breaker.IsOpen() {
		return nil, verification.NewFlowError(verification.ErrProviderUnavailable, "vendor circuit open")
	}
	start := time.Now()
	status, err := s.client.GetJob(ctx, jobID)
	s.metrics.ObserveVendorLatency("get_job", time.Since(start))
	s.recordBreaker(err)
	return status, err
}

func (s *Service) recordBreaker(err error) {
	if s.breaker == nil {
		return
	}
	if err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.Warn("vendor circuit opened", "breaker", s.breaker.Name())
		}
		return
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.Info("vendor circuit closed", "breaker", s.breaker.Name())
	}
}

func jobFromRecord(rec *verification.Record) *verification.Job {
	return &verification.Job{
		ID:        rec.KYC.JobID,
		UserID:    rec.UserID,
		Type:      typeForJobType(rec.KYC.JobType),
		JobType:   rec.KYC.JobType,
		IDType:    rec.KYC.IDType,
		Country:   rec.KYC.CountryCode,
		Status:    rec.KYC.Status,
		CreatedAt: rec.UpdatedAt,
		Result:    rec.KYC.Result,
	}
}

func typeForJobType(jt verification.JobType) verification.Type {
	switch jt {
	case verification.JobTypeDocument:
		return verification.TypeDocument
	case verification.JobTypeSmartCard:
		return verification.TypeSmartCard
	default:
		return verification.TypeBiometric
	}
}
