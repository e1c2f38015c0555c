package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"montoit/internal/verification"
	id "montoit/pkg/domain"
	"montoit/pkg/platform/sentinel"
	"montoit/pkg/requestcontext"
)

// PostgresStore persists verification records in the user_verifications table.
// Each upsert writes only the columns named by the patch plus updated_at, so
// concurrent channel writes for one user interleave without clobbering each
// other.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const recordColumns = `user_id,
	smile_id_status, smile_id_job_id, smile_id_job_type, smile_id_id_type,
	smile_id_country_code, smile_id_result_data, smile_id_verified_at,
	face_verification_status, selfie_image_url, face_match_score,
	face_confidence, liveness_detected, face_verification_error,
	document_verification_status, document_type, document_image_url,
	extracted_document_data, document_confidence, document_expired,
	document_verification_error, updated_at`

func (s *PostgresStore) Find(ctx context.Context, userID id.UserID) (*verification.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_verifications WHERE user_id = $1`, recordColumns)
	return s.findOne(ctx, query, userID.String())
}

func (s *PostgresStore) FindByJobID(ctx context.Context, jobID id.JobID) (*verification.Record, error) {
	if jobID.IsNil() {
		return nil, sentinel.ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM user_verifications WHERE smile_id_job_id = $1`, recordColumns)
	return s.findOne(ctx, query, jobID.String())
}

func (s *PostgresStore) UpsertKYC(ctx context.Context, userID id.UserID, patch KYCPatch) error {
	u := newUpsert()
	if patch.Status != nil {
		u.set("smile_id_status", string(*patch.Status))
	}
	if patch.JobID != nil {
		u.set("smile_id_job_id", patch.JobID.String())
	}
	if patch.JobType != nil {
		u.set("smile_id_job_type", string(*patch.JobType))
	}
	if patch.IDType != nil {
		u.set("smile_id_id_type", string(*patch.IDType))
	}
	if patch.CountryCode != nil {
		u.set("smile_id_country_code", *patch.CountryCode)
	}
	if patch.Result != nil {
		payload, err := patch.Result.WirePayload()
		if err != nil {
			return fmt.Errorf("upsert kyc channel: %w", err)
		}
		u.set("smile_id_result_data", payload)
	}
	if patch.VerifiedAt != nil {
		u.set("smile_id_verified_at", *patch.VerifiedAt)
	}
	if err := u.exec(ctx, s.pool, userID); err != nil {
		return fmt.Errorf("upsert kyc channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertFace(ctx context.Context, userID id.UserID, patch FacePatch) error {
	u := newUpsert()
	if patch.Status != nil {
		u.set("face_verification_status", string(*patch.Status))
	}
	if patch.SelfieImageURL != nil {
		u.set("selfie_image_url", *patch.SelfieImageURL)
	}
	if patch.MatchScore != nil {
		u.set("face_match_score", *patch.MatchScore)
	}
	if patch.Confidence != nil {
		u.set("face_confidence", *patch.Confidence)
	}
	if patch.LivenessDetected != nil {
		u.set("liveness_detected", *patch.LivenessDetected)
	}
	if patch.Error != nil {
		u.set("face_verification_error", *patch.Error)
	}
	if err := u.exec(ctx, s.pool, userID); err != nil {
		return fmt.Errorf("upsert face channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertDocument(ctx context.Context, userID id.UserID, patch DocumentPatch) error {
	u := newUpsert()
	if patch.Status != nil {
		u.set("document_verification_status", string(*patch.Status))
	}
	if patch.DocumentType != nil {
		u.set("document_type", string(*patch.DocumentType))
	}
	if patch.ImageURL != nil {
		u.set("document_image_url", *patch.ImageURL)
	}
	if patch.Extracted != nil {
		payload, err := json.Marshal(patch.Extracted)
		if err != nil {
			return fmt.Errorf("upsert document channel: %w", err)
		}
		u.set("extracted_document_data", payload)
	}
	if patch.Confidence != nil {
		u.set("document_confidence", *patch.Confidence)
	}
	if patch.Expired != nil {
		u.set("document_expired", *patch.Expired)
	}
	if patch.Error != nil {
		u.set("document_verification_error", *patch.Error)
	}
	if err := u.exec(ctx, s.pool, userID); err != nil {
		return fmt.Errorf("upsert document channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg string) (*verification.Record, error) {
	row := s.pool.QueryRow(ctx, query, arg)

	var (
		rec        verification.Record
		userIDRaw  string
		jobID      string
		kycResult  []byte
		extracted  []byte
		kycStatus  string
		faceStatus string
		docStatus  string
	)
	err := row.Scan(
		&userIDRaw,
		&kycStatus, &jobID, &rec.KYC.JobType, &rec.KYC.IDType,
		&rec.KYC.CountryCode, &kycResult, &rec.KYC.VerifiedAt,
		&faceStatus, &rec.Face.SelfieImageURL, &rec.Face.MatchScore,
		&rec.Face.Confidence, &rec.Face.LivenessDetected, &rec.Face.Error,
		&docStatus, &rec.Document.DocumentType, &rec.Document.ImageURL,
		&extracted, &rec.Document.Confidence, &rec.Document.Expired,
		&rec.Document.Error, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification record: %w", err)
	}

	userID, err := id.ParseUserID(userIDRaw)
	if err != nil {
		return nil, fmt.Errorf("find verification record: %w", err)
	}
	rec.UserID = userID
	rec.KYC.Status = verification.ChannelStatus(kycStatus)
	rec.Face.Status = verification.ChannelStatus(faceStatus)
	rec.Document.Status = verification.ChannelStatus(docStatus)
	if jobID != "" {
		rec.KYC.JobID = id.JobID(jobID)
	}
	if len(kycResult) > 0 {
		result, err := verification.ParseProviderResult(kycResult)
		if err != nil {
			return nil, fmt.Errorf("find verification record: %w", err)
		}
		rec.KYC.Result = result
	}
	if len(extracted) > 0 {
		var doc verification.ExtractedDocument
		if err := json.Unmarshal(extracted, &doc); err != nil {
			return nil, fmt.Errorf("find verification record: %w", err)
		}
		rec.Document.Extracted = &doc
	}
	return &rec, nil
}

// upsert accumulates the patched columns and renders a single
// INSERT ... ON CONFLICT statement so create-if-absent and merge are one
// atomic round trip.
type upsert struct {
	cols []string
	vals []any
}

func newUpsert() *upsert {
	return &upsert{}
}

func (u *upsert) set(col string, val any) {
	u.cols = append(u.cols, col)
	u.vals = append(u.vals, val)
}

func (u *upsert) exec(ctx context.Context, pool *pgxpool.Pool, userID id.UserID) error {
	cols := append([]string{"user_id"}, u.cols...)
	cols = append(cols, "updated_at")
	args := append([]any{userID.String()}, u.vals...)
	args = append(args, requestcontext.Now(ctx))

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	assignments := make([]string, 0, len(u.cols)+1)
	for _, col := range u.cols {
		assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	assignments = append(assignments, "updated_at = EXCLUDED.updated_at")

	query := fmt.Sprintf(
		`INSERT INTO user_verifications (%s) VALUES (%s) ON CONFLICT (user_id) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(assignments, ", "),
	)
	if _, err := pool.Exec(ctx, query, args...); err != nil {
		return err
	}
	return nil
}
