package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "montoit/pkg/domain"
	"montoit/pkg/platform/sentinel"
)

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Find(ctx context.Context, userID id.UserID) (*Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT user_id, full_name, smile_id_verified, smile_id_verified_at
		 FROM profiles WHERE user_id = $1`, userID.String())

	var (
		p         Profile
		userIDRaw string
	)
	err := row.Scan(&userIDRaw, &p.FullName, &p.SmileIDVerified, &p.SmileIDVerifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}

	parsed, err := id.ParseUserID(userIDRaw)
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	p.UserID = parsed
	return &p, nil
}

func (s *PostgresStore) MarkKYCVerified(ctx context.Context, userID id.UserID, fullName string, at time.Time) error {
	// COALESCE(NULLIF(...)) keeps the existing name when the vendor did not
	// supply one.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, full_name, smile_id_verified, smile_id_verified_at, updated_at)
		 VALUES ($1, $2, TRUE, $3, $3)
		 ON CONFLICT (user_id) DO UPDATE SET
			full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), profiles.full_name),
			smile_id_verified = TRUE,
			smile_id_verified_at = EXCLUDED.smile_id_verified_at,
			updated_at = EXCLUDED.updated_at`,
		userID.String(), fullName, at)
	if err != nil {
		return fmt.Errorf("mark profile verified: %w", err)
	}
	return nil
}
