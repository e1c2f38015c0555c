package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	id "montoit/pkg/domain"
)

// PostgresStore persists audit events in the verification_audit table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verification_audit (id, user_id, action, channel, status, detail, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(),
		uuid.UUID(event.UserID),
		string(event.Action),
		event.Channel,
		event.Status,
		event.Detail,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, action, channel, status, detail, request_id, created_at
		FROM verification_audit
		WHERE user_id = $1
		ORDER BY created_at`,
		uuid.UUID(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var uid uuid.UUID
		var action string
		if err := rows.Scan(&uid, &action, &event.Channel, &event.Status, &event.Detail, &event.RequestID, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.UserID = id.UserID(uid)
		event.Action = Action(action)
		events = append(events, event)
	}
	return events, rows.Err()
}
