// Package status serves the unified verification view: the three channel
// states plus the derived overall determination.
package status

import (
	"context"
	"errors"
	"log/slog"

	"montoit/internal/verification"
	"montoit/internal/verification/store"
	id "montoit/pkg/domain"
	"montoit/pkg/platform/sentinel"
)

// View is one user's full verification picture. Record is never nil; a user
// with no attempts gets a default record with every channel at not_started.
type View struct {
	Record  *verification.Record
	Unified verification.UnifiedStatus
}

// Service projects verification records into unified views.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

func NewService(st store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// GetVerificationStatus returns the user's view. A missing record is not an
// error: brand-new users read as entirely unverified. The unified
// determination is derived on every call, never read from storage, so a
// channel that regressed since the last write is reflected immediately.
func (s *Service) GetVerificationStatus(ctx context.Context, userID id.UserID) (*View, error) {
	rec, err := s.store.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			rec = verification.NewRecord(userID)
		} else {
			return nil, err
		}
	}
	return &View{
		Record:  rec,
		Unified: verification.Unify(rec),
	}, nil
}
