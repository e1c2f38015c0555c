package store

import (
	"context"
	"sync"

	"montoit/internal/verification"
	id "montoit/pkg/domain"
	"montoit/pkg/platform/sentinel"
	"montoit/pkg/requestcontext"
)

// InMemoryStore is the development and test implementation of Store. Safe for
// concurrent use; every read returns a deep copy so callers cannot mutate
// shared state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.UserID]*verification.Record
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.UserID]*verification.Record)}
}

func (s *InMemoryStore) Find(_ context.Context, userID id.UserID) (*verification.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *InMemoryStore) FindByJobID(_ context.Context, jobID id.JobID) (*verification.Record, error) {
	if jobID.IsNil() {
		return nil, sentinel.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.KYC.JobID == jobID {
			return cloneRecord(rec), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpsertKYC(ctx context.Context, userID id.UserID, patch KYCPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.fetchOrCreate(userID)
	if patch.Status != nil {
		rec.KYC.Status = *patch.Status
	}
	if patch.JobID != nil {
		rec.KYC.JobID = *patch.JobID
	}
	if patch.JobType != nil {
		rec.KYC.JobType = *patch.JobType
	}
	if patch.IDType != nil {
		rec.KYC.IDType = *patch.IDType
	}
	if patch.CountryCode != nil {
		rec.KYC.CountryCode = *patch.CountryCode
	}
	if patch.Result != nil {
		result := *patch.Result
		rec.KYC.Result = &result
	}
	if patch.VerifiedAt != nil {
		at := *patch.VerifiedAt
		rec.KYC.VerifiedAt = &at
	}
	rec.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

func (s *InMemoryStore) UpsertFace(ctx context.Context, userID id.UserID, patch FacePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.fetchOrCreate(userID)
	if patch.Status != nil {
		rec.Face.Status = *patch.Status
	}
	if patch.SelfieImageURL != nil {
		rec.Face.SelfieImageURL = *patch.SelfieImageURL
	}
	if patch.MatchScore != nil {
		score := *patch.MatchScore
		rec.Face.MatchScore = &score
	}
	if patch.Confidence != nil {
		conf := *patch.Confidence
		rec.Face.Confidence = &conf
	}
	if patch.LivenessDetected != nil {
		live := *patch.LivenessDetected
		rec.Face.LivenessDetected = &live
	}
	if patch.Error != nil {
		rec.Face.Error = *patch.Error
	}
	rec.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

func (s *InMemoryStore) UpsertDocument(ctx context.Context, userID id.UserID, patch DocumentPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.fetchOrCreate(userID)
	if patch.Status != nil {
		rec.Document.Status = *patch.Status
	}
	if patch.DocumentType != nil {
		rec.Document.DocumentType = *patch.DocumentType
	}
	if patch.ImageURL != nil {
		rec.Document.ImageURL = *patch.ImageURL
	}
	if patch.Extracted != nil {
		extracted := *patch.Extracted
		rec.Document.Extracted = &extracted
	}
	if patch.Confidence != nil {
		conf := *patch.Confidence
		rec.Document.Confidence = &conf
	}
	if patch.Expired != nil {
		expired := *patch.Expired
		rec.Document.Expired = &expired
	}
	if patch.Error != nil {
		rec.Document.Error = *patch.Error
	}
	rec.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

// fetchOrCreate must be called with the write lock held.
func (s *InMemoryStore) fetchOrCreate(userID id.UserID) *verification.Record {
	rec, ok := s.records[userID]
	if !ok {
		rec = verification.NewRecord(userID)
		s.records[userID] = rec
	}
	return rec
}

func cloneRecord(rec *verification.Record) *verification.Record {
	out := *rec
	if rec.KYC.Result != nil {
		result := *rec.KYC.Result
		out.KYC.Result = &result
	}
	if rec.KYC.VerifiedAt != nil {
		at := *rec.KYC.VerifiedAt
		out.KYC.VerifiedAt = &at
	}
	out.Face.MatchScore = cloneFloat(rec.Face.MatchScore)
	out.Face.Confidence = cloneFloat(rec.Face.Confidence)
	if rec.Face.LivenessDetected != nil {
		live := *rec.Face.LivenessDetected
		out.Face.LivenessDetected = &live
	}
	if rec.Document.Extracted != nil {
		extracted := *rec.Document.Extracted
		out.Document.Extracted = &extracted
	}
	out.Document.Confidence = cloneFloat(rec.Document.Confidence)
	if rec.Document.Expired != nil {
		expired := *rec.Document.Expired
		out.Document.Expired = &expired
	}
	return &out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
