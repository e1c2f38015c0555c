package profile

import (
	"context"
	"sync"
	"time"

	id "montoit/pkg/domain"
	"montoit/pkg/platform/sentinel"
)

// InMemoryStore is the development and test implementation of Store.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]*Profile
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.UserID]*Profile)}
}

// Seed installs a profile directly, for tests.
func (s *InMemoryStore) Seed(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = &p
}

func (s *InMemoryStore) Find(_ context.Context, userID id.UserID) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *p
	if p.SmileIDVerifiedAt != nil {
		at := *p.SmileIDVerifiedAt
		out.SmileIDVerifiedAt = &at
	}
	return &out, nil
}

func (s *InMemoryStore) MarkKYCVerified(_ context.Context, userID id.UserID, fullName string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		p = &Profile{UserID: userID}
		s.profiles[userID] = p
	}
	p.SmileIDVerified = true
	p.SmileIDVerifiedAt = &at
	if fullName != "" {
		p.FullName = fullName
	}
	return nil
}
