package otp

import (
	"context"
	"sync"
	"time"

	dErrors "regdesk/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "challenge not found")

// InMemoryStore stores challenges in memory for tests/dev.
type InMemoryStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
}

// NewInMemoryStore constructs an empty in-memory challenge store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{challenges: make(map[string]*Challenge)}
}

// Upsert replaces whatever challenge holds the (email, purpose) slot.
// The map write is the single atomic operation the invariant requires.
func (s *InMemoryStore) Upsert(_ context.Context, c *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[c.Key()] = c
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, email string, purpose Purpose) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.challenges[ChallengeKey(email, purpose)]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) Update(_ context.Context, c *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.challenges[c.Key()]; !ok {
		return ErrNotFound
	}
	s.challenges[c.Key()] = c
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, email string, purpose Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, ChallengeKey(email, purpose))
	return nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, c := range s.challenges {
		if now.After(c.ExpiresAt) {
			delete(s.challenges, key)
			count++
		}
	}
	return count, nil
}

var _ ChallengeStore = (*InMemoryStore)(nil)
