package admin

import (
	"context"
	"strings"
	"sync"

	dErrors "regdesk/pkg/domain-errors"
)

// Store looks up administrator accounts. Account provisioning lives outside
// this core; the store is read-only from the auth path's point of view.
//
// Error contract: lookups return a domain error with CodeNotFound when no
// account matches.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*Admin, error)
	FindByID(ctx context.Context, id string) (*Admin, error)
}

// InMemoryStore is a fixed set of admin accounts, seeded at startup.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Admin
	byEmail map[string]*Admin
}

// NewInMemoryStore constructs an empty in-memory admin store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[string]*Admin),
		byEmail: make(map[string]*Admin),
	}
}

// Seed registers an account. Email matching is case-insensitive.
func (s *InMemoryStore) Seed(a *Admin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.byID[a.ID] = &copied
	s.byEmail[strings.ToLower(a.Email)] = &copied
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "admin not found")
	}
	copied := *a
	return &copied, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "admin not found")
	}
	copied := *a
	return &copied, nil
}

var _ Store = (*InMemoryStore)(nil)
