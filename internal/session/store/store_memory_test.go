package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"regdesk/internal/session"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) newSession(principalID string) *session.Session {
	now := time.Now()
	return &session.Session{
		ID:          session.NewID(),
		PrincipalID: principalID,
		Kind:        session.KindAdmin,
		CreatedAt:   now,
		LastSeenAt:  now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	sess := s.newSession("admin-1")

	err := s.store.Create(context.Background(), sess)
	require.NoError(s.T(), err)

	found, err := s.store.FindByID(context.Background(), sess.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), sess, found)
}

func (s *InMemoryStoreSuite) TestFindNotFound() {
	_, err := s.store.FindByID(context.Background(), session.NewID())
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *InMemoryStoreSuite) TestUpdate() {
	sess := s.newSession("admin-1")
	require.NoError(s.T(), s.store.Create(context.Background(), sess))

	sess.TwoFactorVerified = true
	require.NoError(s.T(), s.store.Update(context.Background(), sess))

	found, err := s.store.FindByID(context.Background(), sess.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), found.TwoFactorVerified)
}

func (s *InMemoryStoreSuite) TestUpdateNotFound() {
	err := s.store.Update(context.Background(), s.newSession("admin-1"))
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListByPrincipal() {
	mine := s.newSession("admin-1")
	other := s.newSession("admin-2")
	require.NoError(s.T(), s.store.Create(context.Background(), mine))
	require.NoError(s.T(), s.store.Create(context.Background(), other))

	sessions, err := s.store.ListByPrincipal(context.Background(), "admin-1")
	require.NoError(s.T(), err)
	require.Len(s.T(), sessions, 1)
	assert.Equal(s.T(), mine.ID, sessions[0].ID)
}

func (s *InMemoryStoreSuite) TestDeleteIsIdempotent() {
	sess := s.newSession("admin-1")
	require.NoError(s.T(), s.store.Create(context.Background(), sess))

	require.NoError(s.T(), s.store.Delete(context.Background(), sess.ID))
	_, err := s.store.FindByID(context.Background(), sess.ID)
	assert.ErrorIs(s.T(), err, ErrNotFound)

	// Deleting an already-gone session is not an error.
	assert.NoError(s.T(), s.store.Delete(context.Background(), sess.ID))
}

func (s *InMemoryStoreSuite) TestDeleteByPrincipal() {
	first := s.newSession("admin-1")
	second := s.newSession("admin-1")
	other := s.newSession("admin-2")
	for _, sess := range []*session.Session{first, second, other} {
		require.NoError(s.T(), s.store.Create(context.Background(), sess))
	}

	count, err := s.store.DeleteByPrincipal(context.Background(), "admin-1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, count)

	_, err = s.store.FindByID(context.Background(), other.ID)
	assert.NoError(s.T(), err)

	count, err = s.store.DeleteByPrincipal(context.Background(), "admin-1")
	require.NoError(s.T(), err)
	assert.Zero(s.T(), count)
}

func (s *InMemoryStoreSuite) TestDeleteExpired() {
	now := time.Now()
	expired := s.newSession("admin-1")
	expired.ExpiresAt = now.Add(-time.Minute)
	live := s.newSession("admin-1")
	require.NoError(s.T(), s.store.Create(context.Background(), expired))
	require.NoError(s.T(), s.store.Create(context.Background(), live))

	count, err := s.store.DeleteExpired(context.Background(), now)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, count)

	_, err = s.store.FindByID(context.Background(), expired.ID)
	assert.ErrorIs(s.T(), err, ErrNotFound)
	_, err = s.store.FindByID(context.Background(), live.ID)
	assert.NoError(s.T(), err)
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}
