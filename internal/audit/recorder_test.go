package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regdesk/internal/audit"
)

type failingStore struct {
	appendErr error
}

func (s *failingStore) Append(context.Context, audit.Event) error {
	return s.appendErr
}

func (s *failingStore) Query(context.Context, audit.Filter, int, int) ([]audit.Event, error) {
	return nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordStampsIDAndTimestamp(t *testing.T) {
	store := audit.NewInMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := audit.NewRecorder(store, discardLogger(),
		audit.WithRecorderClock(func() time.Time { return now }))

	err := rec.Record(context.Background(), audit.Event{
		ActorID: "admin-1",
		Action:  audit.ActionAdminLogin,
	})
	require.NoError(t, err)

	events, err := rec.Query(context.Background(), audit.Filter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, now, events[0].Timestamp)
}

func TestRecordPreservesExplicitTimestamp(t *testing.T) {
	store := audit.NewInMemoryStore()
	rec := audit.NewRecorder(store, discardLogger())

	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	err := rec.Record(context.Background(), audit.Event{
		Action:    audit.ActionLogout,
		Timestamp: stamp,
	})
	require.NoError(t, err)

	events, err := rec.Query(context.Background(), audit.Filter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, stamp, events[0].Timestamp)
}

func TestRecordSurfacesStoreErrorWithoutPanic(t *testing.T) {
	rec := audit.NewRecorder(&failingStore{appendErr: errors.New("disk full")}, discardLogger())

	err := rec.Record(context.Background(), audit.Event{Action: audit.ActionOTPRequested})
	assert.Error(t, err)
}

func TestQueryNewestFirst(t *testing.T) {
	store := audit.NewInMemoryStore()
	rec := audit.NewRecorder(store, discardLogger())
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, rec.Record(context.Background(), audit.Event{
			Action:    audit.ActionOTPRequested,
			Detail:    string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := rec.Query(context.Background(), audit.Filter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.After(events[i-1].Timestamp),
			"events must be ordered newest first")
	}
	assert.Equal(t, "e", events[0].Detail)
}

func TestQueryPagination(t *testing.T) {
	store := audit.NewInMemoryStore()
	rec := audit.NewRecorder(store, discardLogger())
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		require.NoError(t, rec.Record(context.Background(), audit.Event{
			Action:    audit.ActionSessionRevoked,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	page1, err := rec.Query(context.Background(), audit.Filter{}, 4, 0)
	require.NoError(t, err)
	assert.Len(t, page1, 4)

	page3, err := rec.Query(context.Background(), audit.Filter{}, 4, 8)
	require.NoError(t, err)
	assert.Len(t, page3, 2)

	empty, err := rec.Query(context.Background(), audit.Filter{}, 4, 100)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestQueryFilters(t *testing.T) {
	store := audit.NewInMemoryStore()
	rec := audit.NewRecorder(store, discardLogger())
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, audit.Event{ActorID: "admin-1", Action: audit.ActionAdminLogin, ResourceType: "session"}))
	require.NoError(t, rec.Record(ctx, audit.Event{ActorID: "admin-2", Action: audit.ActionAdminLogin, ResourceType: "session"}))
	require.NoError(t, rec.Record(ctx, audit.Event{ActorID: "admin-1", Action: audit.ActionLogout, ResourceType: "session"}))
	require.NoError(t, rec.Record(ctx, audit.Event{ActorID: "admin-1", Action: audit.ActionOTPRequested, ResourceType: "otp_challenge"}))

	byActor, err := rec.Query(ctx, audit.Filter{ActorID: "admin-1"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byActor, 3)

	byAction, err := rec.Query(ctx, audit.Filter{Action: audit.ActionAdminLogin}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	combined, err := rec.Query(ctx, audit.Filter{ActorID: "admin-1", ResourceType: "session"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, combined, 2)
}
