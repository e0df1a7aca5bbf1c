package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regdesk/internal/otp"
	"regdesk/internal/ratelimit"
	"regdesk/internal/session"
	sessionstore "regdesk/internal/session/store"
)

type stubSender struct{}

func (stubSender) Send(context.Context, string, string, string) error { return nil }

func TestRunOnceSweepsAllStores(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }

	sessions, err := session.NewService(sessionstore.NewInMemoryStore(), session.Config{
		AdminTTL: time.Hour,
		UserTTL:  time.Hour,
	}, session.WithClock(clock))
	require.NoError(t, err)

	otps, err := otp.NewService(otp.NewInMemoryStore(), stubSender{}, otp.Config{
		CodeTTL: 10 * time.Minute,
	}, otp.WithClock(clock))
	require.NoError(t, err)

	bucketStore := ratelimit.NewInMemoryStore(ratelimit.WithMemoryClock(clock))
	limiter, err := ratelimit.NewService(bucketStore, ratelimit.WithClock(clock))
	require.NoError(t, err)

	_, err = sessions.Create(ctx, "admin-1", session.KindAdmin, session.ClientInfo{IP: "203.0.113.9"})
	require.NoError(t, err)
	_, err = otps.CreateAndSend(ctx, "guest@example.org", otp.PurposeRegistration)
	require.NoError(t, err)
	_, err = limiter.Check(ctx, "203.0.113.9", ratelimit.PolicyStandard)
	require.NoError(t, err)

	svc, err := New(sessions, otps, limiter, WithBucketGrace(5*time.Minute))
	require.NoError(t, err)

	// Nothing has lapsed yet.
	res, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.DeletedSessions)
	assert.Zero(t, res.DeletedChallenges)
	assert.Zero(t, res.EvictedBuckets)

	now = now.Add(2 * time.Hour)

	res, err = svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedSessions)
	assert.Equal(t, 1, res.DeletedChallenges)
	assert.Equal(t, 1, res.EvictedBuckets)
}

type failingSweeper struct{ err error }

func (f failingSweeper) DeleteExpired(context.Context) (int, error) { return 0, f.err }

type countingEvictor struct{ evicted int }

func (c *countingEvictor) EvictStale(context.Context, time.Duration) (int, error) {
	return c.evicted, nil
}

func TestRunOnceAggregatesErrorsAndKeepsGoing(t *testing.T) {
	boom := errors.New("store down")
	evictor := &countingEvictor{evicted: 3}

	svc, err := New(failingSweeper{err: boom}, failingSweeper{}, evictor)
	require.NoError(t, err)

	res, err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	// The evictor still ran despite the session sweeper failing.
	assert.Equal(t, 3, res.EvictedBuckets)
}

func TestNewRequiresAllSweepers(t *testing.T) {
	_, err := New(nil, failingSweeper{}, &countingEvictor{})
	assert.Error(t, err)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	svc, err := New(failingSweeper{}, failingSweeper{}, &countingEvictor{}, WithInterval(time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = svc.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
