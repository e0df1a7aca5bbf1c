package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements BucketStore with Redis INCR on per-window keys.
// The atomic increment makes counting correct across instances, which
// in-process counters cannot guarantee under horizontal scaling.
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock injects the time source for tests.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) { s.now = now }
}

// NewRedisStore creates a Redis-backed bucket store.
func NewRedisStore(client redis.Cmdable, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Incr counts one request against the key's current fixed window. The window
// index is embedded in the Redis key, so a new window starts with a fresh
// key; EXPIRE bounds the old key's lifetime.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	now := s.now()
	windowIndex := now.UnixNano() / int64(window)
	windowStart := time.Unix(0, windowIndex*int64(window))
	redisKey := fmt.Sprintf("%s:%d", key, windowIndex)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// Grace period keeps the key around slightly past the window so reset
	// times remain computable for rejected requests.
	pipe.Expire(ctx, redisKey, window+30*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("increment rate limit key: %w", err)
	}

	return int(incr.Val()), windowStart, nil
}

// EvictStale is a no-op for Redis: key TTLs already evict stale windows.
func (s *RedisStore) EvictStale(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}

var _ BucketStore = (*RedisStore)(nil)
