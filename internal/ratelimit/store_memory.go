package ratelimit

import (
	"context"
	"sync"
	"time"
)

// bucket is one fixed window's counter for a key.
type bucket struct {
	windowStart time.Time
	count       int
}

// InMemoryStore implements BucketStore with in-process fixed-window counters.
// Advisory state: counts do not survive a restart, which the design accepts.
// For multi-instance deployments use RedisStore instead.
type InMemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// MemoryOption configures an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithMemoryClock injects the time source for tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) { s.now = now }
}

// NewInMemoryStore creates an empty in-memory bucket store.
func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Incr counts one request against the key's current window, creating or
// resetting the window as needed, and returns the count within the window
// together with the window start. The increment is atomic per key.
func (s *InMemoryStore) Incr(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok || now.Sub(b.windowStart) >= window {
		b = &bucket{windowStart: now}
		s.buckets[key] = b
	}
	b.count++
	return b.count, b.windowStart, nil
}

// EvictStale drops buckets whose window lapsed more than the grace period
// ago. Called by the cleanup worker; counts of evicted entries are returned
// for logging.
func (s *InMemoryStore) EvictStale(_ context.Context, grace time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for key, b := range s.buckets {
		// Window duration is not stored per bucket; the grace period is
		// expected to exceed the largest configured window.
		if now.Sub(b.windowStart) >= grace {
			delete(s.buckets, key)
			count++
		}
	}
	return count, nil
}

var _ BucketStore = (*InMemoryStore)(nil)
