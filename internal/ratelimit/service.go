// Package ratelimit enforces fixed-window request limits per client key.
//
// Policies are named presets; each (clientKey, policy) pair gets its own
// counter. State is advisory: a process restart may forget counts, which the
// design tolerates in exchange for low latency.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"regdesk/internal/ratelimit/metrics"
	dErrors "regdesk/pkg/domain-errors"
)

// BucketStore counts requests per key within fixed windows.
// Increments must be atomic per key to avoid undercounting under bursts.
type BucketStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int, windowStart time.Time, err error)
	EvictStale(ctx context.Context, grace time.Duration) (int, error)
}

// Service checks named rate limit policies against a bucket store.
// Thread-safe for concurrent use by HTTP middleware.
type Service struct {
	store   BucketStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock injects the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a rate limiting service.
func NewService(store BucketStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("bucket store is required")
	}
	svc := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check counts the request against the client's window for the policy.
// Exactly Limit requests per window are allowed; the next is rejected with
// the window's reset time and a retry-after hint.
func (s *Service) Check(ctx context.Context, clientKey string, policy Policy) (*Result, error) {
	if clientKey == "" || policy.Limit <= 0 || policy.Window <= 0 {
		// Default-deny: a missing key or unconfigured policy never allows
		// the request through.
		return &Result{
			Allowed:    false,
			ResetAt:    s.now().Add(time.Minute),
			RetryAfter: 60,
		}, nil
	}

	key := "ratelimit:" + policy.Name + ":" + clientKey
	count, windowStart, err := s.store.Incr(ctx, key, policy.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	if s.metrics != nil {
		s.metrics.Checks.WithLabelValues(policy.Name).Inc()
	}

	resetAt := windowStart.Add(policy.Window)
	if count > policy.Limit {
		if s.metrics != nil {
			s.metrics.Rejections.WithLabelValues(policy.Name).Inc()
		}
		s.logger.InfoContext(ctx, "rate limit exceeded",
			"policy", policy.Name,
			"limit", policy.Limit,
			"window_seconds", int(policy.Window.Seconds()),
		)
		return &Result{
			Allowed:    false,
			Limit:      policy.Limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(resetAt, s.now()),
		}, nil
	}

	return &Result{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - count,
		ResetAt:   resetAt,
	}, nil
}

// EvictStale removes buckets whose windows lapsed past the grace period.
// Called by the cleanup worker.
func (s *Service) EvictStale(ctx context.Context, grace time.Duration) (int, error) {
	count, err := s.store.EvictStale(ctx, grace)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to evict stale buckets")
	}
	return count, nil
}

func retryAfterSeconds(resetAt, now time.Time) int {
	seconds := int(resetAt.Sub(now).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
