// Package cleanup periodically removes expired auth artifacts: lapsed
// sessions, dead OTP challenges, and stale rate limit buckets. Expiry is
// enforced lazily on every read, so the sweep only reclaims storage and its
// cadence is not correctness-critical.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SessionSweeper removes expired sessions.
type SessionSweeper interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// ChallengeSweeper removes expired OTP challenges.
type ChallengeSweeper interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// BucketEvictor drops rate limit buckets whose windows lapsed.
type BucketEvictor interface {
	EvictStale(ctx context.Context, grace time.Duration) (int, error)
}

// Result summarizes the deletions performed by one run.
type Result struct {
	DeletedSessions   int
	DeletedChallenges int
	EvictedBuckets    int
}

// Service runs the periodic sweep.
type Service struct {
	sessions   SessionSweeper
	challenges ChallengeSweeper
	buckets    BucketEvictor
	interval   time.Duration
	grace      time.Duration
	logger     *slog.Logger
}

// Option configures the cleanup service.
type Option func(*Service)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithBucketGrace overrides how long lapsed rate limit windows linger before
// eviction.
func WithBucketGrace(grace time.Duration) Option {
	return func(s *Service) {
		if grace > 0 {
			s.grace = grace
		}
	}
}

// WithLogger overrides the logger used for sweep errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs the cleanup service with required sweepers.
func New(sessions SessionSweeper, challenges ChallengeSweeper, buckets BucketEvictor, opts ...Option) (*Service, error) {
	if sessions == nil || challenges == nil || buckets == nil {
		return nil, fmt.Errorf("sessions, challenges, and buckets sweepers are required")
	}
	svc := &Service{
		sessions:   sessions,
		challenges: challenges,
		buckets:    buckets,
		interval:   5 * time.Minute,
		grace:      10 * time.Minute,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs the sweep periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if res, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "cleanup sweep failed", "error", err)
			} else if res.DeletedSessions+res.DeletedChallenges+res.EvictedBuckets > 0 {
				s.logger.InfoContext(ctx, "cleanup sweep",
					"sessions", res.DeletedSessions,
					"challenges", res.DeletedChallenges,
					"buckets", res.EvictedBuckets,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep. Failures in one sweeper do not stop the
// others; errors are aggregated and returned alongside the partial result.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	var errs []error

	deletedSessions, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete expired sessions: %w", err))
	} else {
		res.DeletedSessions = deletedSessions
	}

	deletedChallenges, err := s.challenges.DeleteExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete expired challenges: %w", err))
	} else {
		res.DeletedChallenges = deletedChallenges
	}

	evicted, err := s.buckets.EvictStale(ctx, s.grace)
	if err != nil {
		errs = append(errs, fmt.Errorf("evict stale buckets: %w", err))
	} else {
		res.EvictedBuckets = evicted
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}
