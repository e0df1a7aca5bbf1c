package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"regdesk/internal/platform/tracer"
	"regdesk/internal/session/metrics"
	dErrors "regdesk/pkg/domain-errors"
)

// Store persists sessions. Implementations must be safe for concurrent use.
//
// Error contract: FindByID returns a domain error with CodeNotFound when no
// session exists; Delete and DeleteByPrincipal are idempotent and succeed
// when nothing matches.
type Store interface {
	Create(ctx context.Context, s *Session) error
	FindByID(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	ListByPrincipal(ctx context.Context, principalID string) ([]*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByPrincipal(ctx context.Context, principalID string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// ClientInfo carries the request attributes used for session fingerprinting.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Entry pairs a session with whether it is the caller's own current session,
// for the session management listing.
type Entry struct {
	Session *Session
	Current bool
}

// Config holds session lifetimes per principal kind.
type Config struct {
	AdminTTL time.Duration
	UserTTL  time.Duration
}

// Service implements the session store and two-factor gate operations.
// A session is issued immediately after the primary credential check so OTP
// challenges have something to attach to, but admin sessions stay unusable
// for privileged operations until the second factor clears.
type Service struct {
	store   Store
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
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

// WithTracer sets the tracer for span emission.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithClock injects the time source. Tests use this to control expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a session service backed by the given store.
func NewService(store Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.AdminTTL <= 0 {
		cfg.AdminTTL = 7 * 24 * time.Hour
	}
	if cfg.UserTTL <= 0 {
		cfg.UserTTL = 30 * 24 * time.Hour
	}

	svc := &Service{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: tracer.NewNoop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create mints a new session after a successful primary credential check.
// Admin sessions start with the two-factor flag unset; end-user sessions do
// not require a second factor and are verified from the start.
func (s *Service) Create(ctx context.Context, principalID string, kind PrincipalKind, client ClientInfo) (*Session, error) {
	if principalID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "principal id is required")
	}
	if kind != KindAdmin && kind != KindUser {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown principal kind")
	}

	now := s.now()
	ttl := s.cfg.UserTTL
	if kind == KindAdmin {
		ttl = s.cfg.AdminTTL
	}

	sess := &Session{
		ID:                NewID(),
		PrincipalID:       principalID,
		Kind:              kind,
		TwoFactorVerified: kind == KindUser,
		FingerprintHash:   ComputeFingerprint(client.IP, client.UserAgent),
		DeviceDisplayName: ParseUserAgent(client.UserAgent),
		CreatedAt:         now,
		LastSeenAt:        now,
		ExpiresAt:         now.Add(ttl),
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist session")
	}

	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
		s.metrics.ActiveSessions.Inc()
	}
	s.logger.InfoContext(ctx, "session created",
		"principal_id", principalID,
		"kind", kind,
		"expires_at", sess.ExpiresAt,
	)
	return sess, nil
}

// Verify looks up a session by identifier and checks that it may back
// privileged operations. Expiry is checked lazily here rather than by a
// mandatory sweep. Refreshes the session's last-active timestamp as a side
// effect; that write is best-effort since staleness is harmless.
func (s *Service) Verify(ctx context.Context, sessionID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanVerifySession)
	var verr error
	defer func() { span.End(verr) }()

	sess, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			verr = s.fail(ctx, dErrors.CodeNotFound, "session not found")
			return nil, verr
		}
		// Store unreachable or payload malformed: fail closed.
		verr = dErrors.Wrap(err, dErrors.CodeUnauthorized, "session lookup failed")
		return nil, verr
	}

	now := s.now()
	if sess.IsExpired(now) {
		verr = s.fail(ctx, dErrors.CodeExpired, "session expired")
		return nil, verr
	}
	if sess.Kind == KindAdmin && !sess.TwoFactorVerified {
		verr = s.fail(ctx, dErrors.CodeSecondFactorRequired, "second factor not verified")
		return nil, verr
	}

	sess.RecordActivity(now)
	if err := s.store.Update(ctx, sess); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh session activity", "error", err)
	}

	return sess, nil
}

// Get fetches a session by identifier without the two-factor gate, for login
// flows where the second factor is still pending. Expired and missing
// sessions are rejected the same way Verify rejects them.
func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "session lookup failed")
	}
	if sess.IsExpired(s.now()) {
		return nil, dErrors.New(dErrors.CodeExpired, "session expired")
	}
	return sess, nil
}

// PromoteTwoFactor marks the session's second factor as verified. The flag
// flips at most once; promoting an already-verified session is a no-op.
// Fails with not_found if the session vanished between steps (race with the
// expiry sweep).
func (s *Service) PromoteTwoFactor(ctx context.Context, sessionID string) error {
	sess, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed")
	}

	if !sess.PromoteTwoFactor() {
		return nil
	}
	if err := s.store.Update(ctx, sess); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist two-factor promotion")
	}

	if s.metrics != nil {
		s.metrics.TwoFactorPromotions.Inc()
	}
	s.logger.InfoContext(ctx, "two-factor verified", "principal_id", sess.PrincipalID)
	return nil
}

// List enumerates a principal's sessions ordered by last activity, newest
// first, marking the caller's own current session.
func (s *Service) List(ctx context.Context, principalID, currentSessionID string) ([]Entry, error) {
	sessions, err := s.store.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastSeenAt.After(sessions[j].LastSeenAt)
	})

	entries := make([]Entry, 0, len(sessions))
	for _, sess := range sessions {
		entries = append(entries, Entry{
			Session: sess,
			Current: sess.ID == currentSessionID,
		})
	}
	return entries, nil
}

// Revoke deletes a single session. Revoking an already-gone session is not
// an error.
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}
	if s.metrics != nil {
		s.metrics.SessionsRevoked.Inc()
		s.metrics.ActiveSessions.Dec()
	}
	return nil
}

// RevokeAll deletes every session belonging to the principal and returns how
// many were removed. Idempotent.
func (s *Service) RevokeAll(ctx context.Context, principalID string) (int, error) {
	count, err := s.store.DeleteByPrincipal(ctx, principalID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke sessions")
	}
	if s.metrics != nil && count > 0 {
		s.metrics.SessionsRevoked.Add(float64(count))
		s.metrics.ActiveSessions.Sub(float64(count))
	}
	s.logger.InfoContext(ctx, "all sessions revoked", "principal_id", principalID, "count", count)
	return count, nil
}

// DeleteExpired removes sessions past expiry. Called by the cleanup worker.
func (s *Service) DeleteExpired(ctx context.Context) (int, error) {
	count, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sweep expired sessions")
	}
	if s.metrics != nil && count > 0 {
		s.metrics.ActiveSessions.Sub(float64(count))
	}
	return count, nil
}

// fail records an auth failure metric and returns a coded error. The code is
// logged here; the admin facade collapses it before it reaches the client.
func (s *Service) fail(ctx context.Context, code dErrors.Code, msg string) error {
	if s.metrics != nil {
		s.metrics.AuthFailures.WithLabelValues(string(code)).Inc()
	}
	s.logger.InfoContext(ctx, "session verification failed", "reason", string(code))
	return dErrors.New(code, msg)
}
