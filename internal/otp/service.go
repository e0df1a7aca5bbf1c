// Package otp issues and verifies short-lived numeric codes delivered by
// email for login and verification flows.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"regdesk/internal/otp/metrics"
	"regdesk/internal/platform/tracer"
	dErrors "regdesk/pkg/domain-errors"
)

const codeDigits = 6

// ChallengeStore persists pending challenges.
//
// Contract: Upsert must atomically replace any prior challenge for the same
// (email, purpose) key in a single write, so two challenges are never
// simultaneously active. Find returns a domain error with CodeNotFound when
// no challenge exists.
type ChallengeStore interface {
	Upsert(ctx context.Context, c *Challenge) error
	Find(ctx context.Context, email string, purpose Purpose) (*Challenge, error)
	Update(ctx context.Context, c *Challenge) error
	Delete(ctx context.Context, email string, purpose Purpose) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Config holds OTP policy knobs.
type Config struct {
	CodeTTL     time.Duration
	MaxAttempts int
}

// Service generates, stores, delivers, and verifies one-time passcodes.
type Service struct {
	store   ChallengeStore
	sender  Sender
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

// WithClock injects the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an OTP service.
func NewService(store ChallengeStore, sender Sender, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("challenge store is required")
	}
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}

	svc := &Service{
		store:  store,
		sender: sender,
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

// CreateAndSend generates a fresh numeric code, supersedes any prior active
// challenge for the same (email, purpose), and dispatches the code by email.
// Delivery failure is reported as ok=false rather than an error so callers
// can respond uniformly without leaking provider state.
func (s *Service) CreateAndSend(ctx context.Context, email string, purpose Purpose) (bool, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanOTPSend, tracer.String("purpose", string(purpose)))
	var serr error
	defer func() { span.End(serr) }()

	if email == "" {
		serr = dErrors.New(dErrors.CodeInvalidInput, "recipient email is required")
		return false, serr
	}
	if !purpose.Valid() {
		serr = dErrors.New(dErrors.CodeInvalidInput, "unknown otp purpose")
		return false, serr
	}

	code, err := generateCode()
	if err != nil {
		serr = dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
		return false, serr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		serr = dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash code")
		return false, serr
	}

	now := s.now()
	challenge := &Challenge{
		Email:     email,
		Purpose:   purpose,
		CodeHash:  hash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.CodeTTL),
	}

	// Single keyed write: the previous active challenge is replaced
	// atomically, never leaving two challenges active at once.
	if err := s.store.Upsert(ctx, challenge); err != nil {
		serr = dErrors.Wrap(err, dErrors.CodeInternal, "failed to store challenge")
		return false, serr
	}
	if s.metrics != nil {
		s.metrics.ChallengesIssued.Inc()
	}

	subject := "Your verification code"
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(s.cfg.CodeTTL.Minutes()))
	if err := s.sender.Send(ctx, email, subject, body); err != nil {
		s.logger.WarnContext(ctx, "otp delivery failed", "purpose", purpose, "error", err)
		if s.metrics != nil {
			s.metrics.DeliveryFailures.Inc()
		}
		return false, nil
	}

	s.logger.InfoContext(ctx, "otp challenge issued", "purpose", purpose)
	return true, nil
}

// Verify checks a submitted code against the active challenge. The attempt
// counter, not just time, gates retries: once it is exhausted even the
// correct code is rejected. A challenge is consumed exactly once; verifying
// again after success behaves as if no challenge exists.
func (s *Service) Verify(ctx context.Context, email string, purpose Purpose, code string) error {
	ctx, span := s.tracer.Start(ctx, tracer.SpanOTPVerify, tracer.String("purpose", string(purpose)))
	var verr error
	defer func() { span.End(verr) }()
	defer func() {
		if s.metrics == nil {
			return
		}
		outcome := "success"
		if verr != nil {
			outcome = string(dErrors.CodeOf(verr))
		}
		s.metrics.Verifications.WithLabelValues(outcome).Inc()
	}()

	challenge, err := s.store.Find(ctx, email, purpose)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			verr = dErrors.New(dErrors.CodeNotFound, "no active challenge")
			return verr
		}
		verr = dErrors.Wrap(err, dErrors.CodeInternal, "challenge lookup failed")
		return verr
	}

	if challenge.Consumed {
		verr = dErrors.New(dErrors.CodeNotFound, "no active challenge")
		return verr
	}
	if s.now().After(challenge.ExpiresAt) {
		verr = dErrors.New(dErrors.CodeExpired, "challenge expired")
		return verr
	}
	if challenge.Attempts >= s.cfg.MaxAttempts {
		verr = dErrors.New(dErrors.CodeTooManyAttempts, "verification attempts exhausted")
		return verr
	}

	if bcrypt.CompareHashAndPassword(challenge.CodeHash, []byte(code)) != nil {
		challenge.Attempts++
		if err := s.store.Update(ctx, challenge); err != nil {
			s.logger.WarnContext(ctx, "failed to persist attempt counter", "error", err)
		}
		verr = dErrors.New(dErrors.CodeInvalidToken, "code mismatch")
		return verr
	}

	challenge.Consumed = true
	if err := s.store.Update(ctx, challenge); err != nil {
		// Consumption must be durable before success is reported, or the
		// same code could verify twice.
		verr = dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume challenge")
		return verr
	}

	s.logger.InfoContext(ctx, "otp verified", "purpose", purpose)
	return nil
}

// DeleteExpired removes lapsed challenges. Called by the cleanup worker.
func (s *Service) DeleteExpired(ctx context.Context) (int, error) {
	count, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sweep expired challenges")
	}
	return count, nil
}

// generateCode draws a fixed-length numeric code from crypto/rand.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for range codeDigits {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
