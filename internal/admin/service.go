package admin

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"regdesk/internal/audit"
	"regdesk/internal/otp"
	"regdesk/internal/platform/tracer"
	"regdesk/internal/session"
	dErrors "regdesk/pkg/domain-errors"
)

// LoginResult carries what the login handler needs to set the session cookie
// and tell the client whether a code is on its way.
type LoginResult struct {
	Session *session.Session
	OTPSent bool
}

// Service orchestrates the two-step admin login: password check plus emailed
// one-time code. It owns no persistence of its own; sessions and challenges
// live in their respective services.
type Service struct {
	admins   Store
	sessions *session.Service
	otps     *otp.Service
	recorder *audit.Recorder
	logger   *slog.Logger
	tracer   tracer.Tracer
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithTracer sets the tracer for span emission.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// NewService wires the admin auth orchestrator.
func NewService(admins Store, sessions *session.Service, otps *otp.Service, recorder *audit.Recorder, opts ...Option) (*Service, error) {
	if admins == nil {
		return nil, errors.New("admin store is required")
	}
	if sessions == nil {
		return nil, errors.New("session service is required")
	}
	if otps == nil {
		return nil, errors.New("otp service is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}

	svc := &Service{
		admins:   admins,
		sessions: sessions,
		otps:     otps,
		recorder: recorder,
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Login runs the primary credential check and, on success, mints an admin
// session with the second factor still pending and dispatches a login code to
// the admin's email. Unknown email and wrong password collapse into the same
// unauthorized error so responses don't reveal which accounts exist.
func (s *Service) Login(ctx context.Context, email, password string, client session.ClientInfo) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanAdminLogin)
	var lerr error
	defer func() { span.End(lerr) }()

	if email == "" || password == "" {
		lerr = dErrors.New(dErrors.CodeInvalidInput, "email and password are required")
		return nil, lerr
	}

	acct, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			lerr = s.rejectLogin(ctx, client, "unknown email")
			return nil, lerr
		}
		lerr = dErrors.Wrap(err, dErrors.CodeInternal, "admin lookup failed")
		return nil, lerr
	}

	if bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)) != nil {
		lerr = s.rejectLogin(ctx, client, "password mismatch")
		return nil, lerr
	}

	sess, err := s.sessions.Create(ctx, acct.ID, session.KindAdmin, client)
	if err != nil {
		lerr = err
		return nil, lerr
	}

	sent, err := s.otps.CreateAndSend(ctx, acct.Email, otp.PurposeLogin)
	if err != nil {
		lerr = err
		return nil, lerr
	}

	_ = s.recorder.Record(ctx, audit.Event{
		ActorID:      acct.ID,
		Action:       audit.ActionAdminLogin,
		ResourceType: "session",
		ResourceID:   sess.ID,
		Detail:       "primary credential accepted, second factor pending",
		Endpoint:     "/auth/login",
	})

	return &LoginResult{Session: sess, OTPSent: sent}, nil
}

// VerifyTwoFactor checks the emailed code for the pending session and, on
// success, flips the session's two-factor flag. The session must still be
// alive; a revoked or lapsed session cannot be promoted.
func (s *Service) VerifyTwoFactor(ctx context.Context, sessionID, code string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Kind != session.KindAdmin {
		return dErrors.New(dErrors.CodeUnauthorized, "not an admin session")
	}

	acct, err := s.admins.FindByID(ctx, sess.PrincipalID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "admin lookup failed")
	}

	if err := s.otps.Verify(ctx, acct.Email, otp.PurposeLogin, code); err != nil {
		_ = s.recorder.Record(ctx, audit.Event{
			ActorID:      acct.ID,
			Action:       audit.ActionOTPVerifyFailed,
			ResourceType: "session",
			ResourceID:   sess.ID,
			Detail:       string(dErrors.CodeOf(err)),
			Endpoint:     "/auth/verify-2fa",
		})
		return err
	}

	if err := s.sessions.PromoteTwoFactor(ctx, sessionID); err != nil {
		return err
	}

	_ = s.recorder.Record(ctx, audit.Event{
		ActorID:      acct.ID,
		Action:       audit.ActionTwoFactorVerified,
		ResourceType: "session",
		ResourceID:   sess.ID,
		Endpoint:     "/auth/verify-2fa",
	})
	return nil
}

// Logout revokes the session. Revoking an unknown session is not an error, so
// logout is safe to retry.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeExpired) {
			return nil
		}
		return err
	}

	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}

	_ = s.recorder.Record(ctx, audit.Event{
		ActorID:      sess.PrincipalID,
		Action:       audit.ActionLogout,
		ResourceType: "session",
		ResourceID:   sessionID,
		Endpoint:     "/auth/logout",
	})
	return nil
}

// rejectLogin records the failed attempt and returns the uniform credential
// error.
func (s *Service) rejectLogin(ctx context.Context, client session.ClientInfo, reason string) error {
	_ = s.recorder.Record(ctx, audit.Event{
		Action:       audit.ActionAdminLoginFailed,
		ResourceType: "admin",
		Detail:       reason,
		Endpoint:     "/auth/login",
	})
	s.logger.InfoContext(ctx, "admin login rejected", "ip", client.IP)
	return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
}

// HashPassword produces a bcrypt hash for seeding accounts.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
