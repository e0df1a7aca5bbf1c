// Package httptransport is the thin HTTP layer. Handlers decode typed
// requests, delegate to domain services, and translate coded errors; business
// logic stays out of this package.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"regdesk/internal/admin"
	"regdesk/internal/audit"
	"regdesk/internal/csrf"
	"regdesk/internal/otp"
	"regdesk/internal/platform/middleware"
	"regdesk/internal/ratelimit"
	"regdesk/internal/session"
	"regdesk/internal/transport/http/shared"
)

// Handler carries the domain services the HTTP layer delegates to.
type Handler struct {
	admins       *admin.Service
	sessions     *session.Service
	otps         *otp.Service
	csrf         *csrf.Manager
	recorder     *audit.Recorder
	logger       *slog.Logger
	cookieSecure bool
	health       func() error
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCookieSecure marks issued cookies Secure. On in production, off for
// plain-HTTP local development.
func WithCookieSecure(secure bool) HandlerOption {
	return func(h *Handler) { h.cookieSecure = secure }
}

// WithHealthCheck adds a dependency probe to the health endpoint.
func WithHealthCheck(check func() error) HandlerOption {
	return func(h *Handler) { h.health = check }
}

// NewHandler wires the HTTP layer around the domain services.
func NewHandler(admins *admin.Service, sessions *session.Service, otps *otp.Service,
	csrfManager *csrf.Manager, recorder *audit.Recorder, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		admins:   admins,
		sessions: sessions,
		otps:     otps,
		csrf:     csrfManager,
		recorder: recorder,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter wires all endpoints with the middleware stack. Order matters:
// rate limiting runs first so abusive clients are shed before any token or
// session work, then CSRF, then session authentication.
func NewRouter(h *Handler, limits *ratelimit.Middleware, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	protect := csrf.Protect(h.csrf, logger, shared.WriteError)

	// Credential endpoints.
	r.Group(func(r chi.Router) {
		r.Use(limits.Limit(ratelimit.PolicyAuth))
		r.Use(protect)
		r.Use(middleware.ContentTypeJSON)
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/verify-2fa", h.handleVerifyTwoFactor)
		r.Post("/auth/logout", h.handleLogout)
		r.Post("/auth/otp/verify", h.handleOTPVerify)
	})

	// Code dispatch triggers outbound email, so it gets the tightest policy.
	r.Group(func(r chi.Router) {
		r.Use(limits.Limit(ratelimit.PolicyStrict))
		r.Use(protect)
		r.Use(middleware.ContentTypeJSON)
		r.Post("/auth/otp/send", h.handleOTPSend)
	})

	r.With(limits.Limit(ratelimit.PolicyStandard)).Get("/csrf-token", h.handleCSRFToken)

	// Privileged surface: verified admin sessions only.
	r.Group(func(r chi.Router) {
		r.Use(limits.Limit(ratelimit.PolicyStandard))
		r.Use(admin.RequireSession(h.sessions, logger, shared.WriteError))
		r.Use(admin.RequireAdmin(shared.WriteError))
		r.Use(protect)
		r.Get("/admin/sessions", h.handleListSessions)
		r.Delete("/admin/sessions", h.handleRevokeAllSessions)
		r.Delete("/admin/sessions/{id}", h.handleRevokeSession)
		r.Get("/admin/audit-events", h.handleAuditEvents)
	})

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}
