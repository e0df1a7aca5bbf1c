package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	platformMW "regdesk/internal/platform/middleware"
	dErrors "regdesk/pkg/domain-errors"
)

// ErrorWriter renders a domain error as an HTTP response.
type ErrorWriter func(w http.ResponseWriter, err error)

// Middleware applies rate limit policies to HTTP routes.
type Middleware struct {
	service    *Service
	logger     *slog.Logger
	writeError ErrorWriter
}

// NewMiddleware creates rate limiting middleware around the service.
func NewMiddleware(service *Service, logger *slog.Logger, writeError ErrorWriter) *Middleware {
	return &Middleware{
		service:    service,
		logger:     logger,
		writeError: writeError,
	}
}

// Limit enforces the given policy keyed by client IP. The check runs before
// the wrapped handler so abusive clients are rejected early.
func (m *Middleware) Limit(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := platformMW.GetClientIP(ctx)

			result, err := m.service.Check(ctx, ip, policy)
			if err != nil {
				// The limiter is advisory; an unreachable store must not
				// take down every route it guards.
				m.logger.ErrorContext(ctx, "rate limit check failed", "error", err, "policy", policy.Name)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.writeError(w, dErrors.New(dErrors.CodeRateLimited, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// addRateLimitHeaders exposes limit state on every response so well-behaved
// clients can self-throttle.
func addRateLimitHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	}
}
