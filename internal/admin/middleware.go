package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"regdesk/internal/session"
	dErrors "regdesk/pkg/domain-errors"
)

// SessionCookieName is the cookie carrying the opaque session identifier.
const SessionCookieName = "regdesk_session"

type contextKey int

const sessionContextKey contextKey = iota

// SessionFromContext returns the verified session attached by RequireSession.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(*session.Session)
	return sess, ok
}

// ErrorWriter renders a domain error as an HTTP response.
type ErrorWriter func(w http.ResponseWriter, err error)

// SessionToken extracts the session identifier from the cookie or, failing
// that, a bearer Authorization header.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}

// RequireSession verifies the request's session and attaches it to the
// context. Every verification failure, whatever its internal cause, reaches
// the client as the same unauthorized error: missing, expired, and
// second-factor-pending sessions are indistinguishable from outside.
func RequireSession(sessions *session.Service, logger *slog.Logger, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeError(w, unauthorizedErr())
				return
			}

			sess, err := sessions.Verify(r.Context(), token)
			if err != nil {
				logger.InfoContext(r.Context(), "session rejected",
					"path", r.URL.Path,
					"reason", string(dErrors.CodeOf(err)),
				)
				writeError(w, unauthorizedErr())
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects verified sessions that do not belong to an
// administrator. Must run inside RequireSession.
func RequireAdmin(writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok || sess.Kind != session.KindAdmin {
				writeError(w, dErrors.New(dErrors.CodeForbidden, "admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorizedErr() error {
	return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
}
