package csrf

import (
	"log/slog"
	"net/http"

	dErrors "regdesk/pkg/domain-errors"
)

// safeMethods never mutate state and are exempt from CSRF checks.
var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// ErrorWriter renders a domain error as an HTTP response. Injected so the
// middleware reuses the transport layer's error envelope without importing it.
type ErrorWriter func(w http.ResponseWriter, err error)

// Protect rejects state-changing requests whose presented token does not
// match the signed cookie envelope byte-for-byte. Validation runs before the
// wrapped handler, so no mutating business logic executes on a forged request.
func Protect(m *Manager, logger *slog.Logger, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if safeMethods[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			stored := ""
			if cookie, err := r.Cookie(CookieName); err == nil {
				stored = cookie.Value
			}

			storedToken, err := m.DecodeEnvelope(stored)
			if err != nil {
				logger.InfoContext(r.Context(), "csrf cookie rejected", "path", r.URL.Path)
				writeError(w, err)
				return
			}

			presented := r.Header.Get(HeaderName)
			if presented == "" {
				presented = r.PostFormValue("csrf_token")
			}

			if !ValidateToken(presented, storedToken) {
				logger.InfoContext(r.Context(), "csrf token mismatch", "path", r.URL.Path)
				writeError(w, invalidTokenErr())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func invalidTokenErr() error {
	return dErrors.New(dErrors.CodeInvalidToken, "csrf token mismatch")
}
