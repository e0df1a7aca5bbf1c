package admin_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regdesk/internal/admin"
	"regdesk/internal/session"
	sessionstore "regdesk/internal/session/store"
	dErrors "regdesk/pkg/domain-errors"
)

func testErrorWriter(w http.ResponseWriter, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeForbidden:
		w.WriteHeader(http.StatusForbidden)
	default:
		w.WriteHeader(http.StatusUnauthorized)
	}
}

func newSessionService(t *testing.T) *session.Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := session.NewService(sessionstore.NewInMemoryStore(), session.Config{},
		session.WithLogger(logger))
	require.NoError(t, err)
	return svc
}

func protectedHandler(t *testing.T, sawSession *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := admin.SessionFromContext(r.Context())
		assert.True(t, ok)
		assert.NotNil(t, sess)
		*sawSession = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireSessionAcceptsCookie(t *testing.T) {
	sessions := newSessionService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sess, err := sessions.Create(context.Background(), "user-1", session.KindUser, client)
	require.NoError(t, err)

	var sawSession bool
	handler := admin.RequireSession(sessions, logger, testErrorWriter)(protectedHandler(t, &sawSession))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: admin.SessionCookieName, Value: sess.ID})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sawSession)
}

func TestRequireSessionAcceptsBearerToken(t *testing.T) {
	sessions := newSessionService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sess, err := sessions.Create(context.Background(), "user-1", session.KindUser, client)
	require.NoError(t, err)

	var sawSession bool
	handler := admin.RequireSession(sessions, logger, testErrorWriter)(protectedHandler(t, &sawSession))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.ID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireSessionCollapsesFailureModes(t *testing.T) {
	sessions := newSessionService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Unpromoted admin session: internally second_factor_required.
	pending, err := sessions.Create(context.Background(), "admin-1", session.KindAdmin, client)
	require.NoError(t, err)

	cases := map[string]func(r *http.Request){
		"no token":       func(*http.Request) {},
		"unknown token":  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+session.NewID()) },
		"pending second": func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+pending.ID) },
	}

	for name, arrange := range cases {
		t.Run(name, func(t *testing.T) {
			var sawSession bool
			handler := admin.RequireSession(sessions, logger, testErrorWriter)(protectedHandler(t, &sawSession))

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			arrange(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, sawSession, "handler must not run")
		})
	}
}

func TestRequireAdminRejectsUserSession(t *testing.T) {
	sessions := newSessionService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	userSess, err := sessions.Create(context.Background(), "user-1", session.KindUser, client)
	require.NoError(t, err)

	var sawSession bool
	inner := admin.RequireAdmin(testErrorWriter)(protectedHandler(t, &sawSession))
	handler := admin.RequireSession(sessions, logger, testErrorWriter)(inner)

	req := httptest.NewRequest(http.MethodGet, "/admin/sessions", nil)
	req.AddCookie(&http.Cookie{Name: admin.SessionCookieName, Value: userSess.ID})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, sawSession)
}
