package csrf

import (
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "regdesk/pkg/domain-errors"
)

const testKey = "test-signing-key"

func newManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(testKey, 24*time.Hour, opts...)
	require.NoError(t, err)
	return m
}

func TestIssueProducesFixedLengthHexToken(t *testing.T) {
	m := newManager(t)

	tok, envelope, err := m.Issue()
	require.NoError(t, err)

	assert.Len(t, tok.Value, 64)
	assert.Equal(t, 86400, tok.ExpiresIn)
	assert.NotEmpty(t, envelope)

	other, _, err := m.Issue()
	require.NoError(t, err)
	assert.NotEqual(t, tok.Value, other.Value)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	m := newManager(t)

	tok, envelope, err := m.Issue()
	require.NoError(t, err)

	stored, err := m.DecodeEnvelope(envelope)
	require.NoError(t, err)
	assert.Equal(t, tok.Value, stored)
}

func TestDecodeEnvelopeRejectsTampering(t *testing.T) {
	m := newManager(t)

	_, envelope, err := m.Issue()
	require.NoError(t, err)

	tampered := envelope[:len(envelope)-2] + "xx"
	_, err = m.DecodeEnvelope(tampered)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken))

	_, err = m.DecodeEnvelope("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken))
}

func TestDecodeEnvelopeRejectsExpired(t *testing.T) {
	now := time.Now()
	m := newManager(t, WithClock(func() time.Time { return now }))

	_, envelope, err := m.Issue()
	require.NoError(t, err)

	now = now.Add(25 * time.Hour)
	_, err = m.DecodeEnvelope(envelope)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExpired))
}

func TestValidateTokenSymmetry(t *testing.T) {
	tok := strings.Repeat("ab", 32)

	assert.True(t, ValidateToken(tok, tok))
	assert.False(t, ValidateToken(tok, strings.Repeat("ba", 32)))
	assert.False(t, ValidateToken("", tok))
	assert.False(t, ValidateToken(tok, ""))
	assert.False(t, ValidateToken("", ""))
}

// Comparison time must not correlate with the position of the first
// differing byte. A coarse statistical check: compare mismatches at the
// first and last byte and require the same order of magnitude.
func TestValidateTokenTimingIndependence(t *testing.T) {
	if testing.Short() {
		t.Skip("timing statistics skipped in short mode")
	}

	base := strings.Repeat("a", 64)
	earlyDiff := "b" + strings.Repeat("a", 63)
	lateDiff := strings.Repeat("a", 63) + "b"

	const rounds = 20000
	measure := func(other string) time.Duration {
		start := time.Now()
		for range rounds {
			ValidateToken(base, other)
		}
		return time.Since(start)
	}

	// Warm up before measuring.
	measure(earlyDiff)
	early := measure(earlyDiff)
	late := measure(lateDiff)

	ratio := float64(early) / float64(late)
	assert.Less(t, math.Abs(ratio-1), 0.5,
		"comparison time should not depend on mismatch position (ratio %f)", ratio)
}

func TestProtectRejectsBeforeHandlerRuns(t *testing.T) {
	m := newManager(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	writeError := func(w http.ResponseWriter, err error) {
		w.WriteHeader(http.StatusForbidden)
	}

	handlerRan := false
	handler := Protect(m, logger, writeError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
	}))

	tok, envelope, err := m.Issue()
	require.NoError(t, err)

	// Tampered presented token: rejected, handler never runs.
	req := httptest.NewRequest(http.MethodPost, "/admin/thing", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: envelope})
	req.Header.Set(HeaderName, strings.Repeat("0", 64))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, handlerRan)

	// Matching token passes through.
	req = httptest.NewRequest(http.MethodPost, "/admin/thing", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: envelope})
	req.Header.Set(HeaderName, tok.Value)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, handlerRan)
}

func TestProtectSkipsSafeMethods(t *testing.T) {
	m := newManager(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	writeError := func(w http.ResponseWriter, err error) {
		w.WriteHeader(http.StatusForbidden)
	}

	handlerRan := false
	handler := Protect(m, logger, writeError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, handlerRan)
}

func TestProtectFailsClosedWithoutCookie(t *testing.T) {
	m := newManager(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var gotErr error
	writeError := func(w http.ResponseWriter, err error) {
		gotErr = err
		w.WriteHeader(http.StatusForbidden)
	}

	handler := Protect(m, logger, writeError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, dErrors.HasCode(gotErr, dErrors.CodeInvalidToken))
}
