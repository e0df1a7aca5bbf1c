// Package csrf issues and validates anti-forgery tokens using the
// double-submit cookie pattern. The cookie carries an HMAC-signed envelope
// binding the token and its expiry, so no server-side storage is needed; the
// client echoes the raw token back in a header on state-changing requests.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "regdesk/pkg/domain-errors"
)

const (
	// HeaderName is the client-readable channel the token is echoed on.
	HeaderName = "X-CSRF-Token"
	// CookieName carries the signed envelope. The frontend reads the raw
	// token from the issue response, never from the cookie.
	CookieName = "regdesk_csrf"

	tokenBytes = 32
)

// Token is an issued anti-forgery token with its remaining lifetime.
type Token struct {
	Value     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// envelopeClaims is the signed cookie payload binding a token to its window.
type envelopeClaims struct {
	Tok string `json:"tok"`
	jwt.RegisteredClaims
}

// Manager issues and validates CSRF tokens.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock injects the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a CSRF token manager. The signing key protects the
// cookie envelope against forgery; the TTL bounds the validation window.
func NewManager(signingKey string, ttl time.Duration, opts ...Option) (*Manager, error) {
	if signingKey == "" {
		return nil, errors.New("csrf signing key is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	m := &Manager{
		signingKey: []byte(signingKey),
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue generates a fresh token from a cryptographically secure random
// source and returns it together with the signed cookie envelope.
func (m *Manager) Issue() (Token, string, error) {
	var b [tokenBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Token{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate csrf token")
	}
	value := hex.EncodeToString(b[:])

	now := m.now()
	claims := envelopeClaims{
		Tok: value,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	envelope, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return Token{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign csrf envelope")
	}

	return Token{Value: value, ExpiresIn: int(m.ttl.Seconds())}, envelope, nil
}

// DecodeEnvelope verifies the signed cookie envelope and returns the stored
// token value. Tampered envelopes yield invalid_token; lapsed windows yield
// expired.
func (m *Manager) DecodeEnvelope(envelope string) (string, error) {
	if envelope == "" {
		return "", dErrors.New(dErrors.CodeInvalidToken, "missing csrf cookie")
	}

	var claims envelopeClaims
	_, err := jwt.ParseWithClaims(envelope, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.signingKey, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeExpired, "csrf token expired")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInvalidToken, "invalid csrf cookie")
	}
	if claims.Tok == "" {
		return "", dErrors.New(dErrors.CodeInvalidToken, "invalid csrf cookie")
	}
	return claims.Tok, nil
}

// TTL returns the configured validation window.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// ValidateToken compares the presented token against the stored one in
// constant time. Fails closed when either side is missing.
func ValidateToken(presented, stored string) bool {
	if presented == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
