package session

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// PrincipalKind distinguishes admin sessions, which require a second factor,
// from end-user sessions, which do not.
type PrincipalKind string

const (
	KindAdmin PrincipalKind = "admin"
	KindUser  PrincipalKind = "user"
)

// Session represents one authenticated login instance. This is a pure domain
// entity; the transport layer owns the JSON representation.
type Session struct {
	ID          string
	PrincipalID string
	Kind        PrincipalKind

	// TwoFactorVerified flips exactly once per session. It can only be unset
	// by full revocation, never in place.
	TwoFactorVerified bool

	// Client fingerprint for the session management UI and anomaly review.
	FingerprintHash   string
	DeviceDisplayName string

	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

// NewID mints a cryptographically random opaque session identifier.
// 32 bytes of entropy rendered as 64 hex characters.
func NewID() string {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the process cannot mint identifiers at
		// all; continuing would issue guessable sessions.
		panic("session: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}

// IsExpired reports whether the session is past its expiry at the given time.
func (s *Session) IsExpired(at time.Time) bool {
	return !at.Before(s.ExpiresAt)
}

// IsUsable reports whether the session may back privileged operations:
// not expired, and for admin sessions, second factor verified.
func (s *Session) IsUsable(at time.Time) bool {
	if s.IsExpired(at) {
		return false
	}
	if s.Kind == KindAdmin {
		return s.TwoFactorVerified
	}
	return true
}

// PromoteTwoFactor marks the second factor as verified.
// Returns true if the transition occurred, false if already verified.
func (s *Session) PromoteTwoFactor() bool {
	if s.TwoFactorVerified {
		return false
	}
	s.TwoFactorVerified = true
	return true
}

// RecordActivity updates the session's last seen time if the given time is
// after the current value. Concurrent updates are last-writer-wins; staleness
// has no correctness impact.
func (s *Session) RecordActivity(at time.Time) {
	if at.After(s.LastSeenAt) {
		s.LastSeenAt = at
	}
}
