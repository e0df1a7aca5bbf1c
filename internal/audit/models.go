package audit

import "time"

// Event is an immutable record of a security-relevant action. Emitted from
// domain logic and handlers; never mutated or deleted by this core.
// Retention is an external policy concern.
type Event struct {
	ID           string
	ActorID      string // empty for anonymous callers
	Action       string
	ResourceType string
	ResourceID   string
	Detail       string
	Endpoint     string
	Timestamp    time.Time
}

// Action names recorded by the auth core.
const (
	ActionAdminLogin        = "admin_login"
	ActionAdminLoginFailed  = "admin_login_failed"
	ActionTwoFactorVerified = "two_factor_verified"
	ActionOTPRequested      = "otp_requested"
	ActionOTPVerifyFailed   = "otp_verify_failed"
	ActionSessionRevoked    = "session_revoked"
	ActionSessionsRevoked   = "sessions_revoked_all"
	ActionLogout            = "logout"
)

// Filter narrows a query. Zero-valued fields match everything.
type Filter struct {
	ActorID      string
	Action       string
	ResourceType string
}

// Matches reports whether the event satisfies the filter.
func (f Filter) Matches(e Event) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	return true
}
