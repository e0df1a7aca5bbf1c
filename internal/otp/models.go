package otp

import "time"

// Purpose scopes a challenge to the flow that requested it. A login code
// cannot be replayed to verify a registration.
type Purpose string

const (
	PurposeLogin        Purpose = "login"
	PurposeRegistration Purpose = "registration"
	PurposeVerification Purpose = "verification"
)

// Valid reports whether the purpose is one of the known flows.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeRegistration, PurposeVerification:
		return true
	}
	return false
}

// Challenge is a pending one-time-passcode verification. The code itself is
// held only as a salted hash; the plaintext exists only inside the send path.
type Challenge struct {
	Email    string
	Purpose  Purpose
	CodeHash []byte
	Attempts int
	Consumed bool

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Key identifies the single active challenge slot for (email, purpose).
func (c *Challenge) Key() string {
	return ChallengeKey(c.Email, c.Purpose)
}

// ChallengeKey builds the storage key for a (recipient, purpose) pair.
func ChallengeKey(email string, purpose Purpose) string {
	return email + "|" + string(purpose)
}
