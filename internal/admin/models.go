// Package admin implements administrator authentication: the primary
// credential check, the email second factor handoff, and the request facade
// that guards privileged routes.
package admin

import "time"

// Admin is a back-office account. Passwords are stored as bcrypt hashes only.
type Admin struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	CreatedAt    time.Time
}
