package domain

import (
	"strings"
	"time"
)

// User represents a registered account. PasswordHash is empty for accounts
// created through an external provider only.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// EmailMatches compares addresses case-insensitively.
func (u *User) EmailMatches(email string) bool {
	return strings.EqualFold(strings.TrimSpace(u.Email), strings.TrimSpace(email))
}

// NormalizeEmail trims surrounding whitespace. Case is preserved for display;
// uniqueness is enforced on lower(email) by the store.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
