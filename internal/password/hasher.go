// Package password hashes and checks user passwords.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 11

// VerifyResult is the outcome of checking a password against a stored hash.
type VerifyResult int

const (
	VerifyFailed VerifyResult = iota
	VerifySuccess
	// VerifySuccessRehashNeeded means the password matched but the hash was
	// produced with a different work factor.
	VerifySuccessRehashNeeded
)

// Hasher hashes passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher creates a hasher with the given bcrypt cost.
func NewHasher(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return &Hasher{cost: cost}, nil
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks password against hash. Malformed hashes verify as failed.
func (h *Hasher) Verify(hash, password string) VerifyResult {
	if hash == "" {
		return VerifyFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return VerifyFailed
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost != h.cost {
		return VerifySuccessRehashNeeded
	}
	return VerifySuccess
}
