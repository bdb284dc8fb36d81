package domain

import "time"

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "Bearer"

// RevokeReason records why a refresh token became inactive.
type RevokeReason string

const (
	RevokeReasonRotated       RevokeReason = "rotated"
	RevokeReasonRevoked       RevokeReason = "revoked"
	RevokeReasonReuseDetected RevokeReason = "reuse_detected"
)

// Valid reports whether r is a known reason.
func (r RevokeReason) Valid() bool {
	switch r {
	case RevokeReasonRotated, RevokeReasonRevoked, RevokeReasonReuseDetected:
		return true
	}
	return false
}

// RefreshToken is one issued refresh credential. Only the SHA-256 digest of
// the token value is stored.
type RefreshToken struct {
	ID            int64        `json:"id"`
	UserID        string       `json:"user_id"`
	TokenHash     string       `json:"-"`
	IsActive      bool         `json:"is_active"`
	ExpiresAt     time.Time    `json:"expires_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	RevokedReason RevokeReason `json:"revoked_reason,omitempty"`
}

// Expired reports whether the token is past its absolute expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenPair is the OAuth token response body.
type TokenPair struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int    `json:"expires_in"`
	RefreshTokenExpiresIn *int   `json:"refresh_token_expires_in"`
	TokenType             string `json:"token_type"`
	Scope                 string `json:"scope,omitempty"`
}

// NewTokenPair builds a bearer token pair.
func NewTokenPair(accessToken string, expiresIn int, refreshToken string, refreshExpiresIn int) *TokenPair {
	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		ExpiresIn:             expiresIn,
		RefreshTokenExpiresIn: &refreshExpiresIn,
		TokenType:             TokenTypeBearer,
	}
}
