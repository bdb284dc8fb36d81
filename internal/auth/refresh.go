package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// RefreshTokenBytes is the amount of entropy in a refresh token.
const RefreshTokenBytes = 256

// RefreshTokenGenerator produces opaque refresh token values.
type RefreshTokenGenerator struct {
	rand io.Reader
}

// NewRefreshTokenGenerator creates a generator backed by crypto/rand.
func NewRefreshTokenGenerator() *RefreshTokenGenerator {
	return &RefreshTokenGenerator{rand: rand.Reader}
}

// Generate returns RefreshTokenBytes random bytes, base64-encoded.
func (g *RefreshTokenGenerator) Generate() (string, error) {
	buf := make([]byte, RefreshTokenBytes)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// HashRefreshToken returns the hex SHA-256 digest under which a refresh token
// is stored and looked up.
func HashRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
