package auth

import (
	"context"
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
)

// ExternalIdentity is the verified subject of a provider-issued ID token.
type ExternalIdentity struct {
	Provider      domain.ExternalProvider
	Subject       string
	Email         string
	EmailVerified bool
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// GoogleVerifier verifies Google ID tokens against a fixed set of RSA keys.
type GoogleVerifier struct {
	keys     []*rsa.PublicKey
	clientID string
	issuers  []string
	now      func() time.Time
}

// NewGoogleVerifier parses a PEM bundle of public keys or certificates.
// Tokens must be RS256, issued by one of issuers for clientID.
func NewGoogleVerifier(clientID string, issuers []string, pemBundle []byte) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	if len(issuers) == 0 {
		return nil, errors.New("at least one google issuer is required")
	}

	var keys []*rsa.PublicKey
	rest := pemBundle
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(pem.EncodeToMemory(block))
		if err != nil {
			return nil, fmt.Errorf("parse google key %d: %w", len(keys), err)
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, errors.New("no google public keys found in PEM bundle")
	}

	return &GoogleVerifier{
		keys:     keys,
		clientID: clientID,
		issuers:  issuers,
		now:      time.Now,
	}, nil
}

// Verify checks the ID token and returns the identity it asserts.
func (v *GoogleVerifier) Verify(_ context.Context, idToken string) (*ExternalIdentity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)

	var (
		claims *googleClaims
		err    error
	)
	idToken = strings.TrimSpace(idToken)
	// Keys carry no kid here, so each one is tried until the signature checks.
	for _, key := range v.keys {
		claims = &googleClaims{}
		_, err = parser.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		})
		if err == nil || !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parse google id token: %w", err)
	}
	if !slices.Contains(v.issuers, claims.Issuer) {
		return nil, fmt.Errorf("parse google id token: %w", jwt.ErrTokenInvalidIssuer)
	}

	return &ExternalIdentity{
		Provider:      domain.ProviderGoogle,
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}
