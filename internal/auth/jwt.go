package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum HS256 key size in bytes (256 bits).
const MinSecretLength = 32

var signingMethod = jwt.SigningMethodHS256

// Claims represents the JWT claims for an access token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SignerConfig holds the access token signing settings.
type SignerConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	// AllowShortSecret permits keys under MinSecretLength; development only.
	AllowShortSecret bool
}

// JWTSigner issues and verifies HS256 access tokens.
type JWTSigner struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewJWTSigner creates a signer. The key is the UTF-8 bytes of the secret.
func NewJWTSigner(cfg SignerConfig) (*JWTSigner, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if len(cfg.Secret) < MinSecretLength && !cfg.AllowShortSecret {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("jwt issuer and audience are required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	return &JWTSigner{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      time.Now,
	}, nil
}

// TTL returns the access token lifetime.
func (s *JWTSigner) TTL() time.Duration {
	return s.ttl
}

// Sign creates a signed access token for the subject and returns it along
// with its lifetime in whole seconds.
func (s *JWTSigner) Sign(subject, email string) (string, int, error) {
	now := s.now().UTC()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(signingMethod, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign access token: %w", err)
	}
	return signed, int(s.ttl / time.Second), nil
}

// Verify parses an access token and checks its signature, algorithm, issuer
// and audience. With validateExpiry false an expired token is accepted; this
// is used only on the refresh grant.
func (s *JWTSigner) Verify(tokenString string, validateExpiry bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if validateExpiry {
		options = append(options,
			jwt.WithIssuer(s.issuer),
			jwt.WithAudience(s.audience),
			jwt.WithExpirationRequired(),
		)
	} else {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	claims := &Claims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenString, claims, s.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	if !validateExpiry {
		if err := s.checkIdentity(claims); err != nil {
			return nil, err
		}
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("parse access token: %w", jwt.ErrTokenRequiredClaimMissing)
	}
	return claims, nil
}

func (s *JWTSigner) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != signingMethod.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	return s.secret, nil
}

// checkIdentity repeats the issuer, audience and not-before checks that
// WithoutClaimsValidation skips.
func (s *JWTSigner) checkIdentity(claims *Claims) error {
	if claims.Issuer != s.issuer {
		return fmt.Errorf("parse access token: %w", jwt.ErrTokenInvalidIssuer)
	}
	if !slices.Contains(claims.Audience, s.audience) {
		return fmt.Errorf("parse access token: %w", jwt.ErrTokenInvalidAudience)
	}
	if claims.NotBefore != nil && s.now().Before(claims.NotBefore.Time) {
		return fmt.Errorf("parse access token: %w", jwt.ErrTokenNotValidYet)
	}
	return nil
}
