package service

import (
	"fmt"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/auth"
	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
)

// AccessTokenService issues and verifies short-lived access tokens.
type AccessTokenService struct {
	signer AccessTokenSigner
}

// NewAccessTokenService creates a new access token service.
func NewAccessTokenService(signer AccessTokenSigner) *AccessTokenService {
	return &AccessTokenService{signer: signer}
}

// IssueAccessToken signs a token for the user and returns it with its
// lifetime in seconds.
func (s *AccessTokenService) IssueAccessToken(userID, email string) (string, int, error) {
	token, expiresIn, err := s.signer.Sign(userID, email)
	if err != nil {
		return "", 0, fmt.Errorf("issue access token: %w", err)
	}
	return token, expiresIn, nil
}

// VerifyAccessToken returns the claims of a valid token. Any failure is
// reported as apperrors.ErrInvalidToken.
func (s *AccessTokenService) VerifyAccessToken(token string, validateExpiry bool) (*auth.Claims, error) {
	claims, err := s.signer.Verify(token, validateExpiry)
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}
	return claims, nil
}
