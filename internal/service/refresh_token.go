package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/auth"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/repository"
	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
)

var (
	errRefreshTokenUnknown   = errors.New("refresh token not found")
	errRefreshTokenForeign   = errors.New("refresh token belongs to another user")
	errRefreshTokenInactive  = errors.New("refresh token is not active")
	errRefreshTokenExpired   = errors.New("refresh token has expired")
	errRefreshTokenReuseSeen = errors.New("refresh token reuse detected")
)

// RefreshTokenService manages the persisted refresh tokens.
type RefreshTokenService struct {
	repo      repository.RefreshTokenRepository
	generator TokenGenerator
	ttl       time.Duration
	now       func() time.Time
}

// NewRefreshTokenService creates a new refresh token service.
func NewRefreshTokenService(repo repository.RefreshTokenRepository, generator TokenGenerator, ttl time.Duration) *RefreshTokenService {
	return &RefreshTokenService{
		repo:      repo,
		generator: generator,
		ttl:       ttl,
		now:       time.Now,
	}
}

// IssueRefreshToken creates and stores a new active token for the user. It
// returns the token value, which is never stored, and its lifetime in
// seconds.
func (s *RefreshTokenService) IssueRefreshToken(ctx context.Context, userID string) (string, int, error) {
	value, err := s.generator.Generate()
	if err != nil {
		return "", 0, err
	}

	record := &domain.RefreshToken{
		UserID:    userID,
		TokenHash: auth.HashRefreshToken(value),
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return "", 0, fmt.Errorf("store refresh token: %w", err)
	}

	return value, int(s.ttl / time.Second), nil
}

// GetRefreshToken looks up a token presented by userID. Unknown tokens and
// tokens of other users are reported as an invalid grant.
func (s *RefreshTokenService) GetRefreshToken(ctx context.Context, token, userID string) (*domain.RefreshToken, error) {
	record, err := s.repo.GetByHash(ctx, auth.HashRefreshToken(token))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidGrant(errRefreshTokenUnknown)
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if record.UserID != userID {
		return nil, apperrors.InvalidGrant(errRefreshTokenForeign)
	}
	return record, nil
}

// RevokeRefreshToken deactivates a single token. Revoking a token that is
// already inactive is an invalid grant, not a no-op.
func (s *RefreshTokenService) RevokeRefreshToken(ctx context.Context, id int64, reason domain.RevokeReason) error {
	ok, err := s.repo.Deactivate(ctx, id, reason)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if !ok {
		return apperrors.InvalidGrant(errRefreshTokenInactive)
	}
	return nil
}

// RevokeAllRefreshTokens deactivates every active token of the user in one
// statement and returns how many were changed.
func (s *RefreshTokenService) RevokeAllRefreshTokens(ctx context.Context, userID string, reason domain.RevokeReason) (int64, error) {
	n, err := s.repo.DeactivateAllByUser(ctx, userID, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return n, nil
}

// ListActiveSessions returns the user's active tokens, newest first.
func (s *RefreshTokenService) ListActiveSessions(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	tokens, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return tokens, nil
}
