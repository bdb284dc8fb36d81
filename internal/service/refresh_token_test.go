package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/auth"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
)

type staticGenerator struct {
	value string
	err   error
}

func (g staticGenerator) Generate() (string, error) {
	return g.value, g.err
}

func newRefreshService(repo *mockRefreshTokenRepository, gen TokenGenerator) *RefreshTokenService {
	svc := NewRefreshTokenService(repo, gen, time.Hour)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestIssueRefreshToken_StoresHashOnly(t *testing.T) {
	repo := new(mockRefreshTokenRepository)
	svc := newRefreshService(repo, staticGenerator{value: "opaque-value"})

	repo.On("Create", mock.Anything, mock.MatchedBy(func(rt *domain.RefreshToken) bool {
		return rt.UserID == "user-1" &&
			rt.TokenHash == auth.HashRefreshToken("opaque-value") &&
			rt.ExpiresAt.Equal(time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC))
	})).Return(nil)

	value, expiresIn, err := svc.IssueRefreshToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "opaque-value", value)
	assert.Equal(t, 3600, expiresIn)
	repo.AssertExpectations(t)
}

func TestIssueRefreshToken_GeneratorError(t *testing.T) {
	repo := new(mockRefreshTokenRepository)
	svc := newRefreshService(repo, staticGenerator{err: errors.New("entropy exhausted")})

	_, _, err := svc.IssueRefreshToken(context.Background(), "user-1")
	require.Error(t, err)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetRefreshToken(t *testing.T) {
	record := &domain.RefreshToken{ID: 7, UserID: "user-1", TokenHash: auth.HashRefreshToken("tok"), IsActive: true}

	tests := []struct {
		name     string
		userID   string
		found    *domain.RefreshToken
		repoErr  error
		wantErr  bool
		wantKind apperrors.Kind
	}{
		{name: "owner", userID: "user-1", found: record},
		{name: "unknown token", userID: "user-1", repoErr: apperrors.NotFound("refresh token", "x"), wantErr: true, wantKind: apperrors.KindInvalidGrant},
		{name: "other user", userID: "user-2", found: record, wantErr: true, wantKind: apperrors.KindInvalidGrant},
		{name: "store outage", userID: "user-1", repoErr: errors.New("connection reset"), wantErr: true, wantKind: apperrors.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockRefreshTokenRepository)
			svc := newRefreshService(repo, staticGenerator{})
			repo.On("GetByHash", mock.Anything, auth.HashRefreshToken("tok")).Return(tt.found, tt.repoErr)

			got, err := svc.GetRefreshToken(context.Background(), "tok", tt.userID)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, int64(7), got.ID)
				return
			}
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
		})
	}
}

func TestRevokeRefreshToken_AlreadyInactive(t *testing.T) {
	repo := new(mockRefreshTokenRepository)
	svc := newRefreshService(repo, staticGenerator{})
	repo.On("Deactivate", mock.Anything, int64(7), domain.RevokeReasonRotated).Return(false, nil)

	err := svc.RevokeRefreshToken(context.Background(), 7, domain.RevokeReasonRotated)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidGrant))
}

func TestRevokeAllRefreshTokens(t *testing.T) {
	repo := new(mockRefreshTokenRepository)
	svc := newRefreshService(repo, staticGenerator{})
	repo.On("DeactivateAllByUser", mock.Anything, "user-1", domain.RevokeReasonRevoked).Return(int64(4), nil)

	n, err := svc.RevokeAllRefreshTokens(context.Background(), "user-1", domain.RevokeReasonRevoked)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
