package repository

import (
	"context"
	"time"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user. A duplicate email, compared
	// case-insensitively, yields apperrors.ErrConflict.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email, ignoring case.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update writes the profile fields and password hash.
	Update(ctx context.Context, user *domain.User) error

	// UpdateLastLogin stamps a successful token issuance.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// RefreshTokenRepository defines the interface for refresh token persistence
// operations. Tokens are addressed by the digest of their value.
type RefreshTokenRepository interface {
	// Create inserts an active token and fills in its ID and timestamps.
	Create(ctx context.Context, token *domain.RefreshToken) error

	// GetByHash retrieves a token record regardless of its state.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// ListActiveByUser returns the user's active tokens, newest first.
	ListActiveByUser(ctx context.Context, userID string) ([]domain.RefreshToken, error)

	// Deactivate flips one token from active to inactive. It reports false
	// when the token was not active, which includes losing a concurrent race.
	Deactivate(ctx context.Context, id int64, reason domain.RevokeReason) (bool, error)

	// DeactivateAllByUser flips every active token of the user and returns
	// the number of rows changed.
	DeactivateAllByUser(ctx context.Context, userID string, reason domain.RevokeReason) (int64, error)
}

// ExternalLoginRepository defines the interface for federated identity links.
type ExternalLoginRepository interface {
	// Create links a provider identity to a user. An existing link yields
	// apperrors.ErrConflict.
	Create(ctx context.Context, login *domain.ExternalLogin) error

	// Get retrieves a link by its natural key.
	Get(ctx context.Context, provider domain.ExternalProvider, externalUserID string) (*domain.ExternalLogin, error)
}

// Transactor runs fn in a single transaction. Repository calls made with the
// context passed to fn join that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
