package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/database"
	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
)

// ExternalLoginRepository implements repository.ExternalLoginRepository using PostgreSQL.
type ExternalLoginRepository struct {
	db database.DBTX
}

// NewExternalLoginRepository creates a new PostgreSQL-backed external login repository.
func NewExternalLoginRepository(db database.DBTX) *ExternalLoginRepository {
	return &ExternalLoginRepository{db: db}
}

// Create links a provider identity to a user.
func (r *ExternalLoginRepository) Create(ctx context.Context, l *domain.ExternalLogin) (err error) {
	query := `
		INSERT INTO user_external_logins (provider, external_user_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)`

	ctx, end := database.TraceQuery(ctx, "CreateExternalLogin", query)
	defer func() { end(err) }()

	_, err = database.Conn(ctx, r.db).Exec(ctx, query, int16(l.Provider), l.ExternalUserID, l.UserID, l.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("external login is already linked")
		}
		return fmt.Errorf("insert external login: %w", err)
	}

	return nil
}

// Get retrieves a link by provider and external user id.
func (r *ExternalLoginRepository) Get(ctx context.Context, provider domain.ExternalProvider, externalUserID string) (_ *domain.ExternalLogin, err error) {
	query := `
		SELECT provider, external_user_id, user_id, created_at
		FROM user_external_logins
		WHERE provider = $1 AND external_user_id = $2`

	ctx, end := database.TraceQuery(ctx, "GetExternalLogin", query)
	defer func() { end(err) }()

	var (
		l  domain.ExternalLogin
		pr int16
	)
	err = database.Conn(ctx, r.db).QueryRow(ctx, query, int16(provider), externalUserID).Scan(
		&pr,
		&l.ExternalUserID,
		&l.UserID,
		&l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan external login: %w", err)
	}
	l.Provider = domain.ExternalProvider(pr)

	return &l, nil
}
