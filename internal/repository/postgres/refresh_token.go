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

const refreshTokenColumns = `id, user_id, token_hash, is_active, expires_at, created_at, updated_at, COALESCE(revoked_reason, '')`

// RefreshTokenRepository implements repository.RefreshTokenRepository using PostgreSQL.
type RefreshTokenRepository struct {
	db database.DBTX
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token repository.
func NewRefreshTokenRepository(db database.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create stores a new active refresh token and fills in its ID and timestamps.
func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) (err error) {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, is_active, expires_at)
		VALUES ($1, $2, true, $3)
		RETURNING id, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateRefreshToken", query)
	defer func() { end(err) }()

	err = database.Conn(ctx, r.db).QueryRow(ctx, query, t.UserID, t.TokenHash, t.ExpiresAt).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("refresh token already exists")
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}
	t.IsActive = true

	return nil
}

// GetByHash retrieves a refresh token record by its hash.
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (_ *domain.RefreshToken, err error) {
	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1`

	ctx, end := database.TraceQuery(ctx, "GetRefreshTokenByHash", query)
	defer func() { end(err) }()

	t, err := scanRefreshToken(database.Conn(ctx, r.db).QueryRow(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return t, nil
}

// ListActiveByUser returns the user's active tokens, newest first.
func (r *RefreshTokenRepository) ListActiveByUser(ctx context.Context, userID string) (_ []domain.RefreshToken, err error) {
	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND is_active
		ORDER BY created_at DESC, id DESC`

	ctx, end := database.TraceQuery(ctx, "ListActiveRefreshTokens", query)
	defer func() { end(err) }()

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	defer rows.Close()

	tokens := []domain.RefreshToken{}
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan refresh token row: %w", err)
		}
		tokens = append(tokens, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh token rows: %w", err)
	}

	return tokens, nil
}

// Deactivate flips a single token from active to inactive. The is_active
// predicate makes this a compare-and-set: of two concurrent callers, the one
// that blocks on the row lock sees zero affected rows.
func (r *RefreshTokenRepository) Deactivate(ctx context.Context, id int64, reason domain.RevokeReason) (_ bool, err error) {
	if !reason.Valid() {
		return false, fmt.Errorf("deactivate refresh token: unknown revoke reason %q", reason)
	}

	query := `
		UPDATE refresh_tokens
		SET is_active = false, revoked_reason = $2, updated_at = now()
		WHERE id = $1 AND is_active`

	ctx, end := database.TraceQuery(ctx, "DeactivateRefreshToken", query)
	defer func() { end(err) }()

	ct, err := database.Conn(ctx, r.db).Exec(ctx, query, id, string(reason))
	if err != nil {
		return false, fmt.Errorf("deactivate refresh token: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// DeactivateAllByUser flips every active token of the user in one statement.
func (r *RefreshTokenRepository) DeactivateAllByUser(ctx context.Context, userID string, reason domain.RevokeReason) (_ int64, err error) {
	if !reason.Valid() {
		return 0, fmt.Errorf("deactivate user refresh tokens: unknown revoke reason %q", reason)
	}

	query := `
		UPDATE refresh_tokens
		SET is_active = false, revoked_reason = $2, updated_at = now()
		WHERE user_id = $1 AND is_active`

	ctx, end := database.TraceQuery(ctx, "DeactivateUserRefreshTokens", query)
	defer func() { end(err) }()

	ct, err := database.Conn(ctx, r.db).Exec(ctx, query, userID, string(reason))
	if err != nil {
		return 0, fmt.Errorf("deactivate user refresh tokens: %w", err)
	}

	return ct.RowsAffected(), nil
}

func scanRefreshToken(row pgx.Row) (*domain.RefreshToken, error) {
	var (
		t      domain.RefreshToken
		reason string
	)
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.IsActive,
		&t.ExpiresAt,
		&t.CreatedAt,
		&t.UpdatedAt,
		&reason,
	); err != nil {
		return nil, err
	}
	t.RevokedReason = domain.RevokeReason(reason)
	return &t, nil
}
