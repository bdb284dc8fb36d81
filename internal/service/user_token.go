package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/repository"
	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
)

var (
	errBadCredentials = errors.New("unknown user or wrong password")
	errNoExternalLink = errors.New("no account is linked to the external identity")
)

// PasswordVerifier checks a username and password pair.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, email, password string) (*domain.User, error)
}

// UserTokenService runs the token grants: issuing pairs, the password grant
// and refresh token rotation with reuse detection.
type UserTokenService struct {
	users     repository.UserRepository
	access    *AccessTokenService
	refresh   *RefreshTokenService
	tx        repository.Transactor
	passwords PasswordVerifier
	limiter   AttemptLimiter
	events    EventPublisher
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewUserTokenService creates a new user token service.
func NewUserTokenService(
	users repository.UserRepository,
	access *AccessTokenService,
	refresh *RefreshTokenService,
	tx repository.Transactor,
	passwords PasswordVerifier,
	limiter AttemptLimiter,
	events EventPublisher,
	metrics *Metrics,
	logger *slog.Logger,
) *UserTokenService {
	return &UserTokenService{
		users:     users,
		access:    access,
		refresh:   refresh,
		tx:        tx,
		passwords: passwords,
		limiter:   limiter,
		events:    events,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// IssueNewToken mints an access and refresh token pair for the user and
// stamps the login time. It joins the caller's transaction when there is one.
func (s *UserTokenService) IssueNewToken(ctx context.Context, userID string) (*domain.TokenPair, error) {
	var pair *domain.TokenPair
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NotFound("user", userID)
			}
			return fmt.Errorf("load user: %w", err)
		}

		accessToken, expiresIn, err := s.access.IssueAccessToken(user.ID, user.Email)
		if err != nil {
			return err
		}
		refreshToken, refreshExpiresIn, err := s.refresh.IssueRefreshToken(ctx, user.ID)
		if err != nil {
			return err
		}

		if err := s.users.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
			return fmt.Errorf("update last login: %w", err)
		}

		pair = domain.NewTokenPair(accessToken, expiresIn, refreshToken, refreshExpiresIn)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// PasswordGrant exchanges a username and password for a token pair.
func (s *UserTokenService) PasswordGrant(ctx context.Context, username, password string) (_ *domain.TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "UserTokenService.PasswordGrant")
	defer span.End()
	defer func() { s.metrics.observeGrant(GrantTypePassword, err) }()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.InvalidGrant(errBadCredentials)
	}

	if !s.limiter.Allow(ctx, username) {
		s.logger.WarnContext(ctx, "password grant throttled")
		return nil, apperrors.TooManyRequests("too many attempts")
	}

	user, err := s.passwords.VerifyPassword(ctx, username, password)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if user == nil {
		s.limiter.RecordFailure(ctx, username)
		s.logger.InfoContext(ctx, "password grant rejected")
		return nil, apperrors.InvalidGrant(errBadCredentials)
	}
	s.limiter.Reset(ctx, username)

	span.SetAttributes(attribute.String("user.id", user.ID))
	pair, err := s.IssueNewToken(ctx, user.ID)
	if err != nil {
		return nil, normalizeGrantError(err)
	}
	return pair, nil
}

// ExternalGrant issues a token pair for an account resolved from a verified
// provider identity. A nil user means no account is linked.
func (s *UserTokenService) ExternalGrant(ctx context.Context, user *domain.User) (_ *domain.TokenPair, err error) {
	defer func() { s.metrics.observeGrant(GrantTypeExternal, err) }()

	if user == nil {
		return nil, apperrors.InvalidGrant(errNoExternalLink)
	}
	pair, err := s.IssueNewToken(ctx, user.ID)
	if err != nil {
		return nil, normalizeGrantError(err)
	}
	return pair, nil
}

// RefreshToken rotates a refresh token. The presented access token may be
// expired but must otherwise be valid and name the token's owner. Presenting
// a token that is no longer active revokes every active token of the user.
func (s *UserTokenService) RefreshToken(ctx context.Context, accessToken, refreshToken string) (_ *domain.TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "UserTokenService.RefreshToken")
	defer span.End()
	defer func() { s.metrics.observeGrant(GrantTypeRefreshToken, err) }()

	pair, err := s.rotate(ctx, accessToken, refreshToken)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if apperrors.KindOf(err) == apperrors.KindInternal {
			s.logger.ErrorContext(ctx, "refresh grant failed", slog.String("error", err.Error()))
		} else {
			s.logger.WarnContext(ctx, "refresh grant rejected", slog.String("error", err.Error()))
		}
		return nil, normalizeGrantError(err)
	}
	return pair, nil
}

func (s *UserTokenService) rotate(ctx context.Context, accessToken, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidGrant(errRefreshTokenUnknown)
	}

	claims, err := s.access.VerifyAccessToken(accessToken, false)
	if err != nil {
		return nil, apperrors.InvalidGrant(err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, apperrors.InvalidGrant(fmt.Errorf("parse subject: %w", err))
	}
	userID := claims.Subject

	record, err := s.refresh.GetRefreshToken(ctx, refreshToken, userID)
	if err != nil {
		return nil, err
	}
	if !record.IsActive {
		return nil, s.revokeAfterReuse(ctx, record)
	}
	if record.Expired(s.now()) {
		return nil, apperrors.InvalidGrant(errRefreshTokenExpired)
	}

	var pair *domain.TokenPair
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.refresh.RevokeRefreshToken(ctx, record.ID, domain.RevokeReasonRotated); err != nil {
			return err
		}
		pair, err = s.IssueNewToken(ctx, userID)
		return err
	})
	if err != nil {
		// A concurrent request rotated the token between the read and the
		// conditional update.
		if errors.Is(err, errRefreshTokenInactive) {
			return nil, s.revokeAfterReuse(ctx, record)
		}
		return nil, err
	}
	return pair, nil
}

// revokeAfterReuse revokes every active token of the record's owner. When
// that write fails the request fails with an internal error rather than
// falling through.
func (s *UserTokenService) revokeAfterReuse(ctx context.Context, record *domain.RefreshToken) error {
	s.metrics.reuseDetected.Inc()

	revoked, err := s.refresh.RevokeAllRefreshTokens(ctx, record.UserID, domain.RevokeReasonReuseDetected)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("revoke after reuse: %w", err))
	}

	s.logger.WarnContext(ctx, "refresh token reuse detected, revoked all sessions",
		slog.String("user_id", record.UserID),
		slog.Int64("token_id", record.ID),
		slog.Int64("revoked", revoked),
	)

	if err := s.events.PublishRefreshTokenReused(ctx, record.UserID, record.ID, revoked); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish refresh_token.reuse_detected event",
			slog.String("user_id", record.UserID),
			slog.String("error", err.Error()),
		)
	}

	return apperrors.InvalidGrant(errRefreshTokenReuseSeen)
}

// normalizeGrantError maps every non-internal failure to an invalid grant.
// The cause stays attached for logs.
func normalizeGrantError(err error) error {
	switch apperrors.KindOf(err) {
	case apperrors.KindInternal, apperrors.KindInvalidGrant, apperrors.KindTooManyRequests:
		return err
	default:
		return apperrors.InvalidGrant(err)
	}
}
