package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/repository"
	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
)

// Column limits of the users and user_external_logins tables, in characters.
const (
	MaxEmailLength          = 256
	MaxExternalUserIDLength = 255
)

// ExternalRegisterInput holds the parameters for a federated registration.
type ExternalRegisterInput struct {
	Provider       domain.ExternalProvider
	ExternalUserID string
	Email          string
	FirstName      string
	LastName       string
}

// FederatedLoginService links provider identities to accounts.
type FederatedLoginService struct {
	users  repository.UserRepository
	logins repository.ExternalLoginRepository
	tx     repository.Transactor
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewFederatedLoginService creates a new federated login service.
func NewFederatedLoginService(
	users repository.UserRepository,
	logins repository.ExternalLoginRepository,
	tx repository.Transactor,
	events EventPublisher,
	logger *slog.Logger,
) *FederatedLoginService {
	return &FederatedLoginService{
		users:  users,
		logins: logins,
		tx:     tx,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Register creates an account without a password and links it to the
// provider identity. Existing accounts are never merged.
func (s *FederatedLoginService) Register(ctx context.Context, input ExternalRegisterInput) (*domain.User, error) {
	email := domain.NormalizeEmail(input.Email)
	externalID := strings.TrimSpace(input.ExternalUserID)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if externalID == "" {
		return nil, apperrors.InvalidInput("external user id is required")
	}
	if utf8.RuneCountInString(email) > MaxEmailLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("email must be at most %d characters", MaxEmailLength))
	}
	if utf8.RuneCountInString(externalID) > MaxExternalUserIDLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("external user id must be at most %d characters", MaxExternalUserIDLength))
	}
	if utf8.RuneCountInString(input.FirstName) > MaxNameLength || utf8.RuneCountInString(input.LastName) > MaxNameLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("names must be at most %d characters", MaxNameLength))
	}

	_, err := s.logins.Get(ctx, input.Provider, externalID)
	switch {
	case err == nil:
		return nil, apperrors.Conflict(msgAlreadyRegistered)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("check external login: %w", err)
	}

	_, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperrors.Conflict(msgEmailTaken)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:        uuid.New().String(),
		Email:     email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	login := &domain.ExternalLogin{
		Provider:       input.Provider,
		ExternalUserID: externalID,
		UserID:         user.ID,
		CreatedAt:      now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				return apperrors.Conflict(msgEmailTaken)
			}
			return fmt.Errorf("create user: %w", err)
		}
		if err := s.logins.Create(ctx, login); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				return apperrors.Conflict(msgAlreadyRegistered)
			}
			return fmt.Errorf("create external login: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "federated user registered",
		slog.String("user_id", user.ID),
		slog.String("provider", input.Provider.String()),
	)

	if err := s.events.PublishUserRegistered(ctx, user, &input.Provider); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// FindByExternalLogin returns the account linked to the provider identity,
// or nil when there is no link or the asserted email no longer matches the
// account.
func (s *FederatedLoginService) FindByExternalLogin(ctx context.Context, provider domain.ExternalProvider, externalUserID, email string) (*domain.User, error) {
	login, err := s.logins.Get(ctx, provider, strings.TrimSpace(externalUserID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get external login: %w", err)
	}

	user, err := s.users.GetByID(ctx, login.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !user.EmailMatches(email) {
		s.logger.WarnContext(ctx, "external login email mismatch",
			slog.String("user_id", user.ID),
			slog.String("provider", provider.String()),
		)
		return nil, nil
	}

	return user, nil
}
