package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/password"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/repository"
	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
)

const (
	msgEmailTaken        = "the email has already been taken"
	msgAlreadyRegistered = "the user has already been registered"
)

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegistrationService creates password accounts and checks their credentials.
type RegistrationService struct {
	users   repository.UserRepository
	hasher  PasswordHasher
	policy  PasswordValidator
	events  EventPublisher
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRegistrationService creates a new registration service.
func NewRegistrationService(
	users repository.UserRepository,
	hasher PasswordHasher,
	policy PasswordValidator,
	events EventPublisher,
	metrics *Metrics,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		users:   users,
		hasher:  hasher,
		policy:  policy,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Register creates a password account. The email must be unused, compared
// case-insensitively, and the password must satisfy the policy.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := domain.NormalizeEmail(input.Email)

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperrors.Conflict(msgEmailTaken)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	if violations := s.policy.Validate(input.Password); len(violations) > 0 {
		return nil, apperrors.InvalidInput(violations[0].Message)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Conflict(msgEmailTaken)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))

	if err := s.events.PublishUserRegistered(ctx, user, nil); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// VerifyPassword returns the user when email and password match, and nil
// otherwise. A hash with an outdated work factor is replaced; failing to do
// so never fails the login.
func (s *RegistrationService) VerifyPassword(ctx context.Context, email, pw string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.HasPassword() {
		return nil, nil
	}

	switch s.hasher.Verify(user.PasswordHash, pw) {
	case password.VerifyFailed:
		return nil, nil
	case password.VerifySuccessRehashNeeded:
		s.rehash(ctx, user, pw)
	}

	return user, nil
}

func (s *RegistrationService) rehash(ctx context.Context, user *domain.User, pw string) {
	hash, err := s.hasher.Hash(pw)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to rehash password",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	previous := user.PasswordHash
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		user.PasswordHash = previous
		s.logger.WarnContext(ctx, "failed to store rehashed password",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.metrics.rehashed.Inc()
	s.logger.InfoContext(ctx, "password rehashed", slog.String("user_id", user.ID))
}
