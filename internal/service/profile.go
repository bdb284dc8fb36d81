package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/repository"
	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
)

// MaxNameLength bounds first and last names.
const MaxNameLength = 50

// UpdateProfileInput holds the parameters for updating a user's profile.
type UpdateProfileInput struct {
	FirstName string
	LastName  string
}

// ProfileService reads and edits the signed-in user's profile.
type ProfileService struct {
	users repository.UserRepository
}

// NewProfileService creates a new profile service.
func NewProfileService(users repository.UserRepository) *ProfileService {
	return &ProfileService{users: users}
}

// Get retrieves a user's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return user, nil
}

// Update replaces the user's first and last name.
func (s *ProfileService) Update(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if utf8.RuneCountInString(firstName) > MaxNameLength || utf8.RuneCountInString(lastName) > MaxNameLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("names must be at most %d characters", MaxNameLength))
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.FirstName = firstName
	user.LastName = lastName
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return user, nil
}
