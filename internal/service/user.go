package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/devicedock/devicedock-server/internal/auth"
	"github.com/devicedock/devicedock-server/internal/domain"
	domainerrors "github.com/devicedock/devicedock-server/internal/errors"
	"github.com/devicedock/devicedock-server/internal/store"
	"github.com/devicedock/devicedock-server/internal/store/sqlite"
	"github.com/devicedock/devicedock-server/internal/validation"
)

// UserService handles user profile management.
type UserService struct {
	store     *sqlite.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewUserService creates a new user profile service.
func NewUserService(store *sqlite.Store, validator *validation.Validator, logger *slog.Logger) *UserService {
	return &UserService{
		store:     store,
		validator: validator,
		logger:    logger,
	}
}

// UpdateProfileRequest contains the updatable fields of a user profile.
// Nil pointers mean "leave unchanged".
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=100"`

	// Changing the password requires proving knowledge of the current one.
	CurrentPassword *string `json:"current_password,omitempty"`
	NewPassword     *string `json:"new_password,omitempty" validate:"omitempty,min=8,max=128"`
}

// GetUser returns a user by ID.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if domainerrors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a partial update to the user's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*domain.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}

	if req.NewPassword != nil {
		if req.CurrentPassword == nil {
			return nil, domainerrors.Validation("current_password is required to change the password")
		}
		ok, err := auth.VerifyPassword(user.PasswordHash, *req.CurrentPassword)
		if err != nil || !ok {
			return nil, domainerrors.InvalidCredentials("current password is incorrect")
		}

		hash, err := auth.HashPassword(*req.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.Info("User profile updated", "user_id", user.ID)
	return user, nil
}
