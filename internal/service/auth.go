// Package service implements the application's business logic.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devicedock/devicedock-server/internal/auth"
	"github.com/devicedock/devicedock-server/internal/domain"
	domainerrors "github.com/devicedock/devicedock-server/internal/errors"
	"github.com/devicedock/devicedock-server/internal/id"
	"github.com/devicedock/devicedock-server/internal/store"
	"github.com/devicedock/devicedock-server/internal/store/sqlite"
	"github.com/devicedock/devicedock-server/internal/validation"
)

// AuthService handles user registration, login, and token verification.
type AuthService struct {
	store          *sqlite.Store
	tokenService   *auth.TokenService
	sessionService *SessionService
	validator      *validation.Validator
	logger         *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store *sqlite.Store,
	tokenService *auth.TokenService,
	sessionService *SessionService,
	validator *validation.Validator,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:          store,
		tokenService:   tokenService,
		sessionService: sessionService,
		validator:      validator,
		logger:         logger,
	}
}

// RegisterRequest contains the data needed to create an account.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"display_name,omitempty" validate:"omitempty,max=100"`

	// Client metadata, injected by the HTTP handler rather than the body.
	ClientName string `json:"client_name,omitempty" validate:"omitempty,max=100"`
	UserAgent  string `json:"-"`
	IPAddress  string `json:"-"`
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`

	ClientName string `json:"client_name,omitempty" validate:"omitempty,max=100"`
	UserAgent  string `json:"-"`
	IPAddress  string `json:"-"`
}

// AuthResponse is returned from login and registration.
type AuthResponse struct {
	User *domain.User `json:"user"`
	SessionResponse
}

// Register creates a new user account and an initial session.
// Registration is open: anyone with a unique email can create an account.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
	}
	user.InitTimestamps(userID)

	if err := s.store.CreateUser(ctx, user); err != nil {
		if domainerrors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("an account with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("User registered", "user_id", user.ID)

	session, err := s.sessionService.CreateSession(ctx, user, auth.ClientInfo{
		Name:      req.ClientName,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

// Login authenticates a user with email and password.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		// Don't reveal whether the email exists.
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil || !ok {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	// Best effort, a failed timestamp update shouldn't block login.
	user.LastLoginAt = time.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.logger.Warn("Failed to update last login time", "user_id", user.ID, "error", err)
	}

	session, err := s.sessionService.CreateSession(ctx, user, auth.ClientInfo{
		Name:      req.ClientName,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("User logged in", "user_id", user.ID)

	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

// VerifyToken validates an access token and loads the authenticated user.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, err := s.tokenService.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid or expired token").WithCause(err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, domainerrors.Unauthorized("user not found").WithCause(err)
	}

	return user, nil
}
