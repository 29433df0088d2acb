package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/devicedock/devicedock-server/internal/service"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated user's profile",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCurrentUser",
		Method:      http.MethodPatch,
		Path:        "/api/v1/users/me",
		Summary:     "Update current user",
		Description: "Updates the authenticated user's profile. Changing the password requires the current password.",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "listSessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me/sessions",
		Summary:     "List sessions",
		Description: "Returns the authenticated user's active sessions",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListSessions)
}

// === DTOs ===

// GetCurrentUserInput contains parameters for fetching the current user.
type GetCurrentUserInput struct {
	Authorization string `header:"Authorization"`
}

// UserOutput wraps the user response for Huma.
type UserOutput struct {
	Body UserResponse
}

// UpdateUserRequest is the request body for profile updates.
type UpdateUserRequest struct {
	DisplayName     *string `json:"display_name,omitempty" validate:"omitempty,max=100" doc:"New display name"`
	CurrentPassword *string `json:"current_password,omitempty" doc:"Current password (required when changing the password)"`
	NewPassword     *string `json:"new_password,omitempty" validate:"omitempty,min=8,max=128" doc:"New password"`
}

// UpdateUserInput wraps the profile update request for Huma.
type UpdateUserInput struct {
	Authorization string `header:"Authorization"`
	Body          UpdateUserRequest
}

// SessionInfo describes an active session in API responses.
type SessionInfo struct {
	ID         string    `json:"id" doc:"Session ID"`
	ClientName string    `json:"client_name,omitempty" doc:"Client application name"`
	IPAddress  string    `json:"ip_address,omitempty" doc:"Last known client IP"`
	CreatedAt  time.Time `json:"created_at" doc:"Session creation time"`
	LastSeenAt time.Time `json:"last_seen_at" doc:"Last activity time"`
	ExpiresAt  time.Time `json:"expires_at" doc:"Session expiry time"`
}

// SessionListResponse contains the user's active sessions.
type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions" doc:"Active sessions"`
}

// SessionListOutput wraps the session list for Huma.
type SessionListOutput struct {
	Body SessionListResponse
}

// === Handlers ===

func (s *Server) handleGetCurrentUser(ctx context.Context, input *GetCurrentUserInput) (*UserOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	user, err := s.services.User.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UserOutput{Body: mapUserResponse(user)}, nil
}

func (s *Server) handleUpdateCurrentUser(ctx context.Context, input *UpdateUserInput) (*UserOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	user, err := s.services.User.UpdateProfile(ctx, userID, service.UpdateProfileRequest{
		DisplayName:     input.Body.DisplayName,
		CurrentPassword: input.Body.CurrentPassword,
		NewPassword:     input.Body.NewPassword,
	})
	if err != nil {
		return nil, err
	}

	return &UserOutput{Body: mapUserResponse(user)}, nil
}

func (s *Server) handleListSessions(ctx context.Context, input *GetCurrentUserInput) (*SessionListOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	sessions, err := s.services.Session.ListSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]SessionInfo, len(sessions))
	for i, sess := range sessions {
		resp[i] = SessionInfo{
			ID:         sess.ID,
			ClientName: sess.ClientName,
			IPAddress:  sess.IPAddress,
			CreatedAt:  sess.CreatedAt,
			LastSeenAt: sess.LastSeenAt,
			ExpiresAt:  sess.ExpiresAt,
		}
	}

	return &SessionListOutput{Body: SessionListResponse{Sessions: resp}}, nil
}
