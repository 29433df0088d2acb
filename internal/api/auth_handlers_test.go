package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterEndpoint(t *testing.T) {
	server := setupTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":        "Alice@Example.com",
		"password":     "correct-horse-battery",
		"display_name": "Alice",
	})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	var resp AuthResponse
	env := decodeEnvelope(t, w, &resp)
	assert.True(t, env.Success)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
}

func TestRegisterEndpoint_DuplicateEmail(t *testing.T) {
	server := setupTestServer(t)
	registerTestUser(t, server, "alice@example.com")

	w := doJSON(t, server, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"password": "another-password-123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	env := decodeEnvelope(t, w, nil)
	assert.Equal(t, "ALREADY_EXISTS", env.Code)
}

func TestRegisterEndpoint_InvalidBody(t *testing.T) {
	server := setupTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "not-an-email",
		"password": "correct-horse-battery",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	env := decodeEnvelope(t, w, nil)
	assert.Equal(t, "VALIDATION", env.Code)
}

func TestLoginEndpoint(t *testing.T) {
	server := setupTestServer(t)
	registerTestUser(t, server, "alice@example.com")

	w := doJSON(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp AuthResponse
	decodeEnvelope(t, w, &resp)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLoginEndpoint_WrongPassword(t *testing.T) {
	server := setupTestServer(t)
	registerTestUser(t, server, "alice@example.com")

	w := doJSON(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password-here",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	env := decodeEnvelope(t, w, nil)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	server := setupTestServer(t)
	user := registerTestUser(t, server, "alice@example.com")

	w := doJSON(t, server, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": user.RefreshToken,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp AuthResponse
	decodeEnvelope(t, w, &resp)
	assert.NotEqual(t, user.RefreshToken, resp.RefreshToken, "refresh token should rotate")
	assert.Equal(t, user.SessionID, resp.SessionID)

	// Old token is dead after rotation.
	w = doJSON(t, server, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": user.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	server := setupTestServer(t)
	user := registerTestUser(t, server, "alice@example.com")

	w := doJSON(t, server, http.MethodPost, "/api/v1/auth/logout", "", map[string]string{
		"refresh_token": user.RefreshToken,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": user.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCurrentUserEndpoints(t *testing.T) {
	server := setupTestServer(t)
	user := registerTestUser(t, server, "alice@example.com")

	w := doJSON(t, server, http.MethodGet, "/api/v1/users/me", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var me UserResponse
	decodeEnvelope(t, w, &me)
	assert.Equal(t, user.User.ID, me.ID)

	w = doJSON(t, server, http.MethodPatch, "/api/v1/users/me", user.AccessToken, map[string]string{
		"display_name": "Alice B.",
	})
	require.Equal(t, http.StatusOK, w.Code)

	decodeEnvelope(t, w, &me)
	assert.Equal(t, "Alice B.", me.DisplayName)
}

func TestListSessionsEndpoint(t *testing.T) {
	server := setupTestServer(t)
	user := registerTestUser(t, server, "alice@example.com")

	w := doJSON(t, server, http.MethodGet, "/api/v1/users/me/sessions", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionListResponse
	decodeEnvelope(t, w, &resp)
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, user.SessionID, resp.Sessions[0].ID)
}
