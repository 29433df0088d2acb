package api

import (
	"bytes"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uploadImage posts raw image bytes to a device.
func uploadImage(t *testing.T, server *Server, token, deviceID string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/"+deviceID+"/images", bytes.NewReader(data))
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func TestImageUploadAndServe(t *testing.T) {
	server := setupTestServer(t)
	user := registerTestUser(t, server, "alice@example.com")
	device := createTestDevice(t, server, user.AccessToken, "Hub", nil, nil)

	w := uploadImage(t, server, user.AccessToken, device.ID, testJPEG(t))
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	var img ImageResponse
	decodeEnvelope(t, w, &img)
	assert.Equal(t, device.ID, img.DeviceID)
	assert.Equal(t, 96, img.Width)
	assert.Equal(t, 64, img.Height)
	assert.NotEmpty(t, img.Blurhash)

	// Content endpoint streams raw JPEG, no envelope.
	w = doJSON(t, server, http.MethodGet,
		"/api/v1/devices/"+device.ID+"/images/"+img.ID+"/content", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	_, err := jpeg.Decode(bytes.NewReader(w.Body.Bytes()))
	assert.NoError(t, err)
}

func TestImageUpload_InvalidData(t *testing.T) {
	server := setupTestServer(t)
	user := registerTestUser(t, server, "alice@example.com")
	device := createTestDevice(t, server, user.AccessToken, "Hub", nil, nil)

	w := uploadImage(t, server, user.AccessToken, device.ID, []byte("not an image"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	env := decodeEnvelope(t, w, nil)
	assert.Equal(t, "VALIDATION", env.Code)
}

func TestImageUpload_Forbidden(t *testing.T) {
	server := setupTestServer(t)
	alice := registerTestUser(t, server, "alice@example.com")
	bob := registerTestUser(t, server, "bob@example.com")
	device := createTestDevice(t, server, alice.AccessToken, "Hub", nil, nil)

	w := uploadImage(t, server, bob.AccessToken, device.ID, testJPEG(t))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestImageListAndDelete(t *testing.T) {
	server := setupTestServer(t)
	user := registerTestUser(t, server, "alice@example.com")
	device := createTestDevice(t, server, user.AccessToken, "Hub", nil, nil)

	w := uploadImage(t, server, user.AccessToken, device.ID, testJPEG(t))
	require.Equal(t, http.StatusOK, w.Code)
	var img ImageResponse
	decodeEnvelope(t, w, &img)

	var list ImageListResponse
	w = doJSON(t, server, http.MethodGet, "/api/v1/devices/"+device.ID+"/images", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeEnvelope(t, w, &list)
	require.Len(t, list.Images, 1)

	w = doJSON(t, server, http.MethodDelete,
		"/api/v1/devices/"+device.ID+"/images/"+img.ID, user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodGet, "/api/v1/devices/"+device.ID+"/images", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeEnvelope(t, w, &list)
	assert.Empty(t, list.Images)
}

func TestDeviceResponseIncludesImages(t *testing.T) {
	server := setupTestServer(t)
	user := registerTestUser(t, server, "alice@example.com")
	device := createTestDevice(t, server, user.AccessToken, "Hub", nil, nil)

	w := uploadImage(t, server, user.AccessToken, device.ID, testJPEG(t))
	require.Equal(t, http.StatusOK, w.Code)

	var got DeviceResponse
	w = doJSON(t, server, http.MethodGet, "/api/v1/devices/"+device.ID, user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeEnvelope(t, w, &got)
	assert.Len(t, got.Images, 1)
}
