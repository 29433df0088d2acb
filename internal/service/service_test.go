package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devicedock/devicedock-server/internal/auth"
	"github.com/devicedock/devicedock-server/internal/domain"
	"github.com/devicedock/devicedock-server/internal/media/images"
	"github.com/devicedock/devicedock-server/internal/store/sqlite"
	"github.com/devicedock/devicedock-server/internal/validation"
)

// testEnv wires all services against a temporary database and image
// directory, the same way the DI container does in production.
type testEnv struct {
	store    *sqlite.Store
	storage  *images.Storage
	auth     *AuthService
	sessions *SessionService
	users    *UserService
	devices  *DeviceService
	tags     *TagService
	sensors  *SensorService
	images   *ImageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	dataPath := t.TempDir()

	st, err := sqlite.Open(filepath.Join(dataPath, "devicedock.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tokens, err := auth.NewTokenService(strings.Repeat("ab", 32), 15*time.Minute, 720*time.Hour)
	require.NoError(t, err)

	storage, err := images.NewStorage(dataPath)
	require.NoError(t, err)

	validator := validation.New()
	sessions := NewSessionService(st, tokens, logger)
	processor := images.NewProcessor(logger)

	return &testEnv{
		store:    st,
		storage:  storage,
		auth:     NewAuthService(st, tokens, sessions, validator, logger),
		sessions: sessions,
		users:    NewUserService(st, validator, logger),
		devices:  NewDeviceService(st, storage, validator, logger),
		tags:     NewTagService(st, logger),
		sensors:  NewSensorService(st, logger),
		images:   NewImageService(st, storage, processor, logger),
	}
}

// clientInfo returns client metadata for session calls in tests.
func clientInfo() auth.ClientInfo {
	return auth.ClientInfo{Name: "test-client", UserAgent: "go-test", IPAddress: "127.0.0.1"}
}

// registerUser creates an account and returns the authenticated user.
func registerUser(t *testing.T, env *testEnv, email string) *domain.User {
	t.Helper()
	resp, err := env.auth.Register(context.Background(), RegisterRequest{
		Email:    email,
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	return resp.User
}

// createDevice registers a device with optional tag and sensor names.
func createDevice(t *testing.T, env *testEnv, ownerID, name string, tags, sensors []string) *domain.Device {
	t.Helper()
	device, err := env.devices.Create(context.Background(), ownerID, CreateDeviceRequest{
		Name:    name,
		Tags:    tags,
		Sensors: sensors,
	})
	require.NoError(t, err)
	return device
}

// testJPEG renders a small gradient and encodes it as JPEG.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 96, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 96; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 2), G: uint8(y * 3), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}
