package service

import (
	"bytes"
	"context"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/devicedock/devicedock-server/internal/errors"
)

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	device := createDevice(t, env, owner.ID, "Hub", nil, nil)

	img, err := env.images.Upload(ctx, owner.ID, device.ID, testJPEG(t))
	require.NoError(t, err)

	assert.Equal(t, device.ID, img.DeviceID)
	assert.Equal(t, 96, img.Width)
	assert.Equal(t, 64, img.Height)
	assert.NotEmpty(t, img.Blurhash)
	assert.Positive(t, img.SizeBytes)
	assert.True(t, env.storage.Exists(img.ID))
}

func TestUploadImage_InvalidData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	device := createDevice(t, env, owner.ID, "Hub", nil, nil)

	_, err := env.images.Upload(ctx, owner.ID, device.ID, []byte("not an image"))
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	_, err = env.images.Upload(ctx, owner.ID, device.ID, nil)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestUploadImage_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := registerUser(t, env, "alice@example.com")
	bob := registerUser(t, env, "bob@example.com")
	device := createDevice(t, env, alice.ID, "Hub", nil, nil)

	_, err := env.images.Upload(ctx, bob.ID, device.ID, testJPEG(t))
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrForbidden))
}

func TestGetImageContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	device := createDevice(t, env, owner.ID, "Hub", nil, nil)

	img, err := env.images.Upload(ctx, owner.ID, device.ID, testJPEG(t))
	require.NoError(t, err)

	meta, data, err := env.images.GetContent(ctx, owner.ID, device.ID, img.ID)
	require.NoError(t, err)
	assert.Equal(t, img.ID, meta.ID)

	// Stored bytes are valid JPEG.
	_, err = jpeg.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestGetImageContent_WrongDevice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	first := createDevice(t, env, owner.ID, "First", nil, nil)
	second := createDevice(t, env, owner.ID, "Second", nil, nil)

	img, err := env.images.Upload(ctx, owner.ID, first.ID, testJPEG(t))
	require.NoError(t, err)

	// Addressing an image through a device it doesn't belong to fails.
	_, _, err = env.images.GetContent(ctx, owner.ID, second.ID, img.ID)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestListImages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	device := createDevice(t, env, owner.ID, "Hub", nil, nil)

	first, err := env.images.Upload(ctx, owner.ID, device.ID, testJPEG(t))
	require.NoError(t, err)
	second, err := env.images.Upload(ctx, owner.ID, device.ID, testJPEG(t))
	require.NoError(t, err)

	imgs, err := env.images.List(ctx, owner.ID, device.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, first.ID, imgs[0].ID, "oldest image first")
	assert.Equal(t, second.ID, imgs[1].ID)
}

func TestDeleteImage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	device := createDevice(t, env, owner.ID, "Hub", nil, nil)

	img, err := env.images.Upload(ctx, owner.ID, device.ID, testJPEG(t))
	require.NoError(t, err)

	require.NoError(t, env.images.Delete(ctx, owner.ID, device.ID, img.ID))

	assert.False(t, env.storage.Exists(img.ID))
	imgs, err := env.images.List(ctx, owner.ID, device.ID)
	require.NoError(t, err)
	assert.Empty(t, imgs)

	// The device itself is unaffected.
	_, err = env.devices.Get(ctx, owner.ID, device.ID)
	assert.NoError(t, err)
}
