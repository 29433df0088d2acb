package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicedock/devicedock-server/internal/domain"
	domainerrors "github.com/devicedock/devicedock-server/internal/errors"
)

func TestCreateDevice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")

	device, err := env.devices.Create(ctx, owner.ID, CreateDeviceRequest{
		Name:        "  Greenhouse Hub  ",
		Description: "Monitors the greenhouse",
		Tags:        []string{"outdoor", "solar"},
		Sensors:     []string{"temperature"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Greenhouse Hub", device.Name, "name should be trimmed")
	assert.Equal(t, owner.ID, device.OwnerID)
	require.Len(t, device.Tags, 2)
	require.Len(t, device.Sensors, 1)
	assert.Equal(t, "temperature", device.Sensors[0].Name)
}

func TestCreateDevice_EmptyName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")

	_, err := env.devices.Create(ctx, owner.ID, CreateDeviceRequest{Name: "   "})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestCreateDevice_EmptyTagName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")

	_, err := env.devices.Create(ctx, owner.ID, CreateDeviceRequest{
		Name: "Hub",
		Tags: []string{"outdoor", "  "},
	})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestCreateDevice_SharedVocabulary(t *testing.T) {
	env := newTestEnv(t)

	alice := registerUser(t, env, "alice@example.com")
	bob := registerUser(t, env, "bob@example.com")

	d1 := createDevice(t, env, alice.ID, "Hub A", []string{"outdoor"}, nil)
	d2 := createDevice(t, env, bob.ID, "Hub B", []string{"outdoor"}, nil)

	// Both devices reference the same tag row.
	assert.Equal(t, d1.Tags[0].ID, d2.Tags[0].ID)
}

func TestGetDevice_Ownership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := registerUser(t, env, "alice@example.com")
	bob := registerUser(t, env, "bob@example.com")

	device := createDevice(t, env, alice.ID, "Hub", nil, nil)

	_, err := env.devices.Get(ctx, alice.ID, device.ID)
	require.NoError(t, err)

	_, err = env.devices.Get(ctx, bob.ID, device.ID)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrForbidden))

	_, err = env.devices.Get(ctx, alice.ID, "dev-missing")
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestListDevices_Filters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")

	hub := createDevice(t, env, owner.ID, "Hub", []string{"outdoor", "solar"}, []string{"temperature"})
	cam := createDevice(t, env, owner.ID, "Cam", []string{"outdoor"}, []string{"motion"})
	bare := createDevice(t, env, owner.ID, "Bare", nil, nil)

	// No filters returns everything in creation order.
	all, err := env.devices.List(ctx, owner.ID, DeviceQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{hub.ID, cam.ID, bare.ID}, ids(all))

	// OR within a category.
	got, err := env.devices.List(ctx, owner.ID, DeviceQuery{Tags: []string{"solar", "missing"}})
	require.NoError(t, err)
	assert.Equal(t, []string{hub.ID}, ids(got))

	// AND across categories.
	got, err = env.devices.List(ctx, owner.ID, DeviceQuery{
		Tags:    []string{"outdoor"},
		Sensors: []string{"motion"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{cam.ID}, ids(got))

	// Filter values are trimmed before matching.
	got, err = env.devices.List(ctx, owner.ID, DeviceQuery{Tags: []string{" solar "}})
	require.NoError(t, err)
	assert.Equal(t, []string{hub.ID}, ids(got))
}

func TestListDevices_OwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := registerUser(t, env, "alice@example.com")
	bob := registerUser(t, env, "bob@example.com")

	mine := createDevice(t, env, alice.ID, "Mine", []string{"outdoor"}, nil)
	createDevice(t, env, bob.ID, "Theirs", []string{"outdoor"}, nil)

	got, err := env.devices.List(ctx, alice.ID, DeviceQuery{Tags: []string{"outdoor"}})
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, ids(got))
}

func TestUpdateDevice_ReplacesAssociations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	device := createDevice(t, env, owner.ID, "Hub", []string{"outdoor", "solar"}, nil)

	name := "Hub v2"
	tags := []string{"indoor"}
	updated, err := env.devices.Update(ctx, owner.ID, device.ID, UpdateDeviceRequest{
		Name: &name,
		Tags: &tags,
	})
	require.NoError(t, err)

	assert.Equal(t, "Hub v2", updated.Name)
	require.Len(t, updated.Tags, 1)
	assert.Equal(t, "indoor", updated.Tags[0].Name)

	// Detached tags survive in the vocabulary.
	all, err := env.tags.List(ctx, owner.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateDevice_ClearAssociations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	device := createDevice(t, env, owner.ID, "Hub", []string{"outdoor"}, []string{"temperature"})

	empty := []string{}
	updated, err := env.devices.Update(ctx, owner.ID, device.ID, UpdateDeviceRequest{
		Tags:    &empty,
		Sensors: &empty,
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Tags)
	assert.Empty(t, updated.Sensors)
}

func TestUpdateDevice_FailureLeavesAssociationsIntact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	device := createDevice(t, env, owner.ID, "Hub", []string{"alpha"}, nil)

	// The tag replacement is valid on its own, but the blank sensor name
	// fails validation. Nothing from this request may stick.
	tags := []string{"beta"}
	sensors := []string{"  "}
	_, err := env.devices.Update(ctx, owner.ID, device.ID, UpdateDeviceRequest{
		Tags:    &tags,
		Sensors: &sensors,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	got, err := env.devices.Get(ctx, owner.ID, device.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "alpha", got.Tags[0].Name, "failed update must not replace the tag set")
	assert.Empty(t, got.Sensors)
}

func TestUpdateDevice_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := registerUser(t, env, "alice@example.com")
	bob := registerUser(t, env, "bob@example.com")
	device := createDevice(t, env, alice.ID, "Hub", nil, nil)

	name := "Hijacked"
	_, err := env.devices.Update(ctx, bob.ID, device.ID, UpdateDeviceRequest{Name: &name})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrForbidden))
}

func TestDeleteDevice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	device := createDevice(t, env, owner.ID, "Hub", []string{"outdoor"}, []string{"temperature"})

	img, err := env.images.Upload(ctx, owner.ID, device.ID, testJPEG(t))
	require.NoError(t, err)
	require.True(t, env.storage.Exists(img.ID))

	require.NoError(t, env.devices.Delete(ctx, owner.ID, device.ID))

	_, err = env.devices.Get(ctx, owner.ID, device.ID)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	// Image files are cleaned up with the device.
	assert.False(t, env.storage.Exists(img.ID))

	// Vocabulary is untouched by device deletion.
	tags, err := env.tags.List(ctx, owner.ID, false)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
	sensors, err := env.sensors.List(ctx, owner.ID, false)
	require.NoError(t, err)
	assert.Len(t, sensors, 1)
}

func TestAttachDetachTag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	device := createDevice(t, env, owner.ID, "Hub", nil, nil)

	tag, err := env.devices.AttachTag(ctx, owner.ID, device.ID, "outdoor")
	require.NoError(t, err)

	// Attaching again is a no-op.
	again, err := env.devices.AttachTag(ctx, owner.ID, device.ID, "outdoor")
	require.NoError(t, err)
	assert.Equal(t, tag.ID, again.ID)

	got, err := env.devices.Get(ctx, owner.ID, device.ID)
	require.NoError(t, err)
	assert.Len(t, got.Tags, 1)

	require.NoError(t, env.devices.DetachTag(ctx, owner.ID, device.ID, "outdoor"))

	got, err = env.devices.Get(ctx, owner.ID, device.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	// Unknown tag names are a not found error.
	err = env.devices.DetachTag(ctx, owner.ID, device.ID, "never-created")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestAttachTag_EmptyName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	device := createDevice(t, env, owner.ID, "Hub", nil, nil)

	_, err := env.devices.AttachTag(ctx, owner.ID, device.ID, "   ")
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestAttachSensor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerUser(t, env, "alice@example.com")
	device := createDevice(t, env, owner.ID, "Hub", nil, nil)

	_, err := env.devices.AttachSensor(ctx, owner.ID, device.ID, "humidity")
	require.NoError(t, err)

	got, err := env.devices.Get(ctx, owner.ID, device.ID)
	require.NoError(t, err)
	require.Len(t, got.Sensors, 1)
	assert.Equal(t, "humidity", got.Sensors[0].Name)

	require.NoError(t, env.devices.DetachSensor(ctx, owner.ID, device.ID, "humidity"))

	// The sensor survives in the vocabulary.
	sensors, err := env.sensors.List(ctx, owner.ID, false)
	require.NoError(t, err)
	assert.Len(t, sensors, 1)
}

func TestTagList_AssignedOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := registerUser(t, env, "alice@example.com")
	bob := registerUser(t, env, "bob@example.com")

	createDevice(t, env, alice.ID, "Hub", []string{"outdoor"}, nil)
	createDevice(t, env, bob.ID, "Cam", []string{"indoor"}, nil)

	// Everyone sees the full vocabulary.
	all, err := env.tags.List(ctx, alice.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// assignedOnly restricts to the caller's own devices.
	mine, err := env.tags.List(ctx, alice.ID, true)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "outdoor", mine[0].Name)
	assert.Equal(t, 1, mine[0].DeviceCount)
}

func ids(devices []*domain.Device) []string {
	out := make([]string, len(devices))
	for i, d := range devices {
		out[i] = d.ID
	}
	return out
}
