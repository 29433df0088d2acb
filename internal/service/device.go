package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/devicedock/devicedock-server/internal/domain"
	domainerrors "github.com/devicedock/devicedock-server/internal/errors"
	"github.com/devicedock/devicedock-server/internal/id"
	"github.com/devicedock/devicedock-server/internal/media/images"
	"github.com/devicedock/devicedock-server/internal/store"
	"github.com/devicedock/devicedock-server/internal/store/sqlite"
	"github.com/devicedock/devicedock-server/internal/validation"
)

// DeviceService handles device management for authenticated users.
// Every operation is scoped to the requesting user: devices belong to
// exactly one owner and are invisible to everyone else.
type DeviceService struct {
	store     *sqlite.Store
	storage   *images.Storage
	validator *validation.Validator
	logger    *slog.Logger
}

// NewDeviceService creates a new device management service.
func NewDeviceService(
	store *sqlite.Store,
	storage *images.Storage,
	validator *validation.Validator,
	logger *slog.Logger,
) *DeviceService {
	return &DeviceService{
		store:     store,
		storage:   storage,
		validator: validator,
		logger:    logger,
	}
}

// CreateDeviceRequest contains the data needed to register a device.
// Tag and sensor names are resolved against the shared vocabulary,
// creating entries that don't exist yet.
type CreateDeviceRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,dive,max=100"`
	Sensors     []string `json:"sensors,omitempty" validate:"omitempty,dive,max=100"`
}

// UpdateDeviceRequest contains the updatable fields of a device.
// Nil pointers mean "leave unchanged". A non-nil Tags or Sensors slice
// replaces the full association set, an empty slice clears it.
type UpdateDeviceRequest struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Tags        *[]string `json:"tags,omitempty" validate:"omitempty,dive,max=100"`
	Sensors     *[]string `json:"sensors,omitempty" validate:"omitempty,dive,max=100"`
}

// DeviceQuery holds the optional filters for listing devices.
// Within a category names combine with OR, across categories with AND.
type DeviceQuery struct {
	Tags    []string
	Sensors []string
}

// Create registers a new device owned by the given user.
// The device row and all initial associations commit atomically.
func (s *DeviceService) Create(ctx context.Context, ownerID string, req CreateDeviceRequest) (*domain.Device, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domainerrors.Validation("device name cannot be empty")
	}

	tagIDs, err := s.resolveTagIDs(ctx, req.Tags)
	if err != nil {
		return nil, err
	}
	sensorIDs, err := s.resolveSensorIDs(ctx, req.Sensors)
	if err != nil {
		return nil, err
	}

	deviceID, err := id.Generate(id.PrefixDevice)
	if err != nil {
		return nil, fmt.Errorf("generate device ID: %w", err)
	}

	device := &domain.Device{
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
	}
	device.InitTimestamps(deviceID)

	if err := s.store.CreateDevice(ctx, device, tagIDs, sensorIDs); err != nil {
		return nil, fmt.Errorf("create device: %w", err)
	}

	s.logger.Info("Device created", "device_id", device.ID, "owner_id", ownerID)

	return s.loadAssociations(ctx, device)
}

// Get returns a device with its tags, sensors, and images.
func (s *DeviceService) Get(ctx context.Context, principalID, deviceID string) (*domain.Device, error) {
	device, err := s.requireOwner(ctx, principalID, deviceID)
	if err != nil {
		return nil, err
	}
	return s.loadAssociations(ctx, device)
}

// List returns the user's devices matching the given filters, with
// associations loaded. Devices are ordered oldest first.
func (s *DeviceService) List(ctx context.Context, ownerID string, query DeviceQuery) ([]*domain.Device, error) {
	filter := sqlite.DeviceFilter{
		TagNames:    trimNames(query.Tags),
		SensorNames: trimNames(query.Sensors),
	}

	devices, err := s.store.QueryDevices(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}

	for _, device := range devices {
		if _, err := s.loadAssociations(ctx, device); err != nil {
			return nil, err
		}
	}
	return devices, nil
}

// Update applies a partial update to a device the user owns.
func (s *DeviceService) Update(ctx context.Context, principalID, deviceID string, req UpdateDeviceRequest) (*domain.Device, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	device, err := s.requireOwner(ctx, principalID, deviceID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domainerrors.Validation("device name cannot be empty")
		}
		device.Name = name
	}
	if req.Description != nil {
		device.Description = strings.TrimSpace(*req.Description)
	}

	// Resolve every name before touching the device so a bad sensor
	// name cannot leave a half-replaced association set behind. The
	// resolved vocabulary rows persist even if the update fails, which
	// is fine: tags and sensors are shared and never rolled back.
	var tagIDs, sensorIDs *[]string
	if req.Tags != nil {
		ids, err := s.resolveTagIDs(ctx, *req.Tags)
		if err != nil {
			return nil, err
		}
		tagIDs = &ids
	}
	if req.Sensors != nil {
		ids, err := s.resolveSensorIDs(ctx, *req.Sensors)
		if err != nil {
			return nil, err
		}
		sensorIDs = &ids
	}

	device.Touch()
	if err := s.store.UpdateDeviceWithAssociations(ctx, device, tagIDs, sensorIDs); err != nil {
		return nil, fmt.Errorf("update device: %w", err)
	}

	s.logger.Info("Device updated", "device_id", device.ID)

	return s.loadAssociations(ctx, device)
}

// Delete removes a device the user owns. Images and tag/sensor
// associations go with it, but the shared tag and sensor vocabulary
// is never touched. Image files are removed after the delete commits.
func (s *DeviceService) Delete(ctx context.Context, principalID, deviceID string) error {
	device, err := s.requireOwner(ctx, principalID, deviceID)
	if err != nil {
		return err
	}

	imagePaths, err := s.store.DeleteDevice(ctx, device.ID)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}

	for _, path := range imagePaths {
		if err := s.storage.Delete(imageIDFromPath(path)); err != nil {
			// The database row is already gone, just log the orphan.
			s.logger.Warn("Failed to delete image file", "path", path, "error", err)
		}
	}

	s.logger.Info("Device deleted", "device_id", device.ID, "images_removed", len(imagePaths))
	return nil
}

// AttachTag resolves a tag name against the shared vocabulary (creating
// it if needed) and links it to the device. Attaching an already linked
// tag is a no-op.
func (s *DeviceService) AttachTag(ctx context.Context, principalID, deviceID, name string) (*domain.Tag, error) {
	device, err := s.requireOwner(ctx, principalID, deviceID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainerrors.Validation("tag name cannot be empty")
	}

	tag, created, err := s.store.FindOrCreateTagByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find or create tag: %w", err)
	}
	if err := s.store.AttachDeviceTag(ctx, device.ID, tag.ID); err != nil {
		return nil, fmt.Errorf("attach tag: %w", err)
	}

	if created {
		s.logger.Info("Tag created", "tag_id", tag.ID, "name", tag.Name)
	}
	return tag, nil
}

// DetachTag unlinks a tag from the device. The tag itself stays in the
// shared vocabulary. Unknown tag names return a not found error.
func (s *DeviceService) DetachTag(ctx context.Context, principalID, deviceID, name string) error {
	device, err := s.requireOwner(ctx, principalID, deviceID)
	if err != nil {
		return err
	}

	tag, err := s.store.GetTagByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if domainerrors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("tag not found")
		}
		return fmt.Errorf("get tag: %w", err)
	}

	if err := s.store.DetachDeviceTag(ctx, device.ID, tag.ID); err != nil {
		return fmt.Errorf("detach tag: %w", err)
	}
	return nil
}

// AttachSensor resolves a sensor name against the shared vocabulary
// (creating it if needed) and links it to the device.
func (s *DeviceService) AttachSensor(ctx context.Context, principalID, deviceID, name string) (*domain.Sensor, error) {
	device, err := s.requireOwner(ctx, principalID, deviceID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainerrors.Validation("sensor name cannot be empty")
	}

	sensor, created, err := s.store.FindOrCreateSensorByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find or create sensor: %w", err)
	}
	if err := s.store.AttachDeviceSensor(ctx, device.ID, sensor.ID); err != nil {
		return nil, fmt.Errorf("attach sensor: %w", err)
	}

	if created {
		s.logger.Info("Sensor created", "sensor_id", sensor.ID, "name", sensor.Name)
	}
	return sensor, nil
}

// DetachSensor unlinks a sensor from the device. The sensor itself
// stays in the shared vocabulary.
func (s *DeviceService) DetachSensor(ctx context.Context, principalID, deviceID, name string) error {
	device, err := s.requireOwner(ctx, principalID, deviceID)
	if err != nil {
		return err
	}

	sensor, err := s.store.GetSensorByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if domainerrors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("sensor not found")
		}
		return fmt.Errorf("get sensor: %w", err)
	}

	if err := s.store.DetachDeviceSensor(ctx, device.ID, sensor.ID); err != nil {
		return fmt.Errorf("detach sensor: %w", err)
	}
	return nil
}

// ListTags returns the tags attached to a device the user owns.
func (s *DeviceService) ListTags(ctx context.Context, principalID, deviceID string) ([]domain.Tag, error) {
	device, err := s.requireOwner(ctx, principalID, deviceID)
	if err != nil {
		return nil, err
	}

	tags, err := s.store.GetDeviceTags(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("load device tags: %w", err)
	}
	return tags, nil
}

// ListSensors returns the sensors attached to a device the user owns.
func (s *DeviceService) ListSensors(ctx context.Context, principalID, deviceID string) ([]domain.Sensor, error) {
	device, err := s.requireOwner(ctx, principalID, deviceID)
	if err != nil {
		return nil, err
	}

	sensors, err := s.store.GetDeviceSensors(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("load device sensors: %w", err)
	}
	return sensors, nil
}

// requireOwner loads a device and checks that the principal owns it.
// Missing devices return a not found error, foreign devices a forbidden
// error. The device exists either way, so hiding it behind 404 would
// only confuse owners with stale links.
func (s *DeviceService) requireOwner(ctx context.Context, principalID, deviceID string) (*domain.Device, error) {
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		if domainerrors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("device not found")
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	if device.OwnerID != principalID {
		return nil, domainerrors.Forbidden("you do not own this device")
	}
	return device, nil
}

// loadAssociations populates a device's tags, sensors, and images.
func (s *DeviceService) loadAssociations(ctx context.Context, device *domain.Device) (*domain.Device, error) {
	tags, err := s.store.GetDeviceTags(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("load device tags: %w", err)
	}
	sensors, err := s.store.GetDeviceSensors(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("load device sensors: %w", err)
	}
	imgs, err := s.store.GetDeviceImages(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("load device images: %w", err)
	}

	device.Tags = tags
	device.Sensors = sensors
	device.Images = imgs
	return device, nil
}

// resolveTagIDs maps tag names to IDs via get-or-create, rejecting
// empty names. Duplicate names collapse to a single ID.
func (s *DeviceService) resolveTagIDs(ctx context.Context, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, domainerrors.Validation("tag name cannot be empty")
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		tag, _, err := s.store.FindOrCreateTagByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("find or create tag %q: %w", name, err)
		}
		ids = append(ids, tag.ID)
	}
	return ids, nil
}

// resolveSensorIDs maps sensor names to IDs via get-or-create,
// rejecting empty names.
func (s *DeviceService) resolveSensorIDs(ctx context.Context, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, domainerrors.Validation("sensor name cannot be empty")
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		sensor, _, err := s.store.FindOrCreateSensorByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("find or create sensor %q: %w", name, err)
		}
		ids = append(ids, sensor.ID)
	}
	return ids, nil
}

// trimNames trims whitespace and drops empty entries from a filter list.
func trimNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// imageIDFromPath recovers the image ID from a stored relative path
// like "images/img-abc123.jpg".
func imageIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
