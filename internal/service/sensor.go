package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/devicedock/devicedock-server/internal/domain"
	domainerrors "github.com/devicedock/devicedock-server/internal/errors"
	"github.com/devicedock/devicedock-server/internal/store/sqlite"
)

// SensorService exposes the shared sensor vocabulary, the sensor
// counterpart of TagService.
type SensorService struct {
	store  *sqlite.Store
	logger *slog.Logger
}

// NewSensorService creates a new sensor vocabulary service.
func NewSensorService(store *sqlite.Store, logger *slog.Logger) *SensorService {
	return &SensorService{store: store, logger: logger}
}

// List returns sensors ordered by name. With assignedOnly set, only
// sensors attached to at least one of the user's devices are returned.
func (s *SensorService) List(ctx context.Context, ownerID string, assignedOnly bool) ([]*domain.Sensor, error) {
	sensors, err := s.store.ListSensors(ctx, ownerID, assignedOnly)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	return sensors, nil
}

// GetOrCreate resolves a sensor name, creating the sensor if it doesn't
// exist. Returns the sensor and whether it was newly created.
func (s *SensorService) GetOrCreate(ctx context.Context, name string) (*domain.Sensor, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, domainerrors.Validation("sensor name cannot be empty")
	}

	sensor, created, err := s.store.FindOrCreateSensorByName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("find or create sensor: %w", err)
	}
	if created {
		s.logger.Info("Sensor created", "sensor_id", sensor.ID, "name", sensor.Name)
	}
	return sensor, created, nil
}
