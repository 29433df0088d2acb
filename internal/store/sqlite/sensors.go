package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/devicedock/devicedock-server/internal/domain"
	"github.com/devicedock/devicedock-server/internal/id"
	"github.com/devicedock/devicedock-server/internal/store"
)

// sensorColumns is the ordered list of columns selected in sensor queries.
// Must match the scan order in scanSensor.
const sensorColumns = `id, name, created_at, updated_at`

// scanSensor scans a sql.Row (or sql.Rows via its Scan method) into a domain.Sensor.
func scanSensor(scanner interface{ Scan(dest ...any) error }) (*domain.Sensor, error) {
	var sn domain.Sensor

	var (
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&sn.ID,
		&sn.Name,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	sn.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	sn.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &sn, nil
}

// CreateSensor inserts a new sensor into the database.
// Returns store.ErrAlreadyExists on duplicate name.
func (s *Store) CreateSensor(ctx context.Context, sn *domain.Sensor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sensors (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		sn.ID,
		sn.Name,
		formatTime(sn.CreatedAt),
		formatTime(sn.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetSensorByID retrieves a sensor by its ID.
// Returns store.ErrNotFound if the sensor does not exist.
func (s *Store) GetSensorByID(ctx context.Context, sensorID string) (*domain.Sensor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sensorColumns+` FROM sensors WHERE id = ?`, sensorID)

	sn, err := scanSensor(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sn, nil
}

// GetSensorByName retrieves a sensor by its exact, case-sensitive name.
// Returns store.ErrNotFound if the sensor does not exist.
func (s *Store) GetSensorByName(ctx context.Context, name string) (*domain.Sensor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sensorColumns+` FROM sensors WHERE name = ?`, name)

	sn, err := scanSensor(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sn, nil
}

// FindOrCreateSensorByName finds an existing sensor by name or creates a new one.
// Returns (sensor, created, error) where created is true if a new sensor was made.
// Safe under concurrent callers: the UNIQUE constraint on name resolves
// races, and the losing writer falls back to a lookup.
func (s *Store) FindOrCreateSensorByName(ctx context.Context, name string) (*domain.Sensor, bool, error) {
	existing, err := s.GetSensorByName(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if err != store.ErrNotFound {
		return nil, false, err
	}

	sensorID, err := id.Generate(id.PrefixSensor)
	if err != nil {
		return nil, false, fmt.Errorf("generate sensor id: %w", err)
	}

	now := time.Now().UTC()
	sn := &domain.Sensor{
		ID:        sensorID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.CreateSensor(ctx, sn); err != nil {
		if err == store.ErrAlreadyExists {
			// Race: another request created it between lookup and insert.
			existing, err := s.GetSensorByName(ctx, name)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	return sn, true, nil
}

// ListSensors returns all sensors ordered by name, with DeviceCount computed
// against the given owner's devices. When assignedOnly is true, only sensors
// attached to at least one of the owner's devices are returned.
func (s *Store) ListSensors(ctx context.Context, ownerID string, assignedOnly bool) ([]*domain.Sensor, error) {
	query := `
		SELECT sn.id, sn.name, sn.created_at, sn.updated_at,
			(SELECT COUNT(*)
			 FROM device_sensors ds
			 JOIN devices d ON d.id = ds.device_id
			 WHERE ds.sensor_id = sn.id AND d.owner_id = ?) AS device_count
		FROM sensors sn`
	args := []any{ownerID}

	if assignedOnly {
		query += `
		WHERE EXISTS (
			SELECT 1 FROM device_sensors ds
			JOIN devices d ON d.id = ds.device_id
			WHERE ds.sensor_id = sn.id AND d.owner_id = ?)`
		args = append(args, ownerID)
	}

	query += ` ORDER BY sn.name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sensors []*domain.Sensor
	for rows.Next() {
		var sn domain.Sensor
		var createdAt, updatedAt string
		if err := rows.Scan(&sn.ID, &sn.Name, &createdAt, &updatedAt, &sn.DeviceCount); err != nil {
			return nil, err
		}
		if sn.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if sn.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		sensors = append(sensors, &sn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if sensors == nil {
		sensors = []*domain.Sensor{}
	}
	return sensors, nil
}

// AttachDeviceSensor links a sensor to a device. Idempotent: attaching an
// already-attached sensor is a no-op.
func (s *Store) AttachDeviceSensor(ctx context.Context, deviceID, sensorID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO device_sensors (device_id, sensor_id, created_at)
		VALUES (?, ?, ?)`,
		deviceID,
		sensorID,
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		// FK violation means the device vanished under us (concurrent delete).
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

// DetachDeviceSensor removes the link between a device and a sensor.
// Idempotent: detaching an unattached sensor is a no-op.
// The sensor row itself is never deleted.
func (s *Store) DetachDeviceSensor(ctx context.Context, deviceID, sensorID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM device_sensors WHERE device_id = ? AND sensor_id = ?`, deviceID, sensorID)
	return err
}

// GetDeviceSensors returns the sensors attached to a device, ordered by name.
func (s *Store) GetDeviceSensors(ctx context.Context, deviceID string) ([]domain.Sensor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sn.id, sn.name, sn.created_at, sn.updated_at
		FROM sensors sn
		JOIN device_sensors ds ON ds.sensor_id = sn.id
		WHERE ds.device_id = ?
		ORDER BY sn.name ASC`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("query device_sensors: %w", err)
	}
	defer rows.Close()

	var sensors []domain.Sensor
	for rows.Next() {
		sn, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, *sn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if sensors == nil {
		sensors = []domain.Sensor{}
	}
	return sensors, nil
}

