package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/devicedock/devicedock-server/internal/domain"
	"github.com/devicedock/devicedock-server/internal/store"
)

// deviceColumns is the ordered list of columns selected in device queries.
// Must match the scan order in scanDevice.
const deviceColumns = `id, owner_id, name, description, created_at, updated_at`

// scanDevice scans a sql.Row (or sql.Rows via its Scan method) into a domain.Device.
// Tags, Sensors and Images are not loaded here.
func scanDevice(scanner interface{ Scan(dest ...any) error }) (*domain.Device, error) {
	var d domain.Device

	var (
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&d.ID,
		&d.OwnerID,
		&d.Name,
		&d.Description,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	d.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &d, nil
}

// CreateDevice inserts a new device together with its initial tag and sensor
// associations in a single transaction. Either everything becomes visible
// at once or nothing does.
func (s *Store) CreateDevice(ctx context.Context, d *domain.Device, tagIDs, sensorIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (id, owner_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.OwnerID,
		d.Name,
		d.Description,
		formatTime(d.CreatedAt),
		formatTime(d.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}

	now := formatTime(time.Now().UTC())
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO device_tags (device_id, tag_id, created_at)
			VALUES (?, ?, ?)`, d.ID, tagID, now); err != nil {
			return fmt.Errorf("insert device_tag: %w", err)
		}
	}
	for _, sensorID := range sensorIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO device_sensors (device_id, sensor_id, created_at)
			VALUES (?, ?, ?)`, d.ID, sensorID, now); err != nil {
			return fmt.Errorf("insert device_sensor: %w", err)
		}
	}

	return tx.Commit()
}

// GetDevice retrieves a device by ID without loading associations.
// Returns store.ErrNotFound if the device does not exist.
func (s *Store) GetDevice(ctx context.Context, id string) (*domain.Device, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)

	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDevice updates a device's name, description and updated_at.
// Returns store.ErrNotFound if the device does not exist.
func (s *Store) UpdateDevice(ctx context.Context, d *domain.Device) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE devices
		SET name = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		d.Name,
		d.Description,
		formatTime(d.UpdatedAt),
		d.ID,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateDeviceWithAssociations updates a device's row and optionally
// replaces its tag and sensor association sets, all in one transaction.
// A nil ID slice leaves that category untouched; an empty slice clears it.
// Either every change becomes visible at once or none does.
// Returns store.ErrNotFound if the device does not exist.
func (s *Store) UpdateDeviceWithAssociations(ctx context.Context, d *domain.Device, tagIDs, sensorIDs *[]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE devices
		SET name = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		d.Name,
		d.Description,
		formatTime(d.UpdatedAt),
		d.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	now := formatTime(time.Now().UTC())

	if tagIDs != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM device_tags WHERE device_id = ?`, d.ID); err != nil {
			return fmt.Errorf("delete device_tags: %w", err)
		}
		for _, tagID := range *tagIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO device_tags (device_id, tag_id, created_at)
				VALUES (?, ?, ?)`, d.ID, tagID, now); err != nil {
				return fmt.Errorf("insert device_tag: %w", err)
			}
		}
	}

	if sensorIDs != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM device_sensors WHERE device_id = ?`, d.ID); err != nil {
			return fmt.Errorf("delete device_sensors: %w", err)
		}
		for _, sensorID := range *sensorIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO device_sensors (device_id, sensor_id, created_at)
				VALUES (?, ?, ?)`, d.ID, sensorID, now); err != nil {
				return fmt.Errorf("insert device_sensor: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDevice removes a device. Foreign keys cascade the deletion to the
// device's images and its tag/sensor association rows; tag and sensor rows
// themselves are left intact. Returns the paths of images that were attached
// so the caller can remove the files after commit.
// Returns store.ErrNotFound if the device does not exist.
func (s *Store) DeleteDevice(ctx context.Context, id string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT path FROM images WHERE device_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query image paths: %w", err)
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	res, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return paths, nil
}

// DeviceFilter narrows a device query. Name lists match exactly and
// case-sensitively; an empty list means the category is unconstrained.
type DeviceFilter struct {
	TagNames    []string
	SensorNames []string
}

// QueryDevices returns the devices owned by ownerID that match the filter.
// Within a category the names combine with OR; across categories with AND.
// Results are distinct by construction and ordered by creation time then ID
// for a stable, deterministic order.
func (s *Store) QueryDevices(ctx context.Context, ownerID string, filter DeviceFilter) ([]*domain.Device, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + deviceColumns + ` FROM devices WHERE owner_id = ?`)
	args := []any{ownerID}

	if len(filter.TagNames) > 0 {
		sb.WriteString(`
			AND EXISTS (
				SELECT 1 FROM device_tags dt
				JOIN tags t ON t.id = dt.tag_id
				WHERE dt.device_id = devices.id AND t.name IN (` + placeholders(len(filter.TagNames)) + `))`)
		for _, name := range filter.TagNames {
			args = append(args, name)
		}
	}

	if len(filter.SensorNames) > 0 {
		sb.WriteString(`
			AND EXISTS (
				SELECT 1 FROM device_sensors ds
				JOIN sensors sn ON sn.id = ds.sensor_id
				WHERE ds.device_id = devices.id AND sn.name IN (` + placeholders(len(filter.SensorNames)) + `))`)
		for _, name := range filter.SensorNames {
			args = append(args, name)
		}
	}

	sb.WriteString(` ORDER BY created_at ASC, id ASC`)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if devices == nil {
		devices = []*domain.Device{}
	}
	return devices, nil
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
