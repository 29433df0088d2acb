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

// tagColumns is the ordered list of columns selected in tag queries.
// Must match the scan order in scanTag.
const tagColumns = `id, name, created_at, updated_at`

// scanTag scans a sql.Row (or sql.Rows via its Scan method) into a domain.Tag.
// DeviceCount is left as 0; list queries compute it separately.
func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var t domain.Tag

	var (
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&t.ID,
		&t.Name,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	t.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// CreateTag inserts a new tag into the database.
// Returns store.ErrAlreadyExists on duplicate name.
func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		t.ID,
		t.Name,
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetTagByID retrieves a tag by its ID.
// Returns store.ErrNotFound if the tag does not exist.
func (s *Store) GetTagByID(ctx context.Context, tagID string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = ?`, tagID)

	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTagByName retrieves a tag by its exact, case-sensitive name.
// Returns store.ErrNotFound if the tag does not exist.
func (s *Store) GetTagByName(ctx context.Context, name string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE name = ?`, name)

	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FindOrCreateTagByName finds an existing tag by name or creates a new one.
// Returns (tag, created, error) where created is true if a new tag was made.
// Safe under concurrent callers: the UNIQUE constraint on name resolves
// races, and the losing writer falls back to a lookup.
func (s *Store) FindOrCreateTagByName(ctx context.Context, name string) (*domain.Tag, bool, error) {
	// Try to find existing tag first.
	existing, err := s.GetTagByName(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if err != store.ErrNotFound {
		return nil, false, err
	}

	// Tag doesn't exist, create it.
	tagID, err := id.Generate(id.PrefixTag)
	if err != nil {
		return nil, false, fmt.Errorf("generate tag id: %w", err)
	}

	now := time.Now().UTC()
	t := &domain.Tag{
		ID:        tagID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.CreateTag(ctx, t); err != nil {
		if err == store.ErrAlreadyExists {
			// Race: another request created it between lookup and insert.
			existing, err := s.GetTagByName(ctx, name)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	return t, true, nil
}

// ListTags returns all tags ordered by name, with DeviceCount computed
// against the given owner's devices. When assignedOnly is true, only tags
// attached to at least one of the owner's devices are returned.
func (s *Store) ListTags(ctx context.Context, ownerID string, assignedOnly bool) ([]*domain.Tag, error) {
	query := `
		SELECT t.id, t.name, t.created_at, t.updated_at,
			(SELECT COUNT(*)
			 FROM device_tags dt
			 JOIN devices d ON d.id = dt.device_id
			 WHERE dt.tag_id = t.id AND d.owner_id = ?) AS device_count
		FROM tags t`
	args := []any{ownerID}

	if assignedOnly {
		query += `
		WHERE EXISTS (
			SELECT 1 FROM device_tags dt
			JOIN devices d ON d.id = dt.device_id
			WHERE dt.tag_id = t.id AND d.owner_id = ?)`
		args = append(args, ownerID)
	}

	query += ` ORDER BY t.name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*domain.Tag
	for rows.Next() {
		var t domain.Tag
		var createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Name, &createdAt, &updatedAt, &t.DeviceCount); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if tags == nil {
		tags = []*domain.Tag{}
	}
	return tags, nil
}

// AttachDeviceTag links a tag to a device. Idempotent: attaching an
// already-attached tag is a no-op.
func (s *Store) AttachDeviceTag(ctx context.Context, deviceID, tagID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO device_tags (device_id, tag_id, created_at)
		VALUES (?, ?, ?)`,
		deviceID,
		tagID,
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

// DetachDeviceTag removes the link between a device and a tag.
// Idempotent: detaching an unattached tag is a no-op.
// The tag row itself is never deleted.
func (s *Store) DetachDeviceTag(ctx context.Context, deviceID, tagID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM device_tags WHERE device_id = ? AND tag_id = ?`, deviceID, tagID)
	return err
}

// GetDeviceTags returns the tags attached to a device, ordered by name.
func (s *Store) GetDeviceTags(ctx context.Context, deviceID string) ([]domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at, t.updated_at
		FROM tags t
		JOIN device_tags dt ON dt.tag_id = t.id
		WHERE dt.device_id = ?
		ORDER BY t.name ASC`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("query device_tags: %w", err)
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if tags == nil {
		tags = []domain.Tag{}
	}
	return tags, nil
}

