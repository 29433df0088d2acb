package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/devicedock/devicedock-server/internal/domain"
	"github.com/devicedock/devicedock-server/internal/store"
)

// imageColumns is the ordered list of columns selected in image queries.
// Must match the scan order in scanImage.
const imageColumns = `id, device_id, path, blurhash, width, height, size_bytes, created_at`

// scanImage scans a sql.Row (or sql.Rows via its Scan method) into a domain.Image.
func scanImage(scanner interface{ Scan(dest ...any) error }) (*domain.Image, error) {
	var img domain.Image

	var createdAt string

	err := scanner.Scan(
		&img.ID,
		&img.DeviceID,
		&img.Path,
		&img.Blurhash,
		&img.Width,
		&img.Height,
		&img.SizeBytes,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	img.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &img, nil
}

// CreateImage inserts a new image row.
// Returns store.ErrNotFound if the referenced device no longer exists.
func (s *Store) CreateImage(ctx context.Context, img *domain.Image) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, device_id, path, blurhash, width, height, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		img.ID,
		img.DeviceID,
		img.Path,
		img.Blurhash,
		img.Width,
		img.Height,
		img.SizeBytes,
		formatTime(img.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

// GetImage retrieves an image by ID.
// Returns store.ErrNotFound if the image does not exist.
func (s *Store) GetImage(ctx context.Context, id string) (*domain.Image, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id = ?`, id)

	img, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

// GetDeviceImages returns all images attached to a device, oldest first.
func (s *Store) GetDeviceImages(ctx context.Context, deviceID string) ([]domain.Image, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE device_id = ? ORDER BY created_at ASC, id ASC`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []domain.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if images == nil {
		images = []domain.Image{}
	}
	return images, nil
}

// DeleteImage removes an image row by ID.
// Returns store.ErrNotFound if the image does not exist.
func (s *Store) DeleteImage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
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
