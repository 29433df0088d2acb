package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devicedock/devicedock-server/internal/domain"
	domainerrors "github.com/devicedock/devicedock-server/internal/errors"
	"github.com/devicedock/devicedock-server/internal/id"
	"github.com/devicedock/devicedock-server/internal/media/images"
	"github.com/devicedock/devicedock-server/internal/store"
	"github.com/devicedock/devicedock-server/internal/store/sqlite"
)

// maxImageSize caps uploads at 10 MiB before decoding.
const maxImageSize = 10 << 20

// ImageService handles device image uploads and retrieval.
// Uploads are normalized to JPEG and stored on disk, with metadata
// (dimensions, BlurHash placeholder) persisted alongside the device.
type ImageService struct {
	store     *sqlite.Store
	storage   *images.Storage
	processor *images.Processor
	logger    *slog.Logger
}

// NewImageService creates a new device image service.
func NewImageService(
	store *sqlite.Store,
	storage *images.Storage,
	processor *images.Processor,
	logger *slog.Logger,
) *ImageService {
	return &ImageService{
		store:     store,
		storage:   storage,
		processor: processor,
		logger:    logger,
	}
}

// Upload processes raw image bytes and attaches the result to a device
// the user owns.
func (s *ImageService) Upload(ctx context.Context, principalID, deviceID string, data []byte) (*domain.Image, error) {
	device, err := s.deviceForOwner(ctx, principalID, deviceID)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, domainerrors.Validation("image data cannot be empty")
	}
	if len(data) > maxImageSize {
		return nil, domainerrors.Validation("image exceeds the maximum size of 10MB")
	}

	processed, err := s.processor.Process(data)
	if err != nil {
		return nil, domainerrors.Validation("unsupported or corrupt image data").WithCause(err)
	}

	imageID, err := id.Generate(id.PrefixImage)
	if err != nil {
		return nil, fmt.Errorf("generate image ID: %w", err)
	}

	if err := s.storage.Save(imageID, processed.JPEG); err != nil {
		return nil, fmt.Errorf("save image file: %w", err)
	}

	img := &domain.Image{
		ID:        imageID,
		DeviceID:  device.ID,
		Path:      s.storage.RelativePath(imageID),
		Blurhash:  processed.Blurhash,
		Width:     processed.Width,
		Height:    processed.Height,
		SizeBytes: int64(len(processed.JPEG)),
		CreatedAt: time.Now(),
	}

	if err := s.store.CreateImage(ctx, img); err != nil {
		// Don't leave an orphaned file behind.
		if cleanupErr := s.storage.Delete(imageID); cleanupErr != nil {
			s.logger.Warn("Failed to clean up image file", "image_id", imageID, "error", cleanupErr)
		}
		return nil, fmt.Errorf("save image metadata: %w", err)
	}

	s.logger.Info("Image uploaded",
		"image_id", img.ID,
		"device_id", device.ID,
		"bytes", img.SizeBytes,
	)
	return img, nil
}

// List returns the metadata of all images attached to a device the
// user owns, oldest first.
func (s *ImageService) List(ctx context.Context, principalID, deviceID string) ([]domain.Image, error) {
	device, err := s.deviceForOwner(ctx, principalID, deviceID)
	if err != nil {
		return nil, err
	}

	imgs, err := s.store.GetDeviceImages(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return imgs, nil
}

// GetContent returns an image's metadata and its JPEG bytes.
func (s *ImageService) GetContent(ctx context.Context, principalID, deviceID, imageID string) (*domain.Image, []byte, error) {
	img, err := s.imageForOwner(ctx, principalID, deviceID, imageID)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.storage.Get(img.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("read image file: %w", err)
	}
	return img, data, nil
}

// Delete removes an image from a device the user owns. The database
// row goes first, then the file.
func (s *ImageService) Delete(ctx context.Context, principalID, deviceID, imageID string) error {
	img, err := s.imageForOwner(ctx, principalID, deviceID, imageID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteImage(ctx, img.ID); err != nil {
		return fmt.Errorf("delete image metadata: %w", err)
	}
	if err := s.storage.Delete(img.ID); err != nil {
		s.logger.Warn("Failed to delete image file", "image_id", img.ID, "error", err)
	}

	s.logger.Info("Image deleted", "image_id", img.ID, "device_id", deviceID)
	return nil
}

// deviceForOwner loads a device and checks ownership, mirroring the
// device service's access rules.
func (s *ImageService) deviceForOwner(ctx context.Context, principalID, deviceID string) (*domain.Device, error) {
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

// imageForOwner loads an image, checking both device ownership and that
// the image actually belongs to the addressed device.
func (s *ImageService) imageForOwner(ctx context.Context, principalID, deviceID, imageID string) (*domain.Image, error) {
	device, err := s.deviceForOwner(ctx, principalID, deviceID)
	if err != nil {
		return nil, err
	}

	img, err := s.store.GetImage(ctx, imageID)
	if err != nil {
		if domainerrors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("image not found")
		}
		return nil, fmt.Errorf("get image: %w", err)
	}
	if img.DeviceID != device.ID {
		return nil, domainerrors.NotFound("image not found")
	}
	return img, nil
}
