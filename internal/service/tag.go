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

// TagService exposes the shared tag vocabulary.
// Tags are global: any user can create and reference them, but device
// counts are always computed against the requesting user's devices.
type TagService struct {
	store  *sqlite.Store
	logger *slog.Logger
}

// NewTagService creates a new tag vocabulary service.
func NewTagService(store *sqlite.Store, logger *slog.Logger) *TagService {
	return &TagService{store: store, logger: logger}
}

// List returns tags ordered by name. With assignedOnly set, only tags
// attached to at least one of the user's devices are returned.
func (s *TagService) List(ctx context.Context, ownerID string, assignedOnly bool) ([]*domain.Tag, error) {
	tags, err := s.store.ListTags(ctx, ownerID, assignedOnly)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// GetOrCreate resolves a tag name, creating the tag if it doesn't exist.
// Returns the tag and whether it was newly created.
func (s *TagService) GetOrCreate(ctx context.Context, name string) (*domain.Tag, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, domainerrors.Validation("tag name cannot be empty")
	}

	tag, created, err := s.store.FindOrCreateTagByName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("find or create tag: %w", err)
	}
	if created {
		s.logger.Info("Tag created", "tag_id", tag.ID, "name", tag.Name)
	}
	return tag, created, nil
}
