package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/devicedock/devicedock-server/internal/domain"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns the shared tag vocabulary. Device counts are scoped to the current user's devices.",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "createTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags",
		Summary:     "Create tag",
		Description: "Resolves a tag name in the shared vocabulary, creating it if needed. Returns the existing tag when the name is already taken.",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "attachDeviceTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/devices/{id}/tags",
		Summary:     "Attach tag to device",
		Description: "Links a tag to a device by name, creating the tag if needed. Attaching an already linked tag is a no-op.",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAttachDeviceTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "listDeviceTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/devices/{id}/tags",
		Summary:     "List device tags",
		Description: "Returns the tags attached to a device you own.",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListDeviceTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "detachDeviceTag",
		Method:      http.MethodDelete,
		Path:        "/api/v1/devices/{id}/tags/{name}",
		Summary:     "Detach tag from device",
		Description: "Unlinks a tag from a device. The tag stays in the shared vocabulary.",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDetachDeviceTag)
}

// === DTOs ===

// ListTagsInput contains parameters for listing tags.
type ListTagsInput struct {
	Authorization string `header:"Authorization"`
	AssignedOnly  bool   `query:"assigned_only" doc:"Only return tags attached to at least one of your devices"`
}

// TagResponse contains tag data in API responses.
type TagResponse struct {
	ID          string    `json:"id" doc:"Tag ID"`
	Name        string    `json:"name" doc:"Tag name"`
	DeviceCount int       `json:"device_count" doc:"Number of your devices carrying this tag"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time `json:"updated_at" doc:"Last update time"`
}

// TagListResponse contains a list of tags.
type TagListResponse struct {
	Tags []TagResponse `json:"tags" doc:"Tags ordered by name"`
}

// TagListOutput wraps the tag list for Huma.
type TagListOutput struct {
	Body TagListResponse
}

// CreateTagRequest is the request body for resolving a tag name.
type CreateTagRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100" doc:"Tag name"`
}

// CreateTagInput wraps the create tag request for Huma.
type CreateTagInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateTagRequest
}

// TagOutput wraps the tag response for Huma.
type TagOutput struct {
	Body TagResponse
}

// AttachTagInput wraps the attach tag request for Huma.
type AttachTagInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
	Body          CreateTagRequest
}

// DeviceTagsInput contains parameters for listing a device's tags.
type DeviceTagsInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
}

// DetachTagInput contains parameters for detaching a tag.
type DetachTagInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
	Name          string `path:"name" doc:"Tag name"`
}

// === Handlers ===

func (s *Server) handleListTags(ctx context.Context, input *ListTagsInput) (*TagListOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	tags, err := s.services.Tag.List(ctx, userID, input.AssignedOnly)
	if err != nil {
		return nil, err
	}

	resp := make([]TagResponse, len(tags))
	for i, t := range tags {
		resp[i] = mapTagResponse(t)
	}

	return &TagListOutput{Body: TagListResponse{Tags: resp}}, nil
}

func (s *Server) handleCreateTag(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	tag, _, err := s.services.Tag.GetOrCreate(ctx, input.Body.Name)
	if err != nil {
		return nil, err
	}

	return &TagOutput{Body: mapTagResponse(tag)}, nil
}

func (s *Server) handleAttachDeviceTag(ctx context.Context, input *AttachTagInput) (*TagOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	tag, err := s.services.Device.AttachTag(ctx, userID, input.ID, input.Body.Name)
	if err != nil {
		return nil, err
	}

	return &TagOutput{Body: mapTagResponse(tag)}, nil
}

func (s *Server) handleListDeviceTags(ctx context.Context, input *DeviceTagsInput) (*TagListOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	tags, err := s.services.Device.ListTags(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]TagResponse, len(tags))
	for i := range tags {
		resp[i] = mapTagResponse(&tags[i])
	}

	return &TagListOutput{Body: TagListResponse{Tags: resp}}, nil
}

func (s *Server) handleDetachDeviceTag(ctx context.Context, input *DetachTagInput) (*MessageOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Device.DetachTag(ctx, userID, input.ID, input.Name); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Tag detached"}}, nil
}

// === Helpers ===

func mapTagResponse(t *domain.Tag) TagResponse {
	return TagResponse{
		ID:          t.ID,
		Name:        t.Name,
		DeviceCount: t.DeviceCount,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
