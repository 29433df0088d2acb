package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/devicedock/devicedock-server/internal/domain"
)

func (s *Server) registerImageRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "uploadDeviceImage",
		Method:      http.MethodPost,
		Path:        "/api/v1/devices/{id}/images",
		Summary:     "Upload device image",
		Description: "Uploads an image for a device. JPEG, PNG, GIF, and WebP input is accepted and normalized to JPEG.",
		Tags:         []string{"Images"},
		Security:     []map[string][]string{{"bearer": {}}},
		MaxBodyBytes: MaxUploadSize,
	}, s.handleUploadDeviceImage)

	huma.Register(s.api, huma.Operation{
		OperationID: "listDeviceImages",
		Method:      http.MethodGet,
		Path:        "/api/v1/devices/{id}/images",
		Summary:     "List device images",
		Description: "Returns image metadata for a device, oldest first",
		Tags:        []string{"Images"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListDeviceImages)

	huma.Register(s.api, huma.Operation{
		OperationID: "getDeviceImageContent",
		Method:      http.MethodGet,
		Path:        "/api/v1/devices/{id}/images/{imageID}/content",
		Summary:     "Get device image content",
		Description: "Returns the JPEG bytes of a device image",
		Tags:        []string{"Images"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetDeviceImageContent)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteDeviceImage",
		Method:      http.MethodDelete,
		Path:        "/api/v1/devices/{id}/images/{imageID}",
		Summary:     "Delete device image",
		Description: "Removes an image from a device",
		Tags:        []string{"Images"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteDeviceImage)
}

// === DTOs ===

// UploadImageInput wraps a raw image upload for Huma.
type UploadImageInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
	ContentType   string `header:"Content-Type"`
	RawBody       []byte
}

// ImageResponse contains image metadata in API responses.
type ImageResponse struct {
	ID        string    `json:"id" doc:"Image ID"`
	DeviceID  string    `json:"device_id" doc:"Owning device ID"`
	Blurhash  string    `json:"blurhash,omitempty" doc:"BlurHash placeholder"`
	Width     int       `json:"width" doc:"Image width in pixels"`
	Height    int       `json:"height" doc:"Image height in pixels"`
	SizeBytes int64     `json:"size_bytes" doc:"Stored size in bytes"`
	CreatedAt time.Time `json:"created_at" doc:"Upload time"`
}

// ImageOutput wraps the image response for Huma.
type ImageOutput struct {
	Body ImageResponse
}

// ListImagesInput contains parameters for listing device images.
type ListImagesInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
}

// ImageListResponse contains image metadata for a device.
type ImageListResponse struct {
	Images []ImageResponse `json:"images" doc:"Images in upload order"`
}

// ImageListOutput wraps the image list for Huma.
type ImageListOutput struct {
	Body ImageListResponse
}

// ImageContentInput contains parameters for fetching image bytes.
type ImageContentInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
	ImageID       string `path:"imageID" doc:"Image ID"`
}

// ImageContentOutput streams raw JPEG bytes.
type ImageContentOutput struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// DeleteImageInput contains parameters for deleting an image.
type DeleteImageInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
	ImageID       string `path:"imageID" doc:"Image ID"`
}

// === Handlers ===

func (s *Server) handleUploadDeviceImage(ctx context.Context, input *UploadImageInput) (*ImageOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	img, err := s.services.Image.Upload(ctx, userID, input.ID, input.RawBody)
	if err != nil {
		return nil, err
	}

	return &ImageOutput{Body: mapImageResponse(img)}, nil
}

func (s *Server) handleListDeviceImages(ctx context.Context, input *ListImagesInput) (*ImageListOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	imgs, err := s.services.Image.List(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]ImageResponse, len(imgs))
	for i, img := range imgs {
		resp[i] = mapImageResponse(&img)
	}

	return &ImageListOutput{Body: ImageListResponse{Images: resp}}, nil
}

func (s *Server) handleGetDeviceImageContent(ctx context.Context, input *ImageContentInput) (*ImageContentOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	_, data, err := s.services.Image.GetContent(ctx, userID, input.ID, input.ImageID)
	if err != nil {
		return nil, err
	}

	return &ImageContentOutput{
		ContentType:  "image/jpeg",
		CacheControl: CacheOneDay,
		Body:         data,
	}, nil
}

func (s *Server) handleDeleteDeviceImage(ctx context.Context, input *DeleteImageInput) (*MessageOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Image.Delete(ctx, userID, input.ID, input.ImageID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Image deleted"}}, nil
}

// === Helpers ===

func mapImageResponse(img *domain.Image) ImageResponse {
	return ImageResponse{
		ID:        img.ID,
		DeviceID:  img.DeviceID,
		Blurhash:  img.Blurhash,
		Width:     img.Width,
		Height:    img.Height,
		SizeBytes: img.SizeBytes,
		CreatedAt: img.CreatedAt,
	}
}
