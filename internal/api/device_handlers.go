package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/devicedock/devicedock-server/internal/domain"
	"github.com/devicedock/devicedock-server/internal/service"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listDevices",
		Method:      http.MethodGet,
		Path:        "/api/v1/devices",
		Summary:     "List devices",
		Description: "Returns the user's devices, optionally filtered by tag and sensor names. Names within a filter match any (OR), filters combine with AND.",
		Tags:        []string{"Devices"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListDevices)

	huma.Register(s.api, huma.Operation{
		OperationID: "createDevice",
		Method:      http.MethodPost,
		Path:        "/api/v1/devices",
		Summary:     "Create device",
		Description: "Registers a new device. Tag and sensor names are resolved against the shared vocabulary, creating entries as needed.",
		Tags:        []string{"Devices"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateDevice)

	huma.Register(s.api, huma.Operation{
		OperationID: "getDevice",
		Method:      http.MethodGet,
		Path:        "/api/v1/devices/{id}",
		Summary:     "Get device",
		Description: "Returns a device with its tags, sensors, and images",
		Tags:        []string{"Devices"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetDevice)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateDevice",
		Method:      http.MethodPatch,
		Path:        "/api/v1/devices/{id}",
		Summary:     "Update device",
		Description: "Updates a device. Providing tags or sensors replaces the full association set.",
		Tags:        []string{"Devices"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateDevice)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteDevice",
		Method:      http.MethodDelete,
		Path:        "/api/v1/devices/{id}",
		Summary:     "Delete device",
		Description: "Deletes a device with its images and associations. Shared tags and sensors are never removed.",
		Tags:        []string{"Devices"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteDevice)
}

// === DTOs ===

// ListDevicesInput contains the device list filters.
type ListDevicesInput struct {
	Authorization string `header:"Authorization"`
	Tags          string `query:"tags" doc:"Comma-separated tag names, matches devices carrying any of them"`
	Sensors       string `query:"sensors" doc:"Comma-separated sensor names, matches devices carrying any of them"`
}

// Resolve rejects unrecognized query parameters. Silently ignoring a
// misspelled filter would return unfiltered results, which reads like
// data leakage to the caller.
func (i *ListDevicesInput) Resolve(ctx huma.Context) []error {
	allowed := map[string]bool{"tags": true, "sensors": true}

	u := ctx.URL()

	var errs []error
	for key := range u.Query() {
		if !allowed[key] {
			errs = append(errs, &huma.ErrorDetail{
				Message:  "unknown filter parameter",
				Location: "query." + key,
			})
		}
	}
	return errs
}

// TagSummary is the embedded tag representation on a device.
type TagSummary struct {
	ID   string `json:"id" doc:"Tag ID"`
	Name string `json:"name" doc:"Tag name"`
}

// SensorSummary is the embedded sensor representation on a device.
type SensorSummary struct {
	ID   string `json:"id" doc:"Sensor ID"`
	Name string `json:"name" doc:"Sensor name"`
}

// DeviceResponse contains device data in API responses.
type DeviceResponse struct {
	ID          string          `json:"id" doc:"Device ID"`
	Name        string          `json:"name" doc:"Device name"`
	Description string          `json:"description,omitempty" doc:"Device description"`
	Tags        []TagSummary    `json:"tags" doc:"Attached tags"`
	Sensors     []SensorSummary `json:"sensors" doc:"Attached sensors"`
	Images      []ImageResponse `json:"images" doc:"Attached images"`
	CreatedAt   time.Time       `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time       `json:"updated_at" doc:"Last update time"`
}

// DeviceListResponse contains a list of devices.
type DeviceListResponse struct {
	Devices []DeviceResponse `json:"devices" doc:"Devices in creation order"`
}

// DeviceListOutput wraps the device list for Huma.
type DeviceListOutput struct {
	Body DeviceListResponse
}

// CreateDeviceRequest is the request body for registering a device.
type CreateDeviceRequest struct {
	Name        string   `json:"name" validate:"required,max=200" doc:"Device name"`
	Description string   `json:"description,omitempty" validate:"omitempty,max=2000" doc:"Device description"`
	Tags        []string `json:"tags,omitempty" doc:"Initial tag names"`
	Sensors     []string `json:"sensors,omitempty" doc:"Initial sensor names"`
}

// CreateDeviceInput wraps the create device request for Huma.
type CreateDeviceInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateDeviceRequest
}

// DeviceOutput wraps the device response for Huma.
type DeviceOutput struct {
	Body DeviceResponse
}

// GetDeviceInput contains parameters for getting a device.
type GetDeviceInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
}

// UpdateDeviceRequest is the request body for updating a device.
type UpdateDeviceRequest struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,max=200" doc:"Device name"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=2000" doc:"Device description"`
	Tags        *[]string `json:"tags,omitempty" doc:"Replacement tag names (empty list clears)"`
	Sensors     *[]string `json:"sensors,omitempty" doc:"Replacement sensor names (empty list clears)"`
}

// UpdateDeviceInput wraps the update device request for Huma.
type UpdateDeviceInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
	Body          UpdateDeviceRequest
}

// DeleteDeviceInput contains parameters for deleting a device.
type DeleteDeviceInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
}

// === Handlers ===

func (s *Server) handleListDevices(ctx context.Context, input *ListDevicesInput) (*DeviceListOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	devices, err := s.services.Device.List(ctx, userID, service.DeviceQuery{
		Tags:    splitCSV(input.Tags),
		Sensors: splitCSV(input.Sensors),
	})
	if err != nil {
		return nil, err
	}

	resp := make([]DeviceResponse, len(devices))
	for i, d := range devices {
		resp[i] = mapDeviceResponse(d)
	}

	return &DeviceListOutput{Body: DeviceListResponse{Devices: resp}}, nil
}

func (s *Server) handleCreateDevice(ctx context.Context, input *CreateDeviceInput) (*DeviceOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	device, err := s.services.Device.Create(ctx, userID, service.CreateDeviceRequest{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Tags:        input.Body.Tags,
		Sensors:     input.Body.Sensors,
	})
	if err != nil {
		return nil, err
	}

	return &DeviceOutput{Body: mapDeviceResponse(device)}, nil
}

func (s *Server) handleGetDevice(ctx context.Context, input *GetDeviceInput) (*DeviceOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	device, err := s.services.Device.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	return &DeviceOutput{Body: mapDeviceResponse(device)}, nil
}

func (s *Server) handleUpdateDevice(ctx context.Context, input *UpdateDeviceInput) (*DeviceOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	device, err := s.services.Device.Update(ctx, userID, input.ID, service.UpdateDeviceRequest{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Tags:        input.Body.Tags,
		Sensors:     input.Body.Sensors,
	})
	if err != nil {
		return nil, err
	}

	return &DeviceOutput{Body: mapDeviceResponse(device)}, nil
}

func (s *Server) handleDeleteDevice(ctx context.Context, input *DeleteDeviceInput) (*MessageOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Device.Delete(ctx, userID, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Device deleted"}}, nil
}

// === Helpers ===

func mapDeviceResponse(d *domain.Device) DeviceResponse {
	tags := make([]TagSummary, len(d.Tags))
	for i, t := range d.Tags {
		tags[i] = TagSummary{ID: t.ID, Name: t.Name}
	}

	sensors := make([]SensorSummary, len(d.Sensors))
	for i, sn := range d.Sensors {
		sensors[i] = SensorSummary{ID: sn.ID, Name: sn.Name}
	}

	imgs := make([]ImageResponse, len(d.Images))
	for i, img := range d.Images {
		imgs[i] = mapImageResponse(&img)
	}

	return DeviceResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Tags:        tags,
		Sensors:     sensors,
		Images:      imgs,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// splitCSV splits a comma-separated filter value, dropping empty parts.
func splitCSV(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
