package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/devicedock/devicedock-server/internal/domain"
)

func (s *Server) registerSensorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listSensors",
		Method:      http.MethodGet,
		Path:        "/api/v1/sensors",
		Summary:     "List sensors",
		Description: "Returns the shared sensor vocabulary. Device counts are scoped to the current user's devices.",
		Tags:        []string{"Sensors"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListSensors)

	huma.Register(s.api, huma.Operation{
		OperationID: "createSensor",
		Method:      http.MethodPost,
		Path:        "/api/v1/sensors",
		Summary:     "Create sensor",
		Description: "Resolves a sensor name in the shared vocabulary, creating it if needed. Returns the existing sensor when the name is already taken.",
		Tags:        []string{"Sensors"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateSensor)

	huma.Register(s.api, huma.Operation{
		OperationID: "attachDeviceSensor",
		Method:      http.MethodPost,
		Path:        "/api/v1/devices/{id}/sensors",
		Summary:     "Attach sensor to device",
		Description: "Links a sensor to a device by name, creating the sensor if needed. Attaching an already linked sensor is a no-op.",
		Tags:        []string{"Sensors"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAttachDeviceSensor)

	huma.Register(s.api, huma.Operation{
		OperationID: "listDeviceSensors",
		Method:      http.MethodGet,
		Path:        "/api/v1/devices/{id}/sensors",
		Summary:     "List device sensors",
		Description: "Returns the sensors attached to a device you own.",
		Tags:        []string{"Sensors"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListDeviceSensors)

	huma.Register(s.api, huma.Operation{
		OperationID: "detachDeviceSensor",
		Method:      http.MethodDelete,
		Path:        "/api/v1/devices/{id}/sensors/{name}",
		Summary:     "Detach sensor from device",
		Description: "Unlinks a sensor from a device. The sensor stays in the shared vocabulary.",
		Tags:        []string{"Sensors"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDetachDeviceSensor)
}

// === DTOs ===

// ListSensorsInput contains parameters for listing sensors.
type ListSensorsInput struct {
	Authorization string `header:"Authorization"`
	AssignedOnly  bool   `query:"assigned_only" doc:"Only return sensors attached to at least one of your devices"`
}

// SensorResponse contains sensor data in API responses.
type SensorResponse struct {
	ID          string    `json:"id" doc:"Sensor ID"`
	Name        string    `json:"name" doc:"Sensor name"`
	DeviceCount int       `json:"device_count" doc:"Number of your devices carrying this sensor"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time `json:"updated_at" doc:"Last update time"`
}

// SensorListResponse contains a list of sensors.
type SensorListResponse struct {
	Sensors []SensorResponse `json:"sensors" doc:"Sensors ordered by name"`
}

// SensorListOutput wraps the sensor list for Huma.
type SensorListOutput struct {
	Body SensorListResponse
}

// CreateSensorRequest is the request body for resolving a sensor name.
type CreateSensorRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100" doc:"Sensor name"`
}

// CreateSensorInput wraps the create sensor request for Huma.
type CreateSensorInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateSensorRequest
}

// SensorOutput wraps the sensor response for Huma.
type SensorOutput struct {
	Body SensorResponse
}

// AttachSensorInput wraps the attach sensor request for Huma.
type AttachSensorInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
	Body          CreateSensorRequest
}

// DeviceSensorsInput contains parameters for listing a device's sensors.
type DeviceSensorsInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
}

// DetachSensorInput contains parameters for detaching a sensor.
type DetachSensorInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Device ID"`
	Name          string `path:"name" doc:"Sensor name"`
}

// === Handlers ===

func (s *Server) handleListSensors(ctx context.Context, input *ListSensorsInput) (*SensorListOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	sensors, err := s.services.Sensor.List(ctx, userID, input.AssignedOnly)
	if err != nil {
		return nil, err
	}

	resp := make([]SensorResponse, len(sensors))
	for i, sn := range sensors {
		resp[i] = mapSensorResponse(sn)
	}

	return &SensorListOutput{Body: SensorListResponse{Sensors: resp}}, nil
}

func (s *Server) handleCreateSensor(ctx context.Context, input *CreateSensorInput) (*SensorOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	sensor, _, err := s.services.Sensor.GetOrCreate(ctx, input.Body.Name)
	if err != nil {
		return nil, err
	}

	return &SensorOutput{Body: mapSensorResponse(sensor)}, nil
}

func (s *Server) handleAttachDeviceSensor(ctx context.Context, input *AttachSensorInput) (*SensorOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	sensor, err := s.services.Device.AttachSensor(ctx, userID, input.ID, input.Body.Name)
	if err != nil {
		return nil, err
	}

	return &SensorOutput{Body: mapSensorResponse(sensor)}, nil
}

func (s *Server) handleListDeviceSensors(ctx context.Context, input *DeviceSensorsInput) (*SensorListOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	sensors, err := s.services.Device.ListSensors(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]SensorResponse, len(sensors))
	for i := range sensors {
		resp[i] = mapSensorResponse(&sensors[i])
	}

	return &SensorListOutput{Body: SensorListResponse{Sensors: resp}}, nil
}

func (s *Server) handleDetachDeviceSensor(ctx context.Context, input *DetachSensorInput) (*MessageOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Device.DetachSensor(ctx, userID, input.ID, input.Name); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Sensor detached"}}, nil
}

// === Helpers ===

func mapSensorResponse(sn *domain.Sensor) SensorResponse {
	return SensorResponse{
		ID:          sn.ID,
		Name:        sn.Name,
		DeviceCount: sn.DeviceCount,
		CreatedAt:   sn.CreatedAt,
		UpdatedAt:   sn.UpdatedAt,
	}
}
