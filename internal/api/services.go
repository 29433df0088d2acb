package api

import (
	"github.com/devicedock/devicedock-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Auth    *service.AuthService
	Session *service.SessionService
	User    *service.UserService
	Device  *service.DeviceService
	Tag     *service.TagService
	Sensor  *service.SensorService
	Image   *service.ImageService
}
