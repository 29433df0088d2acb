package providers

import (
	"github.com/samber/do/v2"

	"github.com/devicedock/devicedock-server/internal/auth"
	"github.com/devicedock/devicedock-server/internal/logger"
	"github.com/devicedock/devicedock-server/internal/media/images"
	"github.com/devicedock/devicedock-server/internal/service"
	"github.com/devicedock/devicedock-server/internal/validation"
)

// ProvideSessionService provides the session management service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(storeHandle.Store, tokenService, log.Logger), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	sessionService := do.MustInvoke[*service.SessionService](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, sessionService, validator, log.Logger), nil
}

// ProvideUserService provides the user profile service.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUserService(storeHandle.Store, validator, log.Logger), nil
}

// ProvideDeviceService provides the device management service.
func ProvideDeviceService(i do.Injector) (*service.DeviceService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	storage := do.MustInvoke[*images.Storage](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewDeviceService(storeHandle.Store, storage, validator, log.Logger), nil
}

// ProvideTagService provides the tag vocabulary service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(storeHandle.Store, log.Logger), nil
}

// ProvideSensorService provides the sensor vocabulary service.
func ProvideSensorService(i do.Injector) (*service.SensorService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSensorService(storeHandle.Store, log.Logger), nil
}

// ProvideImageService provides the device image service.
func ProvideImageService(i do.Injector) (*service.ImageService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	storage := do.MustInvoke[*images.Storage](i)
	processor := do.MustInvoke[*images.Processor](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewImageService(storeHandle.Store, storage, processor, log.Logger), nil
}
