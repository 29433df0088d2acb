package providers

import (
	"github.com/samber/do/v2"

	"github.com/devicedock/devicedock-server/internal/config"
	"github.com/devicedock/devicedock-server/internal/logger"
	"github.com/devicedock/devicedock-server/internal/media/images"
	"github.com/devicedock/devicedock-server/internal/validation"
)

// ProvideImageStorage provides the device image file storage.
func ProvideImageStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := images.NewStorage(cfg.Data.BasePath)
	if err != nil {
		return nil, err
	}

	log.Info("Image storage initialized", "path", cfg.Data.BasePath)

	return storage, nil
}

// ProvideImageProcessor provides the image processing pipeline.
func ProvideImageProcessor(i do.Injector) (*images.Processor, error) {
	log := do.MustInvoke[*logger.Logger](i)

	return images.NewProcessor(log.Logger), nil
}

// ProvideValidator provides the struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
