package archive

import (
	"github.com/gofiber/fiber/v2"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	archiver *Archiver
	handler  *Handler
}

// NewFeature creates a new archive feature around an existing archiver.
func NewFeature(archiver *Archiver) *Feature {
	return &Feature{archiver: archiver, handler: NewHandler(archiver)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "archive"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return f.archiver.client != nil
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
