package jobs

import (
	"recon-engine/core/broadcast"
	"recon-engine/core/graph"
	"recon-engine/core/pipeline"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates a new jobs feature.
func NewFeature(registry *graph.Registry, pipe *pipeline.Pipeline, hub *broadcast.Hub, logger *zap.Logger) *Feature {
	svc := NewService(registry, pipe, hub, logger)
	h := NewHandler(svc)
	return &Feature{service: svc, handler: h}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "jobs"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
