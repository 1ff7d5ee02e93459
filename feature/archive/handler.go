package archive

import (
	"errors"

	"recon-engine/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for graph archival.
type Handler struct {
	archiver *Archiver
}

// NewHandler creates a new HTTP handler.
func NewHandler(archiver *Archiver) *Handler {
	return &Handler{archiver: archiver}
}

// RegisterRoutes registers the archive routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/jobs/:jobId/archive")
	group.Post("/", h.HandleArchive)
	group.Get("/", h.HandleGetArchive)
}

// HandleArchive exports a job's graph to storage and discards it.
// @Summary Archive Job
// @Description Persist the job's graph to object storage, then discard the in-memory graph.
// @Tags archive
// @Produce json
// @Param jobId path string true "Job Identifier"
// @Success 200 {object} Export "Archived Export"
// @Failure 404 {object} map[string]string "Unknown Job"
// @Failure 500 {object} map[string]string "Upload Failed"
// @Router /jobs/{jobId}/archive [post]
func (h *Handler) HandleArchive(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	l := logger.WithRayID(h.archiver.logger, c)

	export, err := h.archiver.Archive(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrUnknownJob) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		l.Error("Archive failed", zap.String("job_id", jobID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(export)
}

// HandleGetArchive returns a previously archived job graph.
// @Summary Get Archived Job
// @Description Read an archived graph export back from object storage.
// @Tags archive
// @Produce json
// @Param jobId path string true "Job Identifier"
// @Success 200 {object} Export "Archived Export"
// @Failure 404 {object} map[string]string "Not Archived"
// @Router /jobs/{jobId}/archive [get]
func (h *Handler) HandleGetArchive(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	l := logger.WithRayID(h.archiver.logger, c)

	export, err := h.archiver.Load(c.Context(), jobID)
	if err != nil {
		l.Warn("Archive lookup failed", zap.String("job_id", jobID), zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no archive for job " + jobID,
		})
	}

	return c.JSON(export)
}
