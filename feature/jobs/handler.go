package jobs

import (
	"errors"
	"time"

	"recon-engine/core/graph"
	"recon-engine/core/logger"
	"recon-engine/core/pipeline"
	"recon-engine/core/rules"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for reconciliation jobs.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the job routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/jobs", h.HandleListJobs)

	group := app.Group("/jobs/:jobId")
	group.Post("/records", h.HandleIngestRecord)
	group.Post("/batch", h.HandleRunBatch)
	group.Get("/records", h.HandleQueryRecords)
	group.Get("/snapshot", h.HandleSnapshot)
	group.Get("/stream", h.HandleStream)
}

// HandleListJobs lists the jobs with an active in-memory graph.
// @Summary List Active Jobs
// @Description Job identifiers with live graphs, with their queue depths.
// @Tags jobs
// @Produce json
// @Success 200 {array} map[string]interface{} "Active Jobs"
// @Router /jobs [get]
func (h *Handler) HandleListJobs(c *fiber.Ctx) error {
	jobIDs := h.service.ActiveJobs()

	out := make([]fiber.Map, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		out = append(out, fiber.Map{
			"job_id":      jobID,
			"queue_depth": h.service.QueueDepth(jobID),
		})
	}
	return c.JSON(out)
}

// HandleIngestRecord accepts one record event for asynchronous matching.
// @Summary Ingest Record
// @Description Enqueue a record event; matching happens on the pipeline's drain cadence.
// @Tags jobs
// @Accept json
// @Produce json
// @Param jobId path string true "Job Identifier"
// @Param event body pipeline.Event true "Record Event"
// @Success 202 {object} map[string]string "Accepted"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /jobs/{jobId}/records [post]
func (h *Handler) HandleIngestRecord(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	l := logger.WithRayID(h.service.logger, c)

	var event pipeline.Event
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid record event: " + err.Error(),
		})
	}
	if event.Role != graph.RoleSource && event.Role != graph.RoleTarget {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "role must be source or target",
		})
	}

	h.service.Ingest(jobID, event)
	l.Debug("Record enqueued",
		zap.String("job_id", jobID),
		zap.String("record_id", event.RecordID),
	)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "accepted",
		"job_id": jobID,
	})
}

// HandleRunBatch reconciles two uploaded record sets synchronously.
// @Summary Run Batch Reconciliation
// @Description Match a source set against a target set and return matches plus exceptions.
// @Tags jobs
// @Accept json
// @Produce json
// @Param jobId path string true "Job Identifier"
// @Param request body BatchRequest true "Batch Input"
// @Success 200 {object} batch.Result "Reconciliation Report"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /jobs/{jobId}/batch [post]
func (h *Handler) HandleRunBatch(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	l := logger.WithRayID(h.service.logger, c)

	var req BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid batch request: " + err.Error(),
		})
	}

	result, err := h.service.RunBatch(jobID, req)
	if err != nil {
		var cfgErr *rules.ConfigError
		if errors.As(err, &cfgErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": cfgErr.Error(),
			})
		}
		l.Error("Batch reconciliation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	l.Info("Batch reconciliation finished",
		zap.String("job_id", jobID),
		zap.Int("matches", len(result.Matches)),
		zap.Int("exceptions", len(result.Exceptions)),
	)
	return c.JSON(result)
}

// HandleQueryRecords filters a job's graph.
// @Summary Query Records
// @Description Filter the job's graph by kind, role, endpoints and time window.
// @Tags jobs
// @Produce json
// @Param jobId path string true "Job Identifier"
// @Param kind query string false "Node kind (transaction|match|unmatched|error)"
// @Param role query string false "Node role (source|target)"
// @Param sourceId query string false "Edge source endpoint"
// @Param targetId query string false "Edge target endpoint"
// @Param from query string false "Lower timestamp bound (RFC3339)"
// @Param to query string false "Upper timestamp bound (RFC3339)"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} graph.QueryResult "Nodes and Edges"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /jobs/{jobId}/records [get]
func (h *Handler) HandleQueryRecords(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	filter, err := parseFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(h.service.Query(jobID, filter))
}

// HandleSnapshot returns cheap counts for a job.
// @Summary Job Snapshot
// @Description Node and edge counts plus last update time, without copying the graph.
// @Tags jobs
// @Produce json
// @Param jobId path string true "Job Identifier"
// @Success 200 {object} graph.Snapshot "Snapshot"
// @Failure 404 {object} map[string]string "Unknown Job"
// @Router /jobs/{jobId}/snapshot [get]
func (h *Handler) HandleSnapshot(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	snap, ok := h.service.Snapshot(jobID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown job: " + jobID,
		})
	}
	return c.JSON(snap)
}

func parseFilter(c *fiber.Ctx) (graph.Filter, error) {
	filter := graph.Filter{
		Kind:     graph.Kind(c.Query("kind")),
		Role:     graph.Role(c.Query("role")),
		SourceID: c.Query("sourceId"),
		TargetID: c.Query("targetId"),
		Limit:    c.QueryInt("limit"),
		Offset:   c.QueryInt("offset"),
	}

	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return graph.Filter{}, errors.New("invalid from timestamp, want RFC3339")
		}
		filter.From = ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return graph.Filter{}, errors.New("invalid to timestamp, want RFC3339")
		}
		filter.To = ts
	}
	return filter, nil
}
