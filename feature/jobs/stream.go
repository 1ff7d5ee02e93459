package jobs

import (
	"bufio"
	"encoding/json"
	"time"

	"recon-engine/core/broadcast"
	"recon-engine/core/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const (
	// streamBuffer bounds how many updates a slow subscriber can lag behind
	// before updates are dropped for it.
	streamBuffer = 64

	keepaliveInterval = 15 * time.Second
)

// HandleStream streams live graph updates over server-sent events.
// @Summary Stream Graph Updates
// @Description Server-sent events; one event per node or edge update.
// @Tags jobs
// @Produce text/event-stream
// @Param jobId path string true "Job Identifier"
// @Success 200 {string} string "SSE stream"
// @Router /jobs/{jobId}/stream [get]
func (h *Handler) HandleStream(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	l := logger.WithRayID(h.service.logger, c)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// Buffered so a stalled flush never blocks the matching goroutine. The
	// hub delivers synchronously; overflow drops the update for this
	// subscriber only.
	updates := make(chan broadcast.Update, streamBuffer)
	unsubscribe := h.service.Subscribe(jobID, func(u broadcast.Update) {
		select {
		case updates <- u:
		default:
			l.Warn("Subscriber too slow, dropping update", zap.String("job_id", jobID))
		}
	})

	l.Info("Stream subscriber attached", zap.String("job_id", jobID))

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case update := <-updates:
				if err := writeEvent(w, update); err != nil {
					l.Info("Stream subscriber detached", zap.String("job_id", jobID))
					return
				}
			case <-keepalive.C:
				// Comment line keeps idle connections open through proxies.
				if _, err := w.WriteString(": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func writeEvent(w *bufio.Writer, update broadcast.Update) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	if _, err := w.WriteString("event: " + string(update.Type) + "\n"); err != nil {
		return err
	}
	if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
