package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadflow/internal/pipeline"
)

type CronHandler struct {
	p pipeline.Pipeline
}

func NewCronHandler(p pipeline.Pipeline) *CronHandler {
	return &CronHandler{p: p}
}

func (h *CronHandler) Publish(c *fiber.Ctx) error {
	summary, err := h.p.RunBatch(c.Context())
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to run publish batch",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"run_id":    summary.RunID,
		"processed": summary.Processed,
		"published": summary.Published,
		"failed":    summary.Failed,
		"retried":   summary.Retried,
	})
}

func (h *CronHandler) Sweep(c *fiber.Ctx) error {
	summary, err := h.p.SweepStale(c.Context())
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to sweep stale posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(summary)
}
