package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/pipeline"
	"github.com/maheshrc27/threadflow/internal/queue"
	"github.com/maheshrc27/threadflow/internal/transfer"
)

type PostHandler struct {
	p           pipeline.Pipeline
	AsynqClient queue.Enqueuer
}

// NewPostHandler builds the publish handler. asynqClient may be nil, in which case only
// synchronous publishing is available.
func NewPostHandler(p pipeline.Pipeline, asynqClient queue.Enqueuer) *PostHandler {
	return &PostHandler{p: p, AsynqClient: asynqClient}
}

func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	postID, err := GetID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if c.QueryBool("async") {
		if h.AsynqClient == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Async publishing is not configured",
			})
		}
		if err := queue.EnqueuePublishPost(c.Context(), h.AsynqClient, postID); err != nil {
			slog.Error(err.Error())
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Error queueing post",
			})
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message": "Post queued for publishing",
		})
	}

	tweetIDs, err := h.p.PublishNow(c.Context(), postID)
	if err != nil {
		status := errorStatus(err)
		resp := transfer.PublishResponse{Error: err.Error()}
		if status != fiber.StatusNotFound && status != fiber.StatusConflict {
			resp.Status = string(models.PostStatusFailed)
		}
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(transfer.PublishResponse{
		Status:   string(models.PostStatusPublished),
		TweetIDs: tweetIDs,
	})
}
