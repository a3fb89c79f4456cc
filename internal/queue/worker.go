package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/threadflow/internal/logging"
	"github.com/maheshrc27/threadflow/internal/repository"
)

// HandlePublishPostTask runs the immediate publish path for one post. A post that is
// gone or no longer publishable is not retried.
func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
	}

	ids, err := q.pipeline.PublishNow(ctx, payload.PostID)
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrNotClaimable) {
		return fmt.Errorf("post %d: %v: %w", payload.PostID, err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	slog.Info("post published from queue", "post_id", payload.PostID, "tweet_ids", ids)
	return nil
}

func (q *Queue) HandlePublishBatchTask(ctx context.Context, task *asynq.Task) error {
	summary, err := q.pipeline.RunBatch(ctx)
	if err != nil {
		return err
	}

	slog.Info("scheduled batch processed", "run_id", summary.RunID, "processed", summary.Processed)
	return nil
}

func (q *Queue) NewServeMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePublishPost, q.HandlePublishPostTask)
	mux.HandleFunc(TaskTypePublishBatch, q.HandlePublishBatchTask)
	return mux
}

func NewServer(redisOpt asynq.RedisConnOpt, concurrency int, logger *slog.Logger) *asynq.Server {
	return asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     concurrency,
			ShutdownTimeout: 30 * time.Second,
			Logger:          &logging.AsynqLogger{Logger: logger},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("task failed",
					"type", task.Type(),
					"retry", retried,
					"max_retry", maxRetry,
					"error", err,
				)
			}),
		},
	)
}
