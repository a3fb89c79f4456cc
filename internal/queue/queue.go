package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of *asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueuePublishPost queues an immediate publish of postID. A task already pending for
// the same post is reused. The task runs once since an immediate failure is final.
func EnqueuePublishPost(ctx context.Context, client Enqueuer, postID int64) error {
	taskPayload, err := json.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)

	_, err = client.EnqueueContext(ctx, task,
		asynq.TaskID(publishTaskID(postID)),
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		slog.Info("publish task already queued", "post_id", postID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("publish task queued", "post_id", postID)
	return nil
}

func publishTaskID(postID int64) string {
	return fmt.Sprintf("%s:%d", TaskTypePublishPost, postID)
}
