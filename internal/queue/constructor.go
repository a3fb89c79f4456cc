package queue

import (
	"github.com/maheshrc27/threadflow/internal/pipeline"
)

type Queue struct {
	pipeline pipeline.Pipeline
}

func NewQueue(p pipeline.Pipeline) *Queue {
	return &Queue{
		pipeline: p,
	}
}

const (
	TaskTypePublishPost  = "publish:post"
	TaskTypePublishBatch = "publish:batch"
)

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
