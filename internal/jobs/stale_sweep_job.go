package job

import (
	"context"
	"log/slog"

	"github.com/maheshrc27/threadflow/internal/pipeline"
)

type StaleSweepJob struct {
	pipeline pipeline.Pipeline
}

func NewStaleSweepJob(p pipeline.Pipeline) *StaleSweepJob {
	return &StaleSweepJob{pipeline: p}
}

func (j *StaleSweepJob) Sweep() {
	summary, err := j.pipeline.SweepStale(context.Background())
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if summary.Requeued > 0 || summary.Failed > 0 {
		slog.Info("Stale posts swept", "requeued", summary.Requeued, "failed", summary.Failed)
	}
}
