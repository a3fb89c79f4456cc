package queue

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/threadflow/internal/logging"
)

// StartScheduler registers the periodic batch task on the cron expression and starts the scheduler.
// The returned func stops it.
func StartScheduler(redisOpt asynq.RedisConnOpt, spec string, logger *slog.Logger) (stop func(), err error) {
	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
			Logger:   &logging.AsynqLogger{Logger: logger},
		},
	)

	task := asynq.NewTask(
		TaskTypePublishBatch,
		nil,
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
		asynq.Unique(time.Minute),
	)

	entryID, err := scheduler.Register(spec, task)
	if err != nil {
		return nil, fmt.Errorf("failed to register publish schedule: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	slog.Info("Scheduler started", "schedule", spec, "entry_id", entryID)
	return func() { scheduler.Shutdown() }, nil
}
