package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/threadflow/configs"
	"github.com/maheshrc27/threadflow/internal/api"
	"github.com/maheshrc27/threadflow/internal/database"
	job "github.com/maheshrc27/threadflow/internal/jobs"
	"github.com/maheshrc27/threadflow/internal/lock"
	"github.com/maheshrc27/threadflow/internal/logging"
	"github.com/maheshrc27/threadflow/internal/pipeline"
	"github.com/maheshrc27/threadflow/internal/queue"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/maheshrc27/threadflow/internal/service"
	"github.com/maheshrc27/threadflow/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx := context.Background()

	db, err := database.Open(ctx, cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	cipher, err := utils.NewCipher([]byte(cfg.SecretKey))
	if err != nil {
		log.Fatalf("Invalid secret key: %v", err)
	}

	accountRepo := repository.NewAccountRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	postRepo := repository.NewPostRepository(db, threadRepo, accountRepo)
	attemptRepo := repository.NewPublishAttemptRepository(db)

	var locker lock.Locker = lock.NewKeyedMutex()
	var rdb *redis.Client
	if cfg.RedisURI != "" {
		opts, err := redis.ParseURL(cfg.RedisURI)
		if err != nil {
			log.Fatalf("Invalid redis uri: %v", err)
		}
		rdb = redis.NewClient(opts)
		locker = lock.Chain(locker, lock.NewRedisLocker(rdb, 2*cfg.HTTPTimeout))
	}

	var r2Service *service.R2Service
	if cfg.R2.Enabled() {
		r2Service, err = service.NewR2Service(ctx, cfg.R2)
		if err != nil {
			log.Fatalf("Failed to configure R2: %v", err)
		}
	}

	credentialService := service.NewCredentialService(*cfg, accountRepo, cipher, locker)
	mediaService := service.NewMediaService(cfg.HTTPTimeout, r2Service)
	threadService := service.NewThreadService(credentialService, mediaService)

	publisher := pipeline.NewPipeline(
		postRepo,
		attemptRepo,
		threadService,
		pipeline.Policy{MaxRetryCount: cfg.MaxRetryCount},
		pipeline.Options{BatchSize: cfg.PublishBatchSize, StaleAfter: cfg.StalePublishingAfter},
	)

	deps := api.Dependencies{
		Pipeline:    publisher,
		Credentials: credentialService,
	}

	var client *asynq.Client
	var worker *asynq.Server
	stopScheduler := func() {}
	if cfg.RedisURI != "" {
		redisConn, err := asynq.ParseRedisURI(cfg.RedisURI)
		if err != nil {
			log.Fatalf("Invalid redis uri: %v", err)
		}

		client = asynq.NewClient(redisConn)
		deps.AsynqClient = client

		queueW := queue.NewQueue(publisher)
		worker = queue.NewServer(redisConn, cfg.WorkerConcurrency, logger)
		if err := worker.Start(queueW.NewServeMux()); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}

		if cfg.PublishSchedule != "" {
			stopScheduler, err = queue.StartScheduler(redisConn, cfg.PublishSchedule, logger)
			if err != nil {
				log.Fatalf("Could not start Asynq scheduler: %v", err)
			}
		}
	}

	// cron jobs
	sweepJob := job.NewStaleSweepJob(publisher)
	refreshTokenJob := job.NewTokenRefreshJob(accountRepo, credentialService, cfg.TokenRefreshWindow)

	c := cron.New()
	if err := job.Schedule(c, cfg.SweepSchedule, sweepJob, cfg.TokenRefreshSchedule, refreshTokenJob); err != nil {
		log.Fatalf("Invalid job schedule: %v", err)
	}
	c.Start()

	app := api.NewApp(*cfg, deps)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info("Server is running", "port", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		slog.Error("Failed to shut down server", "error", err)
	}
	c.Stop()
	stopScheduler()
	if worker != nil {
		worker.Shutdown()
	}
	if client != nil {
		client.Close()
	}
	if rdb != nil {
		rdb.Close()
	}

	closeDB(db)
	slog.Info("Server shutdown complete.")
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}
