package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	config "github.com/maheshrc27/threadflow/configs"
	"github.com/maheshrc27/threadflow/internal/api/handlers"
	"github.com/maheshrc27/threadflow/internal/api/middleware"
	"github.com/maheshrc27/threadflow/internal/pipeline"
	"github.com/maheshrc27/threadflow/internal/queue"
	"github.com/maheshrc27/threadflow/internal/service"
)

type Dependencies struct {
	Pipeline    pipeline.Pipeline
	Credentials service.CredentialService
	// AsynqClient is nil when Redis is not configured.
	AsynqClient queue.Enqueuer
}

func NewApp(cfg config.Config, deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("request failed", "path", c.Path(), "error", err)
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())

	app.Get("/health", handlers.Health)

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	cron := handlers.NewCronHandler(deps.Pipeline)
	cronGroup := app.Group("/cron")
	cronGroup.Use(authMiddleware.CronMiddleware())
	cronGroup.Post("/publish", cron.Publish)
	cronGroup.Post("/sweep", cron.Sweep)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(deps.Pipeline, deps.AsynqClient)
	api.Post("/posts/:id/publish", post.PublishPost)

	account := handlers.NewAccountHandler(deps.Credentials)
	api.Post("/accounts", account.Register)
	api.Post("/accounts/:id/connect", account.Connect)

	return app
}
