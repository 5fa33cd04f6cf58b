package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/credential-service/internal/config"
	"github.com/spec-kit/credential-service/internal/observability"
)

// NewApp builds the fiber application with middlewares and routes attached.
func NewApp(cfg config.AppConfig, logger *zap.Logger, metrics *observability.Metrics, routes RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.Name,
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		BodyLimit:             64 * 1024,
	})

	RegisterMiddlewares(app, logger, metrics, cfg.RequestTimeout())
	routes.Metrics = metrics
	RegisterRoutes(app, routes)
	return app
}
