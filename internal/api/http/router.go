package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/credential-service/internal/api/http/handlers"
	"github.com/spec-kit/credential-service/internal/auth"
	"github.com/spec-kit/credential-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Identity       *handlers.IdentityHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Post("/register", cfg.Identity.Register)
	app.Post("/login", cfg.Identity.Login)

	app.Get("/me", cfg.AuthMiddleware.Handle, cfg.Identity.Me)
}
