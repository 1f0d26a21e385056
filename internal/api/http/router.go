package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Portal *handlers.PortalHandler
	Health *handlers.HealthHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/api/login", cfg.Portal.Login)
	app.Get("/status", cfg.Portal.Status)
	app.Post("/logout", cfg.Portal.Logout)

	app.Post("/api/heartbeat", cfg.Portal.Heartbeat)
	app.Post("/api/batch_status", cfg.Portal.BatchStatus)
}
