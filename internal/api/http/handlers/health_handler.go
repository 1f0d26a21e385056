package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-service/internal/persistence"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	redis    *persistence.Redis
	postgres *persistence.Postgres
}

// NewHealthHandler constructs handler.
func NewHealthHandler(redis *persistence.Redis, postgres *persistence.Postgres) *HealthHandler {
	return &HealthHandler{redis: redis, postgres: postgres}
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready reports dependency readiness. The session store is mandatory; the
// account database is reported but only degrades readiness when configured.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx := c.UserContext()

	redisStatus := "ok"
	ready := true
	if err := h.redis.Ping(ctx); err != nil {
		redisStatus = err.Error()
		ready = false
	}

	pgStatus := "not configured"
	if h.postgres != nil && h.postgres.PoolHandle() != nil {
		pgStatus = "ok"
		if err := h.postgres.PoolHandle().Ping(ctx); err != nil {
			pgStatus = err.Error()
			ready = false
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"redis":    redisStatus,
		"postgres": pgStatus,
	})
}
