package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/credential-service/pkg/util/errorutil"
)

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	storeDriver string
	store       ReadinessChecker
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version, storeDriver string, store ReadinessChecker) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, storeDriver: storeDriver, store: store}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking the credential store. The cause
// travels in Err and is logged by the error middleware, never rendered.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.store.Ready(ctx); err != nil {
		return &apperrors.DomainError{
			Code:       "DEPENDENCY_UNAVAILABLE",
			Message:    "credential store unavailable",
			HTTPStatus: fiber.StatusServiceUnavailable,
			Details:    map[string]any{h.storeDriver: "unavailable"},
			Err:        err,
		}
	}

	return c.JSON(fiber.Map{
		"status":       "ready",
		"dependencies": fiber.Map{h.storeDriver: "ok"},
	})
}
