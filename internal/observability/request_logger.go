package observability

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	unmatchedKey    = "route_unmatched"

	// UnmatchedRoute labels requests that matched no registered route.
	UnmatchedRoute = "unmatched"
)

// RequestLogger logs every request and feeds the HTTP metrics. It reuses an
// inbound X-Request-ID or mints one.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		} else {
			requestID = utils.CopyString(requestID)
		}
		c.Locals(requestIDKey, requestID)
		c.Set(requestIDHeader, requestID)

		err := c.Next()
		MarkUnmatched(c, err)

		duration := time.Since(start)
		status := c.Response().StatusCode()

		metrics.RecordRequest(RouteLabel(c), MethodLabel(c), status, duration)
		logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", duration),
			zap.String("ip", c.IP()),
		)
		return err
	}
}

// RequestID returns the id assigned by RequestLogger.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

// MarkUnmatched flags the request when err is fiber's routing miss.
func MarkUnmatched(c *fiber.Ctx, err error) {
	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		return
	}
	if fiberErr.Code == fiber.StatusNotFound || fiberErr.Code == fiber.StatusMethodNotAllowed {
		c.Locals(unmatchedKey, true)
	}
}

// RouteLabel returns the registered route pattern for metric labels, so raw
// client paths never become series. The result does not alias request memory.
func RouteLabel(c *fiber.Ctx) string {
	if unmatched, _ := c.Locals(unmatchedKey).(bool); unmatched {
		return UnmatchedRoute
	}
	route := c.Route()
	if route == nil || route.Path == "" {
		return UnmatchedRoute
	}
	return utils.CopyString(route.Path)
}

// MethodLabel returns a copy of the request method safe to retain after the
// handler returns.
func MethodLabel(c *fiber.Ctx) string {
	return utils.CopyString(c.Method())
}
