package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ContextKey is the type for values stashed in request locals.
type ContextKey string

// RequestIDKey is the locals key for the per-request ID.
const RequestIDKey ContextKey = "request_id"

// LoggingConfig configures the request logging middleware.
type LoggingConfig struct {
	// Logger overrides the global logger when set.
	Logger *zerolog.Logger
	// SkipPaths are not logged (health probes, metrics scrapes).
	SkipPaths []string
}

// RequestID assigns each request an ID, honoring an inbound
// X-Request-ID header when present.
func RequestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Locals(string(RequestIDKey), requestID)
		c.Set("X-Request-ID", requestID)

		return c.Next()
	}
}

// GetRequestID extracts the request ID from request locals.
func GetRequestID(c fiber.Ctx) string {
	requestID, ok := c.Locals(string(RequestIDKey)).(string)
	if !ok {
		return ""
	}
	return requestID
}

// Logging emits one structured event per completed request.
func Logging(config LoggingConfig) fiber.Handler {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}

	skip := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = true
	}

	return func(c fiber.Ctx) error {
		if skip[c.Path()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var logFunc func() *zerolog.Event
		switch {
		case status >= 500:
			logFunc = logger.Error
		case status >= 400:
			logFunc = logger.Warn
		default:
			logFunc = logger.Info
		}

		event := logFunc().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int64("bytes_sent", int64(len(c.Response().Body())))

		if err != nil {
			event = event.Err(err)
		}

		event.Msg("request completed")

		return err
	}
}
