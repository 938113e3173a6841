package middleware

import (
	"runtime/debug"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// Recovery converts panics into 500 responses with a stable JSON shape.
// Only truly unanticipated faults reach this layer; everything else is
// handled closer to its source.
func Recovery() fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", GetRequestID(c)).
					Str("method", c.Method()).
					Str("path", c.Path()).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error":      "internal server error",
					"message":    "an unexpected error occurred",
					"request_id": GetRequestID(c),
				})
			}
		}()

		return c.Next()
	}
}
