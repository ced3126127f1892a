package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDLocal  = "request_id"
)

// RequestID tags every request with an id, reusing an incoming X-Request-ID,
// and logs failed requests with it.
func RequestID(c *fiber.Ctx) error {
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals(RequestIDLocal, id)
	c.Set(RequestIDHeader, id)

	started := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil || status >= fiber.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", id).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("took", time.Since(started)).
			Msg("request failed")
	}
	return err
}

// GetRequestID returns the id set by RequestID, or "".
func GetRequestID(c *fiber.Ctx) string {
	if v, ok := c.Locals(RequestIDLocal).(string); ok {
		return v
	}
	return ""
}
