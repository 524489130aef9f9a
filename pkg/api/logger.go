package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// NewLogger builds a middleware logging every request with its status,
// timing and origin.
func NewLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()
		err := c.Next()

		message := "HTTP Request"
		if err != nil {
			message = err.Error()
		}

		status := c.Response().StatusCode()

		event := log.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			event = log.Error()
		case status >= fiber.StatusBadRequest:
			event = log.Warn()
		}

		event.
			Int("status", status).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Dur("duration", time.Since(started)).
			Str("user-agent", c.Get(fiber.HeaderUserAgent)).
			Msg(message)

		return nil
	}
}
