package api

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-ID"

func NewLogger() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		startTime := time.Now()

		requestID := c.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDHeader, requestID)

		err = c.Next()

		msg := "HTTP Request"
		if err != nil {
			msg = err.Error()

			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				c.Status(fiber.StatusInternalServerError)
			}
		}

		code := c.Response().StatusCode()

		ipAddress := c.IP()

		if cloudflareConnectingIP := c.Get("CF-Connecting-IP", ""); cloudflareConnectingIP != "" {
			ipAddress = cloudflareConnectingIP
		}

		requestLogger := log.With().
			Str("request-id", requestID).
			Int("status", code).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", ipAddress).
			Str("latency", time.Since(startTime).String()).
			Str("user-agent", c.Get(fiber.HeaderUserAgent)).
			Logger()

		switch {
		case code >= fiber.StatusBadRequest && code < fiber.StatusInternalServerError:
			requestLogger.Warn().Msg(msg)
		case code >= http.StatusInternalServerError:
			requestLogger.Error().Msg(msg)
		default:
			requestLogger.Info().Msg(msg)
		}

		return nil
	}
}
