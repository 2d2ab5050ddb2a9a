package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"finscholars/backend/utils"
)

func LoggingMiddleware(logger *utils.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// The app error handler has not run yet.
			var fe *fiber.Error
			var ae *utils.AppError
			switch {
			case errors.As(err, &fe):
				status = fe.Code
			case errors.As(err, &ae):
				status = ae.Status
			default:
				status = fiber.StatusInternalServerError
			}
		}
		fields := []interface{}{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start).String(),
			"ip", c.IP(),
			"user_agent", c.Get(fiber.HeaderUserAgent),
		}
		if uid := UserID(c); uid != "" {
			fields = append(fields, "user_id", uid)
		}
		if err != nil {
			fields = append(fields, "error", err)
		}

		switch {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
		return err
	}
}
