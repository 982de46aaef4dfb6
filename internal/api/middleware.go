package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// requestLogger logs one line per request. Errors are rendered through
// onError first so the logged status is the one the client sees. Paths in
// skip are not logged.
func requestLogger(log *zap.Logger, onError fiber.ErrorHandler, skip ...string) fiber.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(c *fiber.Ctx) error {
		if skipped[c.Path()] {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		if err != nil {
			if herr := onError(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		switch status := c.Response().StatusCode(); {
		case status >= 500:
			log.Warn("request failed", fields...)
		default:
			log.Debug("request", fields...)
		}
		return err
	}
}
