package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/hurttlocker/taskmine/internal/ingest"
	"github.com/hurttlocker/taskmine/internal/llm"
	"github.com/hurttlocker/taskmine/internal/pipeline"
	"github.com/hurttlocker/taskmine/internal/store"
	"github.com/hurttlocker/taskmine/internal/workshop"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Details   any    `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}

// statusFor maps domain errors to HTTP status codes. A provider failure is
// 503 when the provider said retrying later may work, 502 otherwise.
func statusFor(err error) int {
	var (
		fe   *fiber.Error
		cerr *pipeline.CompletionError
		herr *llm.HTTPError
	)
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, workshop.ErrBusy), errors.Is(err, store.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, workshop.ErrInvalidInput),
		errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrEmptyDocument):
		return fiber.StatusBadRequest
	case errors.As(err, &cerr):
		if errors.As(err, &herr) && herr.Temporary() {
			return fiber.StatusServiceUnavailable
		}
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	body := envelope{
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	var verr *workshop.ValidationError
	if errors.As(err, &verr) {
		body.Details = verr.Errors
	}
	var herr *llm.HTTPError
	if errors.As(err, &herr) && herr.RetryAfter > 0 {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(herr.RetryAfter.Seconds())))
	}
	if status == fiber.StatusInternalServerError {
		s.log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		body.Error = "internal server error"
	}
	return c.Status(status).JSON(body)
}
