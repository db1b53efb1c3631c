package serverutils

import (
	"errors"

	"second-brain/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// ErrorStatus maps a sentinel error onto an HTTP status and error_type.
type ErrorStatus struct {
	Err    error
	Status int
	Kind   string
}

// ErrorHandlerMiddleware turns handler errors into the JSON error envelope.
// Mappings are checked in order with errors.Is; unknown errors become 500.
func ErrorHandlerMiddleware(log logger.ILogger, mappings ...ErrorStatus) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status, kind := resolveStatus(err, mappings)
		if status >= fiber.StatusInternalServerError {
			log.Error("HTTP", "request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"status": status,
				"error":  err,
			})
		}
		return ctx.Status(status).JSON(TypedErrorResponse(status, kind, err.Error()))
	}
}

func resolveStatus(err error, mappings []ErrorStatus) (int, string) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, "http"
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return fiber.StatusBadRequest, "validation"
	}
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			return m.Status, m.Kind
		}
	}
	return fiber.StatusInternalServerError, "internal"
}
