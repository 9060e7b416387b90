package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-diarization/internal/apperr"
)

// ErrorHandler renders errors as {"detail": message}
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		detail := "An unexpected error occurred."

		var fe *fiber.Error
		if appErr, ok := apperr.As(err); ok {
			status = appErr.HTTPStatus
			detail = appErr.Message
		} else if errors.As(err, &fe) {
			status = fe.Code
			detail = fe.Message
		}

		if status >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Int("status", status).Msg("Request failed")
		}

		return c.Status(status).JSON(fiber.Map{"detail": detail})
	}
}
