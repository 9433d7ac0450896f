package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/ports"
	"github.com/kogoto-lab/kogoto/internal/service/attempt"
	"github.com/kogoto-lab/kogoto/internal/service/auth"
	"github.com/kogoto-lab/kogoto/internal/service/mood"
	"github.com/kogoto-lab/kogoto/internal/service/reward"
	"github.com/kogoto-lab/kogoto/internal/service/session"
)

var statusByError = []struct {
	err  error
	code int
}{
	{session.ErrNotFound, fiber.StatusNotFound},
	{ports.ErrNotFound, fiber.StatusNotFound},
	{mood.ErrUnknownItem, fiber.StatusNotFound},
	{mood.ErrNoItems, fiber.StatusNotFound},
	{session.ErrInvalidMode, fiber.StatusBadRequest},
	{attempt.ErrInvalidChoice, fiber.StatusBadRequest},
	{mood.ErrBadGuess, fiber.StatusBadRequest},
	{reward.ErrInvalidAmount, fiber.StatusBadRequest},
	{domain.ErrInvalidChoiceSet, fiber.StatusBadRequest},
	{auth.ErrInvalidToken, fiber.StatusUnauthorized},
	{session.ErrNoQuestions, fiber.StatusUnprocessableEntity},
	{session.ErrFinished, fiber.StatusConflict},
	{session.ErrNotFinished, fiber.StatusConflict},
	{session.ErrNotAnswered, fiber.StatusConflict},
	{attempt.ErrClosed, fiber.StatusConflict},
	{attempt.ErrInvalidTransition, fiber.StatusConflict},
	{attempt.ErrNotListening, fiber.StatusConflict},
	{attempt.ErrAlreadyDone, fiber.StatusConflict},
	{attempt.ErrRetriesExhausted, fiber.StatusConflict},
	{ports.ErrConflict, fiber.StatusConflict},
	{session.ErrTooManySessions, fiber.StatusServiceUnavailable},
	{ports.ErrUnavailable, fiber.StatusServiceUnavailable},
}

// StatusFor maps an error returned by a service to an HTTP status code.
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return fiber.StatusInternalServerError
}

func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := StatusFor(err)

		msg := err.Error()
		if code == fiber.StatusInternalServerError {
			log.Error("Internal Server Error", zap.Error(err), zap.String("path", c.Path()))
			msg = "internal server error"
		}

		return c.Status(code).JSON(fiber.Map{
			"error": msg,
		})
	}
}
