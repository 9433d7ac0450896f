package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/pkg/config"
)

// CircuitBreaker trips after repeated server errors and then sheds load with
// 503 until the breaker half-opens. Client errors do not count as failures.
func CircuitBreaker(name string, cfg config.CircuitBreakerConfig, log *zap.Logger) fiber.Handler {
	minRequests := uint32(cfg.MinRequests)
	if minRequests == 0 {
		minRequests = 3
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return func(c *fiber.Ctx) error {
		var handlerErr error
		_, err := cb.Execute(func() (interface{}, error) {
			handlerErr = c.Next()
			if handlerErr != nil && StatusFor(handlerErr) >= fiber.StatusInternalServerError {
				return nil, handlerErr
			}
			if c.Response().StatusCode() >= fiber.StatusInternalServerError {
				return nil, fiber.NewError(c.Response().StatusCode())
			}
			return nil, nil
		})

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Service temporarily unavailable",
			})
		}

		return handlerErr
	}
}
