package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kogoto-lab/kogoto/internal/service/auth"
)

// LearnerIDKey is the fiber Locals key holding the authenticated learner.
const LearnerIDKey = "learner_id"

// TokenValidator is satisfied by *auth.JWTService.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// AuthRequired rejects requests without a valid learner token. Browsers
// cannot set headers on websocket upgrades, so a "token" query parameter is
// accepted as well.
func AuthRequired(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid authorization header format"})
			}
			token = parts[1]
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization header"})
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		c.Locals(LearnerIDKey, claims.Subject)
		return c.Next()
	}
}

// LearnerID returns the learner set by AuthRequired, or "".
func LearnerID(c *fiber.Ctx) string {
	id, _ := c.Locals(LearnerIDKey).(string)
	return id
}
