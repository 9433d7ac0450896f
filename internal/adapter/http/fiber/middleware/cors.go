package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fibercors "github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/kogoto-lab/kogoto/pkg/config"
)

const (
	defaultCORSMethods = "GET,POST,PUT,DELETE,OPTIONS"
	defaultCORSHeaders = "Origin,Content-Type,Accept,Authorization,X-Request-ID"
	defaultCORSMaxAge  = 86400
)

// NewCORS creates a CORS middleware from application config. A wildcard
// origin never allows credentials.
func NewCORS(cfg config.CORSConfig) fiber.Handler {
	if !cfg.Enabled {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	origins := "*"
	if len(cfg.AllowedOrigins) > 0 {
		origins = strings.Join(cfg.AllowedOrigins, ",")
	}

	maxAge := defaultCORSMaxAge
	if cfg.MaxAge > 0 {
		maxAge = cfg.MaxAge
	}

	return fibercors.New(fibercors.Config{
		AllowOrigins:     origins,
		AllowMethods:     joinOr(cfg.AllowedMethods, defaultCORSMethods),
		AllowHeaders:     joinOr(cfg.AllowedHeaders, defaultCORSHeaders),
		ExposeHeaders:    joinOr(cfg.ExposeHeaders, "Content-Length"),
		AllowCredentials: cfg.Credentials && !strings.Contains(origins, "*"),
		MaxAge:           maxAge,
	})
}

func joinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ",")
}
