package middleware

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/ports"
	"github.com/kogoto-lab/kogoto/internal/service/attempt"
	"github.com/kogoto-lab/kogoto/internal/service/auth"
	"github.com/kogoto-lab/kogoto/internal/service/session"
	"github.com/kogoto-lab/kogoto/pkg/config"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*auth.Claims, error) {
	if token != "ok" {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "learner-1"}}, nil
}

func TestAuthRequired(t *testing.T) {
	app := fiber.New()
	app.Get("/me", AuthRequired(stubValidator{}), func(c *fiber.Ctx) error {
		return c.SendString(LearnerID(c))
	})

	tests := []struct {
		name   string
		url    string
		header string
		code   int
		body   string
	}{
		{"missing", "/me", "", fiber.StatusUnauthorized, ""},
		{"malformed", "/me", "Token ok", fiber.StatusUnauthorized, ""},
		{"invalid", "/me", "Bearer nope", fiber.StatusUnauthorized, ""},
		{"header", "/me", "Bearer ok", fiber.StatusOK, "learner-1"},
		{"query", "/me?token=ok", "", fiber.StatusOK, "learner-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)
			if tt.body != "" {
				b, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.body, string(b))
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusNotFound, StatusFor(fmt.Errorf("get: %w", session.ErrNotFound)))
	assert.Equal(t, fiber.StatusConflict, StatusFor(attempt.ErrNotListening))
	assert.Equal(t, fiber.StatusBadRequest, StatusFor(attempt.ErrInvalidChoice))
	assert.Equal(t, fiber.StatusServiceUnavailable, StatusFor(ports.ErrUnavailable))
	assert.Equal(t, fiber.StatusTeapot, StatusFor(fiber.NewError(fiber.StatusTeapot, "tea")))
	assert.Equal(t, fiber.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db password leaked") })
	app.Get("/missing", func(c *fiber.Ctx) error { return session.ErrNotFound })

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, string(b), "password")

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func newBreakerApp() *fiber.App {
	cfg := config.CircuitBreakerConfig{MaxRequests: 1, MinRequests: 2, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 0.5}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Use(CircuitBreaker("test", cfg, zap.NewNop()))
	app.Get("/fail", func(c *fiber.Ctx) error { return errors.New("down") })
	app.Get("/missing", func(c *fiber.Ctx) error { return session.ErrNotFound })
	return app
}

func TestCircuitBreaker_OpensOnServerErrors(t *testing.T) {
	app := newBreakerApp()

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/fail", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestCircuitBreaker_IgnoresClientErrors(t *testing.T) {
	app := newBreakerApp()

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	}
}

func TestNewCORS_Disabled(t *testing.T) {
	app := fiber.New()
	app.Use(NewCORS(config.CORSConfig{Enabled: false}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://example.com")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
