package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	service GuestAuth
	log     *zap.Logger
}

func NewAuthHandler(service GuestAuth, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		log:     log,
	}
}

type RefreshRequest struct {
	Token string `json:"token"`
}

// Guest creates an anonymous learner and returns its bearer token.
func (h *AuthHandler) Guest(c *fiber.Ctx) error {
	tok, err := h.service.IssueGuest(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(tok)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token is required"})
	}

	tok, err := h.service.Refresh(c.UserContext(), req.Token)
	if err != nil {
		h.log.Debug("Token refresh rejected", zap.Error(err))
		return err
	}
	return c.JSON(tok)
}
