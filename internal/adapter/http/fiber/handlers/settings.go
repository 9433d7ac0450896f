package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/adapter/http/fiber/middleware"
	"github.com/kogoto-lab/kogoto/internal/domain"
)

type SettingsHandler struct {
	service SettingsService
	log     *zap.Logger
}

func NewSettingsHandler(service SettingsService, log *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		log:     log,
	}
}

func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	v, err := h.service.Get(c.UserContext(), middleware.LearnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(v)
}

// Put stores the settings after sanitizing them and echoes what was stored.
func (h *SettingsHandler) Put(c *fiber.Ctx) error {
	var req domain.VoiceSettings
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	v, err := h.service.Save(c.UserContext(), middleware.LearnerID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(v)
}

func (h *SettingsHandler) Privacy(c *fiber.Ctx) error {
	ok, err := h.service.PrivacyAcknowledged(c.UserContext(), middleware.LearnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"acknowledged": ok})
}

func (h *SettingsHandler) AcknowledgePrivacy(c *fiber.Ctx) error {
	if err := h.service.AcknowledgePrivacy(c.UserContext(), middleware.LearnerID(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"acknowledged": true})
}
