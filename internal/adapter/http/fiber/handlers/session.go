package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/adapter/http/fiber/middleware"
	"github.com/kogoto-lab/kogoto/internal/domain"
)

type SessionHandler struct {
	service SessionService
	log     *zap.Logger
}

func NewSessionHandler(service SessionService, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		log:     log,
	}
}

type CreateSessionRequest struct {
	Mode domain.SessionMode `json:"mode"`
}

type UtteranceRequest struct {
	Text string `json:"text"`
}

type UtteranceResponse struct {
	Match   domain.MatchResult `json:"match"`
	Session domain.SessionView `json:"session"`
}

type SelectRequest struct {
	Choice int `json:"choice"`
}

func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	if req.Mode == "" {
		req.Mode = domain.ModeAll
	}

	view, err := h.service.Create(c.UserContext(), middleware.LearnerID(c), req.Mode)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

func (h *SessionHandler) Get(c *fiber.Ctx) error {
	view, err := h.service.Get(c.UserContext(), middleware.LearnerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (h *SessionHandler) Start(c *fiber.Ctx) error {
	view, err := h.service.Start(c.UserContext(), middleware.LearnerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (h *SessionHandler) Retry(c *fiber.Ctx) error {
	view, err := h.service.Retry(c.UserContext(), middleware.LearnerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// Utterance submits recognized speech for the open answer window.
func (h *SessionHandler) Utterance(c *fiber.Ctx) error {
	var req UtteranceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	res, view, err := h.service.SubmitUtterance(c.UserContext(), middleware.LearnerID(c), c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return c.JSON(UtteranceResponse{Match: res, Session: view})
}

func (h *SessionHandler) Select(c *fiber.Ctx) error {
	var req SelectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	view, err := h.service.Select(c.UserContext(), middleware.LearnerID(c), c.Params("id"), req.Choice)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (h *SessionHandler) Next(c *fiber.Ctx) error {
	view, err := h.service.Next(c.UserContext(), middleware.LearnerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (h *SessionHandler) Quit(c *fiber.Ctx) error {
	res, err := h.service.Quit(c.UserContext(), middleware.LearnerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *SessionHandler) Result(c *fiber.Ctx) error {
	res, err := h.service.Result(c.UserContext(), middleware.LearnerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Remove(middleware.LearnerID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
