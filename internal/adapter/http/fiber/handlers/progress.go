package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/adapter/http/fiber/middleware"
	"github.com/kogoto-lab/kogoto/internal/domain"
)

type ProgressHandler struct {
	service ProgressService
	vocab   VocabSource
	log     *zap.Logger
}

func NewProgressHandler(service ProgressService, vocab VocabSource, log *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		vocab:   vocab,
		log:     log,
	}
}

type ProgressResponse struct {
	Counts domain.StockCounts `json:"counts"`
	Words  []domain.StatRow   `json:"words"`
}

// Get returns the stock counts and the per-word statistics of every item
// that has been answered at least once.
func (h *ProgressHandler) Get(c *fiber.Ctx) error {
	learnerID := middleware.LearnerID(c)

	counts, err := h.service.Counts(c.UserContext(), learnerID)
	if err != nil {
		return err
	}
	rows, err := h.service.List(c.UserContext(), learnerID, h.vocab.All())
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []domain.StatRow{}
	}
	return c.JSON(ProgressResponse{Counts: counts, Words: rows})
}

func (h *ProgressHandler) TopWrong(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must not be negative"})
	}

	rows, err := h.service.TopWrong(c.UserContext(), middleware.LearnerID(c), h.vocab.All(), limit)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []domain.StatRow{}
	}
	return c.JSON(rows)
}

func (h *ProgressHandler) ResetStats(c *fiber.Ctx) error {
	if err := h.service.ResetStats(c.UserContext(), middleware.LearnerID(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ProgressHandler) ResetStocks(c *fiber.Ctx) error {
	if err := h.service.ResetStocks(c.UserContext(), middleware.LearnerID(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
