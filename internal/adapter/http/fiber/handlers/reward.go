package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/adapter/http/fiber/middleware"
	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/service/reward"
)

type RewardHandler struct {
	service RewardService
	log     *zap.Logger
}

func NewRewardHandler(service RewardService, log *zap.Logger) *RewardHandler {
	return &RewardHandler{
		service: service,
		log:     log,
	}
}

type FriendResponse struct {
	domain.FriendView
	ComboTier int `json:"combo_tier"`
}

type FeedRequest struct {
	Amount int64 `json:"amount"`
}

func (h *RewardHandler) Wallet(c *fiber.Ctx) error {
	balance, err := h.service.Balance(c.UserContext(), middleware.LearnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"balance": balance})
}

func (h *RewardHandler) Friend(c *fiber.Ctx) error {
	view, err := h.service.Friend(c.UserContext(), middleware.LearnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(FriendResponse{FriendView: view, ComboTier: reward.ComboTier(view.Level)})
}

// Feed spends wallet points on the pet. Asking for more than the balance
// spends the whole balance.
func (h *RewardHandler) Feed(c *fiber.Ctx) error {
	var req FeedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	res, err := h.service.Feed(c.UserContext(), middleware.LearnerID(c), req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(res)
}
