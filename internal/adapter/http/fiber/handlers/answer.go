package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/service/answer"
)

// AnswerHandler exposes the normalizer and matcher without a session, for
// clients that run their own attempt loop.
type AnswerHandler struct {
	matcher AnswerMatcher
}

func NewAnswerHandler(matcher AnswerMatcher) *AnswerHandler {
	return &AnswerHandler{matcher: matcher}
}

type NormalizeRequest struct {
	Text string `json:"text"`
}

type NormalizeResponse struct {
	Normalized string `json:"normalized"`
	Numeral    int    `json:"numeral,omitempty"`
}

type MatchRequest struct {
	Utterance string   `json:"utterance"`
	Choices   []string `json:"choices"`
}

func (h *AnswerHandler) Normalize(c *fiber.Ctx) error {
	var req NormalizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	resp := NormalizeResponse{Normalized: answer.Normalize(req.Text)}
	if n, ok := answer.ResolveNumeral(resp.Normalized); ok {
		resp.Numeral = n
	}
	return c.JSON(resp)
}

func (h *AnswerHandler) Match(c *fiber.Ctx) error {
	var req MatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	if len(req.Choices) != domain.ChoiceCount {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "exactly 4 choices are required"})
	}

	var set domain.ChoiceSet
	for i, ch := range req.Choices {
		if strings.TrimSpace(ch) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "choices must not be blank"})
		}
		set[i] = ch
	}

	return c.JSON(h.matcher.Match(req.Utterance, set))
}
