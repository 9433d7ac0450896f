package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/service/mood"
)

type MoodHandler struct {
	quiz MoodQuiz
	cfg  mood.Config
}

func NewMoodHandler(quiz MoodQuiz, cfg mood.Config) *MoodHandler {
	return &MoodHandler{quiz: quiz, cfg: cfg}
}

type MoodAnswerRequest struct {
	ID    string           `json:"id"`
	Guess domain.MoodGuess `json:"guess"`
}

func (h *MoodHandler) Question(c *fiber.Ctx) error {
	q, err := h.quiz.Pick()
	if err != nil {
		return err
	}
	return c.JSON(q)
}

func (h *MoodHandler) Answer(c *fiber.Ctx) error {
	var req MoodAnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	v, err := h.quiz.Check(req.ID, req.Guess)
	if err != nil {
		return err
	}
	return c.JSON(v)
}

// Evaluate scores one already-calibrated frame. Streams of raw blendshapes
// go through the mood websocket, which keeps smoothing state.
func (h *MoodHandler) Evaluate(c *fiber.Ctx) error {
	var scores domain.MoodScores
	if err := c.BodyParser(&scores); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	return c.JSON(mood.Evaluate(scores, h.cfg))
}
