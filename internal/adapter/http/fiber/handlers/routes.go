package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Handlers groups everything mounted under /api/v1.
type Handlers struct {
	Auth     *AuthHandler
	Answer   *AnswerHandler
	Session  *SessionHandler
	Progress *ProgressHandler
	Reward   *RewardHandler
	Settings *SettingsHandler
	Mood     *MoodHandler
}

// Register mounts the public routes and then the routes behind authRequired.
func Register(router fiber.Router, h Handlers, authRequired fiber.Handler) {
	api := router.Group("/api/v1")

	api.Post("/auth/guest", h.Auth.Guest)
	api.Post("/auth/refresh", h.Auth.Refresh)
	api.Post("/normalize", h.Answer.Normalize)
	api.Post("/match", h.Answer.Match)

	secured := api.Group("", authRequired)

	secured.Post("/sessions", h.Session.Create)
	secured.Get("/sessions/:id", h.Session.Get)
	secured.Delete("/sessions/:id", h.Session.Delete)
	secured.Post("/sessions/:id/start", h.Session.Start)
	secured.Post("/sessions/:id/retry", h.Session.Retry)
	secured.Post("/sessions/:id/utterance", h.Session.Utterance)
	secured.Post("/sessions/:id/select", h.Session.Select)
	secured.Post("/sessions/:id/next", h.Session.Next)
	secured.Post("/sessions/:id/quit", h.Session.Quit)
	secured.Get("/sessions/:id/result", h.Session.Result)

	secured.Get("/progress", h.Progress.Get)
	secured.Get("/progress/wrong", h.Progress.TopWrong)
	secured.Delete("/progress/stats", h.Progress.ResetStats)
	secured.Delete("/progress/stocks", h.Progress.ResetStocks)

	secured.Get("/wallet", h.Reward.Wallet)
	secured.Get("/friend", h.Reward.Friend)
	secured.Post("/friend/feed", h.Reward.Feed)

	secured.Get("/settings", h.Settings.Get)
	secured.Put("/settings", h.Settings.Put)
	secured.Get("/privacy", h.Settings.Privacy)
	secured.Post("/privacy/ack", h.Settings.AcknowledgePrivacy)

	secured.Get("/mood/question", h.Mood.Question)
	secured.Post("/mood/answer", h.Mood.Answer)
	secured.Post("/mood/evaluate", h.Mood.Evaluate)
}
