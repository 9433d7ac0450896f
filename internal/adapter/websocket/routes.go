package websocket

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Register mounts the websocket endpoints behind authRequired.
func Register(app fiber.Router, authRequired fiber.Handler, hub *Hub, sessions *SessionStream, moods *MoodStream) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/updates", authRequired, websocket.New(hub.Handle))
	app.Get("/ws/sessions/:id", authRequired, websocket.New(sessions.Handle))
	app.Get("/ws/mood", authRequired, websocket.New(moods.Handle))
}
