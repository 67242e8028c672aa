package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/spec-kit/waitlist-service/internal/api/http/handlers"
	"github.com/spec-kit/waitlist-service/internal/ws"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Waitlist *handlers.WaitlistHandler
	Hub      *ws.Hub
}

// RegisterRoutes wires HTTP routes and the push channel upgrade.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/waitlist", cfg.Waitlist.Join)
	app.Get("/waitlist/:partyId", cfg.Waitlist.GetParty)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(cfg.Hub.Handle))
}
