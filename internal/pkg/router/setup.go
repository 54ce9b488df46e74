package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agricapital/agricapital/app/controllers"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Controllers are the handlers built in main and shared by the routers.
type Controllers struct {
	Webhooks *controllers.PaymentWebhookController
	Returns  *controllers.PaymentReturnController
	Stats    *controllers.PaymentStatsController
	Health   fiber.Handler

	// StatsAuth guards the counters endpoint. Optional.
	StatsAuth fiber.Handler
	// Limit wraps the API group. Optional.
	Limit fiber.Handler
	// PageLimit wraps the payer return page, which opens return sessions. Optional.
	PageLimit fiber.Handler
}

func InstallRouter(app *fiber.App, c Controllers) {
	setup(app, NewHttpRouter(c), NewApiRouter(c))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

func optional(h fiber.Handler) []fiber.Handler {
	if h == nil {
		return nil
	}
	return []fiber.Handler{h}
}
