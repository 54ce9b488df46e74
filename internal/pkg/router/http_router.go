package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agricapital/agricapital/internal/pkg/constants"
)

type HttpRouter struct {
	c Controllers
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Provider webhooks stay outside the limiters
	webhooks := app.Group(constants.WebhooksRoute)
	webhooks.Options("/:provider", h.c.Webhooks.HandleWebhookPreflight)
	webhooks.Post("/:provider", h.c.Webhooks.HandleWebhook)

	if h.c.Health != nil {
		app.Get(constants.HealthRoute, h.c.Health)
	}

	// Payer return page
	page := append(optional(h.c.PageLimit), h.c.Returns.HandlePaymentReturnPage)
	app.Get(constants.PaymentReturnRoute, page...)
}

func NewHttpRouter(c Controllers) *HttpRouter {
	return &HttpRouter{c: c}
}
