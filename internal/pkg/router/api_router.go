package router

import (
	apiv1 "github.com/agricapital/agricapital/internal/api/v1"
	"github.com/agricapital/agricapital/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
)

type ApiRouter struct {
	c Controllers
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, optional(h.c.Limit)...)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer(h.c.Returns, h.c.Stats)
	apiv1.RegisterHandlers(v1, apiServer, optional(h.c.StatsAuth)...)
}

func NewApiRouter(c Controllers) *ApiRouter {
	return &ApiRouter{c: c}
}
