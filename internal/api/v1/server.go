package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// Pong is the body of GET /ping.
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface lists the operations documented in public/docs/v1/openapi.yml.
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// (GET /payments/return/{session})
	GetPaymentReturn(c *fiber.Ctx, session string) error
	// (POST /payments/return/{session}/refresh)
	PostPaymentReturnRefresh(c *fiber.Ctx, session string) error
	// (GET /payments/stats)
	GetPaymentStats(c *fiber.Ctx) error
}

// ServerInterfaceWrapper extracts path parameters before calling the server.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (siw *ServerInterfaceWrapper) GetPing(c *fiber.Ctx) error {
	return siw.Handler.GetPing(c)
}

func (siw *ServerInterfaceWrapper) GetPaymentReturn(c *fiber.Ctx) error {
	return siw.Handler.GetPaymentReturn(c, c.Params("session"))
}

func (siw *ServerInterfaceWrapper) PostPaymentReturnRefresh(c *fiber.Ctx) error {
	return siw.Handler.PostPaymentReturnRefresh(c, c.Params("session"))
}

func (siw *ServerInterfaceWrapper) GetPaymentStats(c *fiber.Ctx) error {
	return siw.Handler.GetPaymentStats(c)
}

// RegisterHandlers mounts si on router.
func RegisterHandlers(router fiber.Router, si ServerInterface, statsMiddleware ...fiber.Handler) {
	wrapper := ServerInterfaceWrapper{Handler: si}

	router.Get("/ping", wrapper.GetPing)
	router.Get("/payments/return/:session", wrapper.GetPaymentReturn)
	router.Post("/payments/return/:session/refresh", wrapper.PostPaymentReturnRefresh)

	stats := append(append([]fiber.Handler{}, statsMiddleware...), wrapper.GetPaymentStats)
	router.Get("/payments/stats", stats...)
}
