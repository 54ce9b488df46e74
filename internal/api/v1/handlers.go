package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to the controllers so page and API share one behavior
	"github.com/agricapital/agricapital/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	returns *controllers.PaymentReturnController
	stats   *controllers.PaymentStatsController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(returns *controllers.PaymentReturnController, stats *controllers.PaymentStatsController) *APIServer {
	return &APIServer{returns: returns, stats: stats}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetPaymentReturn returns the snapshot of a return session.
// The controller reads the session from route params; the wrapper already set it.
func (s *APIServer) GetPaymentReturn(c *fiber.Ctx, session string) error {
	return s.returns.HandleReturnSnapshot(c)
}

// PostPaymentReturnRefresh triggers a manual verification for a return session.
func (s *APIServer) PostPaymentReturnRefresh(c *fiber.Ctx, session string) error {
	return s.returns.HandleReturnRefresh(c)
}

// GetPaymentStats returns reconciliation counters.
func (s *APIServer) GetPaymentStats(c *fiber.Ctx) error {
	return s.stats.HandlePaymentStats(c)
}
