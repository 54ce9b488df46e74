package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/agricapital/agricapital/internal/pkg/payments"
	"github.com/agricapital/agricapital/internal/pkg/viewmodel"
)

// PaymentReturnController serves the page payers land on after checkout and
// the JSON endpoints it polls.
type PaymentReturnController struct {
	registry     *payments.Registry
	pollInterval time.Duration
}

func NewPaymentReturnController(registry *payments.Registry, cfg payments.PollerConfig) *PaymentReturnController {
	return &PaymentReturnController{registry: registry, pollInterval: cfg.Interval}
}

// HandlePaymentReturnPage starts a return session and renders its first result.
func (rc *PaymentReturnController) HandlePaymentReturnPage(c *fiber.Ctx) error {
	params := payments.ParseReturnParams(func(key string) string { return c.Query(key) })
	snap := rc.registry.Start(params)
	log.Infof("[ReturnFlow] session %s ref=%s tx=%s provider=%s -> %s",
		snap.Session, params.Reference, params.TransactionID, params.Provider, snap.State)

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Render("payment_return", viewmodel.NewPaymentReturn(snap, rc.pollInterval.Milliseconds()))
}

// HandleReturnSnapshot returns the current state of a return session.
func (rc *PaymentReturnController) HandleReturnSnapshot(c *fiber.Ctx) error {
	session, ok := sessionParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_session"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := rc.registry.Get(ctx, session)
	if err != nil {
		return sessionError(c, session, err)
	}
	return c.JSON(snap)
}

// HandleReturnRefresh runs a manual check for a return session.
func (rc *PaymentReturnController) HandleReturnRefresh(c *fiber.Ctx) error {
	session, ok := sessionParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_session"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := rc.registry.Refresh(ctx, session)
	if err != nil {
		return sessionError(c, session, err)
	}
	return c.JSON(snap)
}

func sessionParam(c *fiber.Ctx) (string, bool) {
	id, err := uuid.Parse(c.Params("session"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func sessionError(c *fiber.Ctx, session string, err error) error {
	if errors.Is(err, payments.ErrSessionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session_not_found"})
	}
	log.Errorf("[ReturnFlow] session %s: %v", session, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
}
