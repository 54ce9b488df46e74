package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// StatsSource reads the reconciliation counters.
type StatsSource interface {
	Stats(ctx context.Context) (map[string]int64, error)
}

type PaymentStatsController struct {
	stats StatsSource
}

func NewPaymentStatsController(stats StatsSource) *PaymentStatsController {
	return &PaymentStatsController{stats: stats}
}

// HandlePaymentStats returns the webhook and settlement counters.
func (sc *PaymentStatsController) HandlePaymentStats(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	counters, err := sc.stats.Stats(ctx)
	if err != nil {
		log.Errorf("[Stats] reading payment counters: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "stats_unavailable"})
	}
	return c.JSON(fiber.Map{"counters": counters})
}
