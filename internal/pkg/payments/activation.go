package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/agricapital/agricapital/app/models"
)

// surfacePrecision is the number of hectare decimals stored in superficie_activee.
const surfacePrecision = 4

// UnitPriceFor returns the plantation's access-right price per hectare, or the
// configured fallback when the plantation has none.
func UnitPriceFor(p *models.Plantation, cfg ActivationConfig) decimal.Decimal {
	if p != nil && p.UnitPricePerHa != nil && p.UnitPricePerHa.IsPositive() {
		return *p.UnitPricePerHa
	}
	if cfg.DefaultUnitPricePerHa.IsPositive() {
		return cfg.DefaultUnitPricePerHa
	}
	return decimal.NewFromInt(DefaultUnitPricePerHa)
}

// ComputeActivation derives the plantation columns written after an approved
// access-right payment of amountPaid.
//
// The result never exceeds the subscribed surface and never goes below the
// previously activated surface.
func ComputeActivation(p *models.Plantation, amountPaid decimal.Decimal, cfg ActivationConfig, now time.Time) ActivationUpdate {
	subscribed := p.SurfaceSubscribedHa
	if subscribed.IsNegative() {
		subscribed = decimal.Zero
	}
	previous := p.SurfaceActivatedHa
	if previous.IsNegative() {
		previous = decimal.Zero
	}

	paidFor := decimal.Zero
	if amountPaid.IsPositive() {
		paidFor = amountPaid.Div(UnitPriceFor(p, cfg)).Round(surfacePrecision)
	}

	next := decimal.Min(subscribed, previous.Add(paidFor))
	if next.LessThan(previous) {
		// Existing rows above the subscribed surface are left as they are.
		next = previous
	}

	update := ActivationUpdate{
		SurfaceActivatedHa: next,
		ActivatedAt:        p.ActivatedAt,
		Status:             p.Status,
		ActivationStatus:   p.ActivationStatus,
	}

	if previous.IsZero() && next.IsPositive() {
		ts := now
		update.ActivatedAt = &ts
	}

	switch {
	case next.IsPositive() && next.GreaterThanOrEqual(subscribed):
		update.ActivationStatus = models.ActivationActive
		update.Status = models.PlantationStatusActive
	case next.IsPositive():
		update.ActivationStatus = models.ActivationPartial
	}
	if update.Status == "" {
		update.Status = models.PlantationStatusPending
	}
	if update.ActivationStatus == "" {
		update.ActivationStatus = models.ActivationUnactivated
	}
	return update
}
