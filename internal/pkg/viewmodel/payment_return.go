package viewmodel

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/agricapital/agricapital/app/models"
	"github.com/agricapital/agricapital/internal/pkg/env"
	"github.com/agricapital/agricapital/internal/pkg/payments"
)

// PaymentReturn is the data rendered by views/payment_return.html.
type PaymentReturn struct {
	Layout

	Session              string
	State                string
	Checking             bool
	Succeeded            bool
	Failed               bool
	Awaiting             bool
	AutoRetriesExhausted bool
	AutoChecks           int
	MaxAutoChecks        int
	PollIntervalMs       int64

	HasPayment     bool
	Reference      string
	TypeLabel      string
	Amount         string
	PlantationName string
	IsAccessRight  bool

	StatusURL  string
	RefreshURL string
}

// NewPaymentReturn maps a return session snapshot onto the page model.
func NewPaymentReturn(snap payments.Snapshot, pollIntervalMs int64) PaymentReturn {
	vm := PaymentReturn{
		Layout:               Layout{Page: "payment_return", Title: "Résultat du paiement", AppName: "AgriCapital", IsDev: env.IsDev()},
		Session:              snap.Session,
		State:                string(snap.State),
		Checking:             snap.State == payments.ReturnChecking,
		Succeeded:            snap.State == payments.ReturnSucceeded,
		Failed:               snap.State == payments.ReturnFailed,
		Awaiting:             snap.State == payments.ReturnAwaiting,
		AutoRetriesExhausted: snap.AutoRetriesExhausted,
		AutoChecks:           snap.AutoChecks,
		MaxAutoChecks:        snap.MaxAutoChecks,
		PollIntervalMs:       pollIntervalMs,
		StatusURL:            "/api/v1/payments/return/" + snap.Session,
		RefreshURL:           "/api/v1/payments/return/" + snap.Session + "/refresh",
	}
	if p := snap.Payment; p != nil {
		vm.HasPayment = true
		vm.Reference = p.Reference
		vm.TypeLabel = p.TypeLabel
		vm.Amount = FormatMontant(p.Amount)
		vm.PlantationName = p.PlantationName
		vm.IsAccessRight = p.Type == models.PaymentTypeAccessRight
	} else if snap.Params.Reference != "" {
		vm.Reference = snap.Params.Reference
	}
	return vm
}

// frPrinter formats numbers with French grouping and decimal comma.
var frPrinter = message.NewPrinter(language.French)

// Narrow and regular no-break spaces from the locale data become plain spaces.
var groupSpaces = strings.NewReplacer("\u202f", " ", "\u00a0", " ")

// FormatMontant renders an amount the French way, e.g. "30 000 F CFA" or
// "1 250,5 F CFA".
func FormatMontant(amount decimal.Decimal) string {
	n := number.Decimal(amount.Round(2).InexactFloat64(), number.MaxFractionDigits(2))
	return groupSpaces.Replace(frPrinter.Sprint(n)) + " F CFA"
}
