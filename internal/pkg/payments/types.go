package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/agricapital/agricapital/app/models"
)

// Outcome is the provider-neutral result of a transaction.
type Outcome int

const (
	OutcomeIndeterminate Outcome = iota
	OutcomeApproved
	OutcomeDeclined
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApproved:
		return "approved"
	case OutcomeDeclined:
		return "declined"
	default:
		return "indeterminate"
	}
}

// IsDefinitive reports whether the outcome settles a payment.
func (o Outcome) IsDefinitive() bool {
	return o == OutcomeApproved || o == OutcomeDeclined
}

// Settlement sources.
const (
	SourceWebhook = "webhook"
	SourceReturn  = "return"
)

// Verification is the normalized answer of a provider verify call.
type Verification struct {
	Provider  string
	Outcome   Outcome
	RawStatus string
	Amount    *decimal.Decimal
}

// SettleInput describes one terminal transition of a payment record.
type SettleInput struct {
	PaymentID     string `validate:"required"`
	Outcome       Outcome
	TransactionID string
	// AmountPaid defaults to the amount due when approved and to zero when declined.
	AmountPaid       *decimal.Decimal
	VerifiedProvider string
	Source           string `validate:"required,oneof=webhook return"`
}

// SettleResult reports what a Settle call changed.
type SettleResult struct {
	// Applied is false when the payment was already terminal.
	Applied    bool
	Payment    *models.Payment
	Plantation *models.Plantation
}

// PaymentUpdate is the column set written by a conditional settlement.
type PaymentUpdate struct {
	Status        string
	TransactionID string
	AmountPaid    decimal.Decimal
	PaidAt        *time.Time
	Metadata      models.PaymentMetadata
}

// ActivationUpdate is the column set written by the activation cascade.
type ActivationUpdate struct {
	SurfaceActivatedHa decimal.Decimal
	ActivationStatus   string
	Status             string
	ActivatedAt        *time.Time
}

// WebhookEventInput is the normalized audit row of one webhook delivery.
type WebhookEventInput struct {
	Provider       string
	Envelope       *Envelope
	RawPayload     string
	SignatureValid bool
	ParseError     error
}
