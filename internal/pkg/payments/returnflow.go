package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/agricapital/agricapital/app/models"
)

// ReturnState is what the payer sees on the return page.
type ReturnState string

const (
	ReturnChecking  ReturnState = "checking"
	ReturnSucceeded ReturnState = "succeeded"
	ReturnFailed    ReturnState = "failed"
	ReturnAwaiting  ReturnState = "awaiting-confirmation"
)

// IsTerminal reports whether no further check can change the state.
func (s ReturnState) IsTerminal() bool {
	return s == ReturnSucceeded || s == ReturnFailed
}

// ReturnParams are the identifiers a provider appends to the return URL.
type ReturnParams struct {
	Reference     string `json:"reference,omitempty" validate:"max=100"`
	TransactionID string `json:"transaction_id,omitempty" validate:"max=100"`
	Status        string `json:"status,omitempty" validate:"max=50"`
	Provider      string `json:"provider" validate:"oneof=auto fedapay kkiapay"`
}

// ParseReturnParams reads reference|ref, id|transaction_id|transactionId,
// status and provider. An unknown provider becomes auto.
func ParseReturnParams(get func(key string) string) ReturnParams {
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(get(k)); v != "" {
				return v
			}
		}
		return ""
	}

	p := ReturnParams{
		Reference:     first("reference", "ref"),
		TransactionID: first("id", "transaction_id", "transactionId"),
		Status:        strings.ToLower(first("status")),
		Provider:      strings.ToLower(first("provider")),
	}
	switch p.Provider {
	case models.PaymentProviderFedaPay, models.PaymentProviderKKiaPay:
	default:
		p.Provider = ProviderAuto
	}
	return p
}

// HasIdentifiers reports whether there is anything to reconcile.
func (p ReturnParams) HasIdentifiers() bool {
	return p.Reference != "" || p.TransactionID != ""
}

// ClaimsSuccess reports whether the provider redirect itself reported success.
func (p ReturnParams) ClaimsSuccess() bool {
	return p.Status == "success" || p.Status == "approved"
}

// PaymentSummary is the part of a payment shown on the return page.
type PaymentSummary struct {
	Reference      string          `json:"reference"`
	Status         string          `json:"statut"`
	Type           string          `json:"type_paiement"`
	TypeLabel      string          `json:"type_label"`
	Amount         decimal.Decimal `json:"montant"`
	PlantationName string          `json:"plantation,omitempty"`
}

// SummarizePayment builds the payer-facing summary of p.
func SummarizePayment(p *models.Payment) *PaymentSummary {
	if p == nil {
		return nil
	}
	s := &PaymentSummary{
		Reference: p.Reference,
		Status:    p.Status,
		Type:      p.Type,
		TypeLabel: p.TypeLabel(),
		Amount:    p.EffectiveAmount(),
	}
	if p.Plantation != nil {
		s.PlantationName = p.Plantation.DisplayName()
	}
	return s
}

// CheckResult is the outcome of one return-flow check.
type CheckResult struct {
	State    ReturnState
	Payment  *PaymentSummary
	Provider string
	Applied  bool
}

// Checker runs one return-flow check.
type Checker interface {
	Check(ctx context.Context, params ReturnParams) CheckResult
}

// ReturnChecker reconciles a payment from return URL identifiers.
type ReturnChecker struct {
	svc       *Service
	verifiers *Verifiers
	validate  *validator.Validate
}

// NewReturnChecker creates a checker settling through svc.
func NewReturnChecker(svc *Service, verifiers *Verifiers) *ReturnChecker {
	if verifiers == nil {
		verifiers = NewVerifiers()
	}
	return &ReturnChecker{svc: svc, verifiers: verifiers, validate: validator.New()}
}

// Check never fails: store errors, missing records and unreachable providers
// all leave the payer in ReturnAwaiting.
func (c *ReturnChecker) Check(ctx context.Context, params ReturnParams) CheckResult {
	awaiting := CheckResult{State: ReturnAwaiting}

	if !params.HasIdentifiers() {
		return awaiting
	}
	if err := c.validate.Struct(params); err != nil {
		log.Warnf("[ReturnFlow] rejected return params: %v", err)
		return awaiting
	}

	payment, err := c.svc.Lookup(ctx, params.Reference, params.TransactionID)
	if err != nil {
		if !errors.Is(err, ErrPaymentNotFound) {
			log.Errorf("[ReturnFlow] lookup ref=%s tx=%s: %v", params.Reference, params.TransactionID, err)
		}
		return awaiting
	}
	awaiting.Payment = SummarizePayment(payment)

	if payment.IsTerminal() {
		return CheckResult{State: stateForStatus(payment.Status), Payment: SummarizePayment(payment)}
	}

	if params.TransactionID != "" {
		verification, err := c.verifiers.Resolve(ctx, payment.Metadata.Data().PaymentProvider, params.Provider, params.TransactionID)
		if err == nil && verification.Outcome.IsDefinitive() {
			return c.settle(ctx, payment, SettleInput{
				PaymentID:        payment.ID,
				Outcome:          verification.Outcome,
				TransactionID:    params.TransactionID,
				AmountPaid:       verification.Amount,
				VerifiedProvider: verification.Provider,
				Source:           SourceReturn,
			}, awaiting)
		}
	}

	if params.ClaimsSuccess() {
		log.Infof("[ReturnFlow] no definitive provider answer for %s, trusting return status %q", payment.Reference, params.Status)
		return c.settle(ctx, payment, SettleInput{
			PaymentID:     payment.ID,
			Outcome:       OutcomeApproved,
			TransactionID: params.TransactionID,
			Source:        SourceReturn,
		}, awaiting)
	}

	return awaiting
}

func (c *ReturnChecker) settle(ctx context.Context, payment *models.Payment, in SettleInput, awaiting CheckResult) CheckResult {
	res, err := c.svc.Settle(ctx, in)
	if err != nil {
		log.Errorf("[ReturnFlow] settling %s failed: %v", payment.Reference, err)
		return awaiting
	}
	return CheckResult{
		State:    stateForStatus(res.Payment.Status),
		Payment:  SummarizePayment(res.Payment),
		Provider: in.VerifiedProvider,
		Applied:  res.Applied,
	}
}

func stateForStatus(status string) ReturnState {
	switch status {
	case models.PaymentStatusValid:
		return ReturnSucceeded
	case models.PaymentStatusFailed, models.PaymentStatusRejected:
		return ReturnFailed
	default:
		return ReturnAwaiting
	}
}

// checkTimeout bounds one check including every provider call it makes.
const checkTimeout = 30 * time.Second
