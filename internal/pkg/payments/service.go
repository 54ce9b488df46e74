package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agricapital/agricapital/app/models"
)

// Counter receives reconciliation counter increments. Implementations must not block.
type Counter interface {
	Incr(ctx context.Context, field string) error
}

type nopCounter struct{}

func (nopCounter) Incr(context.Context, string) error { return nil }

// Service settles payment records and cascades plantation activation.
type Service struct {
	repo     Repository
	cfg      Config
	counter  Counter
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a reconciliation service from an injected repository.
func NewService(repo Repository, cfg Config) *Service {
	if !cfg.Activation.DefaultUnitPricePerHa.IsPositive() {
		cfg.Activation = DefaultActivationConfig()
	}
	return &Service{
		repo:     repo,
		cfg:      cfg,
		counter:  nopCounter{},
		validate: validator.New(),
		now:      time.Now,
	}
}

// NewServiceFromDB creates a reconciliation service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, cfg Config) *Service {
	return NewService(NewRepository(db), cfg)
}

// WithCounter attaches reconciliation counters.
func (s *Service) WithCounter(c Counter) *Service {
	if c != nil {
		s.counter = c
	}
	return s
}

// Lookup finds a payment by reference first and by provider transaction id second.
func (s *Service) Lookup(ctx context.Context, reference, transactionID string) (*models.Payment, error) {
	reference = strings.TrimSpace(reference)
	transactionID = strings.TrimSpace(transactionID)

	if reference != "" {
		p, err := s.repo.FindPaymentByReference(ctx, reference)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrPaymentNotFound) {
			return nil, err
		}
	}
	if transactionID != "" {
		return s.repo.FindPaymentByTransactionID(ctx, transactionID)
	}
	return nil, ErrPaymentNotFound
}

// Settle moves a pending payment to its terminal status and, for approved
// access-right payments, cascades the paid surface onto the plantation.
// Both writes share one transaction. A payment that is already terminal is
// returned unchanged with Applied=false.
func (s *Service) Settle(ctx context.Context, in SettleInput) (*SettleResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid settle input: %w", err)
	}
	if !in.Outcome.IsDefinitive() {
		return nil, errors.New("settle requires an approved or declined outcome")
	}

	now := s.now()
	result := &SettleResult{}
	lostRace := false

	err := s.repo.Transaction(ctx, func(tx Repository) error {
		payment, err := tx.FindPaymentByID(ctx, in.PaymentID)
		if err != nil {
			return err
		}
		result.Payment = payment
		if payment.IsTerminal() {
			return nil
		}

		upd := buildPaymentUpdate(payment, in, now)
		applied, err := tx.UpdatePaymentIfPending(ctx, payment.ID, upd)
		if err != nil {
			return fmt.Errorf("update payment %s: %w", payment.ID, err)
		}
		if !applied {
			// Another path settled it between the read and the write.
			lostRace = true
			return nil
		}

		applyPaymentUpdate(payment, upd)
		result.Applied = true

		if in.Outcome != OutcomeApproved || !payment.IsAccessRight() {
			return nil
		}
		if payment.PlantationID == nil || *payment.PlantationID == "" {
			log.Warnf("[Settle] DA payment %s has no plantation, skipping activation", payment.Reference)
			return nil
		}

		plantation, err := tx.LockPlantation(ctx, *payment.PlantationID)
		if errors.Is(err, ErrPlantationNotFound) {
			log.Warnf("[Settle] plantation %s of payment %s not found, skipping activation", *payment.PlantationID, payment.Reference)
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock plantation %s: %w", *payment.PlantationID, err)
		}

		act := ComputeActivation(plantation, upd.AmountPaid, s.cfg.Activation, now)
		if err := tx.ApplyActivation(ctx, plantation.ID, act); err != nil {
			return fmt.Errorf("activate plantation %s: %w", plantation.ID, err)
		}
		applyActivationUpdate(plantation, act)
		payment.Plantation = plantation
		result.Plantation = plantation
		return nil
	})
	if err != nil {
		return nil, err
	}

	if lostRace {
		// Read again outside the transaction: its snapshot still shows the
		// pending row the winner has since committed over.
		if fresh, ferr := s.repo.FindPaymentByID(ctx, in.PaymentID); ferr == nil {
			result.Payment = fresh
		} else {
			log.Warnf("[Settle] re-reading payment %s: %v", in.PaymentID, ferr)
		}
	}

	if result.Applied {
		log.Infof("[Settle] payment %s -> %s (source=%s, provider=%s)",
			result.Payment.Reference, result.Payment.Status, in.Source, in.VerifiedProvider)
		if result.Plantation != nil {
			log.Infof("[Settle] plantation %s activated %s/%s ha (%s)",
				result.Plantation.ID,
				result.Plantation.SurfaceActivatedHa.String(),
				result.Plantation.SurfaceSubscribedHa.String(),
				result.Plantation.ActivationStatus)
		}
		s.incr(ctx, fmt.Sprintf("settle:%s:%s", in.Source, in.Outcome))
	}
	return result, nil
}

func (s *Service) incr(ctx context.Context, field string) {
	if err := s.counter.Incr(ctx, field); err != nil {
		log.Warnf("[Settle] counter %s: %v", field, err)
	}
}

func buildPaymentUpdate(p *models.Payment, in SettleInput, now time.Time) PaymentUpdate {
	meta := p.Metadata.Data()
	if in.VerifiedProvider != "" {
		ts := now
		meta.VerifiedProvider = in.VerifiedProvider
		meta.VerifiedAt = &ts
	}

	upd := PaymentUpdate{
		TransactionID: strings.TrimSpace(in.TransactionID),
		Metadata:      meta,
	}
	if in.Outcome == OutcomeApproved {
		paidAt := now
		upd.Status = models.PaymentStatusValid
		upd.PaidAt = &paidAt
		upd.AmountPaid = p.AmountDue
		if in.AmountPaid != nil && in.AmountPaid.IsPositive() {
			upd.AmountPaid = *in.AmountPaid
		}
		return upd
	}

	upd.Status = models.PaymentStatusFailed
	upd.AmountPaid = decimal.Zero
	return upd
}

func applyPaymentUpdate(p *models.Payment, upd PaymentUpdate) {
	p.Status = upd.Status
	if upd.TransactionID != "" {
		txID := upd.TransactionID
		p.TransactionID = &txID
	}
	paid := upd.AmountPaid
	p.AmountPaid = &paid
	p.PaidAt = upd.PaidAt
	p.Metadata = datatypes.NewJSONType(upd.Metadata)
}

func applyActivationUpdate(p *models.Plantation, upd ActivationUpdate) {
	p.SurfaceActivatedHa = upd.SurfaceActivatedHa
	p.ActivationStatus = upd.ActivationStatus
	p.Status = upd.Status
	p.ActivatedAt = upd.ActivatedAt
}
