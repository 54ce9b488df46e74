// Package paymentstest provides in-memory doubles for the payments package.
package paymentstest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/agricapital/agricapital/app/models"
	"github.com/agricapital/agricapital/internal/pkg/payments"
)

// MemoryRepository is a payments.Repository kept in maps. Conditional updates
// and transaction rollback behave like the GORM repository.
type MemoryRepository struct {
	txMu sync.Mutex

	mu          sync.Mutex
	payments    map[string]models.Payment
	plantations map[string]models.Plantation
	events      []models.PaymentEvent

	// Fail* make the matching operation return the error.
	FailCreateEvent     error
	FailUpdatePayment   error
	FailApplyActivation error
	FailLookup          error

	// Counters of writes that changed state.
	PaymentUpdates int
	Activations    int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		payments:    make(map[string]models.Payment),
		plantations: make(map[string]models.Plantation),
	}
}

// AddPayment stores p as is.
func (r *MemoryRepository) AddPayment(p models.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Plantation = nil
	r.payments[p.ID] = p
}

// AddPlantation stores p as is.
func (r *MemoryRepository) AddPlantation(p models.Plantation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plantations[p.ID] = p
}

// Payment returns the stored payment without its plantation.
func (r *MemoryRepository) Payment(id string) models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payments[id]
}

// Plantation returns the stored plantation.
func (r *MemoryRepository) Plantation(id string) models.Plantation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.plantations[id]
}

// Events returns a copy of the audit log.
func (r *MemoryRepository) Events() []models.PaymentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PaymentEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) FindPaymentByID(_ context.Context, id string) (*models.Payment, error) {
	return r.find(func(p models.Payment) bool { return p.ID == id })
}

func (r *MemoryRepository) FindPaymentByReference(_ context.Context, reference string) (*models.Payment, error) {
	if reference == "" {
		return nil, payments.ErrPaymentNotFound
	}
	return r.find(func(p models.Payment) bool { return p.Reference == reference })
}

func (r *MemoryRepository) FindPaymentByTransactionID(_ context.Context, transactionID string) (*models.Payment, error) {
	if transactionID == "" {
		return nil, payments.ErrPaymentNotFound
	}
	return r.find(func(p models.Payment) bool {
		return p.TransactionID != nil && *p.TransactionID == transactionID
	})
}

func (r *MemoryRepository) find(match func(models.Payment) bool) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailLookup != nil {
		return nil, r.FailLookup
	}
	for _, p := range r.payments {
		if !match(p) {
			continue
		}
		out := p
		if p.PlantationID != nil {
			if pl, ok := r.plantations[*p.PlantationID]; ok {
				out.Plantation = &pl
			}
		}
		return &out, nil
	}
	return nil, payments.ErrPaymentNotFound
}

func (r *MemoryRepository) LockPlantation(_ context.Context, id string) (*models.Plantation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plantations[id]
	if !ok {
		return nil, payments.ErrPlantationNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) UpdatePaymentIfPending(_ context.Context, id string, upd payments.PaymentUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdatePayment != nil {
		return false, r.FailUpdatePayment
	}
	p, ok := r.payments[id]
	if !ok || models.IsTerminalPaymentStatus(p.Status) {
		return false, nil
	}
	p.Status = upd.Status
	if upd.TransactionID != "" {
		txID := upd.TransactionID
		p.TransactionID = &txID
	}
	paid := upd.AmountPaid
	p.AmountPaid = &paid
	p.PaidAt = upd.PaidAt
	p.Metadata = datatypes.NewJSONType(upd.Metadata)
	p.UpdatedAt = time.Now()
	r.payments[id] = p
	r.PaymentUpdates++
	return true, nil
}

func (r *MemoryRepository) ApplyActivation(_ context.Context, plantationID string, upd payments.ActivationUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailApplyActivation != nil {
		return r.FailApplyActivation
	}
	p, ok := r.plantations[plantationID]
	if !ok {
		return payments.ErrPlantationNotFound
	}
	p.SurfaceActivatedHa = upd.SurfaceActivatedHa
	p.ActivationStatus = upd.ActivationStatus
	p.Status = upd.Status
	p.ActivatedAt = upd.ActivatedAt
	r.plantations[plantationID] = p
	r.Activations++
	return nil
}

func (r *MemoryRepository) CreateEvent(_ context.Context, event *models.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreateEvent != nil {
		return r.FailCreateEvent
	}
	event.ID = uint(len(r.events) + 1)
	event.CreatedAt = time.Now()
	r.events = append(r.events, *event)
	return nil
}

func (r *MemoryRepository) MarkEventProcessed(_ context.Context, id uint, paymentID *string, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 || int(id) > len(r.events) {
		return fmt.Errorf("event %d not found", id)
	}
	e := &r.events[id-1]
	if e.Processed {
		return nil
	}
	now := time.Now()
	e.Processed = true
	e.ProcessedAt = &now
	e.ProcessingError = processingError
	if paymentID != nil {
		pid := *paymentID
		e.PaymentID = &pid
	}
	return nil
}

// Transaction serializes transactions and restores payments and plantations
// when fn fails.
func (r *MemoryRepository) Transaction(_ context.Context, fn func(tx payments.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	savedPayments := make(map[string]models.Payment, len(r.payments))
	for k, v := range r.payments {
		savedPayments[k] = v
	}
	savedPlantations := make(map[string]models.Plantation, len(r.plantations))
	for k, v := range r.plantations {
		savedPlantations[k] = v
	}
	savedUpdates, savedActivations := r.PaymentUpdates, r.Activations
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.payments = savedPayments
		r.plantations = savedPlantations
		r.PaymentUpdates, r.Activations = savedUpdates, savedActivations
		r.mu.Unlock()
		return err
	}
	return nil
}

// Counter records increments in memory.
type Counter struct {
	mu     sync.Mutex
	Fields map[string]int64
}

func NewCounter() *Counter {
	return &Counter{Fields: make(map[string]int64)}
}

func (c *Counter) Incr(_ context.Context, field string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Fields[field]++
	return nil
}

func (c *Counter) Get(field string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Fields[field]
}

func (c *Counter) Stats(context.Context) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.Fields))
	for k, v := range c.Fields {
		out[k] = v
	}
	return out, nil
}

// StaticVerifier answers every Verify call with the same result.
type StaticVerifier struct {
	Provider string
	Result   *payments.Verification
	Err      error

	mu    sync.Mutex
	calls int
}

func (v *StaticVerifier) Name() string { return v.Provider }

func (v *StaticVerifier) Verify(_ context.Context, _ string) (*payments.Verification, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.Err != nil {
		return nil, v.Err
	}
	res := *v.Result
	res.Provider = v.Provider
	return &res, nil
}

// Calls returns how often Verify ran.
func (v *StaticVerifier) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// Fixture returns a pending payment of the given type for reference, linked to
// a plantation of subscribedHa with nothing activated yet.
func Fixture(reference, paymentType string, amountDue int64, subscribedHa string) (models.Payment, models.Plantation) {
	plantation := models.Plantation{
		ID:                  "pl-" + reference,
		Name:                "Plantation " + reference,
		UniqueID:            "PL-" + reference,
		SurfaceSubscribedHa: decimal.RequireFromString(subscribedHa),
		SurfaceActivatedHa:  decimal.Zero,
		Status:              models.PlantationStatusPending,
		ActivationStatus:    models.ActivationUnactivated,
	}
	plantationID := plantation.ID
	payment := models.Payment{
		ID:           "pay-" + reference,
		Reference:    reference,
		Status:       models.PaymentStatusPending,
		Type:         paymentType,
		AmountDue:    decimal.NewFromInt(amountDue),
		PlantationID: &plantationID,
	}
	return payment, plantation
}
