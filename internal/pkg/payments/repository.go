package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agricapital/agricapital/app/models"
)

// ErrPlantationNotFound is returned when a payment points at a missing plantation.
var ErrPlantationNotFound = errors.New("plantation not found")

// Repository provides the DB operations used by the reconciliation service.
type Repository interface {
	FindPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error)
	FindPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)

	// UpdatePaymentIfPending writes upd only while the payment is not terminal.
	// It reports whether a row was changed.
	UpdatePaymentIfPending(ctx context.Context, id string, upd PaymentUpdate) (bool, error)
	// LockPlantation reads a plantation for update inside a transaction.
	LockPlantation(ctx context.Context, id string) (*models.Plantation, error)
	ApplyActivation(ctx context.Context, plantationID string, upd ActivationUpdate) error

	CreateEvent(ctx context.Context, event *models.PaymentEvent) error
	MarkEventProcessed(ctx context.Context, id uint, paymentID *string, processingError string) error

	// Transaction runs fn against a repository bound to a single DB transaction.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.findPayment(ctx, "id = ?", id)
}

func (r *gormRepository) FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	return r.findPayment(ctx, "reference = ?", strings.TrimSpace(reference))
}

func (r *gormRepository) FindPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	return r.findPayment(ctx, "fedapay_transaction_id = ?", strings.TrimSpace(transactionID))
}

func (r *gormRepository) findPayment(ctx context.Context, query string, arg string) (*models.Payment, error) {
	if arg == "" {
		return nil, ErrPaymentNotFound
	}
	var p models.Payment
	err := r.db.WithContext(ctx).Preload("Plantation").Where(query, arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) UpdatePaymentIfPending(ctx context.Context, id string, upd PaymentUpdate) (bool, error) {
	updates := map[string]interface{}{
		"statut":        upd.Status,
		"montant_paye":  upd.AmountPaid,
		"date_paiement": upd.PaidAt,
		"metadata":      datatypes.NewJSONType(upd.Metadata),
	}
	if upd.TransactionID != "" {
		updates["fedapay_transaction_id"] = upd.TransactionID
	}

	tx := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND statut NOT IN ?", id, models.TerminalPaymentStatuses()).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) LockPlantation(ctx context.Context, id string) (*models.Plantation, error) {
	var p models.Plantation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlantationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) ApplyActivation(ctx context.Context, plantationID string, upd ActivationUpdate) error {
	updates := map[string]interface{}{
		"superficie_activee": upd.SurfaceActivatedHa,
		"statut_global":      upd.ActivationStatus,
		"statut":             upd.Status,
		"date_activation":    upd.ActivatedAt,
	}
	return r.db.WithContext(ctx).Model(&models.Plantation{}).Where("id = ?", plantationID).Updates(updates).Error
}

func (r *gormRepository) CreateEvent(ctx context.Context, event *models.PaymentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *gormRepository) MarkEventProcessed(ctx context.Context, id uint, paymentID *string, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed":        true,
		"processed_at":     &now,
		"processing_error": processingError,
	}
	if paymentID != nil {
		updates["paiement_id"] = *paymentID
	}
	return r.db.WithContext(ctx).
		Model(&models.PaymentEvent{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(updates).Error
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
