package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PaymentStatusPending  = "en_attente"
	PaymentStatusValid    = "valide"
	PaymentStatusFailed   = "echec"
	PaymentStatusRejected = "rejete"
)

const (
	PaymentTypeAccessRight = "DA"
	PaymentTypeFee         = "REDEVANCE"
)

const (
	PaymentProviderFedaPay = "fedapay"
	PaymentProviderKKiaPay = "kkiapay"
)

// TerminalPaymentStatuses lists the statuses a payment can never leave.
func TerminalPaymentStatuses() []string {
	return []string{PaymentStatusValid, PaymentStatusFailed, PaymentStatusRejected}
}

// IsTerminalPaymentStatus reports whether status is a settled state.
func IsTerminalPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusValid, PaymentStatusFailed, PaymentStatusRejected:
		return true
	default:
		return false
	}
}

// PaymentMetadata records which provider initiated and which one verified a
// payment. Extra only carries provider-raw fields.
type PaymentMetadata struct {
	PaymentProvider  string         `json:"payment_provider,omitempty"`
	VerifiedProvider string         `json:"verified_provider,omitempty"`
	VerifiedAt       *time.Time     `json:"verified_at,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// Payment is one payment obligation of a subscriber (access right or fee).
type Payment struct {
	ID            string                              `gorm:"type:char(36);primaryKey" json:"id"`
	Reference     string                              `gorm:"type:varchar(100);not null;uniqueIndex" json:"reference"`
	TransactionID *string                             `gorm:"column:fedapay_transaction_id;type:varchar(100);index" json:"fedapay_transaction_id,omitempty"`
	Status        string                              `gorm:"column:statut;type:varchar(20);not null;default:'en_attente';index" json:"statut"`
	Type          string                              `gorm:"column:type_paiement;type:varchar(20);not null" json:"type_paiement"`
	AmountDue     decimal.Decimal                     `gorm:"column:montant;type:decimal(14,2);not null" json:"montant"`
	AmountPaid    *decimal.Decimal                    `gorm:"column:montant_paye;type:decimal(14,2)" json:"montant_paye,omitempty"`
	PaidAt        *time.Time                          `gorm:"column:date_paiement;type:timestamp;default:null" json:"date_paiement,omitempty"`
	Metadata      datatypes.JSONType[PaymentMetadata] `gorm:"column:metadata;type:json" json:"metadata"`
	PlantationID  *string                             `gorm:"type:char(36);index" json:"plantation_id,omitempty"`
	SubscriberID  *string                             `gorm:"column:souscripteur_id;type:char(36);index" json:"souscripteur_id,omitempty"`
	Plantation    *Plantation                         `gorm:"foreignKey:PlantationID" json:"plantations,omitempty"`
	CreatedAt     time.Time                           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string { return "paiements" }

// IsTerminal reports whether the payment has been settled.
func (p *Payment) IsTerminal() bool {
	return IsTerminalPaymentStatus(p.Status)
}

// IsAccessRight reports whether the payment unlocks plantation surface.
func (p *Payment) IsAccessRight() bool {
	return p.Type == PaymentTypeAccessRight
}

// EffectiveAmount returns the settled amount, or the amount due while unsettled.
func (p *Payment) EffectiveAmount() decimal.Decimal {
	if p.AmountPaid != nil && p.AmountPaid.IsPositive() {
		return *p.AmountPaid
	}
	return p.AmountDue
}

// TypeLabel is the label shown to payers.
func (p *Payment) TypeLabel() string {
	if p.IsAccessRight() {
		return "Droit d'Accès"
	}
	return "Redevance mensuelle"
}
