package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentEvent is the append-only audit row written for every inbound
// provider webhook, including duplicates and unparsable bodies.
type PaymentEvent struct {
	ID                   uint             `gorm:"primaryKey" json:"id"`
	Provider             string           `gorm:"type:varchar(20);not null;index" json:"provider"`
	EventID              string           `gorm:"type:varchar(191);not null;index" json:"event_id"`
	EventType            string           `gorm:"type:varchar(100);not null;index" json:"event_type"`
	TransactionID        string           `gorm:"type:varchar(100);index" json:"transaction_id"`
	TransactionReference string           `gorm:"type:varchar(100);index" json:"transaction_reference"`
	Status               string           `gorm:"type:varchar(50)" json:"status"`
	Amount               *decimal.Decimal `gorm:"type:decimal(14,2)" json:"amount,omitempty"`
	CustomerEmail        string           `gorm:"type:varchar(200)" json:"customer_email"`
	CustomerPhone        string           `gorm:"type:varchar(50)" json:"customer_phone"`
	RawPayload           string           `gorm:"type:longtext;not null" json:"raw_payload"`
	SignatureValid       bool             `gorm:"default:false" json:"signature_valid"`
	Processed            bool             `gorm:"default:false;index" json:"processed"`
	ProcessedAt          *time.Time       `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError      string           `gorm:"type:text" json:"processing_error"`
	PaymentID            *string          `gorm:"column:paiement_id;type:char(36);index" json:"paiement_id,omitempty"`
	CreatedAt            time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PaymentEvent) TableName() string { return "fedapay_events" }
