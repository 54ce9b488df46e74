package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PlantationStatusPending = "en_attente"
	PlantationStatusActive  = "active"
)

// Activation statuses (statut_global).
const (
	ActivationUnactivated = "en_attente_da"
	ActivationPartial     = "da_partiel"
	ActivationActive      = "actif"
)

// Plantation is a subscribed parcel. Only the activation cascade writes the
// activation columns.
type Plantation struct {
	ID                  string           `gorm:"type:char(36);primaryKey" json:"id"`
	Name                string           `gorm:"column:nom_plantation;type:varchar(150)" json:"nom_plantation"`
	UniqueID            string           `gorm:"column:id_unique;type:varchar(50);index" json:"id_unique"`
	SurfaceSubscribedHa decimal.Decimal  `gorm:"column:superficie_ha;type:decimal(10,4);not null" json:"superficie_ha"`
	SurfaceActivatedHa  decimal.Decimal  `gorm:"column:superficie_activee;type:decimal(10,4);not null;default:0" json:"superficie_activee"`
	UnitPricePerHa      *decimal.Decimal `gorm:"column:montant_da;type:decimal(14,2)" json:"montant_da,omitempty"`
	ActivatedAt         *time.Time       `gorm:"column:date_activation;type:timestamp;default:null" json:"date_activation,omitempty"`
	Status              string           `gorm:"column:statut;type:varchar(20);not null;default:'en_attente'" json:"statut"`
	ActivationStatus    string           `gorm:"column:statut_global;type:varchar(20);not null;default:'en_attente_da';index" json:"statut_global"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Plantation) TableName() string { return "plantations" }

// DisplayName prefers the plantation name over its unique id.
func (p *Plantation) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.UniqueID
}
