package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FeaturePurchase records a completed feature unlock. LedgerEntryID is nil
// for staff accounts, which acquire features without spending.
type FeaturePurchase struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID  string `gorm:"index:idx_purchase_account_feature,unique;not null" json:"account_id"`
	FeatureKey string `gorm:"index:idx_purchase_account_feature,unique;type:varchar(64);not null" json:"feature_key"`

	PricePaid     int64   `json:"price_paid" gorm:"default:0"`
	LedgerEntryID *string `gorm:"type:uuid" json:"ledger_entry_id,omitempty"`

	Timestamps
}

// FeaturePriceOverride is an explicit admin price adjustment. The in-memory
// catalog is rebuilt from the static definitions plus these rows; prices are
// never mutated in place.
type FeaturePriceOverride struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	FeatureKey string `gorm:"uniqueIndex;type:varchar(64);not null" json:"feature_key"`
	Cost       int64  `gorm:"not null" json:"cost"`
	AdjustedBy string `json:"adjusted_by"`

	Timestamps
}

func (p *FeaturePurchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (o *FeaturePriceOverride) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
