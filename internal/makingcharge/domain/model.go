package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryMakingCharge is keyed by the slug of the category name.
type CategoryMakingCharge struct {
	Category            string          `json:"category" gorm:"primaryKey;type:text"`
	DisplayName         string          `json:"display_name" gorm:"type:text;not null"`
	MakingChargePercent decimal.Decimal `json:"making_charge_percent" gorm:"type:numeric(5,2);not null"`
	MinMakingCharge     decimal.Decimal `json:"min_making_charge" gorm:"type:numeric(14,2);not null;default:0"`
	CreatedAt           time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt           time.Time       `json:"updated_at" gorm:"not null"`
}

func (CategoryMakingCharge) TableName() string { return "category_making_charges" }
