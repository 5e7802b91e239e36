package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const SourceManual = "manual"

// GoldRate is an append-only per-gram rate record. Only is_current ever
// changes after insert, and exactly one row carries is_current = true.
type GoldRate struct {
	ID            snowflake.ID        `json:"id" gorm:"primaryKey"`
	Rate22K       decimal.Decimal     `json:"rate_22k" gorm:"column:rate_22k;type:numeric(14,4);not null"`
	Rate24K       decimal.Decimal     `json:"rate_24k" gorm:"column:rate_24k;type:numeric(14,4);not null"`
	Rate18K       decimal.NullDecimal `json:"rate_18k" gorm:"column:rate_18k;type:numeric(14,4)"`
	SilverRate    decimal.NullDecimal `json:"silver_rate" gorm:"column:silver_rate;type:numeric(14,4)"`
	EffectiveDate time.Time           `json:"effective_date" gorm:"column:effective_date;not null;index"`
	IsCurrent     bool                `json:"is_current" gorm:"column:is_current;not null;default:false;index"`
	Source        string              `json:"source" gorm:"type:text;not null"`
	CreatedAt     time.Time           `json:"created_at" gorm:"not null"`
}

func (GoldRate) TableName() string { return "gold_rates" }
