package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service interface {
	// GetCurrentRate fails with a pricingerr.ConfigurationError when no rate is current.
	GetCurrentRate(ctx context.Context) (*GoldRate, error)
	// GetRateAsOf is for reporting; it returns nil when no rate was effective yet.
	GetRateAsOf(ctx context.Context, at time.Time) (*GoldRate, error)
	GetByID(ctx context.Context, id string) (*GoldRate, error)
	ListHistory(ctx context.Context, limit int) ([]GoldRate, error)
	SetNewRate(ctx context.Context, req SetRateRequest) (*GoldRate, error)
}

// TxReader reads rate state inside a caller-owned transaction.
type TxReader interface {
	CurrentRateTx(ctx context.Context, tx *gorm.DB) (*GoldRate, error)
	// CurrentRateForShareTx also blocks demotion of the returned row until tx ends.
	CurrentRateForShareTx(ctx context.Context, tx *gorm.DB) (*GoldRate, error)
	IsCurrentTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (bool, error)
}

type SetRateRequest struct {
	Rate22K       decimal.Decimal  `json:"rate_22k"`
	Rate24K       decimal.Decimal  `json:"rate_24k"`
	Rate18K       *decimal.Decimal `json:"rate_18k"`
	SilverRate    *decimal.Decimal `json:"silver_rate"`
	EffectiveDate *time.Time       `json:"effective_date"`
	Source        string           `json:"source"`
}

var (
	ErrInvalidRate          = errors.New("invalid_rate")
	ErrInvalidEffectiveDate = errors.New("invalid_effective_date")
	ErrInvalidSource        = errors.New("invalid_source")
	ErrInvalidID            = errors.New("invalid_id")
	ErrNotFound             = errors.New("not_found")
	ErrCurrentInvariant     = errors.New("current_rate_invariant_violated")
	ErrUpdateInProgress     = errors.New("rate_update_in_progress")
)
