package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	FindByCategory(ctx context.Context, db *gorm.DB, category string) (*CategoryMakingCharge, error)
	List(ctx context.Context, db *gorm.DB) ([]CategoryMakingCharge, error)
	Upsert(ctx context.Context, db *gorm.DB, row *CategoryMakingCharge) error
}

type Service interface {
	// PolicyFor returns the policy needed to price products of one category.
	PolicyFor(ctx context.Context, category string) (*Policy, error)
	PolicyForTx(ctx context.Context, tx *gorm.DB, category string) (*Policy, error)
	List(ctx context.Context) ([]CategoryMakingCharge, error)
	Upsert(ctx context.Context, category string, req UpsertRequest) (*CategoryMakingCharge, error)
}

type UpsertRequest struct {
	DisplayName         string           `json:"display_name"`
	MakingChargePercent decimal.Decimal  `json:"making_charge_percent"`
	MinMakingCharge     *decimal.Decimal `json:"min_making_charge"`
}

var (
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidPercent  = errors.New("invalid_making_charge_percent")
	ErrInvalidFloor    = errors.New("invalid_min_making_charge")
)
