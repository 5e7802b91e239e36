package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindProduct(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	ListVariations(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]ProductVariation, error)
	FindVariation(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ProductVariation, error)
	UpdateVariationStock(ctx context.Context, db *gorm.DB, v *ProductVariation) error
}

type Service interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListVariations(ctx context.Context, productID snowflake.ID) ([]ProductVariation, error)
	UpdateVariation(ctx context.Context, id string, req UpdateVariationRequest) (*ProductVariation, error)
}

// TxReader loads pricing inputs inside a caller-owned transaction.
type TxReader interface {
	ProductTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Product, error)
	VariationsTx(ctx context.Context, tx *gorm.DB, productID snowflake.ID) ([]ProductVariation, error)
}

type UpdateVariationRequest struct {
	IsAvailable   *bool `json:"is_available"`
	StockQuantity *int  `json:"stock_quantity"`
}

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrProductNotFound      = errors.New("product_not_found")
	ErrProductInactive      = errors.New("product_inactive")
	ErrVariationNotFound    = errors.New("variation_not_found")
	ErrInvalidStock         = errors.New("invalid_stock_quantity")
	ErrEmptyUpdate          = errors.New("empty_update")
	ErrUnknownVariationType = errors.New("unknown_variation_type")
	ErrMissingAttribute     = errors.New("missing_variation_attribute")
)
