package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type MetalType string

const (
	MetalGold22K  MetalType = "gold_22k"
	MetalGold24K  MetalType = "gold_24k"
	MetalGold18K  MetalType = "gold_18k"
	MetalSilver   MetalType = "silver"
	MetalPlatinum MetalType = "platinum"
)

type VariationType string

const (
	VariationSize          VariationType = "size"
	VariationMetalFinish   VariationType = "metal_finish"
	VariationGemstoneGrade VariationType = "gemstone_grade"
	VariationCertificate   VariationType = "certificate"
	VariationAddOn         VariationType = "add_on"
)

type SelectionMode string

const (
	SelectionSingle SelectionMode = "single"
	SelectionMulti  SelectionMode = "multi"
)

type Product struct {
	ID                  snowflake.ID        `json:"id" gorm:"primaryKey"`
	SKU                 string              `json:"sku" gorm:"type:text;not null;uniqueIndex"`
	Name                string              `json:"name" gorm:"type:text;not null"`
	Category            string              `json:"category" gorm:"type:text;not null;index"`
	MetalType           MetalType           `json:"metal_type" gorm:"type:text;not null"`
	WeightGrams         decimal.Decimal     `json:"weight_grams" gorm:"type:numeric(10,3);not null"`
	MakingChargePercent decimal.NullDecimal `json:"making_charge_percent" gorm:"type:numeric(5,2)"`
	DiamondCost         decimal.Decimal     `json:"diamond_cost" gorm:"type:numeric(14,2);not null;default:0"`
	StoneCost           decimal.Decimal     `json:"stone_cost" gorm:"type:numeric(14,2);not null;default:0"`
	Active              bool                `json:"active" gorm:"not null"`
	CreatedAt           time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt           time.Time           `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

type ProductVariation struct {
	ID               snowflake.ID    `json:"id" gorm:"primaryKey"`
	ProductID        snowflake.ID    `json:"product_id" gorm:"not null;index"`
	VariationType    VariationType   `json:"variation_type" gorm:"type:text;not null"`
	VariationGroup   string          `json:"variation_group" gorm:"type:text;not null"`
	SelectionMode    SelectionMode   `json:"selection_mode" gorm:"type:text;not null"`
	Attributes       datatypes.JSON  `json:"attributes"`
	PriceAdjustment  decimal.Decimal `json:"price_adjustment" gorm:"type:numeric(14,2);not null;default:0"`
	WeightAdjustment decimal.Decimal `json:"weight_adjustment" gorm:"type:numeric(10,3);not null;default:0"`
	IsAvailable      bool            `json:"is_available" gorm:"not null"`
	IsDefault        bool            `json:"is_default" gorm:"not null;default:false"`
	StockQuantity    int             `json:"stock_quantity" gorm:"not null;default:0"`
	SortOrder        int             `json:"sort_order" gorm:"not null;default:0"`
	CreatedAt        time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"not null"`
}

func (ProductVariation) TableName() string { return "product_variations" }

// Selectable reports whether a shopper may pick this variation right now.
func (v ProductVariation) Selectable() bool {
	return v.IsAvailable && v.StockQuantity > 0
}
