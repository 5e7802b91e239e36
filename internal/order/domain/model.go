package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const StatusPlaced = "placed"

// Order totals are whole currency units summed from the item snapshots.
type Order struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrderNumber    string          `json:"order_number" gorm:"type:text;not null;uniqueIndex"`
	IdempotencyKey string          `json:"idempotency_key" gorm:"type:text;not null;uniqueIndex"`
	CustomerRef    string          `json:"customer_ref,omitempty" gorm:"type:text"`
	GoldRateID     snowflake.ID    `json:"gold_rate_id" gorm:"not null;index"`
	Currency       string          `json:"currency" gorm:"type:text;not null"`
	GSTPercent     decimal.Decimal `json:"gst_percent" gorm:"type:numeric(5,2);not null"`
	Subtotal       int64           `json:"subtotal" gorm:"not null"`
	GST            int64           `json:"gst" gorm:"not null"`
	Total          int64           `json:"total" gorm:"not null"`
	Status         string          `json:"status" gorm:"type:text;not null"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is the frozen price of one cart line. It is written once and
// never updated; redisplay reads these fields, never recomputes them.
type OrderItem struct {
	ID                  snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrderID             snowflake.ID    `json:"order_id" gorm:"not null;index"`
	ProductID           snowflake.ID    `json:"product_id" gorm:"not null"`
	SKU                 string          `json:"sku" gorm:"type:text;not null"`
	ProductName         string          `json:"product_name" gorm:"type:text;not null"`
	MetalType           string          `json:"metal_type" gorm:"type:text;not null"`
	Quantity            int             `json:"quantity" gorm:"not null"`
	GoldRateID          snowflake.ID    `json:"gold_rate_id" gorm:"not null"`
	GoldRateApplied     decimal.Decimal `json:"gold_rate_applied" gorm:"type:numeric(14,4);not null"`
	WeightGrams         decimal.Decimal `json:"weight_grams" gorm:"type:numeric(10,3);not null"`
	WeightAdjustment    decimal.Decimal `json:"weight_adjustment" gorm:"type:numeric(10,3);not null"`
	MakingChargePercent decimal.Decimal `json:"making_charge_percent" gorm:"type:numeric(5,2);not null"`
	GoldValue           int64           `json:"gold_value" gorm:"not null"`
	MakingCharges       int64           `json:"making_charges" gorm:"not null"`
	PriceAdjustment     decimal.Decimal `json:"price_adjustment" gorm:"type:numeric(14,2);not null"`
	Subtotal            int64           `json:"subtotal" gorm:"not null"`
	GST                 int64           `json:"gst" gorm:"not null"`
	UnitPrice           int64           `json:"unit_price" gorm:"not null"`
	TotalPrice          int64           `json:"total_price" gorm:"not null"`
	SelectedVariations  datatypes.JSON  `json:"selected_variations"`
	CreatedAt           time.Time       `json:"created_at" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

func (OrderItem) BeforeUpdate(*gorm.DB) error { return ErrImmutableSnapshot }
func (OrderItem) BeforeDelete(*gorm.DB) error { return ErrImmutableSnapshot }

// SnapshotVariation is one selected variation as frozen into an item.
type SnapshotVariation struct {
	ID               string `json:"id"`
	Group            string `json:"group"`
	Type             string `json:"type"`
	Label            string `json:"label"`
	PriceAdjustment  string `json:"price_adjustment"`
	WeightAdjustment string `json:"weight_adjustment"`
	Defaulted        bool   `json:"defaulted"`
}
