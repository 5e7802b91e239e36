package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	goldratedomain "github.com/smallbiznis/karat/internal/goldrate/domain"
	"gorm.io/gorm"
)

type Repository interface {
	InsertOrder(ctx context.Context, db *gorm.DB, order *Order) error
	InsertItems(ctx context.Context, db *gorm.DB, items []OrderItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*Order, error)
	ListItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderItem, error)
}

type Service interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	GetOrder(ctx context.Context, id string) (*OrderView, error)
	// RateForOrder returns the gold rate frozen into an order.
	RateForOrder(ctx context.Context, id string) (*goldratedomain.GoldRate, error)
	Receipt(ctx context.Context, id string) ([]byte, error)
}

type CartItem struct {
	ProductID  string              `json:"product_id"`
	Quantity   int                 `json:"quantity"`
	Selections map[string][]string `json:"selections"`
}

type CheckoutRequest struct {
	IdempotencyKey string     `json:"idempotency_key"`
	CustomerRef    string     `json:"customer_ref"`
	QuotedRateID   string     `json:"quoted_rate_id"`
	Items          []CartItem `json:"items"`
}

type CheckoutResult struct {
	Order    Order       `json:"order"`
	Items    []OrderItem `json:"items"`
	Replayed bool        `json:"replayed"`
	// RateChanged reports that the committed rate differs from the quoted one.
	RateChanged bool `json:"rate_changed"`
}

type OrderView struct {
	Order Order       `json:"order"`
	Items []OrderItem `json:"items"`
}

const (
	MaxCartItems   = 50
	MaxQuantity    = 100
	MaxKeyLength   = 128
	MaxCustomerRef = 128
)

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
	ErrEmptyCart          = errors.New("empty_cart")
	ErrTooManyItems       = errors.New("too_many_items")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidProduct     = errors.New("invalid_product_id")
	ErrInvalidKey         = errors.New("invalid_idempotency_key")
	ErrInvalidCustomerRef = errors.New("invalid_customer_ref")
	ErrImmutableSnapshot  = errors.New("order_item_immutable")
	ErrReceiptsDisabled   = errors.New("receipts_disabled")
)
