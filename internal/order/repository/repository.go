package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/karat/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, order_number, idempotency_key, customer_ref, gold_rate_id,
			currency, gst_percent, subtotal, gst, total, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.OrderNumber,
		order.IdempotencyKey,
		order.CustomerRef,
		order.GoldRateID,
		order.Currency,
		order.GSTPercent,
		order.Subtotal,
		order.GST,
		order.Total,
		order.Status,
		order.CreatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	if id == 0 {
		return nil, nil
	}
	return r.findOne(ctx, db, `WHERE id = ?`, id)
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.Order, error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil
	}
	return r.findOne(ctx, db, `WHERE idempotency_key = ?`, key)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Order, error) {
	var orders []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_number, idempotency_key, customer_ref, gold_rate_id,
		        currency, gst_percent, subtotal, gst, total, status, created_at
		 FROM orders `+where,
		arg,
	).Scan(&orders).Error
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, product_id, sku, product_name, metal_type, quantity,
		        gold_rate_id, gold_rate_applied, weight_grams, weight_adjustment,
		        making_charge_percent, gold_value, making_charges, price_adjustment,
		        subtotal, gst, unit_price, total_price, selected_variations, created_at
		 FROM order_items
		 WHERE order_id = ?
		 ORDER BY id ASC`,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
