package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/karat/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindProduct(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	if id == 0 {
		return nil, nil
	}
	var products []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, sku, name, category, metal_type, weight_grams,
		        making_charge_percent, diamond_cost, stone_cost, active,
		        created_at, updated_at
		 FROM products
		 WHERE id = ?`,
		id,
	).Scan(&products).Error
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

// ListVariations returns every variation of a product, available or not,
// in a stable order.
func (r *repo) ListVariations(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]domain.ProductVariation, error) {
	var variations []domain.ProductVariation
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_id, variation_type, variation_group, selection_mode,
		        attributes, price_adjustment, weight_adjustment, is_available,
		        is_default, stock_quantity, sort_order, created_at, updated_at
		 FROM product_variations
		 WHERE product_id = ?
		 ORDER BY variation_group ASC, sort_order ASC, id ASC`,
		productID,
	).Scan(&variations).Error
	if err != nil {
		return nil, err
	}
	return variations, nil
}

func (r *repo) FindVariation(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ProductVariation, error) {
	if id == 0 {
		return nil, nil
	}
	var variations []domain.ProductVariation
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_id, variation_type, variation_group, selection_mode,
		        attributes, price_adjustment, weight_adjustment, is_available,
		        is_default, stock_quantity, sort_order, created_at, updated_at
		 FROM product_variations
		 WHERE id = ?`,
		id,
	).Scan(&variations).Error
	if err != nil {
		return nil, err
	}
	if len(variations) == 0 {
		return nil, nil
	}
	return &variations[0], nil
}

func (r *repo) UpdateVariationStock(ctx context.Context, db *gorm.DB, v *domain.ProductVariation) error {
	return db.WithContext(ctx).Exec(
		`UPDATE product_variations
		 SET is_available = ?, stock_quantity = ?, updated_at = ?
		 WHERE id = ?`,
		v.IsAvailable,
		v.StockQuantity,
		v.UpdatedAt,
		v.ID,
	).Error
}
