package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	goldratedomain "github.com/smallbiznis/karat/internal/goldrate/domain"
	makingchargedomain "github.com/smallbiznis/karat/internal/makingcharge/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	sampleCategory     = "rings"
	sampleCategoryName = "Rings"
	sampleSKU          = "RING-CLASSIC-22K"
)

// EnsureSampleCatalog seeds an opening gold rate, the rings making-charge
// policy and one ring with size variations. Existing rows are left alone.
func EnsureSampleCatalog(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpeningRateTx(ctx, tx, node); err != nil {
			return err
		}
		if err := ensureCategoryTx(ctx, tx); err != nil {
			return err
		}
		product, err := ensureSampleProductTx(ctx, tx, node)
		if err != nil {
			return err
		}
		return ensureSizeVariationsTx(ctx, tx, node, product.ID)
	})
}

func ensureOpeningRateTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&goldratedomain.GoldRate{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	now := time.Now().UTC()
	rate := goldratedomain.GoldRate{
		ID:            node.Generate(),
		Rate22K:       decimal.NewFromInt(6000),
		Rate24K:       decimal.NewFromInt(6545),
		Rate18K:       decimal.NewNullDecimal(decimal.NewFromInt(4909)),
		SilverRate:    decimal.NewNullDecimal(decimal.NewFromInt(78)),
		EffectiveDate: now,
		IsCurrent:     true,
		Source:        goldratedomain.SourceManual,
		CreatedAt:     now,
	}
	return tx.WithContext(ctx).Create(&rate).Error
}

func ensureCategoryTx(ctx context.Context, tx *gorm.DB) error {
	var row makingchargedomain.CategoryMakingCharge
	err := tx.WithContext(ctx).Where("category = ?", sampleCategory).First(&row).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	now := time.Now().UTC()
	row = makingchargedomain.CategoryMakingCharge{
		Category:            sampleCategory,
		DisplayName:         sampleCategoryName,
		MakingChargePercent: decimal.NewFromInt(12),
		MinMakingCharge:     decimal.NewFromInt(500),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	return tx.WithContext(ctx).Create(&row).Error
}

func ensureSampleProductTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (catalogdomain.Product, error) {
	var product catalogdomain.Product
	err := tx.WithContext(ctx).Where("sku = ?", sampleSKU).First(&product).Error
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return product, err
	}
	now := time.Now().UTC()
	product = catalogdomain.Product{
		ID:          node.Generate(),
		SKU:         sampleSKU,
		Name:        "Classic 22K Band",
		Category:    sampleCategoryName,
		MetalType:   catalogdomain.MetalGold22K,
		WeightGrams: decimal.NewFromInt(10),
		DiamondCost: decimal.Zero,
		StoneCost:   decimal.Zero,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
		return product, err
	}
	return product, nil
}

func ensureSizeVariationsTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, productID snowflake.ID) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&catalogdomain.ProductVariation{}).
		Where("product_id = ?", productID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	sizes := []struct {
		size      string
		price     int64
		weight    string
		isDefault bool
	}{
		{size: "12", isDefault: true, weight: "0"},
		{size: "14", price: 750, weight: "0.25"},
		{size: "16", price: 1500, weight: "0.5"},
	}

	now := time.Now().UTC()
	rows := make([]catalogdomain.ProductVariation, 0, len(sizes))
	for i, s := range sizes {
		rows = append(rows, catalogdomain.ProductVariation{
			ID:               node.Generate(),
			ProductID:        productID,
			VariationType:    catalogdomain.VariationSize,
			VariationGroup:   "ring_size",
			SelectionMode:    catalogdomain.SelectionSingle,
			Attributes:       datatypes.JSON(`{"size":"` + s.size + `","unit":"IN"}`),
			PriceAdjustment:  decimal.NewFromInt(s.price),
			WeightAdjustment: decimal.RequireFromString(s.weight),
			IsAvailable:      true,
			IsDefault:        s.isDefault,
			StockQuantity:    10,
			SortOrder:        i,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return tx.WithContext(ctx).Create(&rows).Error
}
