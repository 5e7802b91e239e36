package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/karat/internal/catalog/domain"
	"github.com/smallbiznis/karat/internal/catalog/repository"
	"github.com/smallbiznis/karat/internal/clock"
	"github.com/smallbiznis/karat/internal/liveevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *gorm.DB, *liveevents.Hub) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.Product{}, &domain.ProductVariation{}))

	hub := liveevents.NewHub()
	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(now),
		Repo:      repository.Provide(),
		Publisher: hub,
	})
	return svc, db, hub
}

func seedProduct(t *testing.T, db *gorm.DB, id snowflake.ID, active bool) {
	t.Helper()
	p := domain.Product{
		ID:          id,
		SKU:         fmt.Sprintf("SKU-%d", id),
		Name:        "Temple necklace",
		Category:    "necklaces",
		MetalType:   domain.MetalGold22K,
		WeightGrams: decimal.NewFromInt(10),
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, db.Create(&p).Error)
}

func TestGetProduct(t *testing.T) {
	svc, db, _ := setup(t)
	seedProduct(t, db, 101, true)
	seedProduct(t, db, 102, false)
	ctx := context.Background()

	p, err := svc.GetProduct(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, domain.MetalGold22K, p.MetalType)
	assert.True(t, p.WeightGrams.Equal(decimal.NewFromInt(10)))
	assert.False(t, p.MakingChargePercent.Valid)

	_, err = svc.GetProduct(ctx, "102")
	assert.ErrorIs(t, err, domain.ErrProductInactive)
	_, err = svc.GetProduct(ctx, "999")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	_, err = svc.GetProduct(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListVariationsIsOrdered(t *testing.T) {
	svc, db, _ := setup(t)
	seedProduct(t, db, 101, true)
	rows := []domain.ProductVariation{
		{ID: 3, ProductID: 101, VariationType: domain.VariationSize, VariationGroup: "size", SelectionMode: domain.SelectionSingle, Attributes: datatypes.JSON(`{"size":"16"}`), SortOrder: 2, IsAvailable: true, StockQuantity: 1, CreatedAt: now, UpdatedAt: now},
		{ID: 2, ProductID: 101, VariationType: domain.VariationSize, VariationGroup: "size", SelectionMode: domain.SelectionSingle, Attributes: datatypes.JSON(`{"size":"14"}`), SortOrder: 1, IsAvailable: true, StockQuantity: 1, CreatedAt: now, UpdatedAt: now},
		{ID: 1, ProductID: 101, VariationType: domain.VariationAddOn, VariationGroup: "addons", SelectionMode: domain.SelectionMulti, Attributes: datatypes.JSON(`{"name":"Gift box"}`), IsAvailable: true, StockQuantity: 5, CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, db.Create(&rows).Error)

	got, err := svc.ListVariations(context.Background(), 101)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []snowflake.ID{1, 2, 3}, []snowflake.ID{got[0].ID, got[1].ID, got[2].ID})

	detail, err := got[1].Detail()
	require.NoError(t, err)
	assert.Equal(t, "Size 14", detail.Label())
}

func TestUpdateVariationPublishesChange(t *testing.T) {
	svc, db, hub := setup(t)
	seedProduct(t, db, 101, true)
	v := domain.ProductVariation{ID: 7, ProductID: 101, VariationType: domain.VariationSize, VariationGroup: "size", SelectionMode: domain.SelectionSingle, Attributes: datatypes.JSON(`{"size":"14"}`), IsAvailable: true, StockQuantity: 3, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.Create(&v).Error)

	var events []liveevents.Event
	hub.Handle(func(e liveevents.Event) { events = append(events, e) })

	zero := 0
	updated, err := svc.UpdateVariation(context.Background(), "7", domain.UpdateVariationRequest{StockQuantity: &zero})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.StockQuantity)
	assert.False(t, updated.Selectable())

	require.Len(t, events, 1)
	assert.Equal(t, liveevents.TypeVariationChanged, events[0].Type)
	assert.Equal(t, "101", events[0].ProductID)

	stored, err := svc.ListVariations(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, 0, stored[0].StockQuantity)
}

func TestUpdateVariationValidation(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	negative := -1

	_, err := svc.UpdateVariation(ctx, "7", domain.UpdateVariationRequest{})
	assert.ErrorIs(t, err, domain.ErrEmptyUpdate)
	_, err = svc.UpdateVariation(ctx, "7", domain.UpdateVariationRequest{StockQuantity: &negative})
	assert.ErrorIs(t, err, domain.ErrInvalidStock)
	yes := true
	_, err = svc.UpdateVariation(ctx, "7", domain.UpdateVariationRequest{IsAvailable: &yes})
	assert.ErrorIs(t, err, domain.ErrVariationNotFound)
}
