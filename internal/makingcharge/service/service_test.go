package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	"github.com/smallbiznis/karat/internal/clock"
	"github.com/smallbiznis/karat/internal/config"
	"github.com/smallbiznis/karat/internal/liveevents"
	"github.com/smallbiznis/karat/internal/makingcharge/domain"
	"github.com/smallbiznis/karat/internal/makingcharge/repository"
	"github.com/smallbiznis/karat/internal/pricingerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T, cfg config.PricingConfig) (domain.Service, *liveevents.Hub) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.CategoryMakingCharge{}))

	hub := liveevents.NewHub()
	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Pricing:   config.NewStaticPricingConfigHolder(cfg),
		Repo:      repository.Provide(),
		Publisher: hub,
	})
	return svc, hub
}

func TestUpsertAndResolve(t *testing.T) {
	svc, hub := setup(t, config.DefaultPricingConfig())
	ctx := context.Background()
	var events []liveevents.Event
	hub.Handle(func(e liveevents.Event) { events = append(events, e) })

	floor := decimal.NewFromInt(500)
	row, err := svc.Upsert(ctx, "Necklaces", domain.UpsertRequest{MakingChargePercent: decimal.NewFromInt(14), MinMakingCharge: &floor})
	require.NoError(t, err)
	assert.Equal(t, "necklaces", row.Category)
	assert.Equal(t, "Necklaces", row.DisplayName)

	row, err = svc.Upsert(ctx, "necklaces", domain.UpsertRequest{MakingChargePercent: decimal.NewFromInt(12), MinMakingCharge: &floor})
	require.NoError(t, err)
	assert.True(t, row.MakingChargePercent.Equal(decimal.NewFromInt(12)))

	rows, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	policy, err := svc.PolicyFor(ctx, "NECKLACES")
	require.NoError(t, err)
	product := catalogdomain.Product{Category: "Necklaces"}
	pct, err := policy.ResolvePercent(product)
	require.NoError(t, err)
	assert.True(t, pct.Equal(decimal.NewFromInt(12)))
	assert.True(t, policy.ResolveFloor(product).Equal(floor))

	require.Len(t, events, 2)
	assert.Equal(t, liveevents.TypePolicyChanged, events[1].Type)
	assert.Equal(t, "necklaces", events[1].Category)
}

func TestPolicyForUnknownCategoryUsesConfiguredDefault(t *testing.T) {
	svc, _ := setup(t, config.DefaultPricingConfig())

	policy, err := svc.PolicyFor(context.Background(), "anklets")
	require.NoError(t, err)
	pct, err := policy.ResolvePercent(catalogdomain.Product{Category: "anklets"})
	require.NoError(t, err)
	assert.True(t, pct.Equal(decimal.NewFromInt(12)))
}

func TestPolicyForUnknownCategoryWithoutDefault(t *testing.T) {
	cfg := config.DefaultPricingConfig()
	cfg.DefaultMakingChargePercent = nil
	svc, _ := setup(t, cfg)

	policy, err := svc.PolicyFor(context.Background(), "anklets")
	require.NoError(t, err)
	_, err = policy.ResolvePercent(catalogdomain.Product{Category: "anklets"})
	assert.True(t, pricingerr.IsConfiguration(err))
}

func TestUpsertValidation(t *testing.T) {
	svc, _ := setup(t, config.DefaultPricingConfig())
	ctx := context.Background()
	negative := decimal.NewFromInt(-1)

	_, err := svc.Upsert(ctx, "  ", domain.UpsertRequest{MakingChargePercent: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
	_, err = svc.Upsert(ctx, "rings", domain.UpsertRequest{MakingChargePercent: decimal.NewFromInt(101)})
	assert.ErrorIs(t, err, domain.ErrInvalidPercent)
	_, err = svc.Upsert(ctx, "rings", domain.UpsertRequest{MakingChargePercent: decimal.NewFromInt(10), MinMakingCharge: &negative})
	assert.ErrorIs(t, err, domain.ErrInvalidFloor)
}
