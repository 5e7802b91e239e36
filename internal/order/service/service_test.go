package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/karat/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/karat/internal/catalog/service"
	"github.com/smallbiznis/karat/internal/clock"
	"github.com/smallbiznis/karat/internal/config"
	goldratedomain "github.com/smallbiznis/karat/internal/goldrate/domain"
	goldraterepo "github.com/smallbiznis/karat/internal/goldrate/repository"
	goldrateservice "github.com/smallbiznis/karat/internal/goldrate/service"
	makingchargedomain "github.com/smallbiznis/karat/internal/makingcharge/domain"
	makingchargerepo "github.com/smallbiznis/karat/internal/makingcharge/repository"
	makingchargeservice "github.com/smallbiznis/karat/internal/makingcharge/service"
	"github.com/smallbiznis/karat/internal/observability/metrics"
	"github.com/smallbiznis/karat/internal/order/domain"
	"github.com/smallbiznis/karat/internal/order/repository"
	"github.com/smallbiznis/karat/internal/pricing"
	"github.com/smallbiznis/karat/internal/pricingerr"
	"github.com/smallbiznis/karat/internal/providers/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ringID    snowflake.ID = 700
	sizeID    snowflake.ID = 701
	soldOutID snowflake.ID = 702
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	db       *gorm.DB
	rates    *goldrateservice.Service
	registry *prometheus.Registry
}

type options struct {
	repo    domain.Repository
	ratesTx goldratedomain.TxReader
}

func newFixture(t *testing.T, opts options) fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&goldratedomain.GoldRate{},
		&catalogdomain.Product{},
		&catalogdomain.ProductVariation{},
		&makingchargedomain.CategoryMakingCharge{},
		&domain.Order{},
		&domain.OrderItem{},
	))
	seedCatalog(t, db)

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	log := zap.NewNop()
	fake := clock.NewFakeClock(now)
	holder := config.NewStaticPricingConfigHolder(config.DefaultPricingConfig())

	rates := goldrateservice.New(goldrateservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: goldraterepo.Provide(),
	})
	catalog := catalogservice.New(catalogservice.Params{
		DB: db, Log: log, Clock: fake, Repo: catalogrepo.Provide(),
	})
	policies := makingchargeservice.New(makingchargeservice.Params{
		DB: db, Log: log, Clock: fake, Pricing: holder, Repo: makingchargerepo.Provide(),
	})
	engine := pricing.NewEngine(pricing.EngineParams{Catalog: catalog, Policies: policies, Pricing: holder})

	registry := prometheus.NewRegistry()
	checkoutMetrics, err := metrics.NewCheckoutMetrics(registry, metrics.Config{})
	require.NoError(t, err)

	repo := opts.repo
	if repo == nil {
		repo = repository.Provide()
	}
	var ratesTx goldratedomain.TxReader = rates
	if opts.ratesTx != nil {
		ratesTx = opts.ratesTx
	}

	svc := New(Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: repo,
		Rates: rates, RatesTx: ratesTx, Engine: engine, Pricing: holder,
		Receipts: pdf.New(), Metrics: checkoutMetrics,
	}).(*Service)
	return fixture{svc: svc, db: db, rates: rates, registry: registry}
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&catalogdomain.Product{
		ID: ringID, SKU: "RING-22", Name: "Solitaire ring", Category: "rings",
		MetalType: catalogdomain.MetalGold22K, WeightGrams: decimal.NewFromInt(10),
		Active: true, CreatedAt: now, UpdatedAt: now,
	}).Error)
	variations := []catalogdomain.ProductVariation{
		{
			ID: sizeID, ProductID: ringID, VariationType: catalogdomain.VariationSize,
			VariationGroup: "size", SelectionMode: catalogdomain.SelectionSingle,
			Attributes:      datatypes.JSON(`{"size":"14"}`),
			PriceAdjustment: decimal.NewFromInt(1500), WeightAdjustment: decimal.RequireFromString("0.5"),
			IsAvailable: true, StockQuantity: 3, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: soldOutID, ProductID: ringID, VariationType: catalogdomain.VariationSize,
			VariationGroup: "size", SelectionMode: catalogdomain.SelectionSingle,
			Attributes:  datatypes.JSON(`{"size":"16"}`),
			IsAvailable: true, StockQuantity: 0, CreatedAt: now, UpdatedAt: now,
		},
	}
	require.NoError(t, db.Create(&variations).Error)
	require.NoError(t, db.Create(&makingchargedomain.CategoryMakingCharge{
		Category: "rings", DisplayName: "Rings", MakingChargePercent: decimal.NewFromInt(12),
		MinMakingCharge: decimal.NewFromInt(500), CreatedAt: now, UpdatedAt: now,
	}).Error)
}

func (f fixture) setRate(t *testing.T, r22 int64) *goldratedomain.GoldRate {
	t.Helper()
	rate, err := f.rates.SetNewRate(context.Background(), goldratedomain.SetRateRequest{
		Rate22K: decimal.NewFromInt(r22),
		Rate24K: decimal.NewFromInt(r22 + 500),
	})
	require.NoError(t, err)
	return rate
}

func (f fixture) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f fixture) outcomeCount(t *testing.T, outcome string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "karat_checkout_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func sizedCart(key string, qty int) domain.CheckoutRequest {
	return domain.CheckoutRequest{
		IdempotencyKey: key,
		CustomerRef:    "cust-1",
		Items: []domain.CartItem{{
			ProductID:  ringID.String(),
			Quantity:   qty,
			Selections: map[string][]string{"size": {sizeID.String()}},
		}},
	}
}

func TestCheckoutFreezesPrice(t *testing.T) {
	f := newFixture(t, options{})
	rate := f.setRate(t, 6000)

	res, err := f.svc.Checkout(context.Background(), sizedCart("k-1", 2))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.False(t, res.RateChanged)

	assert.Equal(t, rate.ID, res.Order.GoldRateID)
	assert.Equal(t, int64(148444), res.Order.Total)
	assert.Equal(t, int64(144120), res.Order.Subtotal)
	assert.Equal(t, int64(4324), res.Order.GST)
	assert.Contains(t, res.Order.OrderNumber, "ORD-")

	require.Len(t, res.Items, 1)
	item := res.Items[0]
	assert.True(t, item.GoldRateApplied.Equal(decimal.NewFromInt(6000)))
	assert.True(t, item.WeightGrams.Equal(decimal.RequireFromString("10.5")))
	assert.Equal(t, int64(63000), item.GoldValue)
	assert.Equal(t, int64(7560), item.MakingCharges)
	assert.Equal(t, int64(72060), item.Subtotal)
	assert.Equal(t, int64(2162), item.GST)
	assert.Equal(t, int64(74222), item.UnitPrice)
	assert.Equal(t, int64(148444), item.TotalPrice)

	var selected []domain.SnapshotVariation
	require.NoError(t, json.Unmarshal(item.SelectedVariations, &selected))
	require.Len(t, selected, 1)
	assert.Equal(t, sizeID.String(), selected[0].ID)
	assert.Equal(t, "Size 14", selected[0].Label)

	assert.Equal(t, float64(1), f.outcomeCount(t, metrics.CheckoutOutcomeCommitted))
}

func TestSnapshotSurvivesRateChange(t *testing.T) {
	f := newFixture(t, options{})
	original := f.setRate(t, 6000)
	ctx := context.Background()

	res, err := f.svc.Checkout(ctx, sizedCart("k-1", 1))
	require.NoError(t, err)

	f.setRate(t, 7000)

	view, err := f.svc.GetOrder(ctx, res.Order.ID.String())
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(74222), view.Items[0].UnitPrice)
	assert.Equal(t, int64(74222), view.Items[0].TotalPrice)
	assert.True(t, view.Items[0].GoldRateApplied.Equal(decimal.NewFromInt(6000)))

	rate, err := f.svc.RateForOrder(ctx, res.Order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, original.ID, rate.ID)
	assert.False(t, rate.IsCurrent)
}

func TestOrderItemsRejectUpdates(t *testing.T) {
	f := newFixture(t, options{})
	f.setRate(t, 6000)

	res, err := f.svc.Checkout(context.Background(), sizedCart("k-1", 1))
	require.NoError(t, err)

	item := res.Items[0]
	err = f.db.Model(&item).Update("unit_price", 1).Error
	assert.ErrorIs(t, err, domain.ErrImmutableSnapshot)
	err = f.db.Delete(&item).Error
	assert.ErrorIs(t, err, domain.ErrImmutableSnapshot)

	view, err := f.svc.GetOrder(context.Background(), res.Order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(74222), view.Items[0].UnitPrice)
}

func TestCheckoutIsIdempotent(t *testing.T) {
	f := newFixture(t, options{})
	f.setRate(t, 6000)
	ctx := context.Background()

	first, err := f.svc.Checkout(ctx, sizedCart("same-key", 1))
	require.NoError(t, err)
	f.setRate(t, 6500)
	second, err := f.svc.Checkout(ctx, sizedCart("same-key", 1))
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, first.Order.Total, second.Order.Total)
	assert.Len(t, second.Items, 1)
	assert.Equal(t, int64(1), f.countRows(t, &domain.Order{}))
	assert.Equal(t, float64(1), f.outcomeCount(t, metrics.CheckoutOutcomeReplayed))
}

func TestConcurrentCheckoutsWithSameKeyPersistOnce(t *testing.T) {
	f := newFixture(t, options{})
	f.setRate(t, 6000)

	var wg sync.WaitGroup
	ids := make(chan snowflake.ID, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Checkout(context.Background(), sizedCart("shared", 1))
			if err == nil {
				ids <- res.Order.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var seen []snowflake.ID
	for id := range ids {
		seen = append(seen, id)
	}
	require.NotEmpty(t, seen)
	for _, id := range seen {
		assert.Equal(t, seen[0], id)
	}
	assert.Equal(t, int64(1), f.countRows(t, &domain.Order{}))
}

func TestCheckoutReportsRateDrift(t *testing.T) {
	f := newFixture(t, options{})
	quoted := f.setRate(t, 6000)
	committed := f.setRate(t, 6100)

	req := sizedCart("k-1", 1)
	req.QuotedRateID = quoted.ID.String()
	res, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.RateChanged)
	assert.Equal(t, committed.ID, res.Order.GoldRateID)
	assert.True(t, res.Items[0].GoldRateApplied.Equal(decimal.NewFromInt(6100)))
}

func TestCheckoutSelectionErrorWritesNothing(t *testing.T) {
	f := newFixture(t, options{})
	f.setRate(t, 6000)

	req := sizedCart("k-1", 1)
	req.Items[0].Selections = map[string][]string{"size": {soldOutID.String()}}
	_, err := f.svc.Checkout(context.Background(), req)
	require.Error(t, err)
	assert.True(t, pricingerr.IsSelection(err))
	assert.False(t, pricingerr.IsRetryable(err))
	assert.ErrorIs(t, err, pricingerr.ErrVariationOutOfStock)

	req.Items[0].Selections = map[string][]string{"size": {"not-an-id"}}
	_, err = f.svc.Checkout(context.Background(), req)
	assert.True(t, pricingerr.IsSelection(err))

	assert.Zero(t, f.countRows(t, &domain.Order{}))
	assert.Zero(t, f.countRows(t, &domain.OrderItem{}))
	assert.Equal(t, float64(2), f.outcomeCount(t, metrics.CheckoutOutcomeSelection))
}

func TestCheckoutWithoutRate(t *testing.T) {
	f := newFixture(t, options{})

	_, err := f.svc.Checkout(context.Background(), sizedCart("k-1", 1))
	require.Error(t, err)
	assert.True(t, pricingerr.IsConfiguration(err))
	assert.Zero(t, f.countRows(t, &domain.Order{}))
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t, options{})
	f.setRate(t, 6000)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CheckoutRequest
		want error
	}{
		{name: "empty cart", req: domain.CheckoutRequest{IdempotencyKey: "k"}, want: domain.ErrEmptyCart},
		{name: "zero quantity", req: sizedCart("k", 0), want: domain.ErrInvalidQuantity},
		{name: "bad product", req: domain.CheckoutRequest{Items: []domain.CartItem{{ProductID: "x", Quantity: 1}}}, want: domain.ErrInvalidProduct},
		{name: "unknown product", req: domain.CheckoutRequest{Items: []domain.CartItem{{ProductID: "999", Quantity: 1}}}, want: catalogdomain.ErrProductNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Checkout(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, pricingerr.IsRetryable(err))
		})
	}
	assert.Zero(t, f.countRows(t, &domain.Order{}))
}

// staleRates reports the rate as replaced at the final check.
type staleRates struct {
	goldratedomain.TxReader
}

func (staleRates) IsCurrentTx(context.Context, *gorm.DB, snowflake.ID) (bool, error) {
	return false, nil
}

func TestCheckoutRateReplacedBeforeCommitIsRetryable(t *testing.T) {
	f := newFixture(t, options{})
	f.setRate(t, 6000)
	f.svc.ratesTx = staleRates{TxReader: f.rates}

	_, err := f.svc.Checkout(context.Background(), sizedCart("k-1", 1))
	require.Error(t, err)
	assert.True(t, pricingerr.IsRetryable(err))
	assert.ErrorIs(t, err, pricingerr.ErrRateChanged)
	assert.Zero(t, f.countRows(t, &domain.Order{}))
	assert.Zero(t, f.countRows(t, &domain.OrderItem{}))
	assert.Equal(t, float64(1), f.outcomeCount(t, metrics.CheckoutOutcomeConflict))
}

// failingItems fails after the order row was written.
type failingItems struct {
	domain.Repository
}

func (failingItems) InsertItems(context.Context, *gorm.DB, []domain.OrderItem) error {
	return errors.New("connection reset")
}

func TestCheckoutFailureAfterRateReadRollsBack(t *testing.T) {
	f := newFixture(t, options{repo: failingItems{Repository: repository.Provide()}})
	f.setRate(t, 6000)

	_, err := f.svc.Checkout(context.Background(), sizedCart("k-1", 1))
	require.Error(t, err)
	assert.True(t, pricingerr.IsRetryable(err))
	assert.ErrorIs(t, err, pricingerr.ErrCheckoutAborted)
	assert.Zero(t, f.countRows(t, &domain.Order{}))
}

func TestReceiptRendersSnapshot(t *testing.T) {
	f := newFixture(t, options{})
	f.setRate(t, 6000)
	ctx := context.Background()
	res, err := f.svc.Checkout(ctx, sizedCart("k-1", 1))
	require.NoError(t, err)

	body, err := f.svc.Receipt(ctx, res.Order.ID.String())
	require.NoError(t, err)
	require.True(t, len(body) > 4)
	assert.Equal(t, "%PDF", string(body[:4]))

	view, err := f.svc.GetOrder(ctx, res.Order.ID.String())
	require.NoError(t, err)
	data, err := receiptData(view)
	require.NoError(t, err)
	assert.Equal(t, "INR 74222", data.Total)
	assert.Equal(t, "Size 14", data.Items[0].Details)
	assert.Equal(t, "10.500", data.Items[0].Weight)
}

func TestGetOrderErrors(t *testing.T) {
	f := newFixture(t, options{})
	_, err := f.svc.GetOrder(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = f.svc.GetOrder(context.Background(), "42")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
