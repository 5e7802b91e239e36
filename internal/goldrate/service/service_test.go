package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/karat/internal/clock"
	"github.com/smallbiznis/karat/internal/goldrate/domain"
	"github.com/smallbiznis/karat/internal/goldrate/repository"
	"github.com/smallbiznis/karat/internal/liveevents"
	"github.com/smallbiznis/karat/internal/pricingerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	db    *gorm.DB
	hub   *liveevents.Hub
	clock *clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.GoldRate{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	hub := liveevents.NewHub()
	fake := clock.NewFakeClock(baseTime)

	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fake,
		Repo:      repository.Provide(),
		Publisher: hub,
	})
	return fixture{svc: svc, db: db, hub: hub, clock: fake}
}

func rateReq(r22, r24 int64) domain.SetRateRequest {
	return domain.SetRateRequest{
		Rate22K: decimal.NewFromInt(r22),
		Rate24K: decimal.NewFromInt(r24),
	}
}

func countCurrent(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&domain.GoldRate{}).Where("is_current = ?", true).Count(&n).Error)
	return n
}

func TestGetCurrentRateWithoutRows(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetCurrentRate(context.Background())
	require.Error(t, err)
	assert.True(t, pricingerr.IsConfiguration(err))
	assert.ErrorIs(t, err, pricingerr.ErrNoCurrentRate)
}

func TestSetNewRateKeepsSingleCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.SetNewRate(ctx, rateReq(6000, 6500))
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	second, err := f.svc.SetNewRate(ctx, rateReq(6100, 6600))
	require.NoError(t, err)

	assert.Equal(t, int64(1), countCurrent(t, f.db))

	current, err := f.svc.GetCurrentRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
	assert.True(t, current.Rate22K.Equal(decimal.NewFromInt(6100)))

	old, err := f.svc.GetByID(ctx, first.ID.String())
	require.NoError(t, err)
	assert.False(t, old.IsCurrent)
	assert.True(t, old.Rate22K.Equal(decimal.NewFromInt(6000)))
}

func TestSetNewRatePublishesAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var events []liveevents.Event
	f.hub.Handle(func(e liveevents.Event) {
		// The handler must observe the committed state.
		current, err := f.svc.GetCurrentRate(ctx)
		require.NoError(t, err)
		assert.Equal(t, e.RateID, current.ID.String())
		events = append(events, e)
	})

	first, err := f.svc.SetNewRate(ctx, rateReq(6000, 6500))
	require.NoError(t, err)
	second, err := f.svc.SetNewRate(ctx, rateReq(6050, 6550))
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, liveevents.TypeRateChanged, events[0].Type)
	assert.Empty(t, events[0].PreviousRateID)
	assert.Equal(t, second.ID.String(), events[1].RateID)
	assert.Equal(t, first.ID.String(), events[1].PreviousRateID)
	assert.Equal(t, "6050", events[1].Rate22K)
}

func TestSetNewRateConcurrentWriters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.SetNewRate(ctx, rateReq(int64(6000+i), int64(6500+i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), countCurrent(t, f.db))
	history, err := f.svc.ListHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 8)
}

func TestSetNewRateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	negative := decimal.NewFromInt(-1)
	future := baseTime.Add(time.Hour)

	cases := []struct {
		name string
		req  domain.SetRateRequest
		want error
	}{
		{name: "zero 22k", req: rateReq(0, 6500), want: domain.ErrInvalidRate},
		{name: "negative 24k", req: rateReq(6000, -5), want: domain.ErrInvalidRate},
		{name: "negative 18k", req: domain.SetRateRequest{Rate22K: decimal.NewFromInt(6000), Rate24K: decimal.NewFromInt(6500), Rate18K: &negative}, want: domain.ErrInvalidRate},
		{name: "future effective date", req: domain.SetRateRequest{Rate22K: decimal.NewFromInt(6000), Rate24K: decimal.NewFromInt(6500), EffectiveDate: &future}, want: domain.ErrInvalidEffectiveDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SetNewRate(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, countCurrent(t, f.db))
}

func TestOptionalRatesRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r18 := decimal.RequireFromString("4500.5")

	req := rateReq(6000, 6500)
	req.Rate18K = &r18
	req.Source = "feed"
	_, err := f.svc.SetNewRate(ctx, req)
	require.NoError(t, err)

	current, err := f.svc.GetCurrentRate(ctx)
	require.NoError(t, err)
	require.True(t, current.Rate18K.Valid)
	assert.True(t, current.Rate18K.Decimal.Equal(r18))
	assert.False(t, current.SilverRate.Valid)
	assert.Equal(t, "feed", current.Source)
}

func TestGetRateAsOf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	early := baseTime.Add(-48 * time.Hour)
	late := baseTime.Add(-2 * time.Hour)
	reqEarly := rateReq(5900, 6400)
	reqEarly.EffectiveDate = &early
	reqLate := rateReq(6000, 6500)
	reqLate.EffectiveDate = &late
	_, err := f.svc.SetNewRate(ctx, reqEarly)
	require.NoError(t, err)
	_, err = f.svc.SetNewRate(ctx, reqLate)
	require.NoError(t, err)

	got, err := f.svc.GetRateAsOf(ctx, baseTime.Add(-24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Rate22K.Equal(decimal.NewFromInt(5900)))

	got, err = f.svc.GetRateAsOf(ctx, baseTime)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Rate22K.Equal(decimal.NewFromInt(6000)))

	got, err = f.svc.GetRateAsOf(ctx, baseTime.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByIDErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = f.svc.GetByID(ctx, "123456")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCurrentRateForShareInsideTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.SetNewRate(ctx, rateReq(6000, 6500))
	require.NoError(t, err)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		rate, err := f.svc.CurrentRateForShareTx(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, created.ID, rate.ID)
		ok, err := f.svc.IsCurrentTx(ctx, tx, rate.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
}
