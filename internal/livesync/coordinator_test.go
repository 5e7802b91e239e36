package livesync

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/karat/internal/clock"
	"github.com/smallbiznis/karat/internal/liveevents"
	"github.com/smallbiznis/karat/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCoordinator(t *testing.T) (*Coordinator, *liveevents.Hub, *clock.FakeClock) {
	t.Helper()
	hub := liveevents.NewHub()
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	return New(Params{Log: zap.NewNop(), Clock: fake, Hub: hub}), hub, fake
}

func TestStoreRejectsStaleGeneration(t *testing.T) {
	c, _, _ := newCoordinator(t)
	q := &pricing.Quote{ProductID: 1}

	gen := c.Generation()
	c.InvalidateAll(ReasonRateChanged)
	assert.False(t, c.Store(gen, 1, "", q, time.Minute))
	_, ok := c.Get(1, "")
	assert.False(t, ok)

	assert.True(t, c.Store(c.Generation(), 1, "", q, time.Minute))
	got, ok := c.Get(1, "")
	require.True(t, ok)
	assert.Same(t, q, got)
}

func TestInvalidateProductLeavesOtherProducts(t *testing.T) {
	c, _, _ := newCoordinator(t)
	gen := c.Generation()
	require.True(t, c.Store(gen, 1, "", &pricing.Quote{}, time.Minute))
	require.True(t, c.Store(gen, 1, "size=3", &pricing.Quote{}, time.Minute))
	require.True(t, c.Store(gen, 12, "", &pricing.Quote{}, time.Minute))

	assert.Equal(t, 2, c.InvalidateProduct(1))
	_, ok := c.Get(12, "")
	assert.True(t, ok)
	_, ok = c.Get(1, "size=3")
	assert.False(t, ok)
}

func TestEventsDriveInvalidation(t *testing.T) {
	c, hub, _ := newCoordinator(t)
	ctx := context.Background()
	store := func(id snowflake.ID) {
		require.True(t, c.Store(c.Generation(), id, "", &pricing.Quote{}, time.Minute))
	}

	store(1)
	store(2)
	hub.Publish(ctx, liveevents.Event{Type: liveevents.TypeVariationChanged, ProductID: "1"})
	_, ok := c.Get(1, "")
	assert.False(t, ok)
	_, ok = c.Get(2, "")
	assert.True(t, ok)

	hub.Publish(ctx, liveevents.Event{Type: liveevents.TypeRateChanged, RateID: "5"})
	_, ok = c.Get(2, "")
	assert.False(t, ok)

	store(3)
	hub.Publish(ctx, liveevents.Event{Type: liveevents.TypePolicyChanged, Category: "rings"})
	_, ok = c.Get(3, "")
	assert.False(t, ok)

	store(4)
	hub.Publish(ctx, liveevents.Event{Type: liveevents.TypeVariationChanged, ProductID: "garbage"})
	_, ok = c.Get(4, "")
	assert.False(t, ok)
}

func TestQuotesExpire(t *testing.T) {
	c, _, fake := newCoordinator(t)
	require.True(t, c.Store(c.Generation(), 1, "", &pricing.Quote{}, time.Minute))

	fake.Advance(59 * time.Second)
	_, ok := c.Get(1, "")
	assert.True(t, ok)
	fake.Advance(time.Second)
	_, ok = c.Get(1, "")
	assert.False(t, ok)
}

func TestSweepReleasesExpiredQuotes(t *testing.T) {
	c, _, fake := newCoordinator(t)
	require.True(t, c.Store(c.Generation(), 1, "", &pricing.Quote{}, time.Minute))
	require.True(t, c.Store(c.Generation(), 2, "", &pricing.Quote{}, time.Hour))

	fake.Advance(2 * time.Minute)
	assert.Equal(t, 1, c.Sweep())
	_, ok := c.Get(2, "")
	assert.True(t, ok)
}

func TestResyncDropsEveryQuote(t *testing.T) {
	c, hub, _ := newCoordinator(t)
	require.True(t, c.Store(c.Generation(), 1, "", &pricing.Quote{}, time.Minute))
	require.True(t, c.Store(c.Generation(), 2, "", &pricing.Quote{}, time.Minute))

	hub.Publish(context.Background(), liveevents.Event{Type: liveevents.TypeResync})

	_, ok := c.Get(1, "")
	assert.False(t, ok)
	_, ok = c.Get(2, "")
	assert.False(t, ok)
}
