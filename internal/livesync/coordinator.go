package livesync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/karat/internal/cache"
	"github.com/smallbiznis/karat/internal/clock"
	"github.com/smallbiznis/karat/internal/config"
	"github.com/smallbiznis/karat/internal/liveevents"
	"github.com/smallbiznis/karat/internal/observability/metrics"
	"github.com/smallbiznis/karat/internal/pricing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	ReasonRateChanged      = "rate_changed"
	ReasonPolicyChanged    = "policy_changed"
	ReasonVariationChanged = "variation_changed"
	ReasonPricingReloaded  = "pricing_config_reloaded"
	ReasonResync           = "resync"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Hub     *liveevents.Hub
	Pricing *config.PricingConfigHolder `optional:"true"`
	Metrics *metrics.Metrics            `optional:"true"`
}

// Coordinator owns the display quote cache. Rate and policy changes drop
// every entry; a variation change drops one product's entries. Persisted
// rows are never touched.
type Coordinator struct {
	mu         sync.Mutex
	generation uint64
	quotes     cache.Cache[string, *pricing.Quote]
	log        *zap.Logger
	metrics    *metrics.Metrics
}

func New(p Params) *Coordinator {
	c := &Coordinator{
		quotes:  cache.NewTTLCacheWithClock[string, *pricing.Quote](p.Clock.Now),
		log:     p.Log.Named("livesync"),
		metrics: p.Metrics,
	}
	if p.Hub != nil {
		p.Hub.Handle(c.handle)
	}
	if p.Pricing != nil {
		p.Pricing.OnChange(func(config.PricingConfig) {
			c.InvalidateAll(ReasonPricingReloaded)
		})
	}
	return c
}

func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Coordinator) Get(productID snowflake.ID, fingerprint string) (*pricing.Quote, bool) {
	return c.quotes.Get(quoteKey(productID, fingerprint))
}

func (c *Coordinator) Store(generation uint64, productID snowflake.ID, fingerprint string, quote *pricing.Quote, ttl time.Duration) bool {
	if quote == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	c.quotes.Set(quoteKey(productID, fingerprint), quote, ttl)
	return true
}

func (c *Coordinator) InvalidateAll(reason string) int {
	c.mu.Lock()
	c.generation++
	removed := c.quotes.Clear()
	c.mu.Unlock()

	c.metrics.RecordCacheInvalidation(context.Background(), reason)
	c.log.Info("quote cache invalidated", zap.String("reason", reason), zap.Int("removed", removed))
	return removed
}

func (c *Coordinator) InvalidateProduct(productID snowflake.ID) int {
	prefix := productID.String() + "|"
	c.mu.Lock()
	c.generation++
	removed := c.quotes.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
	c.mu.Unlock()

	c.metrics.RecordCacheInvalidation(context.Background(), ReasonVariationChanged)
	c.log.Debug("product quotes invalidated", zap.String("product_id", productID.String()), zap.Int("removed", removed))
	return removed
}

// Sweep drops expired quotes. Expired entries are already invisible to Get;
// this only releases their memory.
func (c *Coordinator) Sweep() int {
	return c.quotes.Sweep()
}

func (c *Coordinator) handle(e liveevents.Event) {
	switch e.Type {
	case liveevents.TypeRateChanged:
		c.InvalidateAll(ReasonRateChanged)
	case liveevents.TypePolicyChanged:
		c.InvalidateAll(ReasonPolicyChanged)
	case liveevents.TypeResync:
		c.InvalidateAll(ReasonResync)
	case liveevents.TypeVariationChanged:
		id, err := snowflake.ParseString(e.ProductID)
		if err != nil {
			c.log.Warn("variation event without product id, dropping all quotes", zap.String("product_id", e.ProductID))
			c.InvalidateAll(ReasonVariationChanged)
			return
		}
		c.InvalidateProduct(id)
	}
}

// quoteKey always ends the product segment with "|" so product 1 never
// matches product 12's prefix.
func quoteKey(productID snowflake.ID, fingerprint string) string {
	return productID.String() + "|" + fingerprint
}
