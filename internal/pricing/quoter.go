package pricing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/karat/internal/clock"
	"github.com/smallbiznis/karat/internal/config"
	goldratedomain "github.com/smallbiznis/karat/internal/goldrate/domain"
	"github.com/smallbiznis/karat/internal/observability/metrics"
	"github.com/smallbiznis/karat/internal/pricingerr"
	"github.com/smallbiznis/karat/internal/variation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	OutcomeComputed      = "computed"
	OutcomeCached        = "cached"
	OutcomeConfiguration = "configuration_error"
	OutcomeSelection     = "selection_error"
	OutcomeFailed        = "failed"
)

// QuoteCache holds display quotes. Store must refuse an entry when the
// generation moved since the caller read it.
type QuoteCache interface {
	Generation() uint64
	Get(productID snowflake.ID, fingerprint string) (*Quote, bool)
	Store(generation uint64, productID snowflake.ID, fingerprint string, quote *Quote, ttl time.Duration) bool
}

type QuoterParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Engine  *Engine
	Rates   goldratedomain.Service
	Pricing *config.PricingConfigHolder
	Cache   QuoteCache       `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

// Quoter serves display prices. Checkout never uses its cache.
type Quoter struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	engine  *Engine
	rates   goldratedomain.Service
	pricing *config.PricingConfigHolder
	cache   QuoteCache
	metrics *metrics.Metrics
}

func NewQuoter(p QuoterParams) *Quoter {
	return &Quoter{
		db:      p.DB,
		log:     p.Log.Named("pricing.quoter"),
		clock:   p.Clock,
		engine:  p.Engine,
		rates:   p.Rates,
		pricing: p.Pricing,
		cache:   p.Cache,
		metrics: p.Metrics,
	}
}

func (q *Quoter) Quote(ctx context.Context, productID snowflake.ID, selections variation.Selections) (*Quote, error) {
	fingerprint := selections.Fingerprint()

	var generation uint64
	if q.cache != nil {
		if cached, ok := q.cache.Get(productID, fingerprint); ok {
			q.metrics.RecordPriceQuote(ctx, string(cached.Product.MetalType), OutcomeCached)
			return cached, nil
		}
		generation = q.cache.Generation()
	}

	rate, err := q.rates.GetCurrentRate(ctx)
	if err != nil {
		q.record(ctx, err)
		return nil, err
	}
	quote, err := q.engine.PriceTx(ctx, q.db, rate, productID, selections)
	if err != nil {
		q.record(ctx, err)
		return nil, err
	}
	quote.QuotedAt = q.clock.Now()

	if q.cache != nil {
		if !q.cache.Store(generation, productID, fingerprint, quote, q.pricing.Get().QuoteCacheTTL) {
			q.log.Debug("quote computed across an invalidation, not cached",
				zap.String("product_id", productID.String()),
				zap.String("rate_id", rate.ID.String()),
			)
		}
	}
	q.metrics.RecordPriceQuote(ctx, string(quote.Product.MetalType), OutcomeComputed)
	return quote, nil
}

func (q *Quoter) record(ctx context.Context, err error) {
	outcome := OutcomeFailed
	switch {
	case pricingerr.IsConfiguration(err):
		outcome = OutcomeConfiguration
		q.log.Warn("pricing unavailable", zap.Error(err))
	case pricingerr.IsSelection(err):
		outcome = OutcomeSelection
	}
	q.metrics.RecordPriceQuote(ctx, "unknown", outcome)
}
