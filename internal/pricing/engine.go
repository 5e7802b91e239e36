package pricing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	"github.com/smallbiznis/karat/internal/config"
	goldratedomain "github.com/smallbiznis/karat/internal/goldrate/domain"
	makingchargedomain "github.com/smallbiznis/karat/internal/makingcharge/domain"
	"github.com/smallbiznis/karat/internal/variation"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Quote is one priced product configuration at one gold rate.
type Quote struct {
	ProductID  snowflake.ID          `json:"product_id"`
	Product    catalogdomain.Product `json:"product"`
	RateID     snowflake.ID          `json:"rate_id"`
	Currency   string                `json:"currency"`
	Variations *variation.Result     `json:"variations"`
	Price      CalculatedPrice       `json:"price"`
	QuotedAt   time.Time             `json:"quoted_at"`
}

type EngineParams struct {
	fx.In

	Catalog  catalogdomain.TxReader
	Policies makingchargedomain.Service
	Pricing  *config.PricingConfigHolder
}

// Engine composes catalog, policy, resolver and calculator for one product.
// Quotes and checkout share it so both price the same way.
type Engine struct {
	catalog  catalogdomain.TxReader
	policies makingchargedomain.Service
	pricing  *config.PricingConfigHolder
}

func NewEngine(p EngineParams) *Engine {
	return &Engine{
		catalog:  p.Catalog,
		policies: p.Policies,
		pricing:  p.Pricing,
	}
}

// PriceTx prices productID at rate, reading every other input through tx.
func (e *Engine) PriceTx(ctx context.Context, tx *gorm.DB, rate *goldratedomain.GoldRate, productID snowflake.ID, selections variation.Selections) (*Quote, error) {
	product, err := e.catalog.ProductTx(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	variations, err := e.catalog.VariationsTx(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	resolved, err := variation.Resolve(product.WeightGrams, variations, selections)
	if err != nil {
		return nil, err
	}
	policy, err := e.policies.PolicyForTx(ctx, tx, product.Category)
	if err != nil {
		return nil, err
	}

	cfg := e.pricing.Get()
	price, err := Calculate(Inputs{
		Product:    *product,
		Rate:       rate,
		Policy:     policy,
		Variations: resolved,
		GSTPercent: cfg.GSTPercent,
	})
	if err != nil {
		return nil, err
	}

	return &Quote{
		ProductID:  product.ID,
		Product:    *product,
		RateID:     rate.ID,
		Currency:   cfg.Currency,
		Variations: resolved,
		Price:      *price,
	}, nil
}
