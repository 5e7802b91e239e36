package pricing

import (
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	goldratedomain "github.com/smallbiznis/karat/internal/goldrate/domain"
	"github.com/smallbiznis/karat/internal/pricingerr"
	"github.com/smallbiznis/karat/internal/variation"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)
)

// PolicyResolver is the making-charge policy as seen by the calculator.
type PolicyResolver interface {
	ResolvePercent(product catalogdomain.Product) (decimal.Decimal, error)
	ResolveFloor(product catalogdomain.Product) decimal.Decimal
}

// CalculatedPrice is derived and never stored on its own. Money fields are
// whole currency units; GoldRateApplied is the per-gram rate as stored.
type CalculatedPrice struct {
	GoldValue           decimal.Decimal `json:"gold_value"`
	MakingCharges       decimal.Decimal `json:"making_charges"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	GST                 decimal.Decimal `json:"gst"`
	Total               decimal.Decimal `json:"total"`
	GoldRateApplied     decimal.Decimal `json:"gold_rate_applied"`
	EffectiveWeight     decimal.Decimal `json:"effective_weight"`
	MakingChargePercent decimal.Decimal `json:"making_charge_percent"`
	GSTPercent          decimal.Decimal `json:"gst_percent"`
	PriceDelta          decimal.Decimal `json:"price_delta"`
}

type Inputs struct {
	Product    catalogdomain.Product
	Rate       *goldratedomain.GoldRate
	Policy     PolicyResolver
	Variations *variation.Result
	GSTPercent decimal.Decimal
}

// Calculate is pure: identical inputs always give an identical price.
// Intermediate values stay unrounded; each money field is rounded once.
func Calculate(in Inputs) (*CalculatedPrice, error) {
	if err := validateInputs(in); err != nil {
		return nil, err
	}

	rateApplied, err := SelectRate(in.Product.MetalType, in.Rate)
	if err != nil {
		return nil, err
	}

	priceDelta, weightDelta := decimal.Zero, decimal.Zero
	if in.Variations != nil {
		priceDelta = in.Variations.PriceDelta
		weightDelta = in.Variations.WeightDelta
	}

	weight := in.Product.WeightGrams.Add(weightDelta)
	if weight.IsNegative() {
		weight = decimal.Zero
	}
	goldValue := weight.Mul(rateApplied)

	percent, err := in.Policy.ResolvePercent(in.Product)
	if err != nil {
		return nil, err
	}
	floor := in.Policy.ResolveFloor(in.Product)
	making := decimal.Max(goldValue.Mul(percent).Div(hundred), floor)
	// a fractional floor must not round below itself
	if RoundMoney(making).LessThan(floor) {
		making = floor.Ceil()
	}

	subtotal := goldValue.
		Add(making).
		Add(in.Product.DiamondCost).
		Add(in.Product.StoneCost).
		Add(priceDelta)
	if subtotal.IsNegative() {
		return nil, pricingerr.Configuration(pricingerr.ErrNegativeSubtotal,
			"product %s subtotal %s is below zero", in.Product.ID, subtotal)
	}

	gst := subtotal.Mul(in.GSTPercent).Div(hundred)
	total := subtotal.Add(gst)

	return &CalculatedPrice{
		GoldValue:           RoundMoney(goldValue),
		MakingCharges:       RoundMoney(making),
		Subtotal:            RoundMoney(subtotal),
		GST:                 RoundMoney(gst),
		Total:               RoundMoney(total),
		GoldRateApplied:     rateApplied,
		EffectiveWeight:     weight,
		MakingChargePercent: percent,
		GSTPercent:          in.GSTPercent,
		PriceDelta:          priceDelta,
	}, nil
}

// SelectRate maps a metal to its per-gram rate. Metals without a rate
// field, or whose optional field is unset, cannot be priced.
func SelectRate(metal catalogdomain.MetalType, rate *goldratedomain.GoldRate) (decimal.Decimal, error) {
	if rate == nil {
		return decimal.Zero, pricingerr.Configuration(pricingerr.ErrNoCurrentRate, "no gold rate supplied")
	}

	var applied decimal.Decimal
	switch metal {
	case catalogdomain.MetalGold22K:
		applied = rate.Rate22K
	case catalogdomain.MetalGold24K:
		applied = rate.Rate24K
	case catalogdomain.MetalGold18K:
		if !rate.Rate18K.Valid {
			return decimal.Zero, pricingerr.Configuration(pricingerr.ErrMissingRate, "rate %s has no 18k rate", rate.ID)
		}
		applied = rate.Rate18K.Decimal
	case catalogdomain.MetalSilver:
		if !rate.SilverRate.Valid {
			return decimal.Zero, pricingerr.Configuration(pricingerr.ErrMissingRate, "rate %s has no silver rate", rate.ID)
		}
		applied = rate.SilverRate.Decimal
	case catalogdomain.MetalPlatinum:
		return decimal.Zero, pricingerr.Configuration(pricingerr.ErrUnsupportedMetal, "no platinum rate is tracked")
	default:
		return decimal.Zero, pricingerr.Configuration(pricingerr.ErrUnsupportedMetal, "metal type %q", metal)
	}

	if !applied.IsPositive() {
		return decimal.Zero, pricingerr.Configuration(pricingerr.ErrInvalidRate, "rate %s for %s is %s", rate.ID, metal, applied)
	}
	return applied, nil
}

// RoundMoney rounds half-up to whole currency units.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Add(half).Floor()
}

func validateInputs(in Inputs) error {
	p := in.Product
	if p.WeightGrams.IsNegative() {
		return pricingerr.Configuration(pricingerr.ErrInvalidProduct, "product %s weight %s is negative", p.ID, p.WeightGrams)
	}
	if p.DiamondCost.IsNegative() || p.StoneCost.IsNegative() {
		return pricingerr.Configuration(pricingerr.ErrInvalidProduct, "product %s has a negative stone cost", p.ID)
	}
	if in.Policy == nil {
		return pricingerr.Configuration(pricingerr.ErrMissingPolicy, "no making charge policy supplied")
	}
	if in.GSTPercent.IsNegative() || in.GSTPercent.GreaterThan(hundred) {
		return pricingerr.Configuration(pricingerr.ErrInvalidPolicy, "gst percent %s is outside 0..100", in.GSTPercent)
	}
	return nil
}
