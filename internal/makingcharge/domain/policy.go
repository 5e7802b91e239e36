package domain

import (
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	"github.com/smallbiznis/karat/internal/pricingerr"
)

var hundred = decimal.NewFromInt(100)

// Policy resolves making-charge percent and floor for products. It is a
// read-only snapshot; build a new one after policy rows change.
type Policy struct {
	categories     map[string]CategoryMakingCharge
	defaultPercent *decimal.Decimal
}

// NewPolicy builds a policy from category rows. A nil defaultPercent means
// products in categories without a row cannot be priced.
func NewPolicy(rows []CategoryMakingCharge, defaultPercent *decimal.Decimal) *Policy {
	categories := make(map[string]CategoryMakingCharge, len(rows))
	for _, row := range rows {
		categories[CategoryKey(row.Category)] = row
	}
	return &Policy{categories: categories, defaultPercent: defaultPercent}
}

// CategoryKey normalises a category name so "Bridal Rings" and
// "bridal-rings" share one policy row.
func CategoryKey(name string) string {
	return slug.Make(name)
}

// ResolvePercent prefers the product override, then the category row, then
// the system default.
func (p *Policy) ResolvePercent(product catalogdomain.Product) (decimal.Decimal, error) {
	if product.MakingChargePercent.Valid {
		pct := product.MakingChargePercent.Decimal
		if !validPercent(pct) {
			return decimal.Zero, pricingerr.Configuration(pricingerr.ErrInvalidPolicy,
				"product %s making charge override %s is outside 0..100", product.ID, pct)
		}
		return pct, nil
	}

	if row, ok := p.categories[CategoryKey(product.Category)]; ok {
		if !validPercent(row.MakingChargePercent) {
			return decimal.Zero, pricingerr.Configuration(pricingerr.ErrInvalidPolicy,
				"category %q making charge %s is outside 0..100", row.Category, row.MakingChargePercent)
		}
		return row.MakingChargePercent, nil
	}

	if p.defaultPercent == nil {
		return decimal.Zero, pricingerr.Configuration(pricingerr.ErrMissingPolicy,
			"no making charge policy for category %q and no system default", product.Category)
	}
	return *p.defaultPercent, nil
}

// ResolveFloor is the category minimum, or zero without a row.
func (p *Policy) ResolveFloor(product catalogdomain.Product) decimal.Decimal {
	row, ok := p.categories[CategoryKey(product.Category)]
	if !ok || row.MinMakingCharge.IsNegative() {
		return decimal.Zero
	}
	return row.MinMakingCharge
}

func validPercent(v decimal.Decimal) bool {
	return !v.IsNegative() && v.LessThanOrEqual(hundred)
}
