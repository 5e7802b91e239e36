package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	"github.com/smallbiznis/karat/internal/pricingerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestResolvePercentPrecedence(t *testing.T) {
	def := dec("12")
	policy := NewPolicy([]CategoryMakingCharge{
		{Category: "bridal-rings", MakingChargePercent: dec("18"), MinMakingCharge: dec("750")},
	}, &def)

	override := catalogdomain.Product{Category: "Bridal Rings", MakingChargePercent: decimal.NewNullDecimal(dec("9.5"))}
	pct, err := policy.ResolvePercent(override)
	require.NoError(t, err)
	assert.True(t, pct.Equal(dec("9.5")))

	category := catalogdomain.Product{Category: "Bridal Rings"}
	pct, err = policy.ResolvePercent(category)
	require.NoError(t, err)
	assert.True(t, pct.Equal(dec("18")))
	assert.True(t, policy.ResolveFloor(category).Equal(dec("750")))
	assert.True(t, policy.ResolveFloor(override).Equal(dec("750")))

	unknown := catalogdomain.Product{Category: "anklets"}
	pct, err = policy.ResolvePercent(unknown)
	require.NoError(t, err)
	assert.True(t, pct.Equal(def))
	assert.True(t, policy.ResolveFloor(unknown).IsZero())
}

func TestResolvePercentWithoutDefault(t *testing.T) {
	policy := NewPolicy(nil, nil)

	_, err := policy.ResolvePercent(catalogdomain.Product{Category: "anklets"})
	require.Error(t, err)
	assert.True(t, pricingerr.IsConfiguration(err))
	assert.ErrorIs(t, err, pricingerr.ErrMissingPolicy)
}

func TestResolvePercentRejectsOutOfRange(t *testing.T) {
	def := dec("12")
	policy := NewPolicy([]CategoryMakingCharge{{Category: "chains", MakingChargePercent: dec("140")}}, &def)

	_, err := policy.ResolvePercent(catalogdomain.Product{Category: "chains"})
	assert.ErrorIs(t, err, pricingerr.ErrInvalidPolicy)

	_, err = policy.ResolvePercent(catalogdomain.Product{Category: "rings", MakingChargePercent: decimal.NewNullDecimal(dec("-1"))})
	assert.ErrorIs(t, err, pricingerr.ErrInvalidPolicy)
}

func TestCategoryKey(t *testing.T) {
	assert.Equal(t, "bridal-rings", CategoryKey("  Bridal Rings "))
	assert.Equal(t, CategoryKey("bridal-rings"), CategoryKey("Bridal Rings"))
}
