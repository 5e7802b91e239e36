package variation

import (
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	"github.com/smallbiznis/karat/internal/pricingerr"
)

const (
	WarningWeightClamped      = "weight_clamped"
	WarningDefaultOutOfStock  = "default_out_of_stock"
	WarningDefaultUnavailable = "default_unavailable"
)

// Selections maps a variation group to the ids the shopper picked in it.
type Selections map[string][]snowflake.ID

// ParseSelections converts wire selections into resolver input. An id that
// is not a valid variation id is a selection error.
func ParseSelections(raw map[string][]string) (Selections, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	groups := make([]string, 0, len(raw))
	for g := range raw {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	out := make(Selections, len(raw))
	for _, g := range groups {
		group := strings.TrimSpace(g)
		for _, rawID := range raw[g] {
			id, err := snowflake.ParseString(strings.TrimSpace(rawID))
			if err != nil || id <= 0 {
				return nil, pricingerr.Selection(pricingerr.ErrUnknownVariation, group, rawID)
			}
			out[group] = append(out[group], id)
		}
	}
	return out, nil
}

// Fingerprint is a canonical string for the selection, stable across map
// iteration order and id order within a group.
func (s Selections) Fingerprint() string {
	groups := make([]string, 0, len(s))
	for g, ids := range s {
		if len(ids) > 0 {
			groups = append(groups, g)
		}
	}
	sort.Strings(groups)

	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteByte(';')
		}
		ids := append([]snowflake.ID(nil), s[g]...)
		sort.Slice(ids, func(a, c int) bool { return ids[a] < ids[c] })
		b.WriteString(g)
		b.WriteByte('=')
		for j, id := range ids {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(id.String())
		}
	}
	return b.String()
}

type Selected struct {
	ID               snowflake.ID                `json:"id"`
	Group            string                      `json:"group"`
	Type             catalogdomain.VariationType `json:"type"`
	Label            string                      `json:"label"`
	PriceAdjustment  decimal.Decimal             `json:"price_adjustment"`
	WeightAdjustment decimal.Decimal             `json:"weight_adjustment"`
	Defaulted        bool                        `json:"defaulted"`
}

// Result is the effective combination. Selected is ordered by group, then id.
type Result struct {
	PriceDelta      decimal.Decimal `json:"price_delta"`
	WeightDelta     decimal.Decimal `json:"weight_delta"`
	EffectiveWeight decimal.Decimal `json:"effective_weight"`
	Selected        []Selected      `json:"selected"`
	Warnings        []string        `json:"warnings,omitempty"`
}

func (r *Result) SelectedIDs() []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(r.Selected))
	for _, s := range r.Selected {
		ids = append(ids, s.ID)
	}
	return ids
}

type group struct {
	name string
	mode catalogdomain.SelectionMode
	rows []catalogdomain.ProductVariation
}

// Resolve turns a product's variations and the shopper's selections into one
// price and weight delta. baseWeight is the product weight before deltas.
func Resolve(baseWeight decimal.Decimal, variations []catalogdomain.ProductVariation, selections Selections) (*Result, error) {
	groups, byID, err := buildGroups(variations)
	if err != nil {
		return nil, err
	}
	if err := validateSelections(groups, byID, selections); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &Result{PriceDelta: decimal.Zero, WeightDelta: decimal.Zero}
	for _, name := range names {
		g := groups[name]
		active, warnings, err := activeRows(g, byID, selections[name])
		if err != nil {
			return nil, err
		}
		result.Warnings = append(result.Warnings, warnings...)

		for _, row := range active {
			detail, err := row.v.Detail()
			if err != nil {
				return nil, pricingerr.Configuration(pricingerr.ErrInvalidVariation, "variation %s: %v", row.v.ID, err)
			}
			result.PriceDelta = result.PriceDelta.Add(row.v.PriceAdjustment)
			result.WeightDelta = result.WeightDelta.Add(row.v.WeightAdjustment)
			result.Selected = append(result.Selected, Selected{
				ID:               row.v.ID,
				Group:            name,
				Type:             row.v.VariationType,
				Label:            detail.Label(),
				PriceAdjustment:  row.v.PriceAdjustment,
				WeightAdjustment: row.v.WeightAdjustment,
				Defaulted:        row.defaulted,
			})
		}
	}

	result.EffectiveWeight = baseWeight.Add(result.WeightDelta)
	if result.EffectiveWeight.IsNegative() {
		result.EffectiveWeight = decimal.Zero
		result.Warnings = append(result.Warnings, WarningWeightClamped)
	}
	return result, nil
}

func buildGroups(variations []catalogdomain.ProductVariation) (map[string]*group, map[snowflake.ID]catalogdomain.ProductVariation, error) {
	groups := make(map[string]*group)
	byID := make(map[snowflake.ID]catalogdomain.ProductVariation, len(variations))

	for _, v := range variations {
		name := strings.TrimSpace(v.VariationGroup)
		if name == "" {
			return nil, nil, pricingerr.Configuration(pricingerr.ErrInvalidVariation, "variation %s has no group", v.ID)
		}
		if v.SelectionMode != catalogdomain.SelectionSingle && v.SelectionMode != catalogdomain.SelectionMulti {
			return nil, nil, pricingerr.Configuration(pricingerr.ErrInvalidVariation,
				"variation %s has selection mode %q", v.ID, v.SelectionMode)
		}
		if _, dup := byID[v.ID]; dup {
			return nil, nil, pricingerr.Configuration(pricingerr.ErrInvalidVariation, "variation %s listed twice", v.ID)
		}
		v.VariationGroup = name
		byID[v.ID] = v

		g, ok := groups[name]
		if !ok {
			g = &group{name: name, mode: v.SelectionMode}
			groups[name] = g
		}
		if g.mode != v.SelectionMode {
			return nil, nil, pricingerr.Configuration(pricingerr.ErrInvalidVariation,
				"group %q mixes %s and %s selection modes", name, g.mode, v.SelectionMode)
		}
		g.rows = append(g.rows, v)
	}

	for _, g := range groups {
		sort.Slice(g.rows, func(i, j int) bool { return g.rows[i].ID < g.rows[j].ID })
		if g.mode != catalogdomain.SelectionSingle {
			continue
		}
		defaults := 0
		for _, row := range g.rows {
			if row.IsDefault && row.IsAvailable {
				defaults++
			}
		}
		if defaults > 1 {
			return nil, nil, pricingerr.Configuration(pricingerr.ErrInvalidVariation,
				"group %q has %d active defaults", g.name, defaults)
		}
	}
	return groups, byID, nil
}

func validateSelections(groups map[string]*group, byID map[snowflake.ID]catalogdomain.ProductVariation, selections Selections) error {
	names := make([]string, 0, len(selections))
	for name := range selections {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[snowflake.ID]struct{})
	for _, name := range names {
		ids := selections[name]
		if len(ids) == 0 {
			continue
		}
		g, ok := groups[name]
		if !ok {
			return pricingerr.Selection(pricingerr.ErrUnknownGroup, name, "")
		}
		if g.mode == catalogdomain.SelectionSingle && len(ids) > 1 {
			return pricingerr.Selection(pricingerr.ErrTooManySelections, name, ids[1].String())
		}
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				return pricingerr.Selection(pricingerr.ErrDuplicateSelection, name, id.String())
			}
			seen[id] = struct{}{}

			v, ok := byID[id]
			if !ok || v.VariationGroup != name {
				return pricingerr.Selection(pricingerr.ErrUnknownVariation, name, id.String())
			}
			if !v.IsAvailable {
				return pricingerr.Selection(pricingerr.ErrVariationUnavailable, name, id.String())
			}
			if v.StockQuantity <= 0 {
				return pricingerr.Selection(pricingerr.ErrVariationOutOfStock, name, id.String())
			}
		}
	}
	return nil
}

type activeRow struct {
	v         catalogdomain.ProductVariation
	defaulted bool
}

func activeRows(g *group, byID map[snowflake.ID]catalogdomain.ProductVariation, chosen []snowflake.ID) ([]activeRow, []string, error) {
	if len(chosen) > 0 {
		ids := append([]snowflake.ID(nil), chosen...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		rows := make([]activeRow, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, activeRow{v: byID[id]})
		}
		return rows, nil, nil
	}

	if g.mode == catalogdomain.SelectionMulti {
		return nil, nil, nil
	}

	var warnings []string
	for _, row := range g.rows {
		if !row.IsDefault {
			continue
		}
		if !row.IsAvailable {
			warnings = append(warnings, WarningDefaultUnavailable+":"+g.name)
			continue
		}
		if row.StockQuantity <= 0 {
			warnings = append(warnings, WarningDefaultOutOfStock+":"+g.name)
			continue
		}
		return []activeRow{{v: row, defaulted: true}}, warnings, nil
	}
	return nil, warnings, nil
}
