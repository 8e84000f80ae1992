package allocation

import (
	"slices"

	"github.com/Veraticus/tithe/internal/model"
	"github.com/shopspring/decimal"
)

type breakdownKey struct {
	ruleID    string
	purposeID string
}

// aggregator accumulates the preview totals of a run. Breakdown rows follow
// rule precedence and then purpose order so output is stable.
type aggregator struct {
	rows         map[breakdownKey]*model.PurposeBreakdown
	order        []breakdownKey
	nativeTotals map[string]decimal.Decimal
	fallbacks    map[string]bool
	base         string
	totalBase    decimal.Decimal
	transactions int
	allocations  int
}

func newAggregator(ordered []model.AllocationRule, base string) *aggregator {
	a := &aggregator{
		rows:         make(map[breakdownKey]*model.PurposeBreakdown),
		nativeTotals: make(map[string]decimal.Decimal),
		fallbacks:    make(map[string]bool),
		base:         base,
		totalBase:    decimal.Zero,
	}
	for _, r := range ordered {
		for _, p := range r.Purposes {
			key := breakdownKey{ruleID: r.ID, purposeID: p.ID}
			if _, dup := a.rows[key]; dup {
				continue
			}
			a.order = append(a.order, key)
			a.rows[key] = &model.PurposeBreakdown{
				RuleID:       r.ID,
				RuleName:     r.Name,
				PurposeID:    p.ID,
				PurposeName:  p.Name,
				BaseAmount:   decimal.Zero,
				NativeTotals: make(map[string]decimal.Decimal),
			}
		}
	}
	return a
}

func (a *aggregator) add(rule model.AllocationRule, splits []model.TransactionAllocation, rates RateTable) {
	a.transactions++
	for _, s := range splits {
		a.allocations++
		a.totalBase = a.totalBase.Add(s.BaseAmount)
		a.nativeTotals[s.NativeCurrency] = addTo(a.nativeTotals, s.NativeCurrency, s.NativeAmount)
		if _, ok := rates.Rate(s.NativeCurrency); !ok {
			a.fallbacks[s.NativeCurrency] = true
		}

		row := a.rows[breakdownKey{ruleID: rule.ID, purposeID: s.PurposeID}]
		if row == nil {
			continue
		}
		row.Count++
		row.BaseAmount = row.BaseAmount.Add(s.BaseAmount)
		row.NativeTotals[s.NativeCurrency] = addTo(row.NativeTotals, s.NativeCurrency, s.NativeAmount)
	}
}

func (a *aggregator) preview() model.AllocationRunPreview {
	p := model.AllocationRunPreview{
		BaseCurrency:         a.base,
		NativeTotals:         a.nativeTotals,
		TotalBaseAmount:      a.totalBase,
		TransactionsAffected: a.transactions,
		AllocationCount:      a.allocations,
		Breakdown:            []model.PurposeBreakdown{},
	}
	for _, key := range a.order {
		if row := a.rows[key]; row.Count > 0 {
			p.Breakdown = append(p.Breakdown, *row)
		}
	}
	for cur := range a.fallbacks {
		p.FallbackCurrencies = append(p.FallbackCurrencies, cur)
	}
	slices.Sort(p.FallbackCurrencies)
	return p
}

func addTo(m map[string]decimal.Decimal, key string, v decimal.Decimal) decimal.Decimal {
	if cur, ok := m[key]; ok {
		return cur.Add(v)
	}
	return v
}
