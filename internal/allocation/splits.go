package allocation

import (
	"github.com/Veraticus/tithe/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// computeSplits produces one record per purpose. Amounts are rounded to
// cents; the last purpose absorbs the rounding remainder so the splits sum to
// the allocated share of the transaction in both currencies. Rules with no
// purposes or a zero total percentage produce nothing.
func computeSplits(txn model.Transaction, rule model.AllocationRule, rates RateTable, opts Options) ([]model.TransactionAllocation, bool) {
	if len(rule.Purposes) == 0 {
		return nil, false
	}
	total := rule.TotalPercentage()
	if total.IsZero() {
		return nil, false
	}

	nativeTotal := share(txn.Amount, total)
	baseTotal, _ := rates.Convert(nativeTotal, txn.Currency)
	baseTotal = baseTotal.Round(2)

	currency := normalizeCurrency(txn.Currency)
	if currency == "" {
		currency = rates.Base()
	}

	out := make([]model.TransactionAllocation, len(rule.Purposes))
	nativeSum, baseSum := decimal.Zero, decimal.Zero
	for i, p := range rule.Purposes {
		native := share(txn.Amount, p.Percentage)
		base, _ := rates.Convert(native, txn.Currency)
		base = base.Round(2)
		if i == len(rule.Purposes)-1 {
			native = nativeTotal.Sub(nativeSum)
			base = baseTotal.Sub(baseSum)
		}
		nativeSum = nativeSum.Add(native)
		baseSum = baseSum.Add(base)

		out[i] = model.TransactionAllocation{
			ID:             model.AllocationID(txn.ID, rule.ID, p.ID),
			TransactionID:  txn.ID,
			RuleID:         rule.ID,
			PurposeID:      p.ID,
			Percentage:     p.Percentage,
			NativeAmount:   native,
			NativeCurrency: currency,
			BaseAmount:     base,
			BaseCurrency:   rates.Base(),
			AppliedAt:      opts.Now,
			Mode:           opts.Mode,
		}
	}
	return out, true
}

// share returns pct percent of amount rounded to cents.
func share(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(2)
}
