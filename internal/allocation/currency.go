package allocation

import (
	"strings"

	"github.com/Veraticus/tithe/internal/model"
	"github.com/shopspring/decimal"
)

// RateTable converts native amounts into the base currency.
type RateTable struct {
	rates map[string]decimal.Decimal
	base  string
}

// NewRateTable builds a table from settings. The base currency always
// converts at 1; non-positive rates are ignored.
func NewRateTable(settings model.Settings) RateTable {
	base := normalizeCurrency(settings.BaseCurrency)
	rt := RateTable{
		base:  base,
		rates: make(map[string]decimal.Decimal, len(settings.ExchangeRates)+1),
	}
	for _, r := range settings.ExchangeRates {
		cur := normalizeCurrency(r.Currency)
		if cur == "" || !r.RateToBase.IsPositive() {
			continue
		}
		rt.rates[cur] = r.RateToBase
	}
	if base != "" {
		rt.rates[base] = decimal.NewFromInt(1)
	}
	return rt
}

// Base returns the base currency code.
func (rt RateTable) Base() string {
	return rt.base
}

// Rate returns the rate for currency. Currencies missing from the table
// convert at 1 and report ok=false so callers can surface the fallback.
// A blank currency is treated as the base currency.
func (rt RateTable) Rate(currency string) (rate decimal.Decimal, ok bool) {
	cur := normalizeCurrency(currency)
	if cur == "" || cur == rt.base {
		return decimal.NewFromInt(1), true
	}
	if r, found := rt.rates[cur]; found {
		return r, true
	}
	return decimal.NewFromInt(1), false
}

// Convert returns amount expressed in the base currency.
func (rt RateTable) Convert(amount decimal.Decimal, currency string) (decimal.Decimal, bool) {
	rate, ok := rt.Rate(currency)
	return amount.Mul(rate), ok
}

func normalizeCurrency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}
