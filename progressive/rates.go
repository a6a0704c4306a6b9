/*
rates.go - Effective-dated interest rate changes

A loan carries its product's nominal annual rate plus a set of
effective-dated rate changes. Lookup picks the latest change whose
effective date is on or before the asked date, falling back to the
nominal rate when none match.
*/
package progressive

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/loan-engine/dates"
)

// InterestRate is one effective-dated rate change. Rate is an annual
// fraction (0.095 = 9.5%).
type InterestRate struct {
	EffectiveFrom dates.Date
	Rate          decimal.Decimal
}

// RateSet holds rate changes ordered descending by effective date.
type RateSet struct {
	rates []InterestRate
}

// Add inserts a rate change, keeping the descending order. A second change
// on the same effective date replaces the first.
func (rs *RateSet) Add(rate InterestRate) {
	for i, existing := range rs.rates {
		if existing.EffectiveFrom.Equal(rate.EffectiveFrom) {
			rs.rates[i] = rate
			return
		}
	}
	rs.rates = append(rs.rates, rate)
	sort.Slice(rs.rates, func(i, j int) bool {
		return rs.rates[i].EffectiveFrom.After(rs.rates[j].EffectiveFrom)
	})
}

// Lookup returns the latest rate effective on or before asOf, or fallback
// when no change applies.
func (rs *RateSet) Lookup(asOf dates.Date, fallback decimal.Decimal) decimal.Decimal {
	for _, r := range rs.rates {
		if r.EffectiveFrom.BeforeOrEqual(asOf) {
			return r.Rate
		}
	}
	return fallback
}

// All returns the rate changes, newest first.
func (rs *RateSet) All() []InterestRate {
	out := make([]InterestRate, len(rs.rates))
	copy(out, rs.rates)
	return out
}
