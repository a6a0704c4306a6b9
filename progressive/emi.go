/*
emi.go - Level-installment (EMI) math and rounding-drift adjustment

PURPOSE:
  A progressive schedule targets a level payment per period. Rounding
  every period's interest to the currency scale makes the level amounts
  drift; EmiAdjustment decides when the accumulated drift is big enough
  to redistribute and by how much each remaining period's EMI moves.

THRESHOLD POLICY:
  Adjust only when all three hold:
    - floor(relatedPeriods / 2) > 0
    - the accumulated difference is non-zero
    - |difference| * 100 > originalEmi * floor(relatedPeriods / 2)
  i.e. the drift must be large relative to half the remaining periods.
  Penny-level drift never triggers an adjustment, so the EMI does not
  churn on every recalculation.

CONVERGENCE:
  Schedule regeneration tries candidate adjustment points and keeps a
  later candidate only when it strictly shrinks the remaining difference
  (HasLessEmiDifference).
*/
package progressive

import (
	"github.com/shopspring/decimal"
	"github.com/warp/loan-engine/money"
)

// =============================================================================
// EMI CALCULATION
// =============================================================================

var one = decimal.NewFromInt(1)

// CalculateEMI returns the level payment for a principal amortized over n
// periods at the given periodic rate (a fraction per period), using the
// standard annuity formula P * r * (1+r)^n / ((1+r)^n - 1). Zero-rate
// loans divide the principal evenly.
func CalculateEMI(principal money.Money, periodicRate decimal.Decimal, n int) money.Money {
	if n <= 0 {
		return principal.Zero()
	}
	if periodicRate.IsZero() {
		return principal.DivInt(int64(n))
	}

	power := one.Add(periodicRate).Pow(decimal.NewFromInt(int64(n)))
	emi := principal.Amount().
		Mul(periodicRate).
		Mul(power).
		Div(power.Sub(one))
	return money.New(emi, principal.Currency())
}

// =============================================================================
// EMI ADJUSTMENT - transient computation, never persisted
// =============================================================================

// EmiAdjustment captures one candidate redistribution of accumulated
// rounding drift across the remaining repayment periods.
type EmiAdjustment struct {
	// OriginalEmi is the level amount the schedule currently targets.
	OriginalEmi money.Money

	// EmiDifference is the accumulated rounding drift across the related
	// periods; may be negative.
	EmiDifference money.Money

	// RelatedPeriods counts the repayment periods the drift accumulated
	// over; UncountablePeriods of those are excluded from redistribution
	// (already fully paid, down-payment periods).
	RelatedPeriods     int
	UncountablePeriods int
}

var hundred = decimal.NewFromInt(100)

// ShouldBeAdjusted reports whether the drift is large enough to
// redistribute.
func (a EmiAdjustment) ShouldBeAdjusted() bool {
	half := int64(a.RelatedPeriods / 2)
	if half == 0 || a.EmiDifference.IsZero() {
		return false
	}
	weighted := a.EmiDifference.Amount().Abs().Mul(hundred)
	threshold := a.OriginalEmi.Amount().Mul(decimal.NewFromInt(half))
	return weighted.GreaterThan(threshold)
}

// Adjustment returns the uniform per-period EMI delta: the difference
// spread over the countable periods.
func (a EmiAdjustment) Adjustment() money.Money {
	countable := int64(a.RelatedPeriods - a.UncountablePeriods)
	if countable < 1 {
		countable = 1
	}
	return a.EmiDifference.DivInt(countable)
}

// AdjustedEmi returns the new target EMI for each countable period.
func (a EmiAdjustment) AdjustedEmi() money.Money {
	return a.OriginalEmi.Add(a.Adjustment())
}

// HasLessEmiDifference reports whether this candidate leaves strictly less
// drift than the other; the convergence search prefers a later candidate
// only when this holds.
func (a EmiAdjustment) HasLessEmiDifference(other EmiAdjustment) bool {
	return a.EmiDifference.Abs().LessThan(other.EmiDifference.Abs())
}
