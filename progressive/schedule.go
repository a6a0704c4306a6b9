/*
Package progressive implements the interest schedule model for
declining-balance ("progressive") loans.

PURPOSE:
  Interest on a progressive loan is computed daily on the outstanding
  balance. Whenever the balance changes mid-period - a disbursement, a
  correction, an out-of-cycle payment - the affected repayment period is
  split into interest sub-periods, each carrying one constant balance, so
  the daily rate-factor math stays exact.

KEY CONCEPTS:
  - RepaymentPeriod: one scheduled installment window with its EMI,
    due principal, and an ordered list of interest periods
  - InterestPeriod: a sub-interval with a constant outstanding balance;
    the interest periods partition their repayment period contiguously
  - Rate factor: annualRate * days / daysInYear for a date range

ARENA LAYOUT:
  Repayment periods live in one owned, growable slice ordered by due date.
  "Previous period" is index p-1, never a pointer, so the schedule graph
  has no ownership cycles and serializes trivially.

BALANCE RECURRENCE (the crux of progressive correctness):
  First interest period of repayment period p:
      balance = balance(p-1, last) + disbursement(p-1, last)
              + correction(p-1, last) - duePrincipal(p-1) + paidPrincipal(p-1)
  Later interest periods within the same repayment period:
      balance(k) = balance(k-1) + disbursement(k-1) + correction(k-1)
  Principal due/paid moves the balance only at repayment period
  boundaries; disbursements and corrections move it at arbitrary
  sub-period boundaries.

ATOMICITY:
  Mutating operations build the new interest period list aside, validate
  the partition invariant, and only then swap it in. A gap/overlap aborts
  with the schedule unchanged - corrupted schedules are reported, never
  silently repaired.
*/
package progressive

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/loan-engine/dates"
	"github.com/warp/loan-engine/money"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInterestPeriodGapOrOverlap signals a corrupted schedule: interest
	// periods no longer partition their repayment period. Fatal; the
	// schedule must be reviewed, not repaired in place.
	ErrInterestPeriodGapOrOverlap = errors.New("interest period gap or overlap")

	// ErrDateOutsideSchedule is returned when a balance change is dated
	// outside every repayment period.
	ErrDateOutsideSchedule = errors.New("date outside schedule")

	// ErrNonContiguousPeriod is returned when an appended repayment period
	// does not start where the previous one ends.
	ErrNonContiguousPeriod = errors.New("repayment period not contiguous")
)

// =============================================================================
// PERIOD TYPES
// =============================================================================

// InterestPeriod is a sub-interval of a repayment period carrying one
// constant outstanding balance. Comparable by DueDate.
type InterestPeriod struct {
	FromDate dates.Date `json:"from_date"`
	DueDate  dates.Date `json:"due_date"`

	// RateFactor covers [FromDate, DueDate]; RateFactorTillPeriodDueDate
	// covers [FromDate, owning repayment period's DueDate]. The latter is
	// what CalculatedDueInterest apportions.
	RateFactor                  decimal.Decimal `json:"rate_factor"`
	RateFactorTillPeriodDueDate decimal.Decimal `json:"rate_factor_till_period_due_date"`

	Disbursement      money.Money `json:"disbursement"`
	BalanceCorrection money.Money `json:"balance_correction"`

	// OutstandingBalance is derived by the recurrence; never set directly.
	OutstandingBalance money.Money `json:"outstanding_balance"`
}

// RepaymentPeriod is one scheduled installment window. Its interest
// periods partition [FromDate, DueDate] contiguously, ordered by due date.
type RepaymentPeriod struct {
	FromDate dates.Date `json:"from_date"`
	DueDate  dates.Date `json:"due_date"`

	EMI           money.Money `json:"emi"`
	DuePrincipal  money.Money `json:"due_principal"`
	PaidPrincipal money.Money `json:"paid_principal"`
	PaidInterest  money.Money `json:"paid_interest"`

	Interest []InterestPeriod `json:"interest_periods"`
}

// =============================================================================
// SCHEDULE
// =============================================================================

// Schedule owns a loan's ordered repayment periods and rate-change set.
// Operations are synchronous and single-threaded per loan; callers must
// not share one Schedule across goroutines.
type Schedule struct {
	currency    money.Currency
	nominalRate decimal.Decimal
	dayCount    DayCountConvention
	rates       RateSet
	periods     []RepaymentPeriod
}

func NewSchedule(currency money.Currency, nominalRate decimal.Decimal, dayCount DayCountConvention) *Schedule {
	return &Schedule{currency: currency, nominalRate: nominalRate, dayCount: dayCount}
}

func (s *Schedule) Currency() money.Currency      { return s.currency }
func (s *Schedule) DayCount() DayCountConvention  { return s.dayCount }
func (s *Schedule) NominalRate() decimal.Decimal  { return s.nominalRate }
func (s *Schedule) NumPeriods() int               { return len(s.periods) }

// Period returns a copy of the repayment period at index p.
func (s *Schedule) Period(p int) RepaymentPeriod {
	period := s.periods[p]
	period.Interest = append([]InterestPeriod(nil), period.Interest...)
	return period
}

// AddRateChange registers an effective-dated rate change and re-derives
// rate factors and balances.
func (s *Schedule) AddRateChange(effectiveFrom dates.Date, rate decimal.Decimal) {
	s.rates.Add(InterestRate{EffectiveFrom: effectiveFrom, Rate: rate})
	for p := range s.periods {
		s.refreshRateFactors(p)
	}
	s.recalcBalances()
}

// InterestRateAt returns the rate effective at the given date: the latest
// change on or before it, else the product's nominal rate.
func (s *Schedule) InterestRateAt(date dates.Date) decimal.Decimal {
	return s.rates.Lookup(date, s.nominalRate)
}

// AppendPeriod adds the next repayment period. Periods must be appended in
// order and contiguously: each period starts where the previous one ends.
// The new period gets a single interest period spanning its full range.
func (s *Schedule) AppendPeriod(from, due dates.Date, duePrincipal, emi money.Money) (int, error) {
	if due.Before(from) {
		return 0, fmt.Errorf("%w: due %s before from %s", ErrNonContiguousPeriod, due, from)
	}
	if n := len(s.periods); n > 0 && !from.Equal(s.periods[n-1].DueDate) {
		return 0, fmt.Errorf("%w: period starting %s does not meet previous due date %s",
			ErrNonContiguousPeriod, from, s.periods[n-1].DueDate)
	}

	zero := money.Zero(s.currency)
	s.periods = append(s.periods, RepaymentPeriod{
		FromDate:      from,
		DueDate:       due,
		EMI:           emi,
		DuePrincipal:  duePrincipal,
		PaidPrincipal: zero,
		PaidInterest:  zero,
		Interest: []InterestPeriod{{
			FromDate:           from,
			DueDate:            due,
			Disbursement:       zero,
			BalanceCorrection:  zero,
			OutstandingBalance: zero,
		}},
	})
	p := len(s.periods) - 1
	s.refreshRateFactors(p)
	s.recalcBalances()
	return p, nil
}

// =============================================================================
// BALANCE CHANGES - locate, add-or-split, revalidate, recompute
// =============================================================================

// Disburse records a disbursement into the interest-bearing balance.
func (s *Schedule) Disburse(date dates.Date, amount money.Money) (int, error) {
	return s.ChangeOutstandingBalance(date, amount, money.Zero(s.currency))
}

// ChangeOutstandingBalance applies a disbursement and/or balance
// correction dated inside the schedule, splitting the containing interest
// period when no sub-period boundary falls exactly on the date. Returns
// the index of the affected repayment period.
func (s *Schedule) ChangeOutstandingBalance(date dates.Date, disbursed, correction money.Money) (int, error) {
	if !disbursed.Currency().Equal(s.currency) || !correction.Currency().Equal(s.currency) {
		return 0, fmt.Errorf("schedule currency %s: amounts must match", s.currency.Code)
	}

	p, err := s.locatePeriod(date)
	if err != nil {
		return 0, err
	}
	period := &s.periods[p]

	// Build the new interest period list aside; swap in only after the
	// partition invariant holds.
	updated := append([]InterestPeriod(nil), period.Interest...)

	switch {
	case date.Equal(period.FromDate):
		// A change at the period start (the initial disbursement case)
		// must shift the balance of the whole period. A zero-length head
		// sub-period carries it through the recurrence.
		if updated[0].FromDate.Equal(updated[0].DueDate) && updated[0].DueDate.Equal(date) {
			updated[0].Disbursement = updated[0].Disbursement.Add(disbursed)
			updated[0].BalanceCorrection = updated[0].BalanceCorrection.Add(correction)
		} else {
			zero := money.Zero(s.currency)
			head := InterestPeriod{
				FromDate:           date,
				DueDate:            date,
				Disbursement:       disbursed,
				BalanceCorrection:  correction,
				OutstandingBalance: zero,
			}
			updated = append([]InterestPeriod{head}, updated...)
		}

	default:
		k := indexEndingAt(updated, date)
		if k >= 0 {
			updated[k].Disbursement = updated[k].Disbursement.Add(disbursed)
			updated[k].BalanceCorrection = updated[k].BalanceCorrection.Add(correction)
			break
		}

		k = indexContaining(updated, date)
		if k < 0 {
			return 0, fmt.Errorf("%w: no interest period contains %s", ErrInterestPeriodGapOrOverlap, date)
		}

		// Split: shorten the containing sub-period to end at the change
		// date (the changed amounts attach to it, taking effect from the
		// date onward) and insert the tail covering the rest.
		zero := money.Zero(s.currency)
		tail := InterestPeriod{
			FromDate:           date,
			DueDate:            updated[k].DueDate,
			Disbursement:       zero,
			BalanceCorrection:  zero,
			OutstandingBalance: zero,
		}
		updated[k].DueDate = date
		updated[k].Disbursement = updated[k].Disbursement.Add(disbursed)
		updated[k].BalanceCorrection = updated[k].BalanceCorrection.Add(correction)

		updated = append(updated, InterestPeriod{})
		copy(updated[k+2:], updated[k+1:])
		updated[k+1] = tail
	}

	if err := validatePartition(period.FromDate, period.DueDate, updated); err != nil {
		return 0, err
	}

	period.Interest = updated
	s.refreshRateFactors(p)
	s.recalcBalances()
	return p, nil
}

// locatePeriod finds the repayment period containing date. The first
// period's window is [FromDate, DueDate]; later windows are
// (FromDate, DueDate].
func (s *Schedule) locatePeriod(date dates.Date) (int, error) {
	for p, period := range s.periods {
		if p == 0 {
			if date.AfterOrEqual(period.FromDate) && date.BeforeOrEqual(period.DueDate) {
				return p, nil
			}
			continue
		}
		if date.After(period.FromDate) && date.BeforeOrEqual(period.DueDate) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrDateOutsideSchedule, date)
}

func indexEndingAt(ips []InterestPeriod, date dates.Date) int {
	for k, ip := range ips {
		if ip.DueDate.Equal(date) {
			return k
		}
	}
	return -1
}

func indexContaining(ips []InterestPeriod, date dates.Date) int {
	for k, ip := range ips {
		if date.After(ip.FromDate) && date.Before(ip.DueDate) {
			return k
		}
	}
	return -1
}

// validatePartition checks the interest periods cover [from, due] with no
// gaps or overlaps.
func validatePartition(from, due dates.Date, ips []InterestPeriod) error {
	if len(ips) == 0 {
		return fmt.Errorf("%w: empty partition", ErrInterestPeriodGapOrOverlap)
	}
	if !ips[0].FromDate.Equal(from) {
		return fmt.Errorf("%w: first sub-period starts %s, period starts %s",
			ErrInterestPeriodGapOrOverlap, ips[0].FromDate, from)
	}
	for k := 1; k < len(ips); k++ {
		if !ips[k].FromDate.Equal(ips[k-1].DueDate) {
			return fmt.Errorf("%w: sub-period %d starts %s, previous ends %s",
				ErrInterestPeriodGapOrOverlap, k, ips[k].FromDate, ips[k-1].DueDate)
		}
		if ips[k].DueDate.Before(ips[k].FromDate) {
			return fmt.Errorf("%w: sub-period %d ends before it starts", ErrInterestPeriodGapOrOverlap, k)
		}
	}
	if !ips[len(ips)-1].DueDate.Equal(due) {
		return fmt.Errorf("%w: last sub-period ends %s, period ends %s",
			ErrInterestPeriodGapOrOverlap, ips[len(ips)-1].DueDate, due)
	}
	return nil
}

// refreshRateFactors re-derives both rate factors of every interest period
// in repayment period p, using the rate effective at the sub-period start.
func (s *Schedule) refreshRateFactors(p int) {
	period := &s.periods[p]
	for k := range period.Interest {
		ip := &period.Interest[k]
		rate := s.InterestRateAt(ip.FromDate)
		ip.RateFactor = s.dayCount.RateFactor(rate, ip.FromDate, ip.DueDate)
		ip.RateFactorTillPeriodDueDate = s.dayCount.RateFactor(rate, ip.FromDate, period.DueDate)
	}
}

// recalcBalances replays the two-case recurrence across the whole arena.
func (s *Schedule) recalcBalances() {
	balance := money.Zero(s.currency)
	for p := range s.periods {
		period := &s.periods[p]
		for k := range period.Interest {
			ip := &period.Interest[k]
			if k == 0 {
				if p > 0 {
					prev := &s.periods[p-1]
					last := prev.Interest[len(prev.Interest)-1]
					balance = last.OutstandingBalance.
						Add(last.Disbursement).
						Add(last.BalanceCorrection).
						Sub(prev.DuePrincipal).
						Add(prev.PaidPrincipal)
				}
				// p == 0: the opening balance is zero; initial
				// disbursements enter via the head sub-period.
			} else {
				prevIP := period.Interest[k-1]
				balance = prevIP.OutstandingBalance.
					Add(prevIP.Disbursement).
					Add(prevIP.BalanceCorrection)
			}
			ip.OutstandingBalance = balance
		}
	}
}

// =============================================================================
// DUE INTEREST - apportioning the period rate factor across sub-periods
// =============================================================================

// CalculatedDueInterest returns the interest a single sub-period
// contributes:
//
//	balance * rateFactorTillPeriodDueDate / lengthTillPeriodDueDate * length
//
// The rate factor is computed once from the sub-period start to the
// repayment period's due date and scaled down linearly to the sub-period's
// own day count. For an unsplit period the two lengths coincide and this
// reduces to balance * rateFactor - splitting never changes the total.
func (s *Schedule) CalculatedDueInterest(p, k int) decimal.Decimal {
	period := s.periods[p]
	ip := period.Interest[k]

	length := s.dayCount.Days(ip.FromDate, ip.DueDate)
	lengthTill := s.dayCount.Days(ip.FromDate, period.DueDate)
	if length <= 0 || lengthTill <= 0 {
		return decimal.Zero
	}

	return ip.OutstandingBalance.Amount().
		Mul(ip.RateFactorTillPeriodDueDate).
		Mul(decimal.NewFromInt(int64(length))).
		Div(decimal.NewFromInt(int64(lengthTill)))
}

// PeriodDueInterest sums the due interest of one repayment period, rounded
// once to the currency scale.
func (s *Schedule) PeriodDueInterest(p int) money.Money {
	total := decimal.Zero
	for k := range s.periods[p].Interest {
		total = total.Add(s.CalculatedDueInterest(p, k))
	}
	return money.New(total, s.currency)
}

// =============================================================================
// PAYMENTS AND AGGREGATES
// =============================================================================

// RecordPayment books paid principal and interest against period p. Paid
// principal feeds the next period's opening balance, so balances are
// recomputed.
func (s *Schedule) RecordPayment(p int, principal, interest money.Money) {
	period := &s.periods[p]
	period.PaidPrincipal = period.PaidPrincipal.Add(principal)
	period.PaidInterest = period.PaidInterest.Add(interest)
	s.recalcBalances()
}

// TotalDueInterest sums due interest across all repayment periods.
func (s *Schedule) TotalDueInterest() money.Money {
	total := decimal.Zero
	for p := range s.periods {
		for k := range s.periods[p].Interest {
			total = total.Add(s.CalculatedDueInterest(p, k))
		}
	}
	return money.New(total, s.currency)
}

// TotalDuePrincipal sums all disbursements: principal is modeled as a
// disbursement into the interest-bearing balance.
func (s *Schedule) TotalDuePrincipal() money.Money {
	total := money.Zero(s.currency)
	for _, period := range s.periods {
		for _, ip := range period.Interest {
			total = total.Add(ip.Disbursement)
		}
	}
	return total
}

func (s *Schedule) TotalPaidInterest() money.Money {
	total := money.Zero(s.currency)
	for _, period := range s.periods {
		total = total.Add(period.PaidInterest)
	}
	return total
}

func (s *Schedule) TotalPaidPrincipal() money.Money {
	total := money.Zero(s.currency)
	for _, period := range s.periods {
		total = total.Add(period.PaidPrincipal)
	}
	return total
}
