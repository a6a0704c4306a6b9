/*
installment.go - One repayment period's ledger entry

PURPOSE:
  An Installment tracks, for one scheduled repayment period, the due,
  paid, waived and written-off amount of each accounting component.
  Outstanding amounts are always derived (due - paid - waived - written
  off, floored at zero), never stored, so they cannot drift.

LIFECYCLE:
  Created at schedule generation. Paid amounts grow through allocation,
  waived amounts through waivers, and chargebacks shrink paid amounts
  again. Installments are never destroyed individually - schedule
  regeneration replaces the whole ordered sequence.

BOUNDARY RULE (isDue):
  A transaction dated exactly on a period's from-date belongs to the
  PREVIOUS period, except for the first period where the from-date is
  inclusive. A transaction dated exactly on the due date belongs to the
  period. Getting this half-open rule wrong misallocates every payment
  that lands on a period boundary.
*/
package engine

import (
	"github.com/warp/loan-engine/dates"
	"github.com/warp/loan-engine/money"
)

// =============================================================================
// COMPONENT AMOUNTS - One Money per accounting component
// =============================================================================

type ComponentAmounts struct {
	Principal money.Money `json:"principal"`
	Interest  money.Money `json:"interest"`
	Fee       money.Money `json:"fee"`
	Penalty   money.Money `json:"penalty"`
}

func ZeroComponents(currency money.Currency) ComponentAmounts {
	z := money.Zero(currency)
	return ComponentAmounts{Principal: z, Interest: z, Fee: z, Penalty: z}
}

func (ca ComponentAmounts) Get(c Component) money.Money {
	switch c {
	case ComponentPrincipal:
		return ca.Principal
	case ComponentInterest:
		return ca.Interest
	case ComponentFee:
		return ca.Fee
	default:
		return ca.Penalty
	}
}

func (ca *ComponentAmounts) add(c Component, amount money.Money) {
	switch c {
	case ComponentPrincipal:
		ca.Principal = ca.Principal.Add(amount)
	case ComponentInterest:
		ca.Interest = ca.Interest.Add(amount)
	case ComponentFee:
		ca.Fee = ca.Fee.Add(amount)
	case ComponentPenalty:
		ca.Penalty = ca.Penalty.Add(amount)
	}
}

func (ca ComponentAmounts) Total() money.Money {
	return ca.Principal.Add(ca.Interest).Add(ca.Fee).Add(ca.Penalty)
}

// =============================================================================
// INSTALLMENT
// =============================================================================

type Installment struct {
	PeriodNumber int        `json:"period_number"`
	FromDate     dates.Date `json:"from_date"`
	DueDate      dates.Date `json:"due_date"`

	Due        ComponentAmounts `json:"due"`
	Paid       ComponentAmounts `json:"paid"`
	Waived     ComponentAmounts `json:"waived"`
	WrittenOff ComponentAmounts `json:"written_off"`

	ObligationsMet bool `json:"obligations_met"`
}

// NewInstallment creates an installment with the given due amounts and all
// paid/waived/written-off amounts at zero.
func NewInstallment(periodNumber int, from, due dates.Date, dueAmounts ComponentAmounts) *Installment {
	currency := dueAmounts.Principal.Currency()
	return &Installment{
		PeriodNumber: periodNumber,
		FromDate:     from,
		DueDate:      due,
		Due:          dueAmounts,
		Paid:         ZeroComponents(currency),
		Waived:       ZeroComponents(currency),
		WrittenOff:   ZeroComponents(currency),
	}
}

func (i *Installment) Currency() money.Currency { return i.Due.Principal.Currency() }

// Outstanding derives the open amount of one component, floored at zero.
func (i *Installment) Outstanding(c Component) money.Money {
	out := i.Due.Get(c).Sub(i.Paid.Get(c)).Sub(i.Waived.Get(c)).Sub(i.WrittenOff.Get(c))
	if out.IsNegative() {
		return out.Zero()
	}
	return out
}

// TotalOutstanding sums the open amounts of all four components.
func (i *Installment) TotalOutstanding() money.Money {
	total := money.Zero(i.Currency())
	for _, c := range Components {
		total = total.Add(i.Outstanding(c))
	}
	return total
}

// IsDueOn reports whether the installment is due at the given date. The
// first installment's window is [FromDate, DueDate]; later installments use
// (FromDate, DueDate] so boundary dates are never counted twice. A date
// past the due date leaves the installment overdue, which is still due.
func (i *Installment) IsDueOn(date dates.Date, first bool) bool {
	if first {
		return date.AfterOrEqual(i.FromDate)
	}
	return date.After(i.FromDate)
}

// pay records a payment against one component and refreshes ObligationsMet.
func (i *Installment) pay(c Component, amount money.Money) {
	i.Paid.add(c, amount)
	i.refreshObligationsMet()
}

// waive records a waiver against one component.
func (i *Installment) waive(c Component, amount money.Money) {
	i.Waived.add(c, amount)
	i.refreshObligationsMet()
}

// unpay reverses a previous payment; used by chargeback reinstatement.
func (i *Installment) unpay(c Component, amount money.Money) {
	i.Paid.add(c, amount.Neg())
	i.refreshObligationsMet()
}

func (i *Installment) refreshObligationsMet() {
	i.ObligationsMet = i.TotalOutstanding().IsZero()
}

// Clone returns a deep copy. All fields are value types, so the shallow
// copy is a deep copy.
func (i *Installment) Clone() *Installment {
	clone := *i
	return &clone
}

// CloneAll deep-copies an installment sequence; the engine's working copy.
func CloneAll(installments []*Installment) []*Installment {
	clones := make([]*Installment, len(installments))
	for idx, inst := range installments {
		clones[idx] = inst.Clone()
	}
	return clones
}
