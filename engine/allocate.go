/*
allocate.go - The allocation algorithm

PURPOSE:
  Maps one transaction amount onto the installment sequence under the
  engine's strategy. All named strategy variants run through this single
  algorithm; only the ordering parameters differ.

SHAPE OF THE ALGORITHM:
  remaining = transaction amount
  for each installment in strategy order:
      component order = due installment? DueOrder : AdvanceOrder
      for each component in that order:
          take = min(remaining, outstanding(component))
          pay, record, decrement remaining
  remaining > 0 -> overpayment, surfaced per overpayment policy

ATOMICITY:
  The algorithm runs against a deep copy of the installments. Only when
  the whole pass succeeds are the new values swapped into the caller's
  structs. A fatal error (currency mismatch, invalid amount, rejected
  overpayment) therefore leaves no partial allocation behind.

WAIVERS:
  A waiver is a single-component special case: it allocates only against
  the strategy's waiver component (interest unless configured otherwise),
  spilling into later installments' same component, and surfaces the rest
  as unallocated. It never touches other components.
*/
package engine

import (
	"github.com/warp/loan-engine/money"
)

// AllocationEngine allocates transactions under one strategy. Engines are
// cheap values; build one per loan from its product configuration.
type AllocationEngine struct {
	Strategy Strategy
}

func NewAllocationEngine(strategy Strategy) *AllocationEngine {
	return &AllocationEngine{Strategy: strategy}
}

// Allocate splits tx.Amount across the installments, mutating their
// paid/waived amounts in place on success.
//
// The installments must arrive ordered by due date ascending; the first
// element is the loan's first period (its from-date is inclusive for the
// due-window rule).
func (e *AllocationEngine) Allocate(tx Transaction, currency money.Currency, installments []*Installment) (*AllocationResult, error) {
	if err := e.Strategy.Validate(); err != nil {
		return nil, err
	}
	if tx.Type == TxChargeback {
		return nil, ErrWrongTransactionType
	}
	if err := validateInputs(tx, currency, installments); err != nil {
		return nil, err
	}

	working := CloneAll(installments)

	result := &AllocationResult{
		TransactionID: tx.ID,
		Type:          tx.Type,
		StrategyCode:  e.Strategy.Code,
		Unallocated:   money.Zero(currency),
	}

	var remaining money.Money
	if tx.Type == TxWaiver {
		remaining = e.allocateWaiver(tx, working, result)
	} else {
		remaining = e.allocateStandard(tx, working, result)
	}

	if remaining.IsPositive() {
		if tx.Type != TxWaiver && e.Strategy.Overpayment == OverpaymentReject {
			return nil, &UnallocatableAmountError{TransactionID: tx.ID, Remainder: remaining}
		}
		result.Unallocated = remaining
	}

	commit(installments, working)
	return result, nil
}

func validateInputs(tx Transaction, currency money.Currency, installments []*Installment) error {
	if !tx.Amount.Currency().Equal(currency) {
		return &CurrencyMismatchError{Expected: currency.Code, Got: tx.Amount.Currency().Code}
	}
	for _, inst := range installments {
		if !inst.Currency().Equal(currency) {
			return &CurrencyMismatchError{Expected: currency.Code, Got: inst.Currency().Code}
		}
	}
	if tx.Amount.IsNegative() {
		return &InvalidAmountError{Amount: tx.Amount}
	}
	return nil
}

// allocateStandard runs the general algorithm for repayments, recoveries
// and merchant refunds. Returns the unallocated remainder.
func (e *AllocationEngine) allocateStandard(tx Transaction, working []*Installment, result *AllocationResult) money.Money {
	remaining := tx.Amount

	if e.Strategy.InstallmentOrder == OrderComponentAcrossPeriods {
		// Phase 1: clear each component across ALL due installments before
		// moving to the next component.
		for _, c := range e.Strategy.DueOrder {
			for idx, inst := range working {
				if remaining.IsZero() {
					return remaining
				}
				if !inst.IsDueOn(tx.Date, idx == 0) {
					continue
				}
				remaining = take(inst, c, remaining, result)
			}
		}
		// Phase 2: advance installments, per installment.
		for idx, inst := range working {
			if remaining.IsZero() {
				return remaining
			}
			if inst.IsDueOn(tx.Date, idx == 0) {
				continue
			}
			for _, c := range e.Strategy.AdvanceOrder {
				remaining = take(inst, c, remaining, result)
				if remaining.IsZero() {
					return remaining
				}
			}
		}
		return remaining
	}

	// Earliest-due-first: exhaust one installment before the next.
	for idx, inst := range working {
		if remaining.IsZero() {
			return remaining
		}
		order := e.Strategy.AdvanceOrder
		if inst.IsDueOn(tx.Date, idx == 0) {
			order = e.Strategy.DueOrder
		}
		for _, c := range order {
			remaining = take(inst, c, remaining, result)
			if remaining.IsZero() {
				break
			}
		}
	}
	return remaining
}

// allocateWaiver caps the waiver at the waiver component's outstanding,
// spilling into later installments' same component.
func (e *AllocationEngine) allocateWaiver(tx Transaction, working []*Installment, result *AllocationResult) money.Money {
	remaining := tx.Amount
	component := e.Strategy.WaiverComponent

	for _, inst := range working {
		if remaining.IsZero() {
			break
		}
		amount := remaining.Min(inst.Outstanding(component))
		if !amount.IsPositive() {
			continue
		}
		inst.waive(component, amount)
		result.Entries = append(result.Entries, AllocationEntry{
			Period:    inst.PeriodNumber,
			Component: component,
			Amount:    amount,
		})
		remaining = remaining.Sub(amount)
	}
	return remaining
}

func take(inst *Installment, c Component, remaining money.Money, result *AllocationResult) money.Money {
	amount := remaining.Min(inst.Outstanding(c))
	if !amount.IsPositive() {
		return remaining
	}
	inst.pay(c, amount)
	result.Entries = append(result.Entries, AllocationEntry{
		Period:    inst.PeriodNumber,
		Component: c,
		Amount:    amount,
	})
	return remaining.Sub(amount)
}

// commit swaps the working copy's values into the caller's installments.
func commit(dst, src []*Installment) {
	for i := range dst {
		*dst[i] = *src[i]
	}
}
