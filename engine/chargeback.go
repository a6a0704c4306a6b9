/*
chargeback.go - Inverse allocation

PURPOSE:
  A chargeback (or reversal) is not a forward allocation: it reinstates
  outstanding amounts by unwinding the ORIGINAL transaction's allocation
  mapping, newest-applied entry first (LIFO relative to the original
  allocation order), up to the chargeback amount.

CAPS:
  - Per entry, no more than the entry's original amount is reinstated.
  - No more than the component's currently paid amount is reinstated, so
    an installment's outstanding never exceeds its original due amount
    even when several partial chargebacks race the same original.

INVERSE LAW:
  Allocating a transaction and then fully charging it back restores every
  touched installment's outstanding amounts to their pre-transaction
  values exactly - no rounding leakage, because the reinstated amounts
  are the recorded allocation amounts themselves.
*/
package engine

import (
	"github.com/warp/loan-engine/money"
)

// Chargeback unwinds up to tx.Amount of the original allocation, mutating
// the installments' paid (or waived, for waiver originals) amounts in
// place on success.
//
// original must be the allocation mapping produced when the reversed
// transaction was applied; tx.RelatedID must reference it.
func (e *AllocationEngine) Chargeback(tx Transaction, original *AllocationResult, currency money.Currency, installments []*Installment) (*AllocationResult, error) {
	if tx.Type != TxChargeback {
		return nil, ErrWrongTransactionType
	}
	if original == nil || tx.RelatedID != original.TransactionID {
		return nil, ErrOriginalAllocationRequired
	}
	if err := validateInputs(tx, currency, installments); err != nil {
		return nil, err
	}

	working := CloneAll(installments)
	byPeriod := make(map[int]*Installment, len(working))
	for _, inst := range working {
		byPeriod[inst.PeriodNumber] = inst
	}

	result := &AllocationResult{
		TransactionID: tx.ID,
		Type:          TxChargeback,
		StrategyCode:  e.Strategy.Code,
		Unallocated:   money.Zero(currency),
	}

	remaining := tx.Amount
	for i := len(original.Entries) - 1; i >= 0 && remaining.IsPositive(); i-- {
		entry := original.Entries[i]
		inst, ok := byPeriod[entry.Period]
		if !ok {
			// Period no longer in the schedule (regenerated); the remainder
			// is surfaced rather than forced onto the wrong installment.
			continue
		}

		reinstate := remaining.Min(entry.Amount)
		if original.Type == TxWaiver {
			reinstate = reinstate.Min(inst.Waived.Get(entry.Component))
		} else {
			reinstate = reinstate.Min(inst.Paid.Get(entry.Component))
		}
		if !reinstate.IsPositive() {
			continue
		}

		if original.Type == TxWaiver {
			inst.Waived.add(entry.Component, reinstate.Neg())
			inst.refreshObligationsMet()
		} else {
			inst.unpay(entry.Component, reinstate)
		}
		result.Entries = append(result.Entries, AllocationEntry{
			Period:    entry.Period,
			Component: entry.Component,
			Amount:    reinstate,
		})
		remaining = remaining.Sub(reinstate)
	}

	if remaining.IsPositive() {
		// More charged back than the original ever allocated; the caller
		// decides the disposition of the excess.
		result.Unallocated = remaining
	}

	commit(installments, working)
	return result, nil
}
