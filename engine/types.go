/*
Package engine implements the payment allocation core of the loan engine.

PURPOSE:
  Given a loan's outstanding installment schedule and a monetary
  transaction (repayment, waiver, recovery, chargeback, merchant refund),
  deterministically split the transaction amount across installments and
  across the four accounting components - principal, interest, fee,
  penalty - under a bank-configurable allocation strategy.

KEY CONCEPTS IN THIS FILE (types.go):
  - Component: one of the four accounting components
  - Transaction: an incoming monetary event to be allocated
  - AllocationEntry / AllocationResult: the component-level mapping the
    engine produces; consumed by journal posting and event publishing

INVARIANTS:
  1. Money conservation: sum of entries + unallocated remainder equals the
     transaction amount exactly, for every strategy and currency.
  2. Non-negativity: no installment component's outstanding goes below
     zero through allocation.
  3. Atomicity: the engine mutates a working copy and swaps it in only on
     success; an error leaves the caller's installments untouched.

SEE ALSO:
  - installment.go: the per-period ledger entry the engine mutates
  - strategy.go: the closed set of ordering policies
  - allocate.go: the allocation algorithm
  - chargeback.go: the inverse operation
*/
package engine

import (
	"github.com/warp/loan-engine/dates"
	"github.com/warp/loan-engine/money"
)

// =============================================================================
// COMPONENT - The four accounting components
// =============================================================================

type Component string

const (
	ComponentPrincipal Component = "principal"
	ComponentInterest  Component = "interest"
	ComponentFee       Component = "fee"
	ComponentPenalty   Component = "penalty"
)

// Components lists all components in declaration order. Allocation order is
// a strategy concern, never this slice.
var Components = []Component{ComponentPrincipal, ComponentInterest, ComponentFee, ComponentPenalty}

// Valid reports whether c is one of the four known components.
func (c Component) Valid() bool {
	switch c {
	case ComponentPrincipal, ComponentInterest, ComponentFee, ComponentPenalty:
		return true
	}
	return false
}

// =============================================================================
// TRANSACTION - Incoming monetary event
// =============================================================================

type TransactionID string

type TransactionType string

const (
	TxRepayment      TransactionType = "repayment"
	TxWaiver         TransactionType = "waiver"
	TxRecovery       TransactionType = "recovery"
	TxChargeback     TransactionType = "chargeback"
	TxMerchantRefund TransactionType = "merchant_refund"
)

type Transaction struct {
	ID     TransactionID
	LoanID string
	Amount money.Money
	Date   dates.Date
	Type   TransactionType

	// RelatedID references the original transaction for chargebacks.
	RelatedID TransactionID

	// ExternalRef carries the caller's reference (payment rail ID, batch ID).
	ExternalRef string
}

// =============================================================================
// ALLOCATION MAPPING - The engine's output
// =============================================================================

// AllocationEntry records one (installment, component, amount) split.
type AllocationEntry struct {
	Period    int         `json:"period"`
	Component Component   `json:"component"`
	Amount    money.Money `json:"amount"`
}

// AllocationResult is the ordered component-level mapping for one
// transaction. Entries appear in the order they were applied, which is the
// order a chargeback unwinds them in (last entry first).
type AllocationResult struct {
	TransactionID TransactionID     `json:"transaction_id"`
	Type          TransactionType   `json:"type"`
	StrategyCode  string            `json:"strategy_code"`
	Entries       []AllocationEntry `json:"entries"`

	// Unallocated is the remainder no installment could absorb. Never
	// silently dropped: the caller credits it as an overpayment or rejects
	// the transaction.
	Unallocated money.Money `json:"unallocated"`
}

// TotalAllocated sums all entry amounts.
func (r *AllocationResult) TotalAllocated() money.Money {
	total := r.Unallocated.Zero()
	for _, e := range r.Entries {
		total = total.Add(e.Amount)
	}
	return total
}

// Total returns allocated plus unallocated; equals the transaction amount
// by the conservation invariant.
func (r *AllocationResult) Total() money.Money {
	return r.TotalAllocated().Add(r.Unallocated)
}
