/*
strategy.go - Allocation strategies as data, not classes

PURPOSE:
  Every bank-configurable allocation policy is a fixed choice along four
  axes: how installments are ordered, which component order applies to due
  installments, which applies to advance (not yet due) installments, and
  what happens to an overpayment remainder. A Strategy is a value holding
  these four choices; the single allocation algorithm in allocate.go is
  parameterized by it.

WHY DATA, NOT DISPATCH:
  New bank policies become new registry rows, not new code paths. The
  algorithm is written once and tested once; a policy review is a diff of
  a table.

NAMED VARIANTS:
  The registry below carries the variants in production use. The due and
  advance component orders per variant are product requirements confirmed
  against the banks' behavior tables, not something to infer from the
  variant name.
*/
package engine

import (
	"fmt"
	"sort"
)

// =============================================================================
// STRATEGY AXES
// =============================================================================

// InstallmentOrder selects how the engine walks the installment sequence.
type InstallmentOrder string

const (
	// OrderByDueDate walks installments earliest-due-first, exhausting all
	// components of one installment before moving to the next.
	OrderByDueDate InstallmentOrder = "due-date"

	// OrderComponentAcrossPeriods clears one component across ALL due
	// installments before moving to the next component; advance
	// installments are then walked per-installment.
	OrderComponentAcrossPeriods InstallmentOrder = "component-across-periods"
)

// OverpaymentPolicy decides the disposition of a remainder that no
// installment could absorb. The remainder itself is always surfaced on the
// AllocationResult; the policy only changes whether the engine commits.
type OverpaymentPolicy string

const (
	// OverpaymentCredit commits the allocation and leaves the remainder on
	// the result for the caller to credit as an advance.
	OverpaymentCredit OverpaymentPolicy = "credit"

	// OverpaymentHold commits the allocation; the remainder is held in a
	// suspense balance by the caller.
	OverpaymentHold OverpaymentPolicy = "hold"

	// OverpaymentReject aborts the whole allocation with
	// ErrUnallocatableAmount, leaving installments untouched.
	OverpaymentReject OverpaymentPolicy = "reject"
)

// Strategy is one named allocation policy.
type Strategy struct {
	Code string
	Name string

	InstallmentOrder InstallmentOrder

	// DueOrder applies to installments whose window has started at the
	// transaction date; AdvanceOrder to future installments. Both must be
	// permutations of the four components.
	DueOrder     []Component
	AdvanceOrder []Component

	Overpayment OverpaymentPolicy

	// WaiverComponent is the single component waivers allocate against.
	WaiverComponent Component
}

// Validate checks the strategy is internally consistent.
func (s Strategy) Validate() error {
	if err := validateOrder(s.DueOrder); err != nil {
		return fmt.Errorf("strategy %s: due order: %w", s.Code, err)
	}
	if err := validateOrder(s.AdvanceOrder); err != nil {
		return fmt.Errorf("strategy %s: advance order: %w", s.Code, err)
	}
	if !s.WaiverComponent.Valid() {
		return fmt.Errorf("strategy %s: invalid waiver component %q", s.Code, s.WaiverComponent)
	}
	switch s.Overpayment {
	case OverpaymentCredit, OverpaymentHold, OverpaymentReject:
	default:
		return fmt.Errorf("strategy %s: invalid overpayment policy %q", s.Code, s.Overpayment)
	}
	switch s.InstallmentOrder {
	case OrderByDueDate, OrderComponentAcrossPeriods:
	default:
		return fmt.Errorf("strategy %s: invalid installment order %q", s.Code, s.InstallmentOrder)
	}
	return nil
}

func validateOrder(order []Component) error {
	if len(order) != len(Components) {
		return fmt.Errorf("expected %d components, got %d", len(Components), len(order))
	}
	seen := map[Component]bool{}
	for _, c := range order {
		if !c.Valid() {
			return fmt.Errorf("unknown component %q", c)
		}
		if seen[c] {
			return fmt.Errorf("duplicate component %q", c)
		}
		seen[c] = true
	}
	return nil
}

// =============================================================================
// NAMED VARIANT REGISTRY
// =============================================================================

var (
	penFeeIntPri = []Component{ComponentPenalty, ComponentFee, ComponentInterest, ComponentPrincipal}
	penIntPriFee = []Component{ComponentPenalty, ComponentInterest, ComponentPrincipal, ComponentFee}
	priIntPenFee = []Component{ComponentPrincipal, ComponentInterest, ComponentPenalty, ComponentFee}
	priIntFeePen = []Component{ComponentPrincipal, ComponentInterest, ComponentFee, ComponentPenalty}
	intPriPenFee = []Component{ComponentInterest, ComponentPrincipal, ComponentPenalty, ComponentFee}
)

var registry = []Strategy{
	{
		Code:             "standard",
		Name:             "Penalties, fees, interest, principal order",
		InstallmentOrder: OrderByDueDate,
		DueOrder:         penFeeIntPri,
		AdvanceOrder:     penFeeIntPri,
		Overpayment:      OverpaymentCredit,
		WaiverComponent:  ComponentInterest,
	},
	{
		Code:             "heavensfamily",
		Name:             "Overdue principal across periods first",
		InstallmentOrder: OrderComponentAcrossPeriods,
		DueOrder:         priIntFeePen,
		AdvanceOrder:     priIntFeePen,
		Overpayment:      OverpaymentCredit,
		WaiverComponent:  ComponentInterest,
	},
	{
		Code:             "creocore",
		Name:             "Principal, interest, penalties, fees order",
		InstallmentOrder: OrderByDueDate,
		DueOrder:         priIntPenFee,
		AdvanceOrder:     priIntPenFee,
		Overpayment:      OverpaymentCredit,
		WaiverComponent:  ComponentInterest,
	},
	{
		Code:             "interest-principal-penalties-fees",
		Name:             "Interest, principal, penalties, fees order",
		InstallmentOrder: OrderByDueDate,
		DueOrder:         intPriPenFee,
		AdvanceOrder:     intPriPenFee,
		Overpayment:      OverpaymentCredit,
		WaiverComponent:  ComponentInterest,
	},
	{
		Code:             "due-pen-int-pri-fee-in-advance-pen-int-pri-fee",
		Name:             "Due: penalty, interest, principal, fee; advance: same",
		InstallmentOrder: OrderByDueDate,
		DueOrder:         penIntPriFee,
		AdvanceOrder:     penIntPriFee,
		Overpayment:      OverpaymentCredit,
		WaiverComponent:  ComponentInterest,
	},
	{
		Code:             "due-pen-fee-int-pri-in-advance-pri-int-fee-pen",
		Name:             "Due: penalty, fee, interest, principal; advance: principal first",
		InstallmentOrder: OrderByDueDate,
		DueOrder:         penFeeIntPri,
		AdvanceOrder:     priIntFeePen,
		Overpayment:      OverpaymentCredit,
		WaiverComponent:  ComponentInterest,
	},
	{
		Code:             "strict",
		Name:             "Penalties, fees, interest, principal; reject overpayments",
		InstallmentOrder: OrderByDueDate,
		DueOrder:         penFeeIntPri,
		AdvanceOrder:     penFeeIntPri,
		Overpayment:      OverpaymentReject,
		WaiverComponent:  ComponentInterest,
	},
}

// StrategyByCode resolves a registered strategy.
func StrategyByCode(code string) (Strategy, error) {
	for _, s := range registry {
		if s.Code == code {
			return s, nil
		}
	}
	return Strategy{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, code)
}

// Strategies returns all registered strategies, sorted by code.
func Strategies() []Strategy {
	out := make([]Strategy, len(registry))
	copy(out, registry)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
