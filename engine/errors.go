/*
errors.go - Centralized error types for the allocation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Calling layers should wrap these errors with additional context.

ERROR CATEGORIES:
  1. Fatal input errors - reject the operation before any mutation
     (currency mismatch, invalid amount)
  2. Recoverable allocation errors - a typed remainder the caller
     decides how to dispose of (unallocatable amount)

  Schedule invariant errors (interest period gap/overlap) live in the
  progressive package next to the code that detects them.

ATOMICITY:
  The engine operates on a working copy of the installment sequence and
  swaps it in only on success. Any error from Allocate or Chargeback
  therefore guarantees the caller's installments are unchanged.

USAGE:
  if errors.Is(err, engine.ErrUnallocatableAmount) {
      var ua *engine.UnallocatableAmountError
      errors.As(err, &ua)
      // credit ua.Remainder as overpayment, or reject the transaction
  }
*/
package engine

import (
	"errors"
	"fmt"

	"github.com/warp/loan-engine/money"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCurrencyMismatch is returned when a transaction's currency differs
	// from the loan currency or any installment's currency. Fatal.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInvalidAmount is returned for negative transaction amounts. Fatal,
	// rejected before any mutation.
	ErrInvalidAmount = errors.New("invalid transaction amount")

	// ErrUnallocatableAmount is returned when a remainder cannot be placed
	// anywhere and the strategy's overpayment policy rejects remainders.
	// Recoverable: the caller decides the disposition.
	ErrUnallocatableAmount = errors.New("unallocatable amount")

	// ErrUnknownStrategy is returned when a strategy code has no registered
	// variant.
	ErrUnknownStrategy = errors.New("unknown allocation strategy")

	// ErrWrongTransactionType is returned when a transaction is routed to the
	// wrong entry point (e.g. a chargeback passed to Allocate).
	ErrWrongTransactionType = errors.New("wrong transaction type for operation")

	// ErrOriginalAllocationRequired is returned when a chargeback arrives
	// without the allocation mapping of the transaction it reverses.
	ErrOriginalAllocationRequired = errors.New("chargeback requires original allocation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CurrencyMismatchError reports the two currencies that were mixed.
type CurrencyMismatchError struct {
	Expected string
	Got      string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: expected %s, got %s", e.Expected, e.Got)
}

func (e *CurrencyMismatchError) Unwrap() error { return ErrCurrencyMismatch }

// InvalidAmountError reports a rejected transaction amount.
type InvalidAmountError struct {
	Amount money.Money
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid transaction amount: %s", e.Amount)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// UnallocatableAmountError carries the remainder that found no home.
type UnallocatableAmountError struct {
	TransactionID TransactionID
	Remainder     money.Money
}

func (e *UnallocatableAmountError) Error() string {
	return fmt.Sprintf("transaction %s: %s could not be allocated", e.TransactionID, e.Remainder)
}

func (e *UnallocatableAmountError) Unwrap() error { return ErrUnallocatableAmount }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsFatal returns true if the error must abort the whole operation with no
// partial allocation persisted.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownStrategy) ||
		errors.Is(err, ErrWrongTransactionType) ||
		errors.Is(err, ErrOriginalAllocationRequired)
}

// IsRecoverable returns true if the caller can still dispose of the
// transaction (e.g. credit the remainder as an overpayment).
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrUnallocatableAmount)
}
