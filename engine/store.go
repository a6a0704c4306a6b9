/*
store.go - Persistence interfaces the engine's callers provide

PURPOSE:
  The allocation core never performs I/O. Durability - the transaction
  log, allocation mappings (needed later by chargebacks), and installment
  snapshots the caller recomputes from after a failed pass - belongs to
  collaborators behind these interfaces.

APPEND-ONLY CONTRACT:
  Transactions and allocation mappings are never updated or deleted.
  Corrections happen through chargeback transactions, which are themselves
  appended.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - in-package fakes in _test files where only a slice is needed
*/
package engine

import "context"

// TransactionStore persists the incoming transaction stream together with
// the allocation mapping the engine produced for each transaction.
type TransactionStore interface {
	// SaveAllocation appends the transaction and its mapping atomically.
	SaveAllocation(ctx context.Context, tx Transaction, result *AllocationResult) error

	// Allocation returns the mapping recorded for a transaction. A
	// chargeback handler loads the original mapping through this.
	Allocation(ctx context.Context, id TransactionID) (*AllocationResult, error)

	// TransactionsForLoan returns a loan's transactions, oldest first.
	TransactionsForLoan(ctx context.Context, loanID string) ([]Transaction, error)
}

// SnapshotStore persists the installment sequence between operations. The
// engine guarantees atomicity of one pass in memory; the snapshot is the
// durable point the caller recomputes from when a pass is aborted.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, loanID string, installments []*Installment) error
	LatestSnapshot(ctx context.Context, loanID string) ([]*Installment, error)
}
