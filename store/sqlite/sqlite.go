/*
Package sqlite provides a SQLite-backed implementation of the engine's
storage interfaces.

PURPOSE:
  Implements engine.TransactionStore and engine.SnapshotStore. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  Transactions and allocation mappings are never updated or deleted;
  corrections arrive as chargeback transactions, which are appended like
  any other. No UPDATE or DELETE statement touches those tables.

KEY TABLES:
  loan_transactions:   the immutable transaction stream
  allocations:         per-transaction (period, component, amount) rows
  schedule_snapshots:  installment sequences, one JSON payload per save;
                       the latest row is the durable point a caller
                       recomputes from after an aborted pass

ATOMICITY:
  SaveAllocation writes the transaction row and its allocation rows in
  one database transaction; a partially persisted mapping can never be
  observed.

WAL MODE:
  Opened with WAL so readers do not block the single writer.

USAGE:
  store, err := sqlite.New("./data/loans.db")   // or ":memory:"
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/loan-engine/dates"
	"github.com/warp/loan-engine/engine"
	"github.com/warp/loan-engine/money"
)

// Store implements engine.TransactionStore and engine.SnapshotStore.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) a SQLite store. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Transaction stream (append-only)
	CREATE TABLE IF NOT EXISTS loan_transactions (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency_code TEXT NOT NULL,
		decimal_places INTEGER NOT NULL,
		in_multiples_of INTEGER NOT NULL DEFAULT 0,
		tx_date TEXT NOT NULL,
		related_id TEXT,
		external_ref TEXT,
		strategy_code TEXT NOT NULL,
		unallocated TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_loan_date
		ON loan_transactions(loan_id, tx_date);

	-- Allocation mappings (append-only, ordered by seq)
	CREATE TABLE IF NOT EXISTS allocations (
		tx_id TEXT NOT NULL REFERENCES loan_transactions(id),
		seq INTEGER NOT NULL,
		period INTEGER NOT NULL,
		component TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (tx_id, seq)
	);

	-- Installment snapshots
	CREATE TABLE IF NOT EXISTS schedule_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		loan_id TEXT NOT NULL,
		taken_at TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_loan
		ON schedule_snapshots(loan_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// SaveAllocation appends the transaction and its mapping atomically.
func (s *Store) SaveAllocation(ctx context.Context, tx engine.Transaction, result *engine.AllocationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	currency := tx.Amount.Currency()
	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO loan_transactions
		(id, loan_id, tx_type, amount, currency_code, decimal_places, in_multiples_of,
		 tx_date, related_id, external_ref, strategy_code, unallocated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(tx.ID), tx.LoanID, string(tx.Type),
		tx.Amount.Amount().String(), currency.Code, currency.DecimalPlaces, currency.InMultiplesOf,
		tx.Date.String(), string(tx.RelatedID), tx.ExternalRef,
		result.StrategyCode, result.Unallocated.Amount().String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for seq, entry := range result.Entries {
		_, err = dbTx.ExecContext(ctx, `
			INSERT INTO allocations (tx_id, seq, period, component, amount)
			VALUES (?, ?, ?, ?, ?)`,
			string(tx.ID), seq, entry.Period, string(entry.Component), entry.Amount.Amount().String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert allocation entry: %w", err)
		}
	}

	return dbTx.Commit()
}

// Allocation rebuilds the mapping recorded for a transaction.
func (s *Store) Allocation(ctx context.Context, id engine.TransactionID) (*engine.AllocationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		txType        string
		strategyCode  string
		unallocated   string
		code          string
		decimalPlaces int32
		inMultiplesOf int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT tx_type, strategy_code, unallocated, currency_code, decimal_places, in_multiples_of
		FROM loan_transactions WHERE id = ?`, string(id)).
		Scan(&txType, &strategyCode, &unallocated, &code, &decimalPlaces, &inMultiplesOf)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("allocation for transaction %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	currency := money.Currency{Code: code, DecimalPlaces: decimalPlaces, InMultiplesOf: inMultiplesOf}
	unallocatedAmount, err := parseMoney(unallocated, currency)
	if err != nil {
		return nil, err
	}

	result := &engine.AllocationResult{
		TransactionID: id,
		Type:          engine.TransactionType(txType),
		StrategyCode:  strategyCode,
		Unallocated:   unallocatedAmount,
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT period, component, amount FROM allocations
		WHERE tx_id = ? ORDER BY seq`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			period    int
			component string
			amount    string
		)
		if err := rows.Scan(&period, &component, &amount); err != nil {
			return nil, err
		}
		m, err := parseMoney(amount, currency)
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, engine.AllocationEntry{
			Period:    period,
			Component: engine.Component(component),
			Amount:    m,
		})
	}
	return result, rows.Err()
}

// TransactionsForLoan returns a loan's transactions, oldest first.
func (s *Store) TransactionsForLoan(ctx context.Context, loanID string) ([]engine.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tx_type, amount, currency_code, decimal_places, in_multiples_of,
		       tx_date, related_id, external_ref
		FROM loan_transactions WHERE loan_id = ?
		ORDER BY tx_date, created_at`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []engine.Transaction
	for rows.Next() {
		var (
			id, txType, amount, code, txDate string
			relatedID, externalRef           sql.NullString
			decimalPlaces                    int32
			inMultiplesOf                    int64
		)
		if err := rows.Scan(&id, &txType, &amount, &code, &decimalPlaces, &inMultiplesOf,
			&txDate, &relatedID, &externalRef); err != nil {
			return nil, err
		}
		currency := money.Currency{Code: code, DecimalPlaces: decimalPlaces, InMultiplesOf: inMultiplesOf}
		m, err := parseMoney(amount, currency)
		if err != nil {
			return nil, err
		}
		date, err := dates.Parse(txDate)
		if err != nil {
			return nil, fmt.Errorf("corrupt tx_date %q: %w", txDate, err)
		}
		txs = append(txs, engine.Transaction{
			ID:          engine.TransactionID(id),
			LoanID:      loanID,
			Amount:      m,
			Date:        date,
			Type:        engine.TransactionType(txType),
			RelatedID:   engine.TransactionID(relatedID.String),
			ExternalRef: externalRef.String,
		})
	}
	return txs, rows.Err()
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

// SaveSnapshot appends a new installment snapshot for the loan.
func (s *Store) SaveSnapshot(ctx context.Context, loanID string, installments []*engine.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(installments)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schedule_snapshots (loan_id, taken_at, payload)
		VALUES (?, ?, ?)`,
		loanID, time.Now().UTC().Format(time.RFC3339), string(payload))
	return err
}

// LatestSnapshot returns the most recent installment snapshot, or nil when
// none exists.
func (s *Store) LatestSnapshot(ctx context.Context, loanID string) ([]*engine.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM schedule_snapshots
		WHERE loan_id = ? ORDER BY id DESC LIMIT 1`, loanID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var installments []*engine.Installment
	if err := json.Unmarshal([]byte(payload), &installments); err != nil {
		return nil, fmt.Errorf("corrupt snapshot payload: %w", err)
	}
	return installments, nil
}

func parseMoney(raw string, currency money.Currency) (money.Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return money.Money{}, fmt.Errorf("corrupt amount %q: %w", raw, err)
	}
	return money.New(d, currency), nil
}
