/*
handlers.go - HTTP handlers for the loan engine host

PURPOSE:
  Translates HTTP requests into engine calls. The flow for a transaction
  mirrors the engine's contract: load the latest durable installment
  snapshot, run the allocation (or chargeback) against it, and persist
  the mapping and the new snapshot only when the pass succeeded.

ERROR MAPPING:
  Fatal engine errors      -> 422 (currency mismatch, invalid amount, ...)
  Recoverable remainder    -> 422 with the typed remainder message
  Unknown loan / snapshot  -> 404
  Malformed request        -> 400
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/loan-engine/dates"
	"github.com/warp/loan-engine/engine"
)

// Handler wires the HTTP surface to the engine and its stores.
type Handler struct {
	Transactions engine.TransactionStore
	Snapshots    engine.SnapshotStore
	Logger       *zap.Logger
}

func NewHandler(transactions engine.TransactionStore, snapshots engine.SnapshotStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Transactions: transactions, Snapshots: snapshots, Logger: logger}
}

// ListStrategies returns the allocation strategy catalog.
func (h *Handler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	strategies := engine.Strategies()
	out := make([]strategySummary, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, strategySummary{
			Code:             s.Code,
			Name:             s.Name,
			InstallmentOrder: string(s.InstallmentOrder),
			DueOrder:         s.DueOrder,
			AdvanceOrder:     s.AdvanceOrder,
			Overpayment:      string(s.Overpayment),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// SaveSchedule stores a new installment snapshot for the loan.
func (h *Handler) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "id")

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule payload")
		return
	}
	if len(req.Installments) == 0 {
		writeError(w, http.StatusBadRequest, "schedule requires at least one installment")
		return
	}

	if err := h.Snapshots.SaveSnapshot(r.Context(), loanID, req.Installments); err != nil {
		h.Logger.Error("save snapshot failed", zap.String("loan_id", loanID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save schedule")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"installments": len(req.Installments)})
}

// GetSchedule returns the latest installment snapshot.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "id")

	installments, err := h.Snapshots.LatestSnapshot(r.Context(), loanID)
	if err != nil {
		h.Logger.Error("load snapshot failed", zap.String("loan_id", loanID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	if installments == nil {
		writeError(w, http.StatusNotFound, "no schedule for loan")
		return
	}
	writeJSON(w, http.StatusOK, scheduleRequest{Installments: installments})
}

// ApplyTransaction allocates a transaction against the loan's latest
// snapshot and persists both the mapping and the updated snapshot.
func (h *Handler) ApplyTransaction(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "id")

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction payload")
		return
	}

	date, err := dates.Parse(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	installments, err := h.Snapshots.LatestSnapshot(r.Context(), loanID)
	if err != nil {
		h.Logger.Error("load snapshot failed", zap.String("loan_id", loanID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	if installments == nil {
		writeError(w, http.StatusNotFound, "no schedule for loan")
		return
	}

	tx := engine.Transaction{
		ID:          engine.TransactionID(uuid.NewString()),
		LoanID:      loanID,
		Amount:      req.Amount,
		Date:        date,
		Type:        engine.TransactionType(req.Type),
		RelatedID:   engine.TransactionID(req.RelatedID),
		ExternalRef: req.ExternalRef,
	}
	currency := req.Amount.Currency()

	var result *engine.AllocationResult
	if tx.Type == engine.TxChargeback {
		result, err = h.applyChargeback(r, tx, installments)
	} else {
		strategy, serr := engine.StrategyByCode(req.Strategy)
		if serr != nil {
			writeError(w, http.StatusBadRequest, serr.Error())
			return
		}
		result, err = engine.NewAllocationEngine(strategy).Allocate(tx, currency, installments)
	}
	if err != nil {
		status := http.StatusUnprocessableEntity
		if !engine.IsFatal(err) && !engine.IsRecoverable(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	if err := h.Transactions.SaveAllocation(r.Context(), tx, result); err != nil {
		h.Logger.Error("save allocation failed", zap.String("loan_id", loanID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to persist allocation")
		return
	}
	if err := h.Snapshots.SaveSnapshot(r.Context(), loanID, installments); err != nil {
		h.Logger.Error("save snapshot failed", zap.String("loan_id", loanID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to persist schedule")
		return
	}

	writeJSON(w, http.StatusCreated, transactionResponse{
		Transaction: transactionSummary{
			ID:     string(tx.ID),
			Type:   string(tx.Type),
			Amount: tx.Amount,
			Date:   tx.Date.String(),
		},
		Allocation:   result,
		Installments: installments,
	})
}

func (h *Handler) applyChargeback(r *http.Request, tx engine.Transaction, installments []*engine.Installment) (*engine.AllocationResult, error) {
	if tx.RelatedID == "" {
		return nil, engine.ErrOriginalAllocationRequired
	}
	original, err := h.Transactions.Allocation(r.Context(), tx.RelatedID)
	if err != nil {
		return nil, engine.ErrOriginalAllocationRequired
	}
	strategy, err := engine.StrategyByCode(original.StrategyCode)
	if err != nil {
		return nil, err
	}
	return engine.NewAllocationEngine(strategy).Chargeback(tx, original, tx.Amount.Currency(), installments)
}

// ListTransactions returns a loan's transaction stream.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "id")

	txs, err := h.Transactions.TransactionsForLoan(r.Context(), loanID)
	if err != nil {
		h.Logger.Error("load transactions failed", zap.String("loan_id", loanID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	out := make([]transactionSummary, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionSummary{
			ID:     string(tx.ID),
			Type:   string(tx.Type),
			Amount: tx.Amount,
			Date:   tx.Date.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
