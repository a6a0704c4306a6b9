/*
dto.go - Request/response shapes for the HTTP surface

Money and Installment provide their own JSON forms; DTOs here exist only
for the shapes the wire adds (typed requests, error envelopes, strategy
summaries).
*/
package api

import (
	"github.com/warp/loan-engine/engine"
	"github.com/warp/loan-engine/money"
)

// transactionRequest is the body of POST /api/loans/{id}/transactions.
type transactionRequest struct {
	Type        string      `json:"type"`
	Amount      money.Money `json:"amount"`
	Date        string      `json:"date"`
	Strategy    string      `json:"strategy"`
	RelatedID   string      `json:"related_transaction_id,omitempty"`
	ExternalRef string      `json:"external_ref,omitempty"`
}

// scheduleRequest is the body of PUT /api/loans/{id}/schedule.
type scheduleRequest struct {
	Installments []*engine.Installment `json:"installments"`
}

// transactionResponse returns the allocation outcome together with the
// updated installment state.
type transactionResponse struct {
	Transaction  transactionSummary       `json:"transaction"`
	Allocation   *engine.AllocationResult `json:"allocation"`
	Installments []*engine.Installment    `json:"installments"`
}

type transactionSummary struct {
	ID     string      `json:"id"`
	Type   string      `json:"type"`
	Amount money.Money `json:"amount"`
	Date   string      `json:"date"`
}

type strategySummary struct {
	Code             string             `json:"code"`
	Name             string             `json:"name"`
	InstallmentOrder string             `json:"installment_order"`
	DueOrder         []engine.Component `json:"due_order"`
	AdvanceOrder     []engine.Component `json:"advance_order"`
	Overpayment      string             `json:"overpayment"`
}

type errorResponse struct {
	Error string `json:"error"`
}
