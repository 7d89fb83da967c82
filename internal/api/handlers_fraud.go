/**
 * @description
 * This file exposes the risk evaluator over HTTP. The reference deployment
 * runs fraud scoring as its own service; serving the same POST /fraud/check
 * contract here keeps the two deployments interchangeable for the
 * orchestrator's fraud client.
 */

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lumenbank/transaction-service/internal/risk"
	"github.com/shopspring/decimal"
)

type fraudCheckRequest struct {
	FromAccountID  string          `json:"fromAccountId"`
	ToAccountID    string          `json:"toAccountId"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	Timestamp      string          `json:"timestamp,omitempty"`
	IsNewRecipient bool            `json:"isNewRecipient,omitempty"`
}

// FraudCheckHandler handles POST /fraud/check.
func (h *TransactionHandlers) FraudCheckHandler(w http.ResponseWriter, r *http.Request) {
	var req fraudCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.FromAccountID == "" || req.ToAccountID == "" || req.Amount.IsZero() {
		h.writeError(w, http.StatusBadRequest, "fromAccountId, toAccountId and amount are required")
		return
	}
	if !req.Amount.IsPositive() {
		h.writeError(w, http.StatusBadRequest, "amount must be a positive number")
		return
	}

	// An absent or unparsable timestamp simply skips the time-of-day rule.
	var timestamp time.Time
	if req.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			timestamp = parsed
		}
	}

	assessment := risk.Evaluate(risk.Input{
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Timestamp:      timestamp,
		IsNewRecipient: req.IsNewRecipient,
	})

	h.writeJSON(w, http.StatusOK, assessment)
}
