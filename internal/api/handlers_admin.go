/**
 * @description
 * This file contains the admin review endpoints that resolve flagged
 * transactions. They sit behind role-gated routes (ADMIN or RISK_OFFICER)
 * and translate review workflow errors onto HTTP status codes.
 */

package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lumenbank/transaction-service/internal/app"
	"github.com/lumenbank/transaction-service/internal/store"
)

// ListFlaggedTransactionsHandler handles GET /admin/transactions/flagged.
func (h *TransactionHandlers) ListFlaggedTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.service.ListFlaggedTransactions(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=list_flagged err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// ApproveTransactionHandler handles POST /admin/transactions/{id}/approve.
func (h *TransactionHandlers) ApproveTransactionHandler(w http.ResponseWriter, r *http.Request) {
	transactionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "transaction id must be a valid UUID")
		return
	}

	tx, err := h.service.ApproveTransaction(r.Context(), transactionID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, "Transaction not found")
		case errors.Is(err, store.ErrTransactionNotFlagged):
			h.writeError(w, http.StatusConflict, "only FLAGGED transactions can be approved")
		case errors.Is(err, store.ErrInsufficientFundsOrNotFound):
			h.writeError(w, http.StatusPaymentRequired, "Insufficient funds; transaction remains FLAGGED")
		case errors.Is(err, app.ErrUpstreamUnavailable):
			h.writeError(w, http.StatusBadGateway, "Service temporarily unavailable")
		default:
			log.Printf("level=error component=api endpoint=approve_transaction transaction_id=%s err=%v", transactionID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transaction": tx})
}

// RejectTransactionHandler handles POST /admin/transactions/{id}/reject.
func (h *TransactionHandlers) RejectTransactionHandler(w http.ResponseWriter, r *http.Request) {
	transactionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "transaction id must be a valid UUID")
		return
	}

	tx, err := h.service.RejectTransaction(r.Context(), transactionID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, "Transaction not found")
		case errors.Is(err, store.ErrTransactionNotFlagged):
			h.writeError(w, http.StatusConflict, "only FLAGGED transactions can be rejected")
		default:
			log.Printf("level=error component=api endpoint=reject_transaction transaction_id=%s err=%v", transactionID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transaction": tx})
}
