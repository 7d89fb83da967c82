/**
 * @description
 * This file contains the HTTP handlers for the transfer API. Handlers parse
 * incoming requests, call the orchestrator, and map its typed errors onto
 * status codes. They are the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lumenbank/transaction-service/internal/app"
	"github.com/lumenbank/transaction-service/internal/domain"
	"github.com/lumenbank/transaction-service/internal/store"
)

// RateLimiter decides whether one more transfer attempt by subject is
// allowed within the window.
type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (app.RateLimitDecision, error)
}

// TransactionHandlers holds the application service that handlers will use.
type TransactionHandlers struct {
	service       *app.Service
	limiter       RateLimiter
	transferLimit int
}

// NewTransactionHandlers creates a new instance of TransactionHandlers.
func NewTransactionHandlers(service *app.Service) *TransactionHandlers {
	return &TransactionHandlers{service: service}
}

// SetRateLimiter enables per-user rate limiting on transfer initiation.
func (h *TransactionHandlers) SetRateLimiter(limiter RateLimiter, limitPerMinute int) {
	h.limiter = limiter
	h.transferLimit = limitPerMinute
}

// CreateTransferHandler handles POST /transactions: the fraud-gated transfer
// orchestration entry point.
func (h *TransactionHandlers) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetCaller(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get caller from context")
		return
	}

	if h.limiter != nil && h.transferLimit > 0 {
		decision, err := h.limiter.Allow(r.Context(), "transfer", caller.UserID.String(), h.transferLimit, time.Minute)
		if err != nil {
			// Limiter backend trouble must not take the transfer path down.
			log.Printf("level=warn component=api endpoint=create_transfer msg=\"rate limiter unavailable; allowing request\" err=%v", err)
		} else if !decision.Allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())))
			h.writeError(w, http.StatusTooManyRequests, "Too many transfer attempts. Please wait and try again.")
			return
		}
	}

	var req domain.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_transfer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	result, err := h.service.CreateTransfer(r.Context(), caller, req)
	if err != nil {
		h.writeTransferError(w, caller, err)
		return
	}

	status := http.StatusCreated
	if result.Transaction.Status == domain.StatusFlagged {
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, result)
}

// writeTransferError maps orchestrator errors onto HTTP responses.
func (h *TransactionHandlers) writeTransferError(w http.ResponseWriter, caller domain.Caller, err error) {
	var blocked *app.RiskBlockedError
	switch {
	case errors.As(err, &blocked):
		log.Printf("level=info component=api endpoint=create_transfer outcome=blocked user_id=%s score=%d", caller.UserID, blocked.Assessment.Score)
		h.writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":      "Transfer blocked by risk policy",
			"assessment": blocked.Assessment,
		})
	case errors.Is(err, app.ErrMissingFields),
		errors.Is(err, app.ErrAmountNotPositive),
		errors.Is(err, app.ErrSameAccount),
		errors.Is(err, app.ErrInvalidAccountID):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusBadRequest, "source account does not exist")
	case errors.Is(err, store.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "You are not the owner of the source account")
	case errors.Is(err, store.ErrInsufficientFundsOrNotFound):
		h.writeError(w, http.StatusPaymentRequired, "Insufficient funds or account not found")
	case errors.Is(err, app.ErrUpstreamUnavailable):
		h.writeError(w, http.StatusBadGateway, "Service temporarily unavailable")
	default:
		log.Printf("level=error component=api endpoint=create_transfer outcome=failed user_id=%s err=%v", caller.UserID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// ListAccountTransactionsHandler handles GET /transactions/account/{accountId}.
func (h *TransactionHandlers) ListAccountTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetCaller(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get caller from context")
		return
	}

	accountID, err := uuid.Parse(chi.URLParam(r, "accountId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "accountId must be a valid UUID")
		return
	}

	transactions, err := h.service.ListAccountTransactions(r.Context(), caller, accountID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, "Account not found")
		case errors.Is(err, store.ErrForbidden):
			h.writeError(w, http.StatusForbidden, "Forbidden: not your account")
		default:
			log.Printf("level=error component=api endpoint=list_account_transactions account_id=%s err=%v", accountID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// writeJSON is a helper for writing JSON responses.
func (h *TransactionHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *TransactionHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
