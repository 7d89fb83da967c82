/**
 * @description
 * This file sets up the HTTP router for the transaction-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lumenbank/transaction-service/internal/domain"
)

// Routes creates and returns the router for the transaction service.
func Routes(h *TransactionHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Fraud scoring endpoint, consumed service-to-service. The evaluator is
	// pure, so authentication adds nothing here.
	r.Post("/fraud/check", h.FraudCheckHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/transactions", h.CreateTransferHandler)
		r.Get("/transactions/account/{accountId}", h.ListAccountTransactionsHandler)

		// Review endpoints for flagged transactions.
		r.Group(func(r chi.Router) {
			r.Use(RequireRoles(domain.RoleAdmin, domain.RoleRiskOfficer))

			r.Get("/admin/transactions/flagged", h.ListFlaggedTransactionsHandler)
			r.Post("/admin/transactions/{id}/approve", h.ApproveTransactionHandler)
			r.Post("/admin/transactions/{id}/reject", h.RejectTransactionHandler)
		})
	})

	return r
}
