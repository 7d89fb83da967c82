/**
 * @description
 * This file defines the transaction model and the request/response DTOs for
 * the transfer API. A transaction row is written exactly once, by exactly one
 * component (the orchestrator for new transfers, the review workflow for
 * flagged-transaction resolution), and only after its terminal outcome for
 * that step is known.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus enumerates transaction lifecycle states.
//
// FLAGGED may transition to EXECUTED or REJECTED through the review workflow.
// EXECUTED and REJECTED are terminal. PENDING is declared for compatibility
// with the persisted enum but the orchestrator always resolves synchronously
// and never writes it. BLOCKED rows are written only when
// PERSIST_BLOCKED_TRANSACTIONS is enabled.
type TransactionStatus string

const (
	StatusPending  TransactionStatus = "PENDING"
	StatusFlagged  TransactionStatus = "FLAGGED"
	StatusExecuted TransactionStatus = "EXECUTED"
	StatusRejected TransactionStatus = "REJECTED"
	StatusBlocked  TransactionStatus = "BLOCKED"
)

// Transaction is the persisted record of a transfer and its risk assessment.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	FromAccountID uuid.UUID         `json:"from_account_id"`
	ToAccountID   uuid.UUID         `json:"to_account_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	Status        TransactionStatus `json:"status"`
	Reference     *string           `json:"reference,omitempty"`
	RiskScore     int               `json:"risk_score"`
	RiskReasons   []string          `json:"risk_reasons"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// CreateTransferRequest is the DTO for POST /transactions.
// Amount accepts a JSON number or numeric string.
type CreateTransferRequest struct {
	FromAccountID  string          `json:"fromAccountId"`
	ToAccountID    string          `json:"toAccountId"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	Reference      *string         `json:"reference,omitempty"`
	IsNewRecipient bool            `json:"isNewRecipient,omitempty"`
}

// NotificationType enumerates the notification kinds the downstream
// notification-service understands.
type NotificationType string

const (
	NotifyTransaction NotificationType = "TRANSACTION"
	NotifyFraudAlert  NotificationType = "FRAUD_ALERT"
	NotifySystem      NotificationType = "SYSTEM"
)

// Notification is a best-effort message to a user. Delivery failures are
// logged and never affect the transaction that produced them.
type Notification struct {
	UserID  uuid.UUID        `json:"user_id"`
	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
}
