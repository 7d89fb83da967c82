/**
 * @description
 * This file defines the `Repository` interface: the contract for all data
 * access the transaction-service needs. The orchestrator and review workflow
 * receive it by injection, which keeps the business logic independent of
 * PostgreSQL and lets tests substitute an in-memory stub.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lumenbank/transaction-service/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound             = errors.New("account not found")
	ErrForbidden                   = errors.New("caller is not the owner of the account")
	ErrInsufficientFundsOrNotFound = errors.New("insufficient funds or account not found")
	ErrTransactionNotFound         = errors.New("transaction not found")
	ErrTransactionNotFlagged       = errors.New("transaction is not in FLAGGED status")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Ledger methods. Transfer is the single atomic balance mutation in the
	// system: the debit applies only while balance >= amount still holds, and
	// either both sides move or neither does.
	GetOwnedAccount(ctx context.Context, accountID uuid.UUID, caller domain.Caller) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	Transfer(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount decimal.Decimal) error

	// Transaction methods.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	FindTransactionsByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
	FindFlaggedTransactions(ctx context.Context) ([]domain.Transaction, error)
	// SettleFlaggedTransaction atomically claims a FLAGGED row, settles its
	// stored amount, and transitions it to EXECUTED. Claim and settlement
	// commit or roll back together: a concurrent or repeated approval fails
	// with ErrTransactionNotFlagged, and a failed settlement leaves the row
	// FLAGGED with no funds moved.
	SettleFlaggedTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	// ResolveFlaggedTransaction moves a FLAGGED row to a terminal status
	// without touching the ledger. The status guard lives in the UPDATE
	// itself so a second resolution attempt fails with
	// ErrTransactionNotFlagged instead of silently succeeding.
	ResolveFlaggedTransaction(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus) (*domain.Transaction, error)
}
