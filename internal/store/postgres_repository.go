/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. The transfer primitive runs inside a single database
 * transaction with a conditional debit, which is the only mutual-exclusion
 * point the service relies on: two debits racing on the same account cannot
 * both pass the balance check because the row-level update serializes them.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: Fixed-point amounts; values travel to and
 *   from the database as strings and are cast to NUMERIC in SQL.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumenbank/transaction-service/internal/domain"
	"github.com/shopspring/decimal"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, user_id, currency, balance::text, status, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	var balance string
	var status string
	err := row.Scan(&account.ID, &account.UserID, &account.Currency, &balance, &status, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	account.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored balance: %w", err)
	}
	account.Status = domain.AccountStatus(status)
	return &account, nil
}

// GetAccount retrieves an account without an ownership check.
func (r *PostgresRepository) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountID))
}

// GetOwnedAccount retrieves an account and authorizes the caller against it.
// It is a pure read used before any mutation is attempted.
func (r *PostgresRepository) GetOwnedAccount(ctx context.Context, accountID uuid.UUID, caller domain.Caller) (*domain.Account, error) {
	account, err := r.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != caller.UserID && !caller.IsPrivileged() {
		return nil, ErrForbidden
	}
	return account, nil
}

// Transfer atomically moves amount between two accounts. The debit is a
// compare-and-decrement: it applies only if the source is ACTIVE and still
// holds at least amount at the moment of mutation. Zero rows updated means
// the account is missing, ineligible, or short of funds, and the whole
// operation rolls back so no partial debit/credit pair is ever observed.
func (r *PostgresRepository) Transfer(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInsufficientFundsOrNotFound
	}

	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transfer transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	if err := transferInTx(ctx, dbTx, fromAccountID, toAccountID, amount); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transfer transaction: %w", err)
	}
	return nil
}

// transferInTx applies the debit/credit pair inside an open transaction.
// Both rows are locked in id order up front, so two opposite-direction
// transfers on the same account pair cannot deadlock on each other.
func transferInTx(ctx context.Context, dbTx pgx.Tx, fromAccountID, toAccountID uuid.UUID, amount decimal.Decimal) error {
	lock := `
		SELECT id FROM accounts
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE
	`
	rows, err := dbTx.Query(ctx, lock, []uuid.UUID{fromAccountID, toAccountID})
	if err != nil {
		return fmt.Errorf("failed to lock accounts: %w", err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock accounts: %w", err)
	}

	debit := `
		UPDATE accounts
		SET balance = balance - $2::numeric, updated_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE' AND balance >= $2::numeric
	`
	debited, err := dbTx.Exec(ctx, debit, fromAccountID, amount.String())
	if err != nil {
		return fmt.Errorf("failed to debit source account: %w", err)
	}
	if debited.RowsAffected() == 0 {
		return ErrInsufficientFundsOrNotFound
	}

	credit := `
		UPDATE accounts
		SET balance = balance + $2::numeric, updated_at = NOW()
		WHERE id = $1 AND status <> 'CLOSED'
	`
	credited, err := dbTx.Exec(ctx, credit, toAccountID, amount.String())
	if err != nil {
		return fmt.Errorf("failed to credit destination account: %w", err)
	}
	if credited.RowsAffected() == 0 {
		return ErrInsufficientFundsOrNotFound
	}

	return nil
}

const transactionColumns = `id, from_account_id, to_account_id, amount::text, currency, status, reference, risk_score, risk_reasons, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount string
	var status string
	err := row.Scan(
		&tx.ID,
		&tx.FromAccountID,
		&tx.ToAccountID,
		&amount,
		&tx.Currency,
		&status,
		&tx.Reference,
		&tx.RiskScore,
		&tx.RiskReasons,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount: %w", err)
	}
	tx.Status = domain.TransactionStatus(status)
	if tx.RiskReasons == nil {
		tx.RiskReasons = []string{}
	}
	return &tx, nil
}

// CreateTransaction inserts a transaction row with its embedded risk result.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, from_account_id, to_account_id, amount, currency, status, reference, risk_score, risk_reasons)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		tx.ID,
		tx.FromAccountID,
		tx.ToAccountID,
		tx.Amount.String(),
		tx.Currency,
		string(tx.Status),
		tx.Reference,
		tx.RiskScore,
		tx.RiskReasons,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// FindTransactionByID retrieves a single transaction.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, transactionID))
}

func (r *PostgresRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

// FindTransactionsByAccountID returns all transactions where the account is
// sender or receiver, newest first.
func (r *PostgresRepository) FindTransactionsByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC`
	return r.queryTransactions(ctx, query, accountID)
}

// FindFlaggedTransactions returns all transactions awaiting review, newest first.
func (r *PostgresRepository) FindFlaggedTransactions(ctx context.Context) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE status = 'FLAGGED'
		ORDER BY created_at DESC`
	return r.queryTransactions(ctx, query)
}

// SettleFlaggedTransaction claims a FLAGGED transaction and settles its
// stored amount in one database transaction. The claim is the conditional
// UPDATE itself: a concurrent approval blocks on the row lock, re-evaluates
// the FLAGGED predicate after the first commit, and gets
// ErrTransactionNotFlagged, so the amount can never settle twice. A failed
// settlement rolls the claim back and the row stays FLAGGED.
func (r *PostgresRepository) SettleFlaggedTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin settlement transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	claim := `
		UPDATE transactions
		SET status = 'EXECUTED', updated_at = NOW()
		WHERE id = $1 AND status = 'FLAGGED'
		RETURNING ` + transactionColumns
	tx, err := scanTransaction(dbTx.QueryRow(ctx, claim, transactionID))
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return nil, ErrTransactionNotFlagged
		}
		return nil, err
	}

	if err := transferInTx(ctx, dbTx, tx.FromAccountID, tx.ToAccountID, tx.Amount); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit settlement transaction: %w", err)
	}
	return tx, nil
}

// ResolveFlaggedTransaction transitions a FLAGGED transaction to a terminal
// status. The WHERE clause enforces the precondition, so a transaction that
// was already resolved (or never flagged) yields ErrTransactionNotFlagged.
func (r *PostgresRepository) ResolveFlaggedTransaction(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus) (*domain.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'FLAGGED'
		RETURNING ` + transactionColumns
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, transactionID, string(status)))
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return nil, ErrTransactionNotFlagged
		}
		return nil, err
	}
	return tx, nil
}
