/**
 * @description
 * This file implements the admin review workflow that resolves flagged
 * transactions. Approval reuses the ledger store's atomic transfer
 * primitive; rejection is a pure status transition. Both require the target
 * to still be FLAGGED, so resolving an already-resolved transaction fails
 * the precondition instead of silently succeeding or double-settling.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/lumenbank/transaction-service/internal/domain"
	"github.com/lumenbank/transaction-service/internal/store"
)

// ApproveTransaction settles a flagged transfer and transitions it to
// EXECUTED. Claim and settlement are one atomic repository operation, so two
// approvals racing on the same transaction cannot both settle, and a failed
// settlement (for example the funds are gone by review time) leaves the row
// FLAGGED with no funds moved; there is no automatic retry.
func (s *Service) ApproveTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.StatusFlagged {
		return nil, store.ErrTransactionNotFlagged
	}

	settleCtx, cancel := context.WithTimeout(ctx, s.upstreamTimeout)
	defer cancel()
	updated, err := s.repo.SettleFlaggedTransaction(settleCtx, transactionID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientFundsOrNotFound):
			log.Printf("level=warn component=review action=approve outcome=settlement_failed transaction_id=%s", transactionID)
			return nil, err
		case errors.Is(err, store.ErrTransactionNotFlagged):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: settlement failed during approval", ErrUpstreamUnavailable)
		}
	}

	s.notifyAccountOwner(ctx, updated.FromAccountID, domain.Notification{
		Type:    domain.NotifyTransaction,
		Title:   "Flagged transfer approved",
		Message: fmt.Sprintf("Your flagged transfer of %s %s was approved and executed.", updated.Amount.String(), updated.Currency),
	})

	log.Printf("level=info component=review action=approve outcome=executed transaction_id=%s", transactionID)
	return updated, nil
}

// RejectTransaction transitions a flagged transfer to REJECTED without
// touching the ledger.
func (s *Service) RejectTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.StatusFlagged {
		return nil, store.ErrTransactionNotFlagged
	}

	updated, err := s.repo.ResolveFlaggedTransaction(ctx, transactionID, domain.StatusRejected)
	if err != nil {
		return nil, err
	}

	s.notifyAccountOwner(ctx, updated.FromAccountID, domain.Notification{
		Type:    domain.NotifySystem,
		Title:   "Flagged transfer rejected",
		Message: fmt.Sprintf("Your flagged transfer of %s %s was rejected after review.", updated.Amount.String(), updated.Currency),
	})

	log.Printf("level=info component=review action=reject outcome=rejected transaction_id=%s", transactionID)
	return updated, nil
}

// notifyAccountOwner resolves the account's owner and dispatches a
// best-effort notification. A failed owner lookup only costs the
// notification, never the review outcome.
func (s *Service) notifyAccountOwner(ctx context.Context, accountID uuid.UUID, n domain.Notification) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		log.Printf("level=warn component=review msg=\"could not resolve account owner for notification\" account_id=%s err=%v", accountID, err)
		return
	}
	n.UserID = account.UserID
	s.notifier.Notify(n)
}
