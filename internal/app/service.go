/**
 * @description
 * This file contains the transaction orchestrator: the state machine that
 * sequences input validation, ownership validation, risk evaluation,
 * settlement, and persistence for every transfer request. Each step is
 * fail-closed: an ambiguous or erroring step leaves the ledger and the
 * transaction table untouched.
 *
 * Ordering is deliberate. Ownership is checked before risk so an
 * unauthorized request never spends a scoring call; risk completes before
 * any ledger mutation so money never moves before it is cleared; persistence
 * happens only once the terminal outcome of a step is known.
 *
 * @dependencies
 * - github.com/google/uuid: For transaction identifiers.
 * - internal/domain, internal/risk, internal/store: Domain models, the risk
 *   gate, and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lumenbank/transaction-service/internal/domain"
	"github.com/lumenbank/transaction-service/internal/risk"
	"github.com/lumenbank/transaction-service/internal/store"
)

var (
	ErrMissingFields       = errors.New("fromAccountId, toAccountId and amount are required")
	ErrAmountNotPositive   = errors.New("amount must be a positive number")
	ErrSameAccount         = errors.New("fromAccountId and toAccountId must be different")
	ErrInvalidAccountID    = errors.New("account id must be a valid UUID")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
)

// RiskBlockedError is returned when the risk gate refuses a transfer
// outright. It carries the assessment so the caller can see score and
// reasons; no transaction row exists for it unless BLOCKED persistence is
// enabled.
type RiskBlockedError struct {
	Assessment risk.Assessment
}

func (e *RiskBlockedError) Error() string {
	return fmt.Sprintf("transfer blocked by risk policy (score %d)", e.Assessment.Score)
}

// RiskEvaluator scores a prospective transfer. Implemented by the in-process
// engine and by the HTTP client for a remote fraud-service.
type RiskEvaluator interface {
	Evaluate(ctx context.Context, in risk.Input) (risk.Assessment, error)
}

// Notifier is the best-effort side channel for user notifications. Notify
// never blocks the caller and its failures never surface.
type Notifier interface {
	Notify(n domain.Notification)
}

// TransferResult bundles the persisted transaction with the risk assessment
// that produced it.
type TransferResult struct {
	Transaction *domain.Transaction `json:"transaction"`
	Assessment  risk.Assessment     `json:"assessment"`
}

// Service provides the core business logic for transfers and their review.
type Service struct {
	repo            store.Repository
	riskEval        RiskEvaluator
	notifier        Notifier
	upstreamTimeout time.Duration
	defaultCurrency string
	persistBlocked  bool
	now             func() time.Time
}

// NewService creates a new transaction service instance.
func NewService(repo store.Repository, riskEval RiskEvaluator, notifier Notifier, upstreamTimeout time.Duration, defaultCurrency string, persistBlocked bool) *Service {
	if upstreamTimeout <= 0 {
		upstreamTimeout = 10 * time.Second
	}
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &Service{
		repo:            repo,
		riskEval:        riskEval,
		notifier:        notifier,
		upstreamTimeout: upstreamTimeout,
		defaultCurrency: defaultCurrency,
		persistBlocked:  persistBlocked,
		now:             time.Now,
	}
}

// CreateTransfer runs the orchestration state machine for one transfer
// request. Outcomes: an EXECUTED transaction, a FLAGGED transaction awaiting
// review, a RiskBlockedError refusal, or a typed failure with no side
// effects.
func (s *Service) CreateTransfer(ctx context.Context, caller domain.Caller, req domain.CreateTransferRequest) (*TransferResult, error) {
	// 1. Input validation. Violations fail immediately with no side effects.
	if req.FromAccountID == "" || req.ToAccountID == "" || req.Amount.IsZero() {
		return nil, ErrMissingFields
	}
	if !req.Amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}
	if req.FromAccountID == req.ToAccountID {
		return nil, ErrSameAccount
	}
	fromID, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		return nil, ErrInvalidAccountID
	}
	toID, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		return nil, ErrInvalidAccountID
	}

	// 2. Ownership check against the ledger store.
	account, err := s.getOwnedAccountWithRetry(ctx, fromID, caller)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = account.Currency
	}
	if currency == "" {
		currency = s.defaultCurrency
	}

	// 3. Risk evaluation. An unreachable or erroring evaluator fails closed:
	// nothing persisted, nothing settled.
	riskCtx, cancelRisk := context.WithTimeout(ctx, s.upstreamTimeout)
	defer cancelRisk()
	assessment, err := s.riskEval.Evaluate(riskCtx, risk.Input{
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         req.Amount,
		Currency:       currency,
		Timestamp:      s.now().UTC(),
		IsNewRecipient: req.IsNewRecipient,
	})
	if err != nil {
		log.Printf("level=error component=orchestrator step=risk msg=\"risk evaluator unreachable\" err=%v", err)
		return nil, fmt.Errorf("%w: risk evaluation failed", ErrUpstreamUnavailable)
	}

	// 4. Decision branch.
	switch assessment.Decision {
	case risk.DecisionBlock:
		return nil, s.handleBlocked(ctx, caller, fromID, toID, currency, req, assessment)
	case risk.DecisionFlag:
		return s.handleFlagged(ctx, caller, fromID, toID, currency, req, assessment)
	case risk.DecisionAllow:
		return s.handleAllowed(ctx, caller, fromID, toID, currency, req, assessment)
	default:
		log.Printf("level=error component=orchestrator step=decision msg=\"unknown risk decision\" decision=%q", assessment.Decision)
		return nil, fmt.Errorf("%w: unknown risk decision %q", ErrUpstreamUnavailable, assessment.Decision)
	}
}

// getOwnedAccountWithRetry reads and authorizes the source account. The
// read is idempotent, so a transient store failure gets one retry; the
// settlement call never does.
func (s *Service) getOwnedAccountWithRetry(ctx context.Context, accountID uuid.UUID, caller domain.Caller) (*domain.Account, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		ownCtx, cancel := context.WithTimeout(ctx, s.upstreamTimeout)
		account, err := s.repo.GetOwnedAccount(ownCtx, accountID, caller)
		cancel()
		if err == nil {
			return account, nil
		}
		if errors.Is(err, store.ErrAccountNotFound) || errors.Is(err, store.ErrForbidden) {
			return nil, err
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.Printf("level=warn component=orchestrator step=ownership msg=\"ledger store read failed\" account_id=%s attempt=%d err=%v", accountID, attempt+1, err)
	}
	log.Printf("level=error component=orchestrator step=ownership msg=\"ledger store unreachable\" account_id=%s err=%v", accountID, lastErr)
	return nil, fmt.Errorf("%w: ownership check failed", ErrUpstreamUnavailable)
}

// handleBlocked is a pure refusal: no funds move and, unless BLOCKED
// persistence is configured, no row is written.
func (s *Service) handleBlocked(ctx context.Context, caller domain.Caller, fromID, toID uuid.UUID, currency string, req domain.CreateTransferRequest, assessment risk.Assessment) error {
	if s.persistBlocked {
		blocked := s.newTransaction(fromID, toID, currency, req, assessment, domain.StatusBlocked)
		if err := s.repo.CreateTransaction(ctx, blocked); err != nil {
			// The refusal stands either way; the audit row is best-effort.
			log.Printf("level=warn component=orchestrator step=persist msg=\"failed to persist BLOCKED audit row\" err=%v", err)
		}
	}
	log.Printf("level=info component=orchestrator outcome=blocked from_account=%s score=%d", fromID, assessment.Score)
	return &RiskBlockedError{Assessment: assessment}
}

func (s *Service) handleFlagged(ctx context.Context, caller domain.Caller, fromID, toID uuid.UUID, currency string, req domain.CreateTransferRequest, assessment risk.Assessment) (*TransferResult, error) {
	tx := s.newTransaction(fromID, toID, currency, req, assessment, domain.StatusFlagged)
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to persist flagged transaction: %w", err)
	}

	s.notifier.Notify(domain.Notification{
		UserID:  caller.UserID,
		Type:    domain.NotifyFraudAlert,
		Title:   "Transfer held for review",
		Message: fmt.Sprintf("Your transfer of %s %s was flagged for manual review (risk score %d).", tx.Amount.String(), tx.Currency, assessment.Score),
	})

	log.Printf("level=info component=orchestrator outcome=flagged transaction_id=%s score=%d", tx.ID, assessment.Score)
	return &TransferResult{Transaction: tx, Assessment: assessment}, nil
}

func (s *Service) handleAllowed(ctx context.Context, caller domain.Caller, fromID, toID uuid.UUID, currency string, req domain.CreateTransferRequest, assessment risk.Assessment) (*TransferResult, error) {
	// Settle first, persist second. The balance may have dropped since the
	// ownership read; that race legitimately fails here and discards the
	// risk evaluation without leaving any artifact.
	settleCtx, cancelSettle := context.WithTimeout(ctx, s.upstreamTimeout)
	defer cancelSettle()
	if err := s.repo.Transfer(settleCtx, fromID, toID, req.Amount); err != nil {
		if errors.Is(err, store.ErrInsufficientFundsOrNotFound) {
			return nil, err
		}
		log.Printf("level=error component=orchestrator step=settle msg=\"settlement failed\" from_account=%s err=%v", fromID, err)
		return nil, fmt.Errorf("%w: settlement failed", ErrUpstreamUnavailable)
	}

	tx := s.newTransaction(fromID, toID, currency, req, assessment, domain.StatusExecuted)
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		// Funds already moved. Compensate with a reverse transfer so the
		// ledger does not drift from the (absent) record.
		if revErr := s.repo.Transfer(ctx, toID, fromID, req.Amount); revErr != nil {
			log.Printf("CRITICAL: failed to reverse settled transfer %s -> %s after persistence failure: %v", fromID, toID, revErr)
		}
		return nil, fmt.Errorf("failed to persist executed transaction: %w", err)
	}

	s.notifier.Notify(domain.Notification{
		UserID:  caller.UserID,
		Type:    domain.NotifyTransaction,
		Title:   "Transfer executed",
		Message: fmt.Sprintf("Your transfer of %s %s was executed.", tx.Amount.String(), tx.Currency),
	})

	log.Printf("level=info component=orchestrator outcome=executed transaction_id=%s", tx.ID)
	return &TransferResult{Transaction: tx, Assessment: assessment}, nil
}

func (s *Service) newTransaction(fromID, toID uuid.UUID, currency string, req domain.CreateTransferRequest, assessment risk.Assessment, status domain.TransactionStatus) *domain.Transaction {
	now := s.now().UTC()
	reasons := assessment.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return &domain.Transaction{
		ID:            uuid.New(),
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        req.Amount,
		Currency:      currency,
		Status:        status,
		Reference:     req.Reference,
		RiskScore:     assessment.Score,
		RiskReasons:   reasons,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ListAccountTransactions returns the history for an account after
// authorizing the caller against it.
func (s *Service) ListAccountTransactions(ctx context.Context, caller domain.Caller, accountID uuid.UUID) ([]domain.Transaction, error) {
	if _, err := s.repo.GetOwnedAccount(ctx, accountID, caller); err != nil {
		return nil, err
	}
	return s.repo.FindTransactionsByAccountID(ctx, accountID)
}

// ListFlaggedTransactions returns all transactions awaiting review.
func (s *Service) ListFlaggedTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.FindFlaggedTransactions(ctx)
}
