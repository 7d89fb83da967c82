package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumenbank/transaction-service/internal/domain"
	"github.com/lumenbank/transaction-service/internal/risk"
	"github.com/lumenbank/transaction-service/internal/store"
)

func flaggedTransaction(id uuid.UUID) *domain.Transaction {
	now := time.Now().UTC()
	return &domain.Transaction{
		ID:            id,
		FromAccountID: uuid.New(),
		ToAccountID:   uuid.New(),
		Amount:        decimal.NewFromInt(150000),
		Currency:      "USD",
		Status:        domain.StatusFlagged,
		RiskScore:     40,
		RiskReasons:   []string{"High amount over 100000"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestApproveTransactionSettlesAndExecutes(t *testing.T) {
	txID := uuid.New()
	flagged := flaggedTransaction(txID)
	ownerID := uuid.New()
	notifier := &stubNotifier{}

	var settled bool
	repo := &stubRepository{
		t: t,
		findTransactionByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
			return flagged, nil
		},
		settleFlaggedTransactionFn: func(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
			if id != txID {
				t.Fatalf("settlement targeted the wrong transaction: %s", id)
			}
			settled = true
			resolved := *flagged
			resolved.Status = domain.StatusExecuted
			return &resolved, nil
		},
		getAccountFn: func(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
			return &domain.Account{ID: accountID, UserID: ownerID, Status: domain.AccountActive}, nil
		},
	}
	svc := newTestService(repo, stubEvaluator{assessment: risk.Assessment{}}, notifier)

	updated, err := svc.ApproveTransaction(context.Background(), txID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !settled {
		t.Fatal("expected the claim-and-settle operation to run")
	}
	if updated.Status != domain.StatusExecuted {
		t.Fatalf("expected EXECUTED, got %s", updated.Status)
	}

	sent := notifier.all()
	if len(sent) != 1 || sent[0].Type != domain.NotifyTransaction || sent[0].UserID != ownerID {
		t.Fatalf("expected a TRANSACTION notification to the account owner, got %+v", sent)
	}
}

// TestConcurrentApprovalsSettleOnce races two approvals of the same flagged
// transaction against a fake whose claim-and-settle is atomic under a mutex,
// the contract the SQL conditional UPDATE provides. Both pass the initial
// status read, but only one may settle; the other must fail the
// precondition.
func TestConcurrentApprovalsSettleOnce(t *testing.T) {
	txID := uuid.New()
	flagged := flaggedTransaction(txID)

	var mu sync.Mutex
	status := domain.StatusFlagged
	settlements := 0

	repo := &stubRepository{
		t: t,
		findTransactionByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
			copied := *flagged
			copied.Status = domain.StatusFlagged
			return &copied, nil
		},
		settleFlaggedTransactionFn: func(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
			mu.Lock()
			defer mu.Unlock()
			if status != domain.StatusFlagged {
				return nil, store.ErrTransactionNotFlagged
			}
			status = domain.StatusExecuted
			settlements++
			resolved := *flagged
			resolved.Status = domain.StatusExecuted
			return &resolved, nil
		},
		getAccountFn: func(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
			return &domain.Account{ID: accountID, UserID: uuid.New(), Status: domain.AccountActive}, nil
		},
	}
	svc := newTestService(repo, stubEvaluator{}, &stubNotifier{})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ApproveTransaction(context.Background(), txID)
			results[i] = err
		}(i)
	}
	wg.Wait()

	var succeeded, precondition int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrTransactionNotFlagged):
			precondition++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || precondition != 1 {
		t.Fatalf("expected one success and one precondition failure, got %d and %d", succeeded, precondition)
	}

	mu.Lock()
	defer mu.Unlock()
	if settlements != 1 {
		t.Fatalf("the stored amount settled %d times for one flagged transaction", settlements)
	}
}

func TestApproveTransactionKeepsFlaggedOnSettlementFailure(t *testing.T) {
	txID := uuid.New()
	flagged := flaggedTransaction(txID)

	repo := &stubRepository{
		t: t,
		findTransactionByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
			return flagged, nil
		},
		settleFlaggedTransactionFn: func(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
			// The claim rolls back with the failed settlement; the row is
			// still FLAGGED.
			return nil, store.ErrInsufficientFundsOrNotFound
		},
	}
	svc := newTestService(repo, stubEvaluator{}, &stubNotifier{})

	_, err := svc.ApproveTransaction(context.Background(), txID)
	if !errors.Is(err, store.ErrInsufficientFundsOrNotFound) {
		t.Fatalf("expected insufficient funds error, got %v", err)
	}
}

func TestApproveTransactionRequiresFlaggedStatus(t *testing.T) {
	txID := uuid.New()
	executed := flaggedTransaction(txID)
	executed.Status = domain.StatusExecuted

	repo := &stubRepository{
		t: t,
		findTransactionByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
			return executed, nil
		},
	}
	svc := newTestService(repo, stubEvaluator{}, &stubNotifier{})

	_, err := svc.ApproveTransaction(context.Background(), txID)
	if !errors.Is(err, store.ErrTransactionNotFlagged) {
		t.Fatalf("expected not-flagged error, got %v", err)
	}
}

func TestApproveTransactionNotFound(t *testing.T) {
	repo := &stubRepository{
		t: t,
		findTransactionByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
			return nil, store.ErrTransactionNotFound
		},
	}
	svc := newTestService(repo, stubEvaluator{}, &stubNotifier{})

	_, err := svc.ApproveTransaction(context.Background(), uuid.New())
	if !errors.Is(err, store.ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRejectTransactionNeverTouchesLedger(t *testing.T) {
	txID := uuid.New()
	flagged := flaggedTransaction(txID)
	ownerID := uuid.New()
	notifier := &stubNotifier{}

	repo := &stubRepository{
		t: t,
		findTransactionByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
			return flagged, nil
		},
		resolveFlaggedTransactionFn: func(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) (*domain.Transaction, error) {
			if status != domain.StatusRejected {
				t.Fatalf("expected resolution to REJECTED, got %s", status)
			}
			resolved := *flagged
			resolved.Status = status
			return &resolved, nil
		},
		getAccountFn: func(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
			return &domain.Account{ID: accountID, UserID: ownerID, Status: domain.AccountActive}, nil
		},
		// transferFn unset: rejection must not move funds.
	}
	svc := newTestService(repo, stubEvaluator{}, notifier)

	updated, err := svc.RejectTransaction(context.Background(), txID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.StatusRejected {
		t.Fatalf("expected REJECTED, got %s", updated.Status)
	}

	sent := notifier.all()
	if len(sent) != 1 || sent[0].Type != domain.NotifySystem {
		t.Fatalf("expected one SYSTEM notification, got %+v", sent)
	}
}

func TestRejectTransactionRequiresFlaggedStatus(t *testing.T) {
	txID := uuid.New()
	rejected := flaggedTransaction(txID)
	rejected.Status = domain.StatusRejected

	repo := &stubRepository{
		t: t,
		findTransactionByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
			return rejected, nil
		},
	}
	svc := newTestService(repo, stubEvaluator{}, &stubNotifier{})

	_, err := svc.RejectTransaction(context.Background(), txID)
	if !errors.Is(err, store.ErrTransactionNotFlagged) {
		t.Fatalf("expected not-flagged error, got %v", err)
	}
}

func TestReviewOutcomeSurvivesOwnerLookupFailure(t *testing.T) {
	txID := uuid.New()
	flagged := flaggedTransaction(txID)
	notifier := &stubNotifier{}

	repo := &stubRepository{
		t: t,
		findTransactionByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
			return flagged, nil
		},
		resolveFlaggedTransactionFn: func(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) (*domain.Transaction, error) {
			resolved := *flagged
			resolved.Status = status
			return &resolved, nil
		},
		getAccountFn: func(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestService(repo, stubEvaluator{}, notifier)

	updated, err := svc.RejectTransaction(context.Background(), txID)
	if err != nil {
		t.Fatalf("rejection must succeed even when the owner lookup fails: %v", err)
	}
	if updated.Status != domain.StatusRejected {
		t.Fatalf("expected REJECTED, got %s", updated.Status)
	}
	if len(notifier.all()) != 0 {
		t.Fatalf("expected no notification when the owner cannot be resolved")
	}
}
