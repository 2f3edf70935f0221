package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoraa/rewards-engine/internal/model"
	"github.com/yoraa/rewards-engine/internal/service"
	"github.com/yoraa/rewards-engine/internal/store/memory"
)

var (
	_ service.AccountStore = (*memory.Store)(nil)
	_ service.CodeStore    = (*memory.Store)(nil)
)

func newLedger(t *testing.T) *service.LedgerService {
	t.Helper()
	return service.NewLedgerService(memory.New())
}

func TestLedger_GetOrCreate(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	account, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", account.UserID)
	assert.Zero(t, account.Balance)
	assert.True(t, account.IsActive)

	// Second call returns the same account, never errors
	again, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, account.CreatedAt, again.CreatedAt)
}

func TestLedger_AllocateRedeemScenario(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)

	account, err := ledger.Allocate(ctx, "user-1", 100, "welcome bonus", model.BasisSignup)
	require.NoError(t, err)
	assert.EqualValues(t, 100, account.Balance)

	account, err = ledger.Redeem(ctx, "user-1", 30, "order #1")
	require.NoError(t, err)
	assert.EqualValues(t, 70, account.Balance)
	assert.EqualValues(t, 100, account.TotalAllocated)
	assert.EqualValues(t, 30, account.TotalRedeemed)

	history, err := ledger.History(ctx, "user-1", 1, 20)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Newest first
	assert.Equal(t, model.TransactionTypeDebit, history[0].Type)
	assert.Equal(t, model.BasisRedemption, history[0].Basis)
	assert.Equal(t, "order #1", history[0].Description)
	assert.Equal(t, model.TransactionTypeCredit, history[1].Type)
	assert.Equal(t, model.BasisSignup, history[1].Basis)

	// Overdraw attempt leaves the balance untouched
	_, err = ledger.Redeem(ctx, "user-1", 1000, "too much")
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)

	account, err = ledger.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 70, account.Balance)

	history, err = ledger.History(ctx, "user-1", 1, 20)
	require.NoError(t, err)
	assert.Len(t, history, 2, "failed redemption must not append a transaction")
}

func TestLedger_LazyMaterialization(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	// Allocating to a never-seen user creates the account on the fly.
	account, err := ledger.Allocate(ctx, "fresh-user", 10, "first grant", model.BasisSignup)
	require.NoError(t, err)
	assert.Equal(t, "fresh-user", account.UserID)
	assert.EqualValues(t, 10, account.Balance)
	assert.True(t, account.IsActive)

	history, err := ledger.History(ctx, "fresh-user", 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.TransactionTypeCredit, history[0].Type)

	// A never-seen user has nothing to spend, not a missing account.
	_, err = ledger.Redeem(ctx, "another-fresh-user", 5, "order")
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)
}

func TestLedger_InvalidInput(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)

	_, err = ledger.Allocate(ctx, "user-1", 0, "", "")
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	_, err = ledger.Allocate(ctx, "user-1", -10, "", "")
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	_, err = ledger.Allocate(ctx, "user-1", 10, "", "giveaway")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = ledger.Redeem(ctx, "user-1", 0, "")
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	_, err = ledger.Adjust(ctx, "user-1", 10, 20, "would go negative")
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	_, err = ledger.Adjust(ctx, "user-1", -1, 0, "negative total")
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
}

func TestLedger_AllocateDefaultsBasis(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)

	_, err = ledger.Allocate(ctx, "user-1", 10, "manual grant", "")
	require.NoError(t, err)

	history, err := ledger.History(ctx, "user-1", 1, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.BasisAdminAllocation, history[0].Basis)
}

func TestLedger_ConcurrentAllocations(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Allocate(ctx, "user-1", 10, "concurrent", model.BasisPurchase)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	account, err := ledger.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, workers*10, account.TotalAllocated)
	assert.EqualValues(t, workers*10, account.Balance)
}

func TestLedger_ConcurrentRedeemNoOverdraft(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	_, err = ledger.Allocate(ctx, "user-1", 50, "seed", model.BasisSignup)
	require.NoError(t, err)

	// Two racers for the whole balance: exactly one may win.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Redeem(ctx, "user-1", 50, "race")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, insufficient int
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, model.ErrInsufficientBalance)
		insufficient++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, insufficient)

	account, err := ledger.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, account.Balance)
}

func TestLedger_Adjust(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	_, err = ledger.Allocate(ctx, "user-1", 100, "seed", model.BasisSignup)
	require.NoError(t, err)
	_, err = ledger.Redeem(ctx, "user-1", 40, "order")
	require.NoError(t, err)

	account, err := ledger.Adjust(ctx, "user-1", 120, 50, "support correction")
	require.NoError(t, err)
	assert.EqualValues(t, 120, account.TotalAllocated)
	assert.EqualValues(t, 50, account.TotalRedeemed)
	assert.EqualValues(t, 70, account.Balance)

	// Both deltas show up in the trail
	history, err := ledger.History(ctx, "user-1", 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, model.TransactionTypeDebit, history[0].Type)
	assert.EqualValues(t, 10, history[0].Amount)
	assert.Equal(t, model.TransactionTypeCredit, history[1].Type)
	assert.EqualValues(t, 20, history[1].Amount)
}

func TestLedger_AuditReplay(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)

	_, err = ledger.Allocate(ctx, "user-1", 100, "signup", model.BasisSignup)
	require.NoError(t, err)
	_, err = ledger.Redeem(ctx, "user-1", 25, "order #1")
	require.NoError(t, err)
	_, err = ledger.Allocate(ctx, "user-1", 30, "review", model.BasisReview)
	require.NoError(t, err)
	_, err = ledger.Adjust(ctx, "user-1", 150, 40, "correction")
	require.NoError(t, err)
	_, err = ledger.Redeem(ctx, "user-1", 60, "order #2")
	require.NoError(t, err)

	account, err := ledger.Get(ctx, "user-1")
	require.NoError(t, err)

	history, err := ledger.History(ctx, "user-1", 1, 100)
	require.NoError(t, err)

	var replayed int64
	for _, tx := range history {
		require.Positive(t, tx.Amount)
		if tx.Type == model.TransactionTypeCredit {
			replayed += tx.Amount
		} else {
			replayed -= tx.Amount
		}
	}
	assert.Equal(t, account.Balance, replayed, "replaying credits minus debits must reproduce the balance")
	assert.Equal(t, account.Balance, account.TotalAllocated-account.TotalRedeemed)
	assert.GreaterOrEqual(t, account.Balance, int64(0))
}

func TestLedger_Deactivate(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	_, err = ledger.Allocate(ctx, "user-1", 10, "seed", model.BasisSignup)
	require.NoError(t, err)

	require.NoError(t, ledger.Deactivate(ctx, "user-1"))

	_, err = ledger.Allocate(ctx, "user-1", 10, "after deactivate", model.BasisSignup)
	assert.ErrorIs(t, err, model.ErrAccountInactive)

	_, err = ledger.Redeem(ctx, "user-1", 5, "after deactivate")
	assert.ErrorIs(t, err, model.ErrAccountInactive)

	// Transactions survive deactivation
	history, err := ledger.History(ctx, "user-1", 1, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	assert.ErrorIs(t, ledger.Deactivate(ctx, "missing"), model.ErrAccountNotFound)
}

func TestLedger_HistoryPagination(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = ledger.Allocate(ctx, "user-1", int64(i+1), "grant", model.BasisPurchase)
		require.NoError(t, err)
	}

	page1, err := ledger.History(ctx, "user-1", 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.EqualValues(t, 5, page1[0].Amount)
	assert.EqualValues(t, 4, page1[1].Amount)

	page2, err := ledger.History(ctx, "user-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.EqualValues(t, 3, page2[0].Amount)

	page3, err := ledger.History(ctx, "user-1", 3, 2)
	require.NoError(t, err)
	assert.Len(t, page3, 1)
}
