package service

import (
	"context"

	"github.com/yoraa/rewards-engine/internal/model"
)

type LedgerService struct {
	store AccountStore
}

func NewLedgerService(store AccountStore) *LedgerService {
	return &LedgerService{store: store}
}

// GetOrCreate returns the account for userID, lazily materializing an empty
// one on first access.
func (s *LedgerService) GetOrCreate(ctx context.Context, userID string) (*model.PointsAccount, error) {
	return s.store.GetOrCreateAccount(ctx, userID)
}

func (s *LedgerService) Get(ctx context.Context, userID string) (*model.PointsAccount, error) {
	return s.store.GetAccount(ctx, userID)
}

// Allocate credits points to a user. Basis defaults to admin_allocation.
func (s *LedgerService) Allocate(ctx context.Context, userID string, amount int64, description string, basis model.TransactionBasis) (*model.PointsAccount, error) {
	if amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	if basis == "" {
		basis = model.BasisAdminAllocation
	}
	if !model.ValidBasis(basis) {
		return nil, model.ErrValidation
	}
	return s.store.CreditAccount(ctx, userID, amount, description, basis)
}

// Redeem debits points from a user. The balance check and the debit are one
// atomic store operation; callers never see a negative balance.
func (s *LedgerService) Redeem(ctx context.Context, userID string, amount int64, description string) (*model.PointsAccount, error) {
	if amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	return s.store.DebitAccount(ctx, userID, amount, description, model.BasisRedemption)
}

// Adjust overwrites both totals (administrative correction). The store
// appends the delta transactions so the audit trail still explains the
// change.
func (s *LedgerService) Adjust(ctx context.Context, userID string, totalAllocated, totalRedeemed int64, reason string) (*model.PointsAccount, error) {
	if totalAllocated < 0 || totalRedeemed < 0 || totalAllocated < totalRedeemed {
		return nil, model.ErrInvalidAmount
	}
	return s.store.SetAccountTotals(ctx, userID, totalAllocated, totalRedeemed, reason)
}

// History returns a page of the audit trail, newest first.
func (s *LedgerService) History(ctx context.Context, userID string, page, pageSize int) ([]model.Transaction, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return s.store.ListTransactions(ctx, userID, pageSize, (page-1)*pageSize)
}

// Deactivate soft-deletes an account. The transaction log stays intact.
func (s *LedgerService) Deactivate(ctx context.Context, userID string) error {
	return s.store.DeactivateAccount(ctx, userID)
}
