package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/yoraa/rewards-engine/internal/model"
)

// AccountStore is the atomic persistence port for points accounts. Every
// mutating call is a single atomic step against the store: the invariant
// check and the write cannot be interleaved by a concurrent caller.
type AccountStore interface {
	GetOrCreateAccount(ctx context.Context, userID string) (*model.PointsAccount, error)
	GetAccount(ctx context.Context, userID string) (*model.PointsAccount, error)
	CreditAccount(ctx context.Context, userID string, amount int64, description string, basis model.TransactionBasis) (*model.PointsAccount, error)
	DebitAccount(ctx context.Context, userID string, amount int64, description string, basis model.TransactionBasis) (*model.PointsAccount, error)
	SetAccountTotals(ctx context.Context, userID string, totalAllocated, totalRedeemed int64, reason string) (*model.PointsAccount, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.Transaction, error)
	DeactivateAccount(ctx context.Context, userID string) error
}

// CodeStore is the atomic persistence port for invite codes.
type CodeStore interface {
	GetCodeByCode(ctx context.Context, code string) (*model.InviteCode, error)
	GetCodeByID(ctx context.Context, id uuid.UUID) (*model.InviteCode, error)
	CreateCode(ctx context.Context, invite *model.InviteCode) error
	RedeemCode(ctx context.Context, code, userID string) (*model.InviteCode, *model.CodeRedemption, error)
	SetCodeStatus(ctx context.Context, id uuid.UUID, status model.CodeStatus) (*model.InviteCode, error)
	SetCodesStatus(ctx context.Context, ids []uuid.UUID, status model.CodeStatus) ([]model.InviteCode, error)
	ListCodes(ctx context.Context, limit, offset int) ([]model.InviteCode, error)
	ListRedemptions(ctx context.Context, codeID uuid.UUID) ([]model.CodeRedemption, error)
	SweepStatuses(ctx context.Context) (int64, error)
}
