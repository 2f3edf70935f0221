package model

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

type TransactionBasis string

const (
	BasisPurchase        TransactionBasis = "purchase"
	BasisReferral        TransactionBasis = "referral"
	BasisSignup          TransactionBasis = "signup"
	BasisReview          TransactionBasis = "review"
	BasisAdminAllocation TransactionBasis = "admin_allocation"
	BasisRedemption      TransactionBasis = "redemption"
)

// ValidBasis reports whether b is one of the known transaction bases.
func ValidBasis(b TransactionBasis) bool {
	switch b {
	case BasisPurchase, BasisReferral, BasisSignup, BasisReview, BasisAdminAllocation, BasisRedemption:
		return true
	}
	return false
}

// PointsAccount is a user's rewards ledger. Balance is derived from the
// two running totals and is maintained by the store, never set directly.
type PointsAccount struct {
	UserID         string    `json:"user_id" db:"user_id"`
	TotalAllocated int64     `json:"total_allocated" db:"total_allocated"`
	TotalRedeemed  int64     `json:"total_redeemed" db:"total_redeemed"`
	Balance        int64     `json:"balance" db:"balance"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`

	// Transactions is populated only on history/detail reads.
	Transactions []Transaction `json:"transactions,omitempty" db:"-"`
}

// Transaction is one append-only audit record. Rows are never edited or
// removed once written.
type Transaction struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	UserID      string           `json:"user_id" db:"user_id"`
	Type        TransactionType  `json:"type" db:"type"`
	Amount      int64            `json:"amount" db:"amount"` // always positive; Type carries the sign
	Description string           `json:"description" db:"description"`
	Basis       TransactionBasis `json:"basis" db:"basis"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}
