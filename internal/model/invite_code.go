package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

type CodeStatus string

const (
	CodeStatusActive   CodeStatus = "active"
	CodeStatusInactive CodeStatus = "inactive"
	CodeStatusExpired  CodeStatus = "expired"
)

const (
	CodeMinLength = 3
	CodeMaxLength = 20
)

// InviteCode is a shared, capacity-limited promotional code.
type InviteCode struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	Code            string       `json:"code" db:"code"`
	Description     string       `json:"description" db:"description"`
	DiscountType    DiscountType `json:"discount_type" db:"discount_type"`
	DiscountValue   float64      `json:"discount_value" db:"discount_value"`
	MaxRedemptions  int          `json:"max_redemptions" db:"max_redemptions"`
	RedemptionCount int          `json:"redemption_count" db:"redemption_count"`
	Status          CodeStatus   `json:"status" db:"status"`
	ExpiryDate      *time.Time   `json:"expiry_date,omitempty" db:"expiry_date"`
	MinOrderValue   float64      `json:"min_order_value" db:"min_order_value"`
	Terms           string       `json:"terms" db:"terms"`
	IsVisible       bool         `json:"is_visible" db:"is_visible"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// CodeRedemption records one user's redemption of a code. A user appears
// at most once per code.
type CodeRedemption struct {
	ID         uuid.UUID `json:"id" db:"id"`
	CodeID     uuid.UUID `json:"code_id" db:"code_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	RedeemedAt time.Time `json:"redeemed_at" db:"redeemed_at"`
}

// NormalizeCode upper-cases and trims a code value. All lookups and
// uniqueness checks run on the normalized form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Expired reports whether the code's expiry date has passed at t. The
// boundary is inclusive, matching the expiry_date <= NOW() comparison the
// SQL paths use.
func (c *InviteCode) Expired(t time.Time) bool {
	return c.ExpiryDate != nil && !t.Before(*c.ExpiryDate)
}

// CapReached reports whether the redemption cap has been reached.
func (c *InviteCode) CapReached() bool {
	return c.RedemptionCount >= c.MaxRedemptions
}

// EffectiveStatus recomputes the status from time and count. The stored
// status is a cached projection; readers must not trust it blindly.
func (c *InviteCode) EffectiveStatus(t time.Time) CodeStatus {
	if c.Status == CodeStatusExpired || c.Expired(t) {
		return CodeStatusExpired
	}
	if c.CapReached() {
		return CodeStatusInactive
	}
	return c.Status
}

// Redeemable reports whether the code can be redeemed at t.
func (c *InviteCode) Redeemable(t time.Time) bool {
	return c.EffectiveStatus(t) == CodeStatusActive && !c.CapReached()
}
