package model

import "errors"

// Ledger errors
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient points balance")
	ErrAccountNotFound     = errors.New("points account not found")
	ErrAccountInactive     = errors.New("points account is deactivated")
)

// Redemption errors
var (
	ErrCodeNotFound         = errors.New("invite code not found")
	ErrCodeInactive         = errors.New("invite code is inactive")
	ErrCodeExpired          = errors.New("invite code has expired")
	ErrRedemptionCapReached = errors.New("invite code redemption limit reached")
	ErrAlreadyRedeemed      = errors.New("invite code already redeemed by this user")
	ErrDuplicateCode        = errors.New("invite code already exists")
	ErrValidation           = errors.New("validation failed")
)
