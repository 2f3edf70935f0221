package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yoraa/rewards-engine/internal/model"
)

type RedemptionService struct {
	store CodeStore
}

func NewRedemptionService(store CodeStore) *RedemptionService {
	return &RedemptionService{store: store}
}

// CodeSpec describes a code to create.
type CodeSpec struct {
	Code           string             `json:"code"`
	Description    string             `json:"description"`
	DiscountType   model.DiscountType `json:"discount_type"`
	DiscountValue  float64            `json:"discount_value"`
	MaxRedemptions int                `json:"max_redemptions"`
	ExpiryDate     *time.Time         `json:"expiry_date,omitempty"`
	MinOrderValue  float64            `json:"min_order_value"`
	Terms          string             `json:"terms"`
	IsVisible      bool               `json:"is_visible"`
}

// ValidationResult is the answer to a pure validity check. Terms are
// returned so the caller can render them before redeeming.
type ValidationResult struct {
	Valid         bool               `json:"valid"`
	Reason        string             `json:"reason,omitempty"`
	DiscountType  model.DiscountType `json:"discount_type"`
	DiscountValue float64            `json:"discount_value"`
	MinOrderValue float64            `json:"min_order_value"`
	Terms         string             `json:"terms,omitempty"`
	ExpiryDate    *time.Time         `json:"expiry_date,omitempty"`
}

// RedemptionResult is returned on a successful code redemption.
type RedemptionResult struct {
	Code          string             `json:"code"`
	DiscountType  model.DiscountType `json:"discount_type"`
	DiscountValue float64            `json:"discount_value"`
	RedeemedAt    time.Time          `json:"redeemed_at"`
}

// Validate checks a code without mutating anything. Only an unknown code is
// an error; a known-but-unusable code comes back with Valid=false and a
// reason.
func (s *RedemptionService) Validate(ctx context.Context, code string) (*ValidationResult, error) {
	code = model.NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", model.ErrValidation)
	}

	invite, err := s.store.GetCodeByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		DiscountType:  invite.DiscountType,
		DiscountValue: invite.DiscountValue,
		MinOrderValue: invite.MinOrderValue,
		Terms:         invite.Terms,
		ExpiryDate:    invite.ExpiryDate,
	}

	now := time.Now()
	switch {
	case invite.EffectiveStatus(now) == model.CodeStatusExpired:
		result.Reason = "expired"
	case invite.CapReached():
		result.Reason = "redemption limit reached"
	case invite.EffectiveStatus(now) != model.CodeStatusActive:
		result.Reason = "inactive"
	default:
		result.Valid = true
	}
	return result, nil
}

// Redeem redeems a code for a user. The store performs the whole
// check-and-append as one atomic conditional update, so the cap and the
// one-per-user rule hold under any interleaving.
func (s *RedemptionService) Redeem(ctx context.Context, code, userID string) (*RedemptionResult, error) {
	code = model.NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", model.ErrValidation)
	}

	invite, redemption, err := s.store.RedeemCode(ctx, code, userID)
	if err != nil {
		return nil, err
	}

	return &RedemptionResult{
		Code:          invite.Code,
		DiscountType:  invite.DiscountType,
		DiscountValue: invite.DiscountValue,
		RedeemedAt:    redemption.RedeemedAt,
	}, nil
}

// Create validates and inserts a new code with status active.
func (s *RedemptionService) Create(ctx context.Context, spec CodeSpec) (*model.InviteCode, error) {
	invite, err := buildCode(spec)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateCode(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}

// CreateBatch generates count codes sharing a prefix and the given terms.
// Collisions with existing codes are retried with a fresh suffix.
func (s *RedemptionService) CreateBatch(ctx context.Context, prefix string, count int, spec CodeSpec) ([]model.InviteCode, error) {
	if count < 1 || count > 500 {
		return nil, fmt.Errorf("%w: batch size must be between 1 and 500", model.ErrValidation)
	}

	invites := make([]model.InviteCode, 0, count)
	for i := 0; i < count; i++ {
		var created *model.InviteCode
		var err error
		for attempt := 0; attempt < 5; attempt++ {
			suffix, randErr := randomCodeSuffix()
			if randErr != nil {
				return invites, randErr
			}
			spec.Code = prefix + suffix
			created, err = s.Create(ctx, spec)
			if !errors.Is(err, model.ErrDuplicateCode) {
				break
			}
		}
		if err != nil {
			return invites, err
		}
		invites = append(invites, *created)
	}
	return invites, nil
}

// ToggleStatus flips a code between active and inactive. Expiring a code is
// the sweep's job, not an admin toggle.
func (s *RedemptionService) ToggleStatus(ctx context.Context, id uuid.UUID, status model.CodeStatus) (*model.InviteCode, error) {
	if status != model.CodeStatusActive && status != model.CodeStatusInactive {
		return nil, fmt.Errorf("%w: status must be active or inactive", model.ErrValidation)
	}
	return s.store.SetCodeStatus(ctx, id, status)
}

func (s *RedemptionService) BulkToggleStatus(ctx context.Context, ids []uuid.UUID, status model.CodeStatus) ([]model.InviteCode, error) {
	if status != model.CodeStatusActive && status != model.CodeStatusInactive {
		return nil, fmt.Errorf("%w: status must be active or inactive", model.ErrValidation)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no code ids given", model.ErrValidation)
	}
	return s.store.SetCodesStatus(ctx, ids, status)
}

// ExpireSweep persists the status transitions for codes whose expiry has
// passed or whose cap has been reached. Returns the number of codes
// reconciled.
func (s *RedemptionService) ExpireSweep(ctx context.Context) (int64, error) {
	return s.store.SweepStatuses(ctx)
}

func (s *RedemptionService) List(ctx context.Context, limit, offset int) ([]model.InviteCode, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.store.ListCodes(ctx, limit, offset)
}

// Redemptions lists who redeemed a code, in redemption order.
func (s *RedemptionService) Redemptions(ctx context.Context, id uuid.UUID) ([]model.CodeRedemption, error) {
	if _, err := s.store.GetCodeByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListRedemptions(ctx, id)
}

func buildCode(spec CodeSpec) (*model.InviteCode, error) {
	code := model.NormalizeCode(spec.Code)
	if len(code) < model.CodeMinLength || len(code) > model.CodeMaxLength {
		return nil, fmt.Errorf("%w: code must be %d-%d characters", model.ErrValidation, model.CodeMinLength, model.CodeMaxLength)
	}
	if strings.ContainsAny(code, " \t\n") {
		return nil, fmt.Errorf("%w: code must not contain whitespace", model.ErrValidation)
	}

	switch spec.DiscountType {
	case model.DiscountTypePercentage:
		if spec.DiscountValue <= 0 || spec.DiscountValue > 100 {
			return nil, fmt.Errorf("%w: percentage discount must be between 0 and 100", model.ErrValidation)
		}
	case model.DiscountTypeFixed:
		if spec.DiscountValue <= 0 {
			return nil, fmt.Errorf("%w: fixed discount must be positive", model.ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: discount type must be percentage or fixed", model.ErrValidation)
	}

	if spec.MaxRedemptions < 1 {
		return nil, fmt.Errorf("%w: max redemptions must be positive", model.ErrValidation)
	}
	if spec.MinOrderValue < 0 {
		return nil, fmt.Errorf("%w: min order value must not be negative", model.ErrValidation)
	}

	return &model.InviteCode{
		Code:           code,
		Description:    spec.Description,
		DiscountType:   spec.DiscountType,
		DiscountValue:  spec.DiscountValue,
		MaxRedemptions: spec.MaxRedemptions,
		Status:         model.CodeStatusActive,
		ExpiryDate:     spec.ExpiryDate,
		MinOrderValue:  spec.MinOrderValue,
		Terms:          spec.Terms,
		IsVisible:      spec.IsVisible,
	}, nil
}

func randomCodeSuffix() (string, error) {
	bytes := make([]byte, 5)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	code := base32.StdEncoding.EncodeToString(bytes)
	return strings.TrimRight(code, "=")[:8], nil
}
