package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoraa/rewards-engine/internal/model"
	"github.com/yoraa/rewards-engine/internal/service"
	"github.com/yoraa/rewards-engine/internal/store/memory"
)

func newRedemption(t *testing.T) (*service.RedemptionService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return service.NewRedemptionService(store), store
}

func welcomeSpec(code string, maxRedemptions int) service.CodeSpec {
	return service.CodeSpec{
		Code:           code,
		Description:    "welcome discount",
		DiscountType:   model.DiscountTypePercentage,
		DiscountValue:  10,
		MaxRedemptions: maxRedemptions,
		IsVisible:      true,
	}
}

func TestRedemption_Welcome10Scenario(t *testing.T) {
	svc, _ := newRedemption(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, welcomeSpec("welcome10", 1))
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", created.Code, "codes are stored case-normalized")
	assert.Equal(t, model.CodeStatusActive, created.Status)

	// User A redeems
	result, err := svc.Redeem(ctx, "Welcome10", "user-a")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", result.Code)
	assert.Equal(t, model.DiscountTypePercentage, result.DiscountType)
	assert.EqualValues(t, 10, result.DiscountValue)

	// User B hits the cap
	_, err = svc.Redeem(ctx, "WELCOME10", "user-b")
	assert.ErrorIs(t, err, model.ErrRedemptionCapReached)

	// User A cannot redeem twice
	_, err = svc.Redeem(ctx, "WELCOME10", "user-a")
	assert.ErrorIs(t, err, model.ErrAlreadyRedeemed)

	code, err := svc.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, code, 1)
	assert.Equal(t, 1, code[0].RedemptionCount)
	assert.Equal(t, model.CodeStatusInactive, code[0].Status, "cap reached flips status")
}

func TestRedemption_UnknownCode(t *testing.T) {
	svc, _ := newRedemption(t)
	ctx := context.Background()

	_, err := svc.Validate(ctx, "NOPE")
	assert.ErrorIs(t, err, model.ErrCodeNotFound)

	_, err = svc.Redeem(ctx, "NOPE", "user-a")
	assert.ErrorIs(t, err, model.ErrCodeNotFound)

	_, err = svc.Validate(ctx, "  ")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRedemption_ExpiredCode(t *testing.T) {
	svc, _ := newRedemption(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	spec := welcomeSpec("OLDCODE", 10)
	spec.ExpiryDate = &past

	_, err := svc.Create(ctx, spec)
	require.NoError(t, err)

	// Stored status still reads active, but the effective status rules
	result, err := svc.Validate(ctx, "OLDCODE")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "expired", result.Reason)

	_, err = svc.Redeem(ctx, "OLDCODE", "user-a")
	assert.ErrorIs(t, err, model.ErrCodeExpired)
}

func TestRedemption_Validate(t *testing.T) {
	svc, _ := newRedemption(t)
	ctx := context.Background()

	spec := welcomeSpec("SAVE20", 2)
	spec.DiscountType = model.DiscountTypeFixed
	spec.DiscountValue = 20
	spec.MinOrderValue = 100
	spec.Terms = "min order 100"
	_, err := svc.Create(ctx, spec)
	require.NoError(t, err)

	result, err := svc.Validate(ctx, "save20")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, model.DiscountTypeFixed, result.DiscountType)
	assert.EqualValues(t, 20, result.DiscountValue)
	assert.EqualValues(t, 100, result.MinOrderValue)
	assert.Equal(t, "min order 100", result.Terms)

	// Validation never mutates
	_, err = svc.Validate(ctx, "SAVE20")
	require.NoError(t, err)
	codes, err := svc.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, codes[0].RedemptionCount)
}

func TestRedemption_CapEnforcementUnderConcurrency(t *testing.T) {
	svc, _ := newRedemption(t)
	ctx := context.Background()

	const maxUses = 5
	_, err := svc.Create(ctx, welcomeSpec("RACE", maxUses))
	require.NoError(t, err)

	// 2N distinct users race for N slots
	errs := make(chan error, 2*maxUses)
	var wg sync.WaitGroup
	for i := 0; i < 2*maxUses; i++ {
		wg.Add(1)
		go func(user int) {
			defer wg.Done()
			_, err := svc.Redeem(ctx, "RACE", fmt.Sprintf("user-%d", user))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var successes, capped int
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, model.ErrRedemptionCapReached)
		capped++
	}
	assert.Equal(t, maxUses, successes)
	assert.Equal(t, maxUses, capped)

	codes, err := svc.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, maxUses, codes[0].RedemptionCount)

	redemptions, err := svc.Redemptions(ctx, codes[0].ID)
	require.NoError(t, err)
	assert.Len(t, redemptions, maxUses, "redemption count must equal the member list length")

	seen := make(map[string]bool)
	for _, r := range redemptions {
		assert.False(t, seen[r.UserID], "no user may appear twice")
		seen[r.UserID] = true
	}
}

func TestRedemption_NoPartialStateOnFailure(t *testing.T) {
	svc, _ := newRedemption(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, welcomeSpec("ONCE", 3))
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, "ONCE", "user-a")
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, "ONCE", "user-a")
	require.ErrorIs(t, err, model.ErrAlreadyRedeemed)

	codes, err := svc.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, codes[0].RedemptionCount, "failed redemption must not bump the count")

	redemptions, err := svc.Redemptions(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, redemptions, 1)
}

func TestRedemption_CreateValidation(t *testing.T) {
	svc, _ := newRedemption(t)
	ctx := context.Background()

	tests := []struct {
		name string
		spec service.CodeSpec
	}{
		{"too short", welcomeSpec("AB", 1)},
		{"too long", welcomeSpec(strings.Repeat("X", 21), 1)},
		{"zero max redemptions", welcomeSpec("GOODCODE", 0)},
		{"bad discount type", service.CodeSpec{Code: "GOODCODE", DiscountType: "points", DiscountValue: 5, MaxRedemptions: 1}},
		{"percentage over 100", service.CodeSpec{Code: "GOODCODE", DiscountType: model.DiscountTypePercentage, DiscountValue: 120, MaxRedemptions: 1}},
		{"zero discount", service.CodeSpec{Code: "GOODCODE", DiscountType: model.DiscountTypeFixed, DiscountValue: 0, MaxRedemptions: 1}},
		{"negative min order", service.CodeSpec{Code: "GOODCODE", DiscountType: model.DiscountTypeFixed, DiscountValue: 5, MaxRedemptions: 1, MinOrderValue: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.spec)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestRedemption_DuplicateCode(t *testing.T) {
	svc, _ := newRedemption(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, welcomeSpec("WELCOME10", 1))
	require.NoError(t, err)

	// Uniqueness is case-insensitive
	_, err = svc.Create(ctx, welcomeSpec("welcome10", 1))
	assert.ErrorIs(t, err, model.ErrDuplicateCode)
}

func TestRedemption_ToggleStatus(t *testing.T) {
	svc, _ := newRedemption(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, welcomeSpec("TOGGLE", 5))
	require.NoError(t, err)

	invite, err := svc.ToggleStatus(ctx, created.ID, model.CodeStatusInactive)
	require.NoError(t, err)
	assert.Equal(t, model.CodeStatusInactive, invite.Status)
	assert.Equal(t, 0, invite.RedemptionCount, "toggling must not touch redemption state")

	_, err = svc.Redeem(ctx, "TOGGLE", "user-a")
	assert.ErrorIs(t, err, model.ErrCodeInactive)

	invite, err = svc.ToggleStatus(ctx, created.ID, model.CodeStatusActive)
	require.NoError(t, err)
	assert.Equal(t, model.CodeStatusActive, invite.Status)

	_, err = svc.Redeem(ctx, "TOGGLE", "user-a")
	require.NoError(t, err)

	// Expiring is the sweep's job, not a toggle target
	_, err = svc.ToggleStatus(ctx, created.ID, model.CodeStatusExpired)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRedemption_BulkToggleStatus(t *testing.T) {
	svc, _ := newRedemption(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, welcomeSpec("BULK1", 5))
	require.NoError(t, err)
	second, err := svc.Create(ctx, welcomeSpec("BULK2", 5))
	require.NoError(t, err)

	invites, err := svc.BulkToggleStatus(ctx, []uuid.UUID{first.ID, second.ID}, model.CodeStatusInactive)
	require.NoError(t, err)
	require.Len(t, invites, 2)
	for _, invite := range invites {
		assert.Equal(t, model.CodeStatusInactive, invite.Status)
	}

	_, err = svc.BulkToggleStatus(ctx, nil, model.CodeStatusActive)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRedemption_CreateBatch(t *testing.T) {
	svc, _ := newRedemption(t)
	ctx := context.Background()

	invites, err := svc.CreateBatch(ctx, "PROMO-", 5, welcomeSpec("", 1))
	require.NoError(t, err)
	require.Len(t, invites, 5)

	seen := make(map[string]bool)
	for _, invite := range invites {
		assert.True(t, strings.HasPrefix(invite.Code, "PROMO-"))
		assert.False(t, seen[invite.Code])
		seen[invite.Code] = true

		result, err := svc.Validate(ctx, invite.Code)
		require.NoError(t, err)
		assert.True(t, result.Valid)
	}

	_, err = svc.CreateBatch(ctx, "PROMO-", 0, welcomeSpec("", 1))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRedemption_ExpireSweep(t *testing.T) {
	svc, _ := newRedemption(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	expiredSpec := welcomeSpec("EXPIRES", 5)
	expiredSpec.ExpiryDate = &past
	created, err := svc.Create(ctx, expiredSpec)
	require.NoError(t, err)
	assert.Equal(t, model.CodeStatusActive, created.Status, "stored status lags until swept")

	_, err = svc.Create(ctx, welcomeSpec("FRESH", 5))
	require.NoError(t, err)

	n, err := svc.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	codes, err := svc.List(ctx, 10, 0)
	require.NoError(t, err)
	for _, code := range codes {
		switch code.Code {
		case "EXPIRES":
			assert.Equal(t, model.CodeStatusExpired, code.Status)
		case "FRESH":
			assert.Equal(t, model.CodeStatusActive, code.Status)
		}
	}

	// Sweep is idempotent
	n, err = svc.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
