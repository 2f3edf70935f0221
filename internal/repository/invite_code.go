package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/yoraa/rewards-engine/internal/model"
)

const pgUniqueViolation = "23505"

// GetCodeByCode retrieves a code by its normalized value.
func (r *Repository) GetCodeByCode(ctx context.Context, code string) (*model.InviteCode, error) {
	var invite model.InviteCode
	err := r.db.GetContext(ctx, &invite, "SELECT * FROM invite_codes WHERE code = $1", code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrCodeNotFound
		}
		return nil, err
	}
	return &invite, nil
}

func (r *Repository) GetCodeByID(ctx context.Context, id uuid.UUID) (*model.InviteCode, error) {
	var invite model.InviteCode
	err := r.db.GetContext(ctx, &invite, "SELECT * FROM invite_codes WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrCodeNotFound
		}
		return nil, err
	}
	return &invite, nil
}

// CreateCode inserts a new code. Uniqueness rides on the code column's
// unique index; a violation surfaces as ErrDuplicateCode.
func (r *Repository) CreateCode(ctx context.Context, invite *model.InviteCode) error {
	err := r.db.GetContext(ctx, invite, `
		INSERT INTO invite_codes
			(code, description, discount_type, discount_value, max_redemptions, status, expiry_date, min_order_value, terms, is_visible)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *`,
		invite.Code, invite.Description, invite.DiscountType, invite.DiscountValue,
		invite.MaxRedemptions, invite.Status, invite.ExpiryDate, invite.MinOrderValue,
		invite.Terms, invite.IsVisible)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return model.ErrDuplicateCode
		}
		return fmt.Errorf("failed to create invite code: %w", err)
	}
	return nil
}

// RedeemCode performs the whole redemption as one atomic conditional update:
// every precondition (active, unexpired, under cap, first use by this user)
// lives in the UPDATE's WHERE clause, and the membership row is written in
// the same database transaction. Two racing redemptions serialize on the
// code row; the UNIQUE(code_id, user_id) constraint backstops the
// one-per-user rule even against a racing classification read.
func (r *Repository) RedeemCode(ctx context.Context, code, userID string) (*model.InviteCode, *model.CodeRedemption, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var invite model.InviteCode
	err = tx.GetContext(ctx, &invite, `
		UPDATE invite_codes
		SET redemption_count = redemption_count + 1,
		    status = CASE WHEN redemption_count + 1 >= max_redemptions THEN 'inactive' ELSE status END,
		    updated_at = NOW()
		WHERE code = $1
		  AND status = 'active'
		  AND (expiry_date IS NULL OR expiry_date > NOW())
		  AND redemption_count < max_redemptions
		  AND NOT EXISTS (
		        SELECT 1 FROM code_redemptions cr
		        WHERE cr.code_id = invite_codes.id AND cr.user_id = $2)
		RETURNING *`, code, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, r.classifyCode(ctx, tx, code, userID)
		}
		return nil, nil, fmt.Errorf("failed to redeem code: %w", err)
	}

	var redemption model.CodeRedemption
	err = tx.GetContext(ctx, &redemption, `
		INSERT INTO code_redemptions (code_id, user_id)
		VALUES ($1, $2)
		RETURNING *`, invite.ID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, nil, model.ErrAlreadyRedeemed
		}
		return nil, nil, fmt.Errorf("failed to record redemption: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &invite, &redemption, nil
}

// classifyCode explains why the guarded redeem update matched no row. The
// answer drives the error kind only; correctness never depends on it.
func (r *Repository) classifyCode(ctx context.Context, tx *sqlx.Tx, code, userID string) error {
	var invite model.InviteCode
	err := tx.GetContext(ctx, &invite, "SELECT * FROM invite_codes WHERE code = $1", code)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrCodeNotFound
	}
	if err != nil {
		return err
	}

	var redeemed bool
	err = tx.GetContext(ctx, &redeemed, `
		SELECT EXISTS (
			SELECT 1 FROM code_redemptions WHERE code_id = $1 AND user_id = $2)`,
		invite.ID, userID)
	if err != nil {
		return err
	}

	switch {
	case redeemed:
		return model.ErrAlreadyRedeemed
	case invite.EffectiveStatus(time.Now()) == model.CodeStatusExpired:
		return model.ErrCodeExpired
	case invite.CapReached():
		return model.ErrRedemptionCapReached
	default:
		return model.ErrCodeInactive
	}
}

// SetCodeStatus flips a code between active and inactive without touching
// its redemption state.
func (r *Repository) SetCodeStatus(ctx context.Context, id uuid.UUID, status model.CodeStatus) (*model.InviteCode, error) {
	var invite model.InviteCode
	err := r.db.GetContext(ctx, &invite, `
		UPDATE invite_codes SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING *`, id, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrCodeNotFound
		}
		return nil, err
	}
	return &invite, nil
}

func (r *Repository) SetCodesStatus(ctx context.Context, ids []uuid.UUID, status model.CodeStatus) ([]model.InviteCode, error) {
	query, args, err := sqlx.In(`
		UPDATE invite_codes SET status = ?, updated_at = NOW()
		WHERE id IN (?)
		RETURNING *`, status, ids)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var invites []model.InviteCode
	if err := r.db.SelectContext(ctx, &invites, query, args...); err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *Repository) ListCodes(ctx context.Context, limit, offset int) ([]model.InviteCode, error) {
	var invites []model.InviteCode
	err := r.db.SelectContext(ctx, &invites, `
		SELECT * FROM invite_codes
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	return invites, err
}

func (r *Repository) ListRedemptions(ctx context.Context, codeID uuid.UUID) ([]model.CodeRedemption, error) {
	var redemptions []model.CodeRedemption
	err := r.db.SelectContext(ctx, &redemptions, `
		SELECT * FROM code_redemptions
		WHERE code_id = $1
		ORDER BY redeemed_at`, codeID)
	return redemptions, err
}

// SweepStatuses reconciles stored statuses with the time/count-derived
// truth: past-expiry codes read as expired, capped codes as inactive.
func (r *Repository) SweepStatuses(ctx context.Context) (int64, error) {
	var total int64

	res, err := r.db.ExecContext(ctx, `
		UPDATE invite_codes SET status = 'expired', updated_at = NOW()
		WHERE status <> 'expired' AND expiry_date IS NOT NULL AND expiry_date <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to expire codes: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = r.db.ExecContext(ctx, `
		UPDATE invite_codes SET status = 'inactive', updated_at = NOW()
		WHERE status = 'active' AND redemption_count >= max_redemptions`)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate capped codes: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	return total, nil
}
