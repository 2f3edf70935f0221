package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yoraa/rewards-engine/internal/model"
)

// GetOrCreateAccount returns the account for userID, creating an empty one
// if none exists. The upsert makes concurrent first calls converge on a
// single row.
func (r *Repository) GetOrCreateAccount(ctx context.Context, userID string) (*model.PointsAccount, error) {
	var account model.PointsAccount
	err := r.db.GetContext(ctx, &account, `
		INSERT INTO points_accounts (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING *`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create account: %w", err)
	}
	return &account, nil
}

func (r *Repository) GetAccount(ctx context.Context, userID string) (*model.PointsAccount, error) {
	var account model.PointsAccount
	err := r.db.GetContext(ctx, &account, "SELECT * FROM points_accounts WHERE user_id = $1", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CreditAccount atomically increments total_allocated and appends the audit
// record. The upsert lazily materializes an account for a user the ledger
// has not seen yet, and the increment runs inside the statement itself, so
// two concurrent credits can never observe the same starting total. Only a
// deactivated account refuses the credit.
func (r *Repository) CreditAccount(ctx context.Context, userID string, amount int64, description string, basis model.TransactionBasis) (*model.PointsAccount, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var account model.PointsAccount
	err = tx.GetContext(ctx, &account, `
		INSERT INTO points_accounts (user_id, total_allocated)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET total_allocated = points_accounts.total_allocated + EXCLUDED.total_allocated,
		    updated_at = NOW()
		WHERE points_accounts.is_active
		RETURNING *`, userID, amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if cErr := r.classifyAccount(ctx, tx, userID); cErr != nil {
				return nil, cErr
			}
			return nil, fmt.Errorf("credit of account %s conflicted with a concurrent update", userID)
		}
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}

	if err := insertTransaction(ctx, tx, userID, model.TransactionTypeCredit, amount, description, basis); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &account, nil
}

// DebitAccount atomically increments total_redeemed, guarded by the balance
// predicate in the UPDATE's WHERE clause. The check and the mutation are one
// statement; a stale in-memory balance can never cause an overdraft. A user
// with no account row has nothing to spend and gets the insufficient-balance
// answer, not a not-found.
func (r *Repository) DebitAccount(ctx context.Context, userID string, amount int64, description string, basis model.TransactionBasis) (*model.PointsAccount, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var account model.PointsAccount
	err = tx.GetContext(ctx, &account, `
		UPDATE points_accounts
		SET total_redeemed = total_redeemed + $2, updated_at = NOW()
		WHERE user_id = $1 AND is_active AND total_allocated - total_redeemed >= $2
		RETURNING *`, userID, amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			cErr := r.classifyAccount(ctx, tx, userID)
			if errors.Is(cErr, model.ErrAccountNotFound) {
				return nil, model.ErrInsufficientBalance
			}
			if cErr != nil {
				return nil, cErr
			}
			return nil, model.ErrInsufficientBalance
		}
		return nil, fmt.Errorf("failed to debit account: %w", err)
	}

	if err := insertTransaction(ctx, tx, userID, model.TransactionTypeDebit, amount, description, basis); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &account, nil
}

// SetAccountTotals overwrites both running totals (administrative
// correction). The row is locked for the duration so the deltas written to
// the audit trail always match the totals written.
func (r *Repository) SetAccountTotals(ctx context.Context, userID string, totalAllocated, totalRedeemed int64, reason string) (*model.PointsAccount, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current model.PointsAccount
	err = tx.GetContext(ctx, &current, "SELECT * FROM points_accounts WHERE user_id = $1 FOR UPDATE", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}
	if !current.IsActive {
		return nil, model.ErrAccountInactive
	}

	if delta := totalAllocated - current.TotalAllocated; delta != 0 {
		txType := model.TransactionTypeCredit
		if delta < 0 {
			txType = model.TransactionTypeDebit
			delta = -delta
		}
		if err := insertTransaction(ctx, tx, userID, txType, delta, reason, model.BasisAdminAllocation); err != nil {
			return nil, err
		}
	}
	if delta := totalRedeemed - current.TotalRedeemed; delta != 0 {
		txType := model.TransactionTypeDebit
		if delta < 0 {
			txType = model.TransactionTypeCredit
			delta = -delta
		}
		if err := insertTransaction(ctx, tx, userID, txType, delta, reason, model.BasisAdminAllocation); err != nil {
			return nil, err
		}
	}

	var account model.PointsAccount
	err = tx.GetContext(ctx, &account, `
		UPDATE points_accounts
		SET total_allocated = $2, total_redeemed = $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING *`, userID, totalAllocated, totalRedeemed)
	if err != nil {
		return nil, fmt.Errorf("failed to adjust account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListTransactions returns the audit trail for a user, newest first.
func (r *Repository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT * FROM points_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	return transactions, err
}

// DeactivateAccount soft-deletes an account. Transactions are kept.
func (r *Repository) DeactivateAccount(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE points_accounts SET is_active = false, updated_at = NOW()
		WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

// classifyAccount explains why a guarded account update matched no row.
func (r *Repository) classifyAccount(ctx context.Context, tx queryer, userID string) error {
	var isActive bool
	err := tx.GetContext(ctx, &isActive, "SELECT is_active FROM points_accounts WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	if !isActive {
		return model.ErrAccountInactive
	}
	return nil
}

func insertTransaction(ctx context.Context, tx execer, userID string, txType model.TransactionType, amount int64, description string, basis model.TransactionBasis) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO points_transactions (user_id, type, amount, description, basis)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, txType, amount, description, basis)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}
