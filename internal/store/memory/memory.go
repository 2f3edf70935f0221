// Package memory provides an in-memory store implementing the same atomic
// semantics as the Postgres repository. Used for tests and local
// development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yoraa/rewards-engine/internal/model"
)

type Store struct {
	mu           sync.Mutex
	accounts     map[string]*model.PointsAccount
	transactions map[string][]model.Transaction
	codes        map[uuid.UUID]*model.InviteCode
	codesByCode  map[string]uuid.UUID
	redemptions  map[uuid.UUID][]model.CodeRedemption
}

func New() *Store {
	return &Store{
		accounts:     make(map[string]*model.PointsAccount),
		transactions: make(map[string][]model.Transaction),
		codes:        make(map[uuid.UUID]*model.InviteCode),
		codesByCode:  make(map[string]uuid.UUID),
		redemptions:  make(map[uuid.UUID][]model.CodeRedemption),
	}
}

func (s *Store) Ping(_ context.Context) error { return nil }

// ---------------------------------------------------------------------------
// AccountStore
// ---------------------------------------------------------------------------

func (s *Store) GetOrCreateAccount(_ context.Context, userID string) (*model.PointsAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyAccount(s.ensureAccount(userID)), nil
}

// ensureAccount returns the live account for userID, creating an empty one
// if needed. Callers must hold the lock.
func (s *Store) ensureAccount(userID string) *model.PointsAccount {
	account, ok := s.accounts[userID]
	if !ok {
		now := time.Now()
		account = &model.PointsAccount{
			UserID:    userID,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.accounts[userID] = account
	}
	return account
}

func (s *Store) GetAccount(_ context.Context, userID string) (*model.PointsAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[userID]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

// CreditAccount lazily materializes an account on first credit; only a
// deactivated account refuses it.
func (s *Store) CreditAccount(_ context.Context, userID string, amount int64, description string, basis model.TransactionBasis) (*model.PointsAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account := s.ensureAccount(userID)
	if !account.IsActive {
		return nil, model.ErrAccountInactive
	}

	account.TotalAllocated += amount
	account.Balance = account.TotalAllocated - account.TotalRedeemed
	account.UpdatedAt = time.Now()
	s.appendTransaction(userID, model.TransactionTypeCredit, amount, description, basis)
	return copyAccount(account), nil
}

// DebitAccount treats a user with no account row as having nothing to
// spend: the answer is insufficient balance, not a not-found.
func (s *Store) DebitAccount(_ context.Context, userID string, amount int64, description string, basis model.TransactionBasis) (*model.PointsAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[userID]
	if !ok {
		return nil, model.ErrInsufficientBalance
	}
	if !account.IsActive {
		return nil, model.ErrAccountInactive
	}
	if account.TotalAllocated-account.TotalRedeemed < amount {
		return nil, model.ErrInsufficientBalance
	}

	account.TotalRedeemed += amount
	account.Balance = account.TotalAllocated - account.TotalRedeemed
	account.UpdatedAt = time.Now()
	s.appendTransaction(userID, model.TransactionTypeDebit, amount, description, basis)
	return copyAccount(account), nil
}

func (s *Store) SetAccountTotals(_ context.Context, userID string, totalAllocated, totalRedeemed int64, reason string) (*model.PointsAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.mutableAccount(userID)
	if err != nil {
		return nil, err
	}

	if delta := totalAllocated - account.TotalAllocated; delta != 0 {
		txType := model.TransactionTypeCredit
		if delta < 0 {
			txType = model.TransactionTypeDebit
			delta = -delta
		}
		s.appendTransaction(userID, txType, delta, reason, model.BasisAdminAllocation)
	}
	if delta := totalRedeemed - account.TotalRedeemed; delta != 0 {
		txType := model.TransactionTypeDebit
		if delta < 0 {
			txType = model.TransactionTypeCredit
			delta = -delta
		}
		s.appendTransaction(userID, txType, delta, reason, model.BasisAdminAllocation)
	}

	account.TotalAllocated = totalAllocated
	account.TotalRedeemed = totalRedeemed
	account.Balance = totalAllocated - totalRedeemed
	account.UpdatedAt = time.Now()
	return copyAccount(account), nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, limit, offset int) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.transactions[userID]
	// Newest first; the log is stored in insertion order.
	result := make([]model.Transaction, 0, limit)
	for i := len(all) - 1 - offset; i >= 0 && len(result) < limit; i-- {
		result = append(result, all[i])
	}
	return result, nil
}

func (s *Store) DeactivateAccount(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[userID]
	if !ok {
		return model.ErrAccountNotFound
	}
	account.IsActive = false
	account.UpdatedAt = time.Now()
	return nil
}

func (s *Store) mutableAccount(userID string) (*model.PointsAccount, error) {
	account, ok := s.accounts[userID]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	if !account.IsActive {
		return nil, model.ErrAccountInactive
	}
	return account, nil
}

func (s *Store) appendTransaction(userID string, txType model.TransactionType, amount int64, description string, basis model.TransactionBasis) {
	s.transactions[userID] = append(s.transactions[userID], model.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		Basis:       basis,
		CreatedAt:   time.Now(),
	})
}

// ---------------------------------------------------------------------------
// CodeStore
// ---------------------------------------------------------------------------

func (s *Store) GetCodeByCode(_ context.Context, code string) (*model.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.codesByCode[code]
	if !ok {
		return nil, model.ErrCodeNotFound
	}
	return copyCode(s.codes[id]), nil
}

func (s *Store) GetCodeByID(_ context.Context, id uuid.UUID) (*model.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.codes[id]
	if !ok {
		return nil, model.ErrCodeNotFound
	}
	return copyCode(invite), nil
}

func (s *Store) CreateCode(_ context.Context, invite *model.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.codesByCode[invite.Code]; exists {
		return model.ErrDuplicateCode
	}

	now := time.Now()
	invite.ID = uuid.New()
	invite.CreatedAt = now
	invite.UpdatedAt = now

	s.codes[invite.ID] = copyCode(invite)
	s.codesByCode[invite.Code] = invite.ID
	return nil
}

// RedeemCode mirrors the repository's atomic conditional update: all checks
// and both writes happen under one lock, and the error precedence matches.
func (s *Store) RedeemCode(_ context.Context, code, userID string) (*model.InviteCode, *model.CodeRedemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.codesByCode[code]
	if !ok {
		return nil, nil, model.ErrCodeNotFound
	}
	invite := s.codes[id]
	now := time.Now()

	switch {
	case s.hasRedeemed(id, userID):
		return nil, nil, model.ErrAlreadyRedeemed
	case invite.EffectiveStatus(now) == model.CodeStatusExpired:
		return nil, nil, model.ErrCodeExpired
	case invite.CapReached():
		return nil, nil, model.ErrRedemptionCapReached
	case invite.Status != model.CodeStatusActive:
		return nil, nil, model.ErrCodeInactive
	}

	invite.RedemptionCount++
	if invite.CapReached() {
		invite.Status = model.CodeStatusInactive
	}
	invite.UpdatedAt = now

	redemption := model.CodeRedemption{
		ID:         uuid.New(),
		CodeID:     id,
		UserID:     userID,
		RedeemedAt: now,
	}
	s.redemptions[id] = append(s.redemptions[id], redemption)

	return copyCode(invite), &redemption, nil
}

func (s *Store) SetCodeStatus(_ context.Context, id uuid.UUID, status model.CodeStatus) (*model.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.codes[id]
	if !ok {
		return nil, model.ErrCodeNotFound
	}
	invite.Status = status
	invite.UpdatedAt = time.Now()
	return copyCode(invite), nil
}

func (s *Store) SetCodesStatus(_ context.Context, ids []uuid.UUID, status model.CodeStatus) ([]model.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invites := make([]model.InviteCode, 0, len(ids))
	for _, id := range ids {
		invite, ok := s.codes[id]
		if !ok {
			continue
		}
		invite.Status = status
		invite.UpdatedAt = time.Now()
		invites = append(invites, *copyCode(invite))
	}
	return invites, nil
}

func (s *Store) ListCodes(_ context.Context, limit, offset int) ([]model.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.InviteCode, 0, len(s.codes))
	for _, invite := range s.codes {
		all = append(all, *copyCode(invite))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) ListRedemptions(_ context.Context, codeID uuid.UUID) ([]model.CodeRedemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]model.CodeRedemption, len(s.redemptions[codeID]))
	copy(result, s.redemptions[codeID])
	return result, nil
}

func (s *Store) SweepStatuses(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var total int64
	for _, invite := range s.codes {
		if invite.Status != model.CodeStatusExpired && invite.Expired(now) {
			invite.Status = model.CodeStatusExpired
			invite.UpdatedAt = now
			total++
			continue
		}
		if invite.Status == model.CodeStatusActive && invite.CapReached() {
			invite.Status = model.CodeStatusInactive
			invite.UpdatedAt = now
			total++
		}
	}
	return total, nil
}

func (s *Store) hasRedeemed(codeID uuid.UUID, userID string) bool {
	for _, r := range s.redemptions[codeID] {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

func copyAccount(a *model.PointsAccount) *model.PointsAccount {
	c := *a
	return &c
}

func copyCode(i *model.InviteCode) *model.InviteCode {
	c := *i
	if i.ExpiryDate != nil {
		expiry := *i.ExpiryDate
		c.ExpiryDate = &expiry
	}
	return &c
}
