package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hirosato/dues-ledger/internal/domain/account"
	"github.com/hirosato/dues-ledger/internal/domain/errors"
)

// AccountRepository implements account.Repository
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]account.Account
}

// NewAccountRepository creates an empty repository
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]account.Account)}
}

func (r *AccountRepository) CreateAccount(ctx context.Context, acct *account.Account) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[acct.AccountID]; exists {
		return nil, errors.NewConflictError("account already exists")
	}
	r.accounts[acct.AccountID] = *acct
	out := *acct
	return &out, nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.accounts[accountID]
	if !ok {
		return nil, errors.NewNotFoundError("account not found")
	}
	return &acct, nil
}

func (r *AccountRepository) ListAccountIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *AccountRepository) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	acct, err := r.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.DueBalance, nil
}

func (r *AccountRepository) SetBalance(ctx context.Context, accountID string, balance decimal.Decimal, expectedVersion int64) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[accountID]
	if !ok {
		return nil, errors.NewNotFoundError("account not found")
	}
	if acct.Version != expectedVersion {
		return nil, errors.NewConflictError("account version mismatch")
	}

	acct.DueBalance = balance
	acct.Version++
	acct.UpdatedAt = time.Now().UTC()
	r.accounts[accountID] = acct

	out := acct
	return &out, nil
}
