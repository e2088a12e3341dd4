package account

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the account record operations the ledger depends on
type Repository interface {
	// Create a new account. Fails with a conflict if the id is taken.
	CreateAccount(ctx context.Context, account *Account) (*Account, error)

	// Get an account by ID
	GetAccount(ctx context.Context, accountID string) (*Account, error)

	// List the ids of every account
	ListAccountIDs(ctx context.Context) ([]string, error)

	// Get the stored due balance
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)

	// Set the due balance if the stored version still equals expectedVersion.
	// The version is incremented on success; a mismatch is a conflict.
	SetBalance(ctx context.Context, accountID string, balance decimal.Decimal, expectedVersion int64) (*Account, error)
}
