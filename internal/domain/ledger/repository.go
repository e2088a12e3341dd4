package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the append-only entry collection
type Store interface {
	// ListEntries returns every entry of the account, in no particular order
	ListEntries(ctx context.Context, accountID string) ([]Entry, error)

	// AppendEntry persists a new entry and assigns its EntryID and CreatedAt
	AppendEntry(ctx context.Context, req *AppendEntryRequest) (*Entry, error)
}

// BalanceReader reads the stored scalar balance of an account
type BalanceReader interface {
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// EventPublisher announces appended entries to other systems
type EventPublisher interface {
	PublishEntryRecorded(ctx context.Context, event EntryRecorded) error
}
