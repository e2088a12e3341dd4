package account

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hirosato/dues-ledger/internal/domain/ledger"
)

// Account is the record whose DueBalance is kept in step with its ledger.
// Positive DueBalance means the account owes money.
type Account struct {
	AccountID  string          `json:"accountId"`
	Name       string          `json:"name"`
	DueBalance decimal.Decimal `json:"dueBalance"`
	// Version is bumped by every balance write and guards against lost updates
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateAccountRequest represents the request to create a new account
type CreateAccountRequest struct {
	AccountID  string          `json:"accountId,omitempty" validate:"omitempty,max=128"`
	Name       string          `json:"name" validate:"required,max=200"`
	DueBalance decimal.Decimal `json:"dueBalance"`
}

// UpdateDueBalanceRequest sets the account's balance directly.
// DueBalance is a pointer so a missing or null value is rejected rather than read as zero.
// ExpectedVersion, when present, must match the stored version.
type UpdateDueBalanceRequest struct {
	DueBalance      *decimal.Decimal `json:"dueBalance"`
	ExpectedVersion *int64           `json:"expectedVersion,omitempty"`
}

// RecordTransactionRequest states a discrete charge or payment
type RecordTransactionRequest struct {
	Type        ledger.EntryType `json:"type" validate:"required,oneof=charge payment"`
	Amount      decimal.Decimal  `json:"amount" validate:"gt=0"`
	Description string           `json:"description,omitempty" validate:"max=500"`
	OccurredAt  time.Time        `json:"occurredAt,omitempty"`
}

// BalanceUpdateResult is the account after a write plus the entry that explains it.
// Entry is nil when the balance did not change.
type BalanceUpdateResult struct {
	Account *Account      `json:"account"`
	Entry   *ledger.Entry `json:"entry,omitempty"`
}
