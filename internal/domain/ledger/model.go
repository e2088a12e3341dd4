package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType is the direction of a ledger entry
type EntryType string

const (
	// Charge increases the amount owed
	Charge EntryType = "charge"
	// Payment decreases the amount owed
	Payment EntryType = "payment"
)

// Valid reports whether t is a known entry type
func (t EntryType) Valid() bool {
	return t == Charge || t == Payment
}

// Entry is an immutable charge or payment against one account.
// Amount is always positive; the direction is carried by Type.
type Entry struct {
	EntryID     string          `json:"entryId"`
	AccountID   string          `json:"accountId"`
	AccountName string          `json:"accountName,omitempty"`
	Type        EntryType       `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	RecordedBy  string          `json:"recordedBy,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Signed returns the amount as it applies to the balance
func (e Entry) Signed() decimal.Decimal {
	if e.Type == Payment {
		return e.Amount.Neg()
	}
	return e.Amount
}

// AppendEntryRequest is an entry without the store-assigned EntryID and CreatedAt.
// A zero OccurredAt means "now".
type AppendEntryRequest struct {
	AccountID   string          `json:"accountId" validate:"required"`
	AccountName string          `json:"accountName,omitempty"`
	Type        EntryType       `json:"type" validate:"required,oneof=charge payment"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description string          `json:"description,omitempty" validate:"max=500"`
	RecordedBy  string          `json:"recordedBy,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt,omitempty"`
}

// Actor carries display metadata about who triggered a write
type Actor struct {
	AccountName string
	UserID      string
	UserEmail   string
	// Initial marks the balance set when the account is first created
	Initial bool
}

// RecordedBy is the identity stored on entries written for this actor
func (a Actor) RecordedBy() string {
	if a.UserEmail != "" {
		return a.UserEmail
	}
	return a.UserID
}

// ProjectedEntry is an entry annotated with the balance right after it
type ProjectedEntry struct {
	Entry
	RunningBalance decimal.Decimal `json:"runningBalance"`
}

// Projection is the chronological fold of an account's entries
type Projection struct {
	Entries       []ProjectedEntry `json:"entries"`
	FinalBalance  decimal.Decimal  `json:"finalBalance"`
	TotalCharges  decimal.Decimal  `json:"totalCharges"`
	TotalPayments decimal.Decimal  `json:"totalPayments"`
}

// History is the display form of a projection, newest entry first
type History struct {
	AccountID     string           `json:"accountId"`
	Entries       []ProjectedEntry `json:"entries"`
	Balance       decimal.Decimal  `json:"balance"`
	TotalCharges  decimal.Decimal  `json:"totalCharges"`
	TotalPayments decimal.Decimal  `json:"totalPayments"`
	EntryCount    int              `json:"entryCount"`
}

// ConsistencyReport compares the stored balance against the ledger
type ConsistencyReport struct {
	AccountID      string          `json:"accountId"`
	Consistent     bool            `json:"consistent"`
	StoredBalance  decimal.Decimal `json:"storedBalance"`
	DerivedBalance decimal.Decimal `json:"derivedBalance"`
	Drift          decimal.Decimal `json:"drift"`
	EntryCount     int             `json:"entryCount"`
	CheckedAt      time.Time       `json:"checkedAt"`
}

// EntryRecorded is published after an entry has been appended
type EntryRecorded struct {
	EventType string    `json:"eventType"`
	Entry     Entry     `json:"entry"`
	Source    string    `json:"source"` // reconcile or manual
	At        time.Time `json:"at"`
}

const (
	SourceReconcile = "reconcile"
	SourceManual    = "manual"

	EventTypeEntryRecorded = "ledger.entry_recorded"
)
