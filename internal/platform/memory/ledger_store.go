// Package memory holds in-process implementations of the storage ports.
// Data lives only as long as the process.
package memory

import (
	"context"
	"sync"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"github.com/hirosato/dues-ledger/internal/domain/ledger"
)

// LedgerStore implements ledger.Store
type LedgerStore struct {
	mu      sync.RWMutex
	entries map[string][]ledger.Entry
	now     func() time.Time
}

// NewLedgerStore creates an empty store
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		entries: make(map[string][]ledger.Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListEntries returns a copy of the account's entries in append order
func (s *LedgerStore) ListEntries(ctx context.Context, accountID string) ([]ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ledger.Entry, len(s.entries[accountID]))
	copy(out, s.entries[accountID])
	return out, nil
}

// AppendEntry stores the entry with a new ULID and creation time
func (s *LedgerStore) AppendEntry(ctx context.Context, req *ledger.AppendEntryRequest) (*ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	e := ledger.Entry{
		EntryID:     ulid.Make().String(),
		AccountID:   req.AccountID,
		AccountName: req.AccountName,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		RecordedBy:  req.RecordedBy,
		OccurredAt:  req.OccurredAt.UTC(),
		CreatedAt:   now,
	}
	if req.OccurredAt.IsZero() {
		e.OccurredAt = now
	}

	s.mu.Lock()
	s.entries[req.AccountID] = append(s.entries[req.AccountID], e)
	s.mu.Unlock()

	return &e, nil
}
