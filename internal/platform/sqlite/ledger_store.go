package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	ulid "github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/hirosato/dues-ledger/internal/domain/errors"
	"github.com/hirosato/dues-ledger/internal/domain/ledger"
)

// LedgerStore implements ledger.Store on the ledger_entries table
type LedgerStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLedgerStore creates a store on an open connection
func NewLedgerStore(conn *Connection, logger *slog.Logger) *LedgerStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerStore{db: conn.db, logger: logger}
}

// AppendEntry inserts a new entry with a fresh ULID
func (s *LedgerStore) AppendEntry(ctx context.Context, req *ledger.AppendEntryRequest) (*ledger.Entry, error) {
	now := time.Now().UTC()
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries
			(entry_id, account_id, account_name, entry_type, amount, description, recorded_by, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.AccountID, e.AccountName, string(e.Type), e.Amount.String(),
		e.Description, e.RecordedBy, formatTime(e.OccurredAt), formatTime(e.CreatedAt),
	)
	if err != nil {
		if isConstraint(err) {
			return nil, errors.NewConflictError("ledger entry already exists")
		}
		return nil, errors.NewStorageUnavailableError("failed to append ledger entry", err)
	}
	return &e, nil
}

// ListEntries returns the account's entries in insertion order
func (s *LedgerStore) ListEntries(ctx context.Context, accountID string) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, account_id, account_name, entry_type, amount, description, recorded_by, occurred_at, created_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY rowid`, accountID)
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to query ledger entries", err)
	}
	defer rows.Close()

	entries := make([]ledger.Entry, 0)
	for rows.Next() {
		var (
			e                     ledger.Entry
			entryType, amount     string
			occurredAt, createdAt string
		)
		if err := rows.Scan(&e.EntryID, &e.AccountID, &e.AccountName, &entryType, &amount,
			&e.Description, &e.RecordedBy, &occurredAt, &createdAt); err != nil {
			return nil, errors.NewStorageUnavailableError("failed to read ledger entry", err)
		}

		e.Type = ledger.EntryType(entryType)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, errors.NewInternalError("corrupt ledger entry", fmt.Errorf("entry %s: %w", e.EntryID, err))
		}
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, errors.NewInternalError("corrupt ledger entry", fmt.Errorf("entry %s: %w", e.EntryID, err))
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, errors.NewInternalError("corrupt ledger entry", fmt.Errorf("entry %s: %w", e.EntryID, err))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageUnavailableError("failed to iterate ledger entries", err)
	}
	return entries, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
