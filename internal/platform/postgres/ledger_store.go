package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"github.com/hirosato/dues-ledger/internal/domain/errors"
	"github.com/hirosato/dues-ledger/internal/domain/ledger"
)

// LedgerStore implements ledger.Store on the ledger_entries table
type LedgerStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewLedgerStore(conn *Connection, logger *slog.Logger) *LedgerStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerStore{db: conn.db, logger: logger}
}

func (s *LedgerStore) AppendEntry(ctx context.Context, req *ledger.AppendEntryRequest) (*ledger.Entry, error) {
	e := newEntry(req, time.Now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries
			(entry_id, account_id, account_name, entry_type, amount, description, recorded_by, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.EntryID, e.AccountID, e.AccountName, string(e.Type), e.Amount,
		e.Description, e.RecordedBy, e.OccurredAt, e.CreatedAt,
	)
	if err != nil {
		return nil, classify(err, "failed to append ledger entry", "ledger entry already exists")
	}
	return &e, nil
}

func (s *LedgerStore) ListEntries(ctx context.Context, accountID string) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, account_id, account_name, entry_type, amount, description, recorded_by, occurred_at, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY seq`, accountID)
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to query ledger entries", err)
	}
	defer rows.Close()

	entries := make([]ledger.Entry, 0)
	for rows.Next() {
		var (
			e         ledger.Entry
			entryType string
		)
		if err := rows.Scan(&e.EntryID, &e.AccountID, &e.AccountName, &entryType, &e.Amount,
			&e.Description, &e.RecordedBy, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, errors.NewStorageUnavailableError("failed to read ledger entry", err)
		}
		e.Type = ledger.EntryType(entryType)
		e.OccurredAt = e.OccurredAt.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageUnavailableError("failed to iterate ledger entries", err)
	}
	return entries, nil
}

// newEntry builds the row for req. TIMESTAMPTZ keeps microseconds, so the
// times are truncated up front and the returned entry matches what is read back.
func newEntry(req *ledger.AppendEntryRequest, now time.Time) ledger.Entry {
	now = dbTime(now)
	e := ledger.Entry{
		EntryID:     ulid.Make().String(),
		AccountID:   req.AccountID,
		AccountName: req.AccountName,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		RecordedBy:  req.RecordedBy,
		OccurredAt:  dbTime(req.OccurredAt),
		CreatedAt:   now,
	}
	if req.OccurredAt.IsZero() {
		e.OccurredAt = now
	}
	return e
}

func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
