package sqlite

import (
	"context"
	"database/sql"
)

// Amounts are stored as decimal text so no precision is lost to REAL.
// Timestamps are RFC 3339 text in UTC.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    account_id  TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    due_balance TEXT NOT NULL,
    version     INTEGER NOT NULL,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    entry_id     TEXT PRIMARY KEY,
    account_id   TEXT NOT NULL,
    account_name TEXT NOT NULL DEFAULT '',
    entry_type   TEXT NOT NULL CHECK (entry_type IN ('charge', 'payment')),
    amount       TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    recorded_by  TEXT NOT NULL DEFAULT '',
    occurred_at  TEXT NOT NULL,
    created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries(account_id);
`

func initializeSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
