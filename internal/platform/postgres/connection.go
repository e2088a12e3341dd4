// Package postgres implements the storage ports on PostgreSQL for
// deployments that run the service outside Lambda.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Amounts are NUMERIC so they round-trip through decimal.Decimal exactly.
// seq keeps insertion order for entries appended within the same instant.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    account_id  TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    due_balance NUMERIC NOT NULL,
    version     BIGINT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    seq          BIGSERIAL,
    entry_id     TEXT PRIMARY KEY,
    account_id   TEXT NOT NULL,
    account_name TEXT NOT NULL DEFAULT '',
    entry_type   TEXT NOT NULL CHECK (entry_type IN ('charge', 'payment')),
    amount       NUMERIC NOT NULL CHECK (amount > 0),
    description  TEXT NOT NULL DEFAULT '',
    recorded_by  TEXT NOT NULL DEFAULT '',
    occurred_at  TIMESTAMPTZ NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries(account_id, seq);
`

// Connection manages a PostgreSQL connection pool.
type Connection struct {
	db *sql.DB
}

// Open connects with dsn and creates the tables when missing.
func Open(ctx context.Context, dsn string) (*Connection, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Connection{db: db}, nil
}

// Close closes the connection pool.
func (c *Connection) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
