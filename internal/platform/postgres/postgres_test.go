package postgres

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/dues-ledger/internal/domain/account"
	"github.com/hirosato/dues-ledger/internal/domain/errors"
	"github.com/hirosato/dues-ledger/internal/domain/ledger"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"unique violation", &pq.Error{Code: "23505"}, errors.CodeConflict},
		{"check violation", &pq.Error{Code: "23514"}, errors.CodeInvalidInput},
		{"other driver error", &pq.Error{Code: "57P01"}, errors.CodeStorageUnavailable},
		{"connection error", stderrors.New("connection refused"), errors.CodeStorageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.HasCode(classify(tt.err, "write failed", "exists"), tt.code))
		})
	}
}

func TestNewEntryTruncatesToDatabasePrecision(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 123456789, time.FixedZone("JST", 9*3600))

	t.Run("defaults occurred at to created at", func(t *testing.T) {
		e := newEntry(&ledger.AppendEntryRequest{AccountID: "a", Type: ledger.Charge, Amount: decimal.NewFromInt(1)}, now)

		assert.Equal(t, time.UTC, e.CreatedAt.Location())
		assert.Equal(t, 123456000, e.CreatedAt.Nanosecond())
		assert.True(t, e.CreatedAt.Equal(now.Truncate(time.Microsecond)))
		assert.Equal(t, e.CreatedAt, e.OccurredAt)
		assert.NotEmpty(t, e.EntryID)
	})

	t.Run("keeps a backdated occurred at", func(t *testing.T) {
		occurred := time.Date(2020, 1, 1, 0, 0, 0, 999, time.UTC)

		e := newEntry(&ledger.AppendEntryRequest{AccountID: "a", Type: ledger.Payment, Amount: decimal.NewFromInt(1), OccurredAt: occurred}, now)

		assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), e.OccurredAt)
	})
}

// openTestDB connects to the database named by POSTGRES_TEST_DSN
func openTestDB(t *testing.T) *Connection {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	conn, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRepositories(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	store := NewLedgerStore(conn, slog.Default())
	repo := NewAccountRepository(conn, slog.Default())
	id := "pg-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := repo.CreateAccount(ctx, &account.Account{AccountID: id, Name: "Ahmed", DueBalance: decimal.Zero, Version: 1, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	_, err = repo.CreateAccount(ctx, &account.Account{AccountID: id, Name: "Ahmed", DueBalance: decimal.Zero, Version: 1, CreatedAt: now, UpdatedAt: now})
	assert.True(t, errors.HasCode(err, errors.CodeConflict))

	charge, err := store.AppendEntry(ctx, &ledger.AppendEntryRequest{AccountID: id, Type: ledger.Charge, Amount: decimal.RequireFromString("250.25")})
	require.NoError(t, err)
	_, err = store.AppendEntry(ctx, &ledger.AppendEntryRequest{AccountID: id, Type: ledger.Payment, Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	entries, err := store.ListEntries(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.Charge, entries[0].Type)
	assert.Equal(t, charge.CreatedAt, entries[0].CreatedAt)
	assert.Equal(t, charge.OccurredAt, entries[0].OccurredAt)
	assert.True(t, ledger.Project(entries).FinalBalance.Equal(decimal.RequireFromString("200.25")))

	updated, err := repo.SetBalance(ctx, id, decimal.RequireFromString("200.25"), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	_, err = repo.SetBalance(ctx, id, decimal.NewFromInt(1), 1)
	assert.True(t, errors.HasCode(err, errors.CodeConflict))

	_, err = repo.SetBalance(ctx, id+"-missing", decimal.NewFromInt(1), 1)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	balance, err := repo.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("200.25")))
}
