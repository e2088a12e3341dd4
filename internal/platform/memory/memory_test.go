package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/dues-ledger/internal/domain/account"
	"github.com/hirosato/dues-ledger/internal/domain/errors"
	"github.com/hirosato/dues-ledger/internal/domain/ledger"
)

func TestLedgerStore(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	first, err := store.AppendEntry(ctx, &ledger.AppendEntryRequest{AccountID: "a", Type: ledger.Charge, Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	backdated := fixed.Add(-48 * time.Hour)
	_, err = store.AppendEntry(ctx, &ledger.AppendEntryRequest{AccountID: "a", Type: ledger.Payment, Amount: decimal.NewFromInt(4), OccurredAt: backdated})
	require.NoError(t, err)

	assert.NotEmpty(t, first.EntryID)
	assert.Equal(t, fixed, first.OccurredAt)
	assert.Equal(t, fixed, first.CreatedAt)

	entries, err := store.ListEntries(ctx, "a")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, backdated, entries[1].OccurredAt)

	// callers get a copy
	entries[0].Description = "changed"
	again, err := store.ListEntries(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, again[0].Description)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.ListEntries(cancelled, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAccountRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository()

	for _, id := range []string{"b", "a"} {
		_, err := repo.CreateAccount(ctx, &account.Account{AccountID: id, Name: id, Version: 1})
		require.NoError(t, err)
	}
	_, err := repo.CreateAccount(ctx, &account.Account{AccountID: "a"})
	assert.True(t, errors.HasCode(err, errors.CodeConflict))

	ids, err := repo.ListAccountIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	updated, err := repo.SetBalance(ctx, "a", decimal.NewFromInt(25), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	_, err = repo.SetBalance(ctx, "a", decimal.NewFromInt(30), 1)
	assert.True(t, errors.HasCode(err, errors.CodeConflict))

	_, err = repo.SetBalance(ctx, "zzz", decimal.NewFromInt(30), 1)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	balance, err := repo.GetBalance(ctx, "a")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(25)))
}
