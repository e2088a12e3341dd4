package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hirosato/dues-ledger/internal/domain/account"
	"github.com/hirosato/dues-ledger/internal/domain/errors"
)

// AccountRepository implements account.Repository on the accounts table
type AccountRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAccountRepository creates a repository on an open connection
func NewAccountRepository(conn *Connection, logger *slog.Logger) *AccountRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountRepository{db: conn.db, logger: logger}
}

func (r *AccountRepository) CreateAccount(ctx context.Context, acct *account.Account) (*account.Account, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (account_id, name, due_balance, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		acct.AccountID, acct.Name, acct.DueBalance.String(), acct.Version,
		formatTime(acct.CreatedAt), formatTime(acct.UpdatedAt),
	)
	if err != nil {
		if isConstraint(err) {
			return nil, errors.NewConflictError("account already exists")
		}
		return nil, errors.NewStorageUnavailableError("failed to create account", err)
	}
	out := *acct
	return &out, nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	var (
		acct                 account.Account
		balance              string
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, name, due_balance, version, created_at, updated_at
		FROM accounts WHERE account_id = ?`, accountID).
		Scan(&acct.AccountID, &acct.Name, &balance, &acct.Version, &createdAt, &updatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("account not found")
	}
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to get account", err)
	}

	if acct.DueBalance, err = decimal.NewFromString(balance); err != nil {
		return nil, errors.NewInternalError("corrupt account record", fmt.Errorf("account %s: %w", accountID, err))
	}
	if acct.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, errors.NewInternalError("corrupt account record", err)
	}
	if acct.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, errors.NewInternalError("corrupt account record", err)
	}
	return &acct, nil
}

func (r *AccountRepository) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT account_id FROM accounts ORDER BY account_id`)
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to list accounts", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewStorageUnavailableError("failed to read account id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageUnavailableError("failed to iterate accounts", err)
	}
	return ids, nil
}

func (r *AccountRepository) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance string
	err := r.db.QueryRowContext(ctx, `SELECT due_balance FROM accounts WHERE account_id = ?`, accountID).Scan(&balance)
	if stderrors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, errors.NewNotFoundError("account not found")
	}
	if err != nil {
		return decimal.Zero, errors.NewStorageUnavailableError("failed to get balance", err)
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Zero, errors.NewInternalError("corrupt account record", err)
	}
	return d, nil
}

// SetBalance is a compare-and-set on the version column
func (r *AccountRepository) SetBalance(ctx context.Context, accountID string, balance decimal.Decimal, expectedVersion int64) (*account.Account, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET due_balance = ?, version = version + 1, updated_at = ?
		WHERE account_id = ? AND version = ?`,
		balance.String(), formatTime(time.Now()), accountID, expectedVersion,
	)
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to update account balance", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to update account balance", err)
	}
	if n == 0 {
		if _, err := r.GetAccount(ctx, accountID); err != nil {
			return nil, err
		}
		r.logger.WarnContext(ctx, "balance write rejected", "accountId", accountID, "expectedVersion", expectedVersion)
		return nil, errors.NewConflictError("account version mismatch")
	}

	return r.GetAccount(ctx, accountID)
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return stderrors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
