package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/hirosato/dues-ledger/internal/domain/account"
	"github.com/hirosato/dues-ledger/internal/domain/errors"
)

// PostgreSQL error codes the repositories translate
const (
	uniqueViolation = pq.ErrorCode("23505")
	checkViolation  = pq.ErrorCode("23514")
)

// AccountRepository implements account.Repository on the accounts table
type AccountRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAccountRepository(conn *Connection, logger *slog.Logger) *AccountRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountRepository{db: conn.db, logger: logger}
}

const selectAccount = `SELECT account_id, name, due_balance, version, created_at, updated_at FROM accounts`

func (r *AccountRepository) CreateAccount(ctx context.Context, acct *account.Account) (*account.Account, error) {
	out := *acct
	out.CreatedAt = dbTime(acct.CreatedAt)
	out.UpdatedAt = dbTime(acct.UpdatedAt)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (account_id, name, due_balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		out.AccountID, out.Name, out.DueBalance, out.Version, out.CreatedAt, out.UpdatedAt,
	)
	if err != nil {
		return nil, classify(err, "failed to create account", "account already exists")
	}
	return &out, nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	acct, err := scanAccount(r.db.QueryRowContext(ctx, selectAccount+` WHERE account_id = $1`, accountID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("account not found")
	}
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to get account", err)
	}
	return acct, nil
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
	var balance decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT due_balance FROM accounts WHERE account_id = $1`, accountID).Scan(&balance)
	if stderrors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, errors.NewNotFoundError("account not found")
	}
	if err != nil {
		return decimal.Zero, errors.NewStorageUnavailableError("failed to get balance", err)
	}
	return balance, nil
}

// SetBalance is a compare-and-set on the version column. RETURNING gives
// back the new row in the same round trip.
func (r *AccountRepository) SetBalance(ctx context.Context, accountID string, balance decimal.Decimal, expectedVersion int64) (*account.Account, error) {
	acct, err := scanAccount(r.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET due_balance = $1, version = version + 1, updated_at = $2
		WHERE account_id = $3 AND version = $4
		RETURNING account_id, name, due_balance, version, created_at, updated_at`,
		balance, dbTime(time.Now()), accountID, expectedVersion,
	))
	if stderrors.Is(err, sql.ErrNoRows) {
		if _, err := r.GetAccount(ctx, accountID); err != nil {
			return nil, err
		}
		r.logger.WarnContext(ctx, "balance write rejected", "accountId", accountID, "expectedVersion", expectedVersion)
		return nil, errors.NewConflictError("account version mismatch")
	}
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to update account balance", err)
	}
	return acct, nil
}

func scanAccount(row *sql.Row) (*account.Account, error) {
	var acct account.Account
	if err := row.Scan(&acct.AccountID, &acct.Name, &acct.DueBalance, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		return nil, err
	}
	acct.CreatedAt = acct.CreatedAt.UTC()
	acct.UpdatedAt = acct.UpdatedAt.UTC()
	return &acct, nil
}

// classify maps driver errors on writes to AppErrors
func classify(err error, message, conflictMessage string) error {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return errors.NewConflictError(conflictMessage)
		case checkViolation:
			return errors.NewInvalidInputError("rejected by database constraint", err)
		}
	}
	return errors.NewStorageUnavailableError(message, err)
}
