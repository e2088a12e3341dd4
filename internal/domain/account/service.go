package account

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hirosato/dues-ledger/internal/domain/errors"
	"github.com/hirosato/dues-ledger/internal/domain/ledger"
	"github.com/hirosato/dues-ledger/pkg/validator"
)

// Ledger is the part of the ledger service the balance-edit flow writes through
type Ledger interface {
	Reconcile(ctx context.Context, accountID string, previous, requested decimal.Decimal, actor ledger.Actor) (*ledger.Entry, error)
	AddManualEntry(ctx context.Context, req *ledger.AppendEntryRequest) (*ledger.Entry, error)
}

// Service provides account-related business logic.
// Every balance change goes through here so the ledger and the stored
// balance move together.
type Service struct {
	repo      Repository
	ledger    Ledger
	locks     *ledger.AccountLocks
	validator validator.Validator
	logger    *slog.Logger
}

// NewService creates a new account service
func NewService(repo Repository, l Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		ledger:    l,
		locks:     ledger.NewAccountLocks(),
		validator: validator.New(),
		logger:    logger,
	}
}

// CreateAccount creates the record with a zero balance, then applies the
// requested opening balance as an initial charge.
func (s *Service) CreateAccount(ctx context.Context, req *CreateAccountRequest, actor ledger.Actor) (*BalanceUpdateResult, error) {
	if req == nil {
		return nil, errors.NewValidationError("request is required")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	acct := &Account{
		AccountID:  strings.TrimSpace(req.AccountID),
		Name:       strings.TrimSpace(req.Name),
		DueBalance: decimal.Zero,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if acct.AccountID == "" {
		acct.AccountID = uuid.New().String()
	}

	unlock := s.locks.Lock(acct.AccountID)
	defer unlock()

	created, err := s.repo.CreateAccount(ctx, acct)
	if err != nil {
		return nil, err
	}

	actor.Initial = true
	return s.applyBalance(ctx, created, req.DueBalance, actor)
}

// GetAccount retrieves an account by ID
func (s *Service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	if accountID == "" {
		return nil, errors.NewValidationError("accountId is required")
	}
	return s.repo.GetAccount(ctx, accountID)
}

// ListAccountIDs returns every account id in ascending order
func (s *Service) ListAccountIDs(ctx context.Context) ([]string, error) {
	ids, err := s.repo.ListAccountIDs(ctx)
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

// UpdateDueBalance sets the balance directly and records the entry that explains the change
func (s *Service) UpdateDueBalance(ctx context.Context, accountID string, req *UpdateDueBalanceRequest, actor ledger.Actor) (*BalanceUpdateResult, error) {
	if accountID == "" {
		return nil, errors.NewValidationError("accountId is required")
	}
	if req == nil {
		return nil, errors.NewValidationError("request is required")
	}
	if req.DueBalance == nil {
		return nil, errors.NewValidationError("dueBalance is required").
			WithDetail("fields", map[string]interface{}{"dueBalance": "dueBalance is required"})
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	acct, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != acct.Version {
		return nil, errors.NewConflictError("account was modified by another request").
			WithDetail("currentVersion", acct.Version)
	}

	actor.Initial = false
	return s.applyBalance(ctx, acct, *req.DueBalance, actor)
}

// RecordTransaction appends an explicit charge or payment and moves the
// stored balance by the same amount.
func (s *Service) RecordTransaction(ctx context.Context, accountID string, req *RecordTransactionRequest, actor ledger.Actor) (*BalanceUpdateResult, error) {
	if accountID == "" {
		return nil, errors.NewValidationError("accountId is required")
	}
	if req == nil {
		return nil, errors.NewValidationError("request is required")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	acct, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	entry, err := s.ledger.AddManualEntry(ctx, &ledger.AppendEntryRequest{
		AccountID:   accountID,
		AccountName: acct.Name,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		RecordedBy:  actor.RecordedBy(),
		OccurredAt:  req.OccurredAt,
	})
	if err != nil {
		return nil, err
	}

	return s.commitBalance(ctx, acct, acct.DueBalance.Add(entry.Signed()), entry)
}

// applyBalance reconciles acct from its stored balance to requested.
// The caller holds the account lock.
func (s *Service) applyBalance(ctx context.Context, acct *Account, requested decimal.Decimal, actor ledger.Actor) (*BalanceUpdateResult, error) {
	actor.AccountName = acct.Name
	entry, err := s.ledger.Reconcile(ctx, acct.AccountID, acct.DueBalance, requested, actor)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return &BalanceUpdateResult{Account: acct}, nil
	}
	return s.commitBalance(ctx, acct, requested, entry)
}

func (s *Service) commitBalance(ctx context.Context, acct *Account, balance decimal.Decimal, entry *ledger.Entry) (*BalanceUpdateResult, error) {
	updated, err := s.repo.SetBalance(ctx, acct.AccountID, balance, acct.Version)
	if err != nil {
		s.logger.ErrorContext(ctx, "balance write failed after ledger append",
			"accountId", acct.AccountID,
			"entryId", entry.EntryID,
			"balance", balance.String(),
			"error", err,
		)
		return nil, errors.NewPartialReconciliationError(
			"ledger entry recorded but account balance was not updated", entry.EntryID, err)
	}

	return &BalanceUpdateResult{Account: updated, Entry: entry}, nil
}
