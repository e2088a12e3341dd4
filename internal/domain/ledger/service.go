package ledger

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/hirosato/dues-ledger/internal/domain/errors"
	"github.com/hirosato/dues-ledger/pkg/validator"
)

// Service is the reconciliation engine and consistency checker over a Store
type Service struct {
	store     Store
	balances  BalanceReader
	publisher EventPublisher
	validator validator.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithPublisher sets the publisher notified after every append
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock overrides the clock used for report timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new ledger service
func NewService(store Store, balances BalanceReader, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:     store,
		balances:  balances,
		validator: validator.New(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListEntries returns the account's entries in storage order
func (s *Service) ListEntries(ctx context.Context, accountID string) ([]Entry, error) {
	if accountID == "" {
		return nil, errors.NewValidationError("accountId is required")
	}
	entries, err := s.store.ListEntries(ctx, accountID)
	if err != nil {
		return nil, storageError("failed to list ledger entries", err)
	}
	return entries, nil
}

// AppendEntry validates and persists an entry. It does not touch the stored balance.
func (s *Service) AppendEntry(ctx context.Context, req *AppendEntryRequest) (*Entry, error) {
	if req == nil {
		return nil, errors.NewValidationError("entry is required")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	// gt=0 compares a float rendering; this is the exact check.
	if !req.Amount.IsPositive() {
		return nil, errors.NewValidationError("amount must be greater than 0")
	}

	entry, err := s.store.AppendEntry(ctx, req)
	if err != nil {
		return nil, storageError("failed to append ledger entry", err)
	}

	s.logger.InfoContext(ctx, "ledger entry appended",
		"accountId", entry.AccountID,
		"entryId", entry.EntryID,
		"type", entry.Type,
		"amount", entry.Amount.String(),
	)
	return entry, nil
}

// AddManualEntry records an explicit charge or payment stated by the caller.
// The caller is responsible for moving the stored balance by entry.Signed().
func (s *Service) AddManualEntry(ctx context.Context, req *AppendEntryRequest) (*Entry, error) {
	entry, err := s.AppendEntry(ctx, req)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, *entry, SourceManual)
	return entry, nil
}

// Reconcile appends the entry explaining a balance edit from previous to
// requested. An unchanged balance appends nothing and returns a nil entry.
func (s *Service) Reconcile(ctx context.Context, accountID string, previous, requested decimal.Decimal, actor Actor) (*Entry, error) {
	if accountID == "" {
		return nil, errors.NewValidationError("accountId is required")
	}

	delta := requested.Sub(previous)
	if delta.IsZero() {
		return nil, nil
	}

	req := &AppendEntryRequest{
		AccountID:   accountID,
		AccountName: actor.AccountName,
		Amount:      delta.Abs(),
		Description: describeEdit(previous, requested, actor.Initial),
		RecordedBy:  actor.RecordedBy(),
	}
	if delta.IsPositive() {
		req.Type = Charge
	} else {
		req.Type = Payment
	}

	entry, err := s.AppendEntry(ctx, req)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, *entry, SourceReconcile)
	return entry, nil
}

// History projects the account's entries for display, newest first
func (s *Service) History(ctx context.Context, accountID string) (*History, error) {
	entries, err := s.ListEntries(ctx, accountID)
	if err != nil {
		return nil, err
	}
	p := Project(entries)
	return &History{
		AccountID:     accountID,
		Entries:       p.NewestFirst(),
		Balance:       p.FinalBalance,
		TotalCharges:  p.TotalCharges,
		TotalPayments: p.TotalPayments,
		EntryCount:    len(p.Entries),
	}, nil
}

// Verify recomputes the balance from the ledger and compares it with the
// stored one. Drift is reported, never corrected.
func (s *Service) Verify(ctx context.Context, accountID string) (*ConsistencyReport, error) {
	if s.balances == nil {
		return nil, errors.NewInternalError("balance reader not configured", nil)
	}

	entries, err := s.ListEntries(ctx, accountID)
	if err != nil {
		return nil, err
	}

	stored, err := s.balances.GetBalance(ctx, accountID)
	if err != nil {
		return nil, storageError("failed to read stored balance", err)
	}

	p := Project(entries)
	drift := stored.Sub(p.FinalBalance)
	report := &ConsistencyReport{
		AccountID:      accountID,
		Consistent:     drift.IsZero(),
		StoredBalance:  stored,
		DerivedBalance: p.FinalBalance,
		Drift:          drift,
		EntryCount:     len(entries),
		CheckedAt:      s.now(),
	}

	if !report.Consistent {
		s.logger.WarnContext(ctx, "ledger drift detected",
			"accountId", accountID,
			"stored", stored.String(),
			"derived", p.FinalBalance.String(),
			"drift", drift.String(),
		)
	}
	return report, nil
}

func (s *Service) publish(ctx context.Context, entry Entry, source string) {
	if s.publisher == nil {
		return
	}
	event := EntryRecorded{
		EventType: EventTypeEntryRecorded,
		Entry:     entry,
		Source:    source,
		At:        s.now(),
	}
	// The entry is already committed, so a failed publish is only logged.
	if err := s.publisher.PublishEntryRecorded(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish ledger event",
			"accountId", entry.AccountID,
			"entryId", entry.EntryID,
			"error", err,
		)
	}
}

func describeEdit(previous, requested decimal.Decimal, initial bool) string {
	if initial {
		return fmt.Sprintf("Initial due balance of %s set when record was created", formatAmount(requested))
	}
	if requested.GreaterThan(previous) {
		return fmt.Sprintf("Due balance increased from %s to %s", formatAmount(previous), formatAmount(requested))
	}
	return fmt.Sprintf("Due balance decreased from %s to %s", formatAmount(previous), formatAmount(requested))
}

func formatAmount(d decimal.Decimal) string {
	return humanize.Commaf(d.InexactFloat64())
}

// storageError keeps AppErrors from the store as they are and treats
// anything else as the backend being unavailable.
func storageError(message string, err error) error {
	var appErr errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return errors.NewStorageUnavailableError(message, err)
}
