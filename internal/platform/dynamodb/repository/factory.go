package repository

import (
	"log/slog"

	"github.com/hirosato/dues-ledger/internal/domain/account"
	"github.com/hirosato/dues-ledger/internal/domain/ledger"
	"github.com/hirosato/dues-ledger/internal/platform/dynamodb/client"
)

// Factory creates repository instances
type Factory struct {
	client    client.Client
	tableName string
	logger    *slog.Logger
}

// NewFactory creates a new repository factory
func NewFactory(client client.Client, tableName string, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// LedgerStore returns an implementation of the ledger.Store interface
func (f *Factory) LedgerStore() ledger.Store {
	return NewDynamoDBLedgerRepository(f.client, f.tableName, f.logger)
}

// AccountRepository returns an implementation of the account.Repository interface
func (f *Factory) AccountRepository() account.Repository {
	return NewDynamoDBAccountRepository(f.client, f.tableName, f.logger)
}
