// Package app assembles the services and adapters selected by the configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hirosato/dues-ledger/internal/api/handlers"
	"github.com/hirosato/dues-ledger/internal/api/middleware"
	"github.com/hirosato/dues-ledger/internal/common/config"
	"github.com/hirosato/dues-ledger/internal/domain/account"
	"github.com/hirosato/dues-ledger/internal/domain/ledger"
	ddbclient "github.com/hirosato/dues-ledger/internal/platform/dynamodb/client"
	"github.com/hirosato/dues-ledger/internal/platform/dynamodb/repository"
	"github.com/hirosato/dues-ledger/internal/platform/kafka"
	"github.com/hirosato/dues-ledger/internal/platform/memory"
	"github.com/hirosato/dues-ledger/internal/platform/postgres"
	"github.com/hirosato/dues-ledger/internal/platform/sqlite"
)

// App holds the wired services
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Accounts *account.Service
	Ledger   *ledger.Service
	Handler  *handlers.LedgerHandler

	closers []func() error
}

// New builds the storage backend, the optional event publisher and the services on top
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	var (
		store ledger.Store
		repo  account.Repository
	)
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		dbClient, err := ddbclient.NewDynamoDBClient(ctx, cfg.AWSRegion, cfg.DynamoDBEndpoint, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create DynamoDB client: %w", err)
		}
		factory := repository.NewFactory(dbClient, cfg.DynamoDBTableName, logger)
		store = factory.LedgerStore()
		repo = factory.AccountRepository()
	case config.BackendSQLite:
		conn, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		a.closers = append(a.closers, conn.Close)
		logger.Info("sqlite database opened", "path", conn.Path())
		store = sqlite.NewLedgerStore(conn, logger)
		repo = sqlite.NewAccountRepository(conn, logger)
	case config.BackendPostgres:
		conn, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, conn.Close)
		store = postgres.NewLedgerStore(conn, logger)
		repo = postgres.NewAccountRepository(conn, logger)
	case config.BackendMemory:
		store = memory.NewLedgerStore()
		repo = memory.NewAccountRepository()
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}

	var opts []ledger.Option
	if cfg.EventsEnabled() {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, publisher.Close)
		opts = append(opts, ledger.WithPublisher(publisher))
	}

	a.Ledger = ledger.NewService(store, repo, logger, opts...)
	a.Accounts = account.NewService(repo, a.Ledger, logger)
	a.Handler = handlers.NewLedgerHandler(a.Accounts, a.Ledger)

	logger.Info("application wired",
		"backend", cfg.StoreBackend,
		"environment", cfg.Environment,
		"events", cfg.EventsEnabled())
	return a, nil
}

// APIHandler returns the request handler with the standard middleware chain
func (a *App) APIHandler(zlog *zap.Logger) middleware.APIGatewayHandler {
	return middleware.Chain(a.Handler.Route,
		middleware.NewLoggingMiddleware(!a.Config.IsProd()),
		middleware.NewRecoveryMiddleware(),
		middleware.NewActorMiddleware(zlog),
	)
}

// Close releases the database connection and the event writer
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// NewLogger creates the JSON slog logger used throughout the service
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

// NewZapLogger creates the zap logger used by the request middleware
func NewZapLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if !cfg.IsProd() {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(zapLevel(cfg.LogLevel))
	return zc.Build()
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level < slog.LevelInfo:
		return zapcore.DebugLevel
	case level < slog.LevelWarn:
		return zapcore.InfoLevel
	case level < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
