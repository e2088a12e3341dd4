package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"github.com/hirosato/dues-ledger/internal/app"
	envconfig "github.com/hirosato/dues-ledger/internal/common/config"
)

// Example: STORE_BACKEND=dynamodb DYNAMODB_TABLE_NAME=dues-ledger-dev go run . verify
func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commander.Register(&verifyCmd{}, "")
	commander.Register(&historyCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// openApp wires the services from the environment, seeded from .env when present.
// Operator runs never publish events, and logs go to stderr so stdout stays parseable.
func openApp(ctx context.Context) (*app.App, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config, err := envconfig.LoadFromEnv(envconfig.BackendSQLite)
	if err != nil {
		return nil, err
	}
	config.KafkaBrokers = nil

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: config.LogLevel}))
	return app.New(ctx, config, logger)
}
