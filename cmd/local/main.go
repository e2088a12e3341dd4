package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hirosato/dues-ledger/internal/api/server"
	"github.com/hirosato/dues-ledger/internal/app"
	envconfig "github.com/hirosato/dues-ledger/internal/common/config"
)

// Runs the API on a plain HTTP server. Settings come from the environment,
// optionally seeded from a .env file in the working directory.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	config, err := envconfig.LoadFromEnv(envconfig.BackendSQLite)
	if err != nil {
		log.Fatalf("Failed to load Env config: %v", err)
	}

	logger := app.NewLogger(config)
	zlog, err := app.NewZapLogger(config)
	if err != nil {
		log.Fatalf("Failed to create zap logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	srv := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           server.NewRouter(application.APIHandler(zlog), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", config.HTTPAddr, "backend", config.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
