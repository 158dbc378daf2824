package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tonka1973/BreweryManager-sub001/internal/app"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/config"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/logger"
	"go.uber.org/zap"
)

//	@title			Brewery Back Office API
//	@version		1.0
//	@description	Admin API for the brewery back office: ledger sync, inventory allocation, duty returns and invoicing.

//	@host		127.0.0.1:8080
//	@BasePath	/api/v1

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting brewd",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("database", cfg.Database.Driver),
		zap.String("remote", cfg.Remote.Driver),
		zap.Bool("sync", cfg.Sync.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to start", zap.Error(err))
	}

	runErr := a.Run(ctx)
	if runErr != nil {
		log.Error("Server failed", zap.Error(runErr))
	}
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(shutdownCtx); err != nil {
		log.Error("Shutdown incomplete", zap.Error(err))
	}

	if runErr != nil {
		os.Exit(1)
	}
	log.Info("brewd exited gracefully")
}
