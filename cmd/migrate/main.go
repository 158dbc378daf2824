package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/config"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/logger"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/migration"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(config.LogConfig{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	schema := migration.Catalog()

	// plan needs no database
	if command == "plan" {
		for _, s := range migration.Plan(schema) {
			fmt.Printf("  %3d  %s\n", s.Version, s.Name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.GormLevel(logLevel), cfg.Log.SlowQueryThreshold))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m := migration.New(db, schema, log)

	switch command {
	case "up":
		applied, err := m.Up(ctx)
		if err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		version, _ := m.Version(ctx)
		log.Info("Migrations applied", zap.Int("count", applied), zap.Int("version", version))

	case "version":
		version, err := m.Version(ctx)
		if err != nil {
			log.Fatal("Failed to get version", zap.Error(err))
		}
		fmt.Printf("Current version: %d\n", version)

	case "status":
		version, err := m.Version(ctx)
		if err != nil {
			log.Fatal("Failed to get version", zap.Error(err))
		}
		pending, err := m.Pending(ctx)
		if err != nil {
			log.Fatal("Failed to list pending migrations", zap.Error(err))
		}
		fmt.Printf("Driver:          %s\n", db.Dialect())
		fmt.Printf("Current version: %d\n", version)
		fmt.Printf("Pending:         %d\n", len(pending))
		for _, s := range pending {
			fmt.Printf("  %3d  %s\n", s.Version, s.Name)
		}

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: migrate [options] <command>

Commands:
  up        Apply all pending migrations
  version   Show the current schema version
  status    Show the current version and pending migrations
  plan      List every migration step (no database needed)

Options:
  -log-level string   Log level: debug, info, warn, error (default "info")

Configuration is read like brewd: config.toml, .env and BREW_ environment
variables (for example BREW_DATABASE_PATH=/var/lib/brewery/brewery.db).`)
}
