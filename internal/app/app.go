// Package app builds the brewery daemon from configuration: the local
// store, the remote ledger, the sync engine and runner, the business
// services and the admin HTTP server. Everything is created once here and
// passed down explicitly.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	dutyapp "github.com/tonka1973/BreweryManager-sub001/internal/application/duty"
	inventoryapp "github.com/tonka1973/BreweryManager-sub001/internal/application/inventory"
	salesapp "github.com/tonka1973/BreweryManager-sub001/internal/application/sales"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/duty"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/inventory"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/config"
	ledgers "github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/ledgersync"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/logger"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/migration"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/persistence"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/strategy"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/telemetry"
	"github.com/tonka1973/BreweryManager-sub001/internal/interfaces/http/handler"
	"github.com/tonka1973/BreweryManager-sub001/internal/interfaces/http/middleware"
	"github.com/tonka1973/BreweryManager-sub001/internal/interfaces/http/router"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// App holds every long-lived component of the daemon
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Tracer   *telemetry.TracerProvider
	DB       *persistence.Database
	Store    *persistence.RecordStore
	Remote   ledger.Adapter
	Registry *prometheus.Registry
	Engine   *ledgersync.Engine
	Runner   *ledgersync.Runner

	Inventory *inventoryapp.InventoryService
	Duty      *dutyapp.DutyService
	Sales     *salesapp.SalesService

	Server *http.Server
}

// New wires the daemon. The store is migrated before anything reads it.
// On error every component created so far is closed.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (a *App, err error) {
	a = &App{Config: cfg, Logger: log, Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
			a = nil
		}
	}()

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.Tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Name, log)
	if err != nil {
		return a, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	gormLog := logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), cfg.Log.SlowQueryThreshold)
	a.DB, err = persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return a, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Telemetry.Enabled {
		if err = telemetry.RegisterDBTracing(a.DB.DB, otel.GetTracerProvider(), log); err != nil {
			return a, fmt.Errorf("failed to enable database tracing: %w", err)
		}
	}
	log.Info("Database connected", zap.String("driver", a.DB.Dialect()))

	schema := migration.Catalog()
	applied, err := migration.New(a.DB, schema, log).Up(ctx)
	if err != nil {
		return a, fmt.Errorf("failed to migrate database: %w", err)
	}
	if applied > 0 {
		log.Info("Database migrated", zap.Int("steps", applied))
	}
	a.Store = persistence.NewRecordStore(a.DB, schema)

	a.Remote, err = ledgers.New(ctx, cfg.Remote, log)
	if err != nil {
		return a, fmt.Errorf("failed to create remote ledger: %w", err)
	}

	if err = a.buildServices(); err != nil {
		return a, err
	}

	a.Engine = ledgersync.NewEngine(a.Store, a.Remote, cfg.Sync, log,
		ledgersync.WithMetrics(ledgersync.NewMetrics(a.Registry)))
	a.Engine.AfterCycle(ReconcileAfterPull(a.Inventory, log))
	if cfg.Sync.Enabled {
		a.Runner = ledgersync.NewRunner(a.Engine, cfg.Sync.Interval, cfg.Sync.CycleTimeout, log)
	}

	if cfg.HTTP.Enabled {
		a.Server = &http.Server{
			Addr:         cfg.HTTP.Address,
			Handler:      a.Handler(),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		}
	}
	return a, nil
}

func (a *App) buildServices() error {
	registry, err := strategy.NewRegistryWithDefaults()
	if err != nil {
		return fmt.Errorf("failed to register allocation strategies: %w", err)
	}
	batches, err := registry.Lookup(a.Config.Inventory.Strategy)
	if err != nil {
		return fmt.Errorf("failed to resolve allocation strategy: %w", err)
	}
	a.Inventory = inventoryapp.NewInventoryService(a.Store, batches, a.Logger)
	a.Inventory.SetNotifier(inventoryapp.NewLogNotifier(a.Logger))

	rates, err := RatesFromConfig(a.Config.Duty)
	if err != nil {
		return err
	}
	a.Duty = dutyapp.NewDutyService(a.Store, rates, a.Logger)
	a.Sales = salesapp.NewSalesService(a.Store, a.Logger)
	return nil
}

// Handler builds the admin API
func (a *App) Handler() *gin.Engine {
	engine := router.NewEngine(router.EngineConfig{
		ServiceName: a.Config.App.Name,
		HTTP:        a.Config.HTTP,
		Logger:      a.Logger,
		Metrics:     middleware.NewHTTPMetrics(a.Registry),
	})
	router.NewRouter(engine, router.WithAPIVersion("v1"), router.WithMetricsEndpoint(a.Registry)).
		Register(handler.NewHealthHandler(a.DB, a.Engine)).
		Register(handler.NewSyncHandler(a.Engine, a.Config.Sync.CycleTimeout)).
		Register(handler.NewInventoryHandler(a.Inventory)).
		Register(handler.NewDutyHandler(a.Duty)).
		Register(handler.NewSalesHandler(a.Sales)).
		Setup()
	return engine
}

// Run starts the sync runner and the HTTP server and blocks until ctx is
// cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.Runner != nil {
		if err := a.Runner.Start(ctx); err != nil {
			return err
		}
	}
	if a.Server == nil {
		<-ctx.Done()
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("Admin API listening", zap.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and the runner, then releases the store and the
// remote ledger
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if a.Runner != nil {
		if err := a.Runner.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("sync runner: %w", err))
		}
	}
	if closer, ok := a.Remote.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("remote ledger: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if a.Tracer != nil {
		if err := a.Tracer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReconcileAfterPull returns a cycle hook that recomputes current stock
// whenever a cycle pulled inventory rows from the remote ledger
func ReconcileAfterPull(svc *inventoryapp.InventoryService, log *zap.Logger) ledgersync.CycleHook {
	return func(ctx context.Context, report *ledgersync.CycleReport) {
		pulled := report.Pulled(inventory.TableMaterials, inventory.TableBatches, inventory.TableConsumptions)
		if pulled == 0 {
			return
		}
		results, err := svc.ReconcileAll(ctx)
		if err != nil {
			logger.Enrich(ctx, log).Warn("Stock reconciliation after pull failed", zap.Error(err))
			return
		}
		adjusted := 0
		for _, r := range results {
			if r.Adjusted {
				adjusted++
			}
		}
		logger.Enrich(ctx, log).Info("Stock reconciled after pull",
			zap.Int("pulled", pulled), zap.Int("adjusted", adjusted))
	}
}

// RatesFromConfig builds the duty rate table from configured rates and
// relief bands, selecting the band for the producer's annual output
func RatesFromConfig(cfg config.DutyConfig) (duty.RateTable, error) {
	effective, err := time.Parse("2006-01-02", cfg.EffectiveFrom)
	if err != nil {
		return duty.RateTable{}, fmt.Errorf("invalid duty.effective_from: %w", err)
	}
	parse := func(key, value string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}

	rates := make(map[duty.Category]decimal.Decimal, len(duty.Categories))
	for _, f := range []struct {
		key      string
		value    string
		category duty.Category
	}{
		{"duty.rate_draught_low", cfg.RateDraughtLow, duty.DraughtLow},
		{"duty.rate_draught_standard", cfg.RateDraughtStandard, duty.DraughtStandard},
		{"duty.rate_non_draught", cfg.RateNonDraught, duty.NonDraught},
		{"duty.rate_high_abv", cfg.RateHighABV, duty.HighABV},
	} {
		d, err := parse(f.key, f.value)
		if err != nil {
			return duty.RateTable{}, err
		}
		rates[f.category] = d
	}

	bands := make([]duty.ReliefBand, 0, len(cfg.ReliefBands))
	for i, b := range cfg.ReliefBands {
		prefix := fmt.Sprintf("duty.relief_bands[%d].", i)
		upTo, err := parse(prefix+"up_to_hl", b.UpToHL)
		if err != nil {
			return duty.RateTable{}, err
		}
		band := duty.ReliefBand{UpToHectolitres: upTo, Relief: make(map[duty.Category]decimal.Decimal, 3)}
		for _, f := range []struct {
			key      string
			value    string
			category duty.Category
		}{
			{"draught_low", b.DraughtLow, duty.DraughtLow},
			{"draught_standard", b.DraughtStandard, duty.DraughtStandard},
			{"non_draught", b.NonDraught, duty.NonDraught},
		} {
			if f.value == "" {
				continue
			}
			d, err := parse(prefix+f.key, f.value)
			if err != nil {
				return duty.RateTable{}, err
			}
			band.Relief[f.category] = d
		}
		bands = append(bands, band)
	}

	annual := decimal.Zero
	if cfg.AnnualProductionHL != "" {
		d, err := parse("duty.annual_production_hl", cfg.AnnualProductionHL)
		if err != nil {
			return duty.RateTable{}, err
		}
		annual = d
	}
	return duty.NewRateTable(effective, rates, bands, annual)
}
