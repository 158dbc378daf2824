package app

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	inventoryapp "github.com/tonka1973/BreweryManager-sub001/internal/application/inventory"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/duty"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/inventory"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/config"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/ledgersync"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/strategy/batch"
	"github.com/tonka1973/BreweryManager-sub001/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "brewd-test", Env: "test"},
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			Path:         filepath.Join(t.TempDir(), "brewery.db"),
			BusyTimeout:  5 * time.Second,
			MaxOpenConns: 4,
			MaxIdleConns: 2,
		},
		Log:    config.LogConfig{Level: "warn"},
		Sync:   config.SyncConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, MaxElapsed: time.Second},
		Remote: config.RemoteConfig{Driver: "memory"},
		Duty: config.DutyConfig{
			EffectiveFrom:       "2025-02-01",
			RateDraughtLow:      "8.42",
			RateDraughtStandard: "19.27",
			RateNonDraught:      "22.01",
			RateHighABV:         "29.54",
			AnnualProductionHL:  "0",
		},
		HTTP: config.HTTPConfig{MaxBodyBytes: 1 << 20},
	}
}

func TestRatesFromConfig(t *testing.T) {
	cfg := testConfig(t).Duty
	rates, err := RatesFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), rates.EffectiveFrom)
	for _, c := range duty.Categories {
		assert.True(t, duty.DefaultRates().Rate(c).Equal(rates.Rate(c)), "rate for %s", c)
	}

	bands := []config.ReliefBandConfig{
		{UpToHL: "2100", DraughtLow: "2", DraughtStandard: "9.27", NonDraught: "11"},
		{UpToHL: "4500", DraughtStandard: "4.27"},
	}

	t.Run("annual output selects the relief band", func(t *testing.T) {
		for _, tc := range []struct {
			annual   string
			standard string
			non      string
		}{
			{"500", "10", "11.01"},
			{"2100", "10", "11.01"},
			{"2100.5", "15", "22.01"},
			{"4500", "15", "22.01"},
			{"9000", "19.27", "22.01"},
		} {
			t.Run(tc.annual, func(t *testing.T) {
				cfg := cfg
				cfg.ReliefBands = bands
				cfg.AnnualProductionHL = tc.annual
				rates, err := RatesFromConfig(cfg)
				require.NoError(t, err)
				assert.Equal(t, tc.standard, rates.Rate(duty.DraughtStandard).String())
				assert.Equal(t, tc.non, rates.Rate(duty.NonDraught).String())
				assert.Equal(t, "29.54", rates.Rate(duty.HighABV).String())
			})
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		for name, mutate := range map[string]func(c *config.DutyConfig){
			"date": func(c *config.DutyConfig) { c.EffectiveFrom = "Feb 2025" },
			"rate": func(c *config.DutyConfig) { c.RateNonDraught = "twenty" },
			"relief too big": func(c *config.DutyConfig) {
				c.ReliefBands = []config.ReliefBandConfig{{UpToHL: "2100", DraughtLow: "9"}}
			},
			"bands out of order": func(c *config.DutyConfig) {
				c.ReliefBands = []config.ReliefBandConfig{{UpToHL: "4500"}, {UpToHL: "2100"}}
			},
			"annual output": func(c *config.DutyConfig) { c.AnnualProductionHL = "-10" },
		} {
			t.Run(name, func(t *testing.T) {
				c := cfg
				mutate(&c)
				_, err := RatesFromConfig(c)
				assert.Error(t, err)
			})
		}
	})
}

func TestReconcileAfterPull(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	svc := inventoryapp.NewInventoryService(store, batch.NewFIFOBatchStrategy(), zap.NewNop())

	m, err := svc.CreateMaterial(ctx, inventoryapp.CreateMaterialRequest{Name: "Maris Otter"})
	require.NoError(t, err)
	_, err = svc.ReceiveBatch(ctx, inventoryapp.ReceiveBatchRequest{
		MaterialID:   m.ID,
		Quantity:     decimal.NewFromInt(25),
		ReceivedDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	// a pulled remote row carries a stale stock figure
	_, err = store.Update(ctx, inventory.TableMaterials, m.ID, record.Fields{"current_stock": record.Int(40)})
	require.NoError(t, err)

	hook := ReconcileAfterPull(svc, zaptest.NewLogger(t))
	stock := func() string {
		got, err := svc.GetMaterial(ctx, m.ID)
		require.NoError(t, err)
		return got.CurrentStock.String()
	}

	quiet := &ledgersync.CycleReport{}
	quiet.Table(inventory.TableMaterials).Pushed = 1
	hook(ctx, quiet)
	assert.Equal(t, "40", stock(), "cycles that pulled nothing leave stock alone")

	pulled := &ledgersync.CycleReport{}
	pulled.Table(inventory.TableMaterials).Pulled = 1
	hook(ctx, pulled)
	assert.Equal(t, "25", stock())
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close(ctx)) })

	assert.Nil(t, a.Runner, "sync disabled")
	assert.Nil(t, a.Server, "http disabled")
	assert.False(t, a.Tracer.IsEnabled())

	engine := a.Handler()
	w := testutil.Do(t, engine, http.MethodGet, "/api/v1/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutil.Do(t, engine, http.MethodPost, "/api/v1/inventory/materials", map[string]any{"name": "Cascade", "unit": "kg"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	report, err := a.Engine.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Totals().Pushed)

	w = testutil.Do(t, engine, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
	assert.Contains(t, w.Body.String(), "brewery_http_requests_total")
}

func TestNew_InvalidRemote(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.Driver = "carrier-pigeon"
	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.Nil(t, a)
}
