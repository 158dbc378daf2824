package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dutyapp "github.com/tonka1973/BreweryManager-sub001/internal/application/duty"
	inventoryapp "github.com/tonka1973/BreweryManager-sub001/internal/application/inventory"
	salesapp "github.com/tonka1973/BreweryManager-sub001/internal/application/sales"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/duty"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/inventory"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/config"
	ledgers "github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/ledgersync"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/persistence"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/strategy/batch"
	"github.com/tonka1973/BreweryManager-sub001/internal/interfaces/http/handler"
	"github.com/tonka1973/BreweryManager-sub001/internal/interfaces/http/router"
	"github.com/tonka1973/BreweryManager-sub001/internal/testutil"
	"go.uber.org/zap"
)

type api struct {
	engine *gin.Engine
	clock  *testutil.Clock
	store  *persistence.RecordStore
	remote *ledgers.MemoryLedger
	sync   *ledgersync.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	clock := testutil.NewClock(time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC))
	store := testutil.NewStoreWithClock(t, clock)
	remote := ledgers.NewMemoryLedger()
	remote.SetClock(clock.Now)
	syncEngine := ledgersync.NewEngine(store, remote, config.SyncConfig{
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		MaxElapsed:     time.Second,
	}, zap.NewNop(), ledgersync.WithClock(clock.Now))

	inventoryService := inventoryapp.NewInventoryService(store, batch.NewFIFOBatchStrategy(), zap.NewNop())
	inventoryService.SetClock(clock.Now)
	dutyService := dutyapp.NewDutyService(store, duty.DefaultRates(), zap.NewNop())
	dutyService.SetClock(clock.Now)

	engine := router.NewEngine(router.EngineConfig{
		ServiceName: "brewd-test",
		HTTP:        config.HTTPConfig{MaxBodyBytes: 1 << 20},
		Logger:      zap.NewNop(),
	})
	router.NewRouter(engine).
		Register(handler.NewHealthHandler(pingFunc(func(context.Context) error { return nil }), syncEngine)).
		Register(handler.NewSyncHandler(syncEngine, time.Minute)).
		Register(handler.NewInventoryHandler(inventoryService)).
		Register(handler.NewDutyHandler(dutyService)).
		Register(handler.NewSalesHandler(salesapp.NewSalesService(store, zap.NewNop()))).
		Setup()

	return &api{engine: engine, clock: clock, store: store, remote: remote, sync: syncEngine}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func (a *api) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	w := testutil.Do(t, a.engine, method, path, body, nil)
	return w.Code, testutil.DecodeJSON(t, w)
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	out, ok := body["data"].(map[string]any)
	require.True(t, ok, "data is not an object: %v", body)
	return out
}

func list(t *testing.T, body map[string]any) []any {
	t.Helper()
	out, ok := body["data"].([]any)
	require.True(t, ok, "data is not a list: %v", body)
	return out
}

func errorCode(body map[string]any) string {
	info, _ := body["error"].(map[string]any)
	code, _ := info["code"].(string)
	return code
}

func (a *api) material(t *testing.T, name string) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/v1/inventory/materials", map[string]any{
		"name": name, "unit": "kg", "category": "malt",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return data(t, body)["id"].(string)
}

func (a *api) receive(t *testing.T, materialID, qty string, received time.Time) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/v1/inventory/batches", map[string]any{
		"material_id":   materialID,
		"quantity":      qty,
		"received_date": received.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, status, body)
	return data(t, body)["id"].(string)
}

func TestInventoryAPI_AllocateOldestFirst(t *testing.T) {
	a := newAPI(t)
	malt := a.material(t, "Maris Otter")
	b1 := a.receive(t, malt, "20", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	b2 := a.receive(t, malt, "80", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))

	status, body := a.do(t, http.MethodPost, "/api/v1/inventory/materials/"+malt+"/allocate", map[string]any{"quantity": "30"})
	require.Equal(t, http.StatusOK, status, body)
	alloc := data(t, body)
	takes := alloc["takes"].([]any)
	require.Len(t, takes, 2)
	assert.Equal(t, b1, takes[0].(map[string]any)["batch_id"])
	assert.Equal(t, "20", takes[0].(map[string]any)["quantity"])
	assert.Equal(t, b2, takes[1].(map[string]any)["batch_id"])
	assert.Equal(t, "10", takes[1].(map[string]any)["quantity"])
	assert.NotNil(t, alloc["mixed"], "a two-batch allocation is recorded as mixed")

	status, body = a.do(t, http.MethodGet, "/api/v1/inventory/allocations/"+alloc["id"].(string), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, data(t, body)["mixed"])

	status, body = a.do(t, http.MethodGet, "/api/v1/inventory/materials/"+malt, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "70", data(t, body)["current_stock"])
}

func TestInventoryAPI_Errors(t *testing.T) {
	a := newAPI(t)
	malt := a.material(t, "Crystal")
	a.receive(t, malt, "5", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	testutil.RunHTTPTestCases(t, a.engine, []testutil.HTTPTestCase{
		{
			Name:           "insufficient stock",
			Method:         http.MethodPost,
			Path:           "/api/v1/inventory/materials/" + malt + "/allocate",
			Body:           map[string]any{"quantity": "6"},
			ExpectedStatus: http.StatusUnprocessableEntity,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "INSUFFICIENT_STOCK", errorCode(testutil.DecodeJSON(t, w)))
			},
		},
		{
			Name:           "unknown material",
			Method:         http.MethodGet,
			Path:           "/api/v1/inventory/materials/" + testutil.NewTestUUID("missing"),
			ExpectedStatus: http.StatusNotFound,
			ExpectedBody:   map[string]any{"success": false},
		},
		{
			Name:           "missing name",
			Method:         http.MethodPost,
			Path:           "/api/v1/inventory/materials",
			Body:           map[string]any{"unit": "kg"},
			ExpectedStatus: http.StatusBadRequest,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "VALIDATION_ERROR", errorCode(testutil.DecodeJSON(t, w)))
			},
		},
	})

	// the failed allocation left stock untouched
	status, body := a.do(t, http.MethodGet, "/api/v1/inventory/materials/"+malt+"/batches", nil)
	require.Equal(t, http.StatusOK, status)
	batches := list(t, body)
	require.Len(t, batches, 1)
	assert.Equal(t, "5", batches[0].(map[string]any)["quantity_remaining"])
}

func TestInventoryAPI_Reconcile(t *testing.T) {
	a := newAPI(t)
	malt := a.material(t, "Pale")
	a.receive(t, malt, "40", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	status, body := a.do(t, http.MethodPost, "/api/v1/inventory/materials/"+malt+"/reconcile", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "40", data(t, body)["after"])
	assert.Equal(t, false, data(t, body)["adjusted"])

	// only corrected materials are listed
	status, body = a.do(t, http.MethodPost, "/api/v1/inventory/reconcile", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Empty(t, list(t, body))
}

func TestDutyAPI(t *testing.T) {
	a := newAPI(t)

	testutil.RunHTTPTestCases(t, a.engine, []testutil.HTTPTestCase{
		{
			Name:           "abv from the factor table",
			Method:         http.MethodPost,
			Path:           "/api/v1/duty/abv",
			Body:           map[string]any{"og": "1.045", "fg": "1.010"},
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				got := data(t, testutil.DecodeJSON(t, w))
				assert.Equal(t, true, got["determined"])
				assert.Equal(t, "4.5", got["abv"])
			},
		},
		{
			Name:           "abv undetermined without a final gravity",
			Method:         http.MethodPost,
			Path:           "/api/v1/duty/abv",
			Body:           map[string]any{"og": "1.045"},
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				got := data(t, testutil.DecodeJSON(t, w))
				assert.Equal(t, false, got["determined"])
				assert.Nil(t, got["abv"])
			},
		},
		{
			Name:           "bad period",
			Method:         http.MethodGet,
			Path:           "/api/v1/duty/returns/2025-13",
			ExpectedStatus: http.StatusBadRequest,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "INVALID_INPUT", errorCode(testutil.DecodeJSON(t, w)))
			},
		},
		{
			Name:           "rates",
			Method:         http.MethodGet,
			Path:           "/api/v1/duty/rates",
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				got := data(t, testutil.DecodeJSON(t, w))
				assert.Len(t, got["rates"], len(duty.Categories))
				assert.NotContains(t, got, "relief_band_up_to")
			},
		},
	})
}

func TestDutyAPI_ReturnLifecycle(t *testing.T) {
	a := newAPI(t)
	packaging := func(day int) map[string]any {
		return map[string]any{
			"gyle":             "G-2",
			"packaged_at":      time.Date(2025, 3, day, 9, 0, 0, 0, time.UTC).Format(time.RFC3339),
			"container_litres": "0.5",
			"containers":       200,
			"abv":              "5.2",
		}
	}

	status, body := a.do(t, http.MethodPost, "/api/v1/duty/packaging", packaging(10))
	require.Equal(t, http.StatusCreated, status, body)
	line := data(t, body)
	assert.Equal(t, "2025-03", line["period"])
	assert.Equal(t, string(duty.NonDraught), line["category"])
	assert.Equal(t, "114.45", line["duty"])

	status, body = a.do(t, http.MethodGet, "/api/v1/duty/returns/2025-03/lines", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list(t, body), 1)

	status, body = a.do(t, http.MethodGet, "/api/v1/duty/returns/2025-03", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "draft", data(t, body)["status"])
	assert.Equal(t, "114.45", data(t, body)["net_duty"])

	status, body = a.do(t, http.MethodPost, "/api/v1/duty/returns/2025-03/finalize", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "finalized", data(t, body)["status"])

	testutil.RunHTTPTestCases(t, a.engine, []testutil.HTTPTestCase{
		{
			Name:           "packaging into a finalized period",
			Method:         http.MethodPost,
			Path:           "/api/v1/duty/packaging",
			Body:           packaging(20),
			ExpectedStatus: http.StatusConflict,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "PERIOD_FINALIZED", errorCode(testutil.DecodeJSON(t, w)))
			},
		},
		{
			Name:           "finalize twice",
			Method:         http.MethodPost,
			Path:           "/api/v1/duty/returns/2025-03/finalize",
			ExpectedStatus: http.StatusConflict,
		},
		{
			Name:           "submit",
			Method:         http.MethodPost,
			Path:           "/api/v1/duty/returns/2025-03/submit",
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "submitted", data(t, testutil.DecodeJSON(t, w))["status"])
			},
		},
	})
}

func TestSalesAPI(t *testing.T) {
	a := newAPI(t)
	sale := func(customer, amount string) string {
		status, body := a.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
			"sale_date": "2025-03-03T12:00:00Z",
			"customer":  customer,
			"product":   "Best Bitter 9g",
			"quantity":  "2",
			"amount":    amount,
		})
		require.Equal(t, http.StatusCreated, status, body)
		return data(t, body)["id"].(string)
	}
	s1 := sale("The Crown", "12")
	s2 := sale("The Crown", "8")
	other := sale("The Swan", "5")

	status, body := a.do(t, http.MethodGet, "/api/v1/sales/uninvoiced", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list(t, body), 3)

	status, body = a.do(t, http.MethodPost, "/api/v1/sales/invoices", map[string]any{
		"invoice_number": "INV-001",
		"issued_at":      "2025-03-31T00:00:00Z",
		"sale_ids":       []string{s1, s2},
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "The Crown", data(t, body)["customer"])
	assert.Equal(t, "20", data(t, body)["total"])

	status, body = a.do(t, http.MethodGet, "/api/v1/sales/uninvoiced", nil)
	require.Equal(t, http.StatusOK, status)
	remaining := list(t, body)
	require.Len(t, remaining, 1)
	assert.Equal(t, other, remaining[0].(map[string]any)["id"])

	testutil.RunHTTPTestCases(t, a.engine, []testutil.HTTPTestCase{
		{
			Name:           "already invoiced",
			Method:         http.MethodPost,
			Path:           "/api/v1/sales/invoices",
			Body:           map[string]any{"invoice_number": "INV-002", "sale_ids": []string{s1}},
			ExpectedStatus: http.StatusUnprocessableEntity,
		},
		{
			Name:           "duplicate number",
			Method:         http.MethodPost,
			Path:           "/api/v1/sales/invoices",
			Body:           map[string]any{"invoice_number": "INV-001", "sale_ids": []string{other}},
			ExpectedStatus: http.StatusConflict,
		},
		{
			Name:           "no sales",
			Method:         http.MethodPost,
			Path:           "/api/v1/sales/invoices",
			Body:           map[string]any{"invoice_number": "INV-003", "sale_ids": []string{}},
			ExpectedStatus: http.StatusBadRequest,
		},
	})
}

func TestSyncAPI(t *testing.T) {
	a := newAPI(t)
	malt := a.material(t, "Golden Promise")

	status, body := a.do(t, http.MethodGet, "/api/v1/sync/last", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["data"])

	a.clock.Advance(time.Minute)
	status, body = a.do(t, http.MethodPost, "/api/v1/sync/run", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.NotEmpty(t, data(t, body)["id"])
	_, ok := a.remote.Row(inventory.TableMaterials, malt)
	assert.True(t, ok, "the new material was pushed")

	status, body = a.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.NotNil(t, body["last_sync"])

	t.Run("rejected row becomes a conflict", func(t *testing.T) {
		status, body := a.do(t, http.MethodPost, "/api/v1/inventory/materials", map[string]any{"name": "Chocolate"})
		require.Equal(t, http.StatusCreated, status)
		id := data(t, body)["id"].(string)
		a.remote.Reject(inventory.TableMaterials, id)

		a.clock.Advance(time.Minute)
		status, body = a.do(t, http.MethodPost, "/api/v1/sync/run", nil)
		require.Equal(t, http.StatusOK, status, body)

		status, body = a.do(t, http.MethodGet, "/api/v1/sync/conflicts", nil)
		require.Equal(t, http.StatusOK, status)
		conflicts := list(t, body)
		require.Len(t, conflicts, 1)
		conflict := conflicts[0].(map[string]any)
		assert.Equal(t, id, conflict["row_id"])
		assert.Equal(t, "Chocolate", conflict["local_fields"].(map[string]any)["name"])

		resolve := "/api/v1/sync/conflicts/" + inventory.TableMaterials + "/" + id + "/resolve"
		testutil.RunHTTPTestCases(t, a.engine, []testutil.HTTPTestCase{
			{
				Name:           "keep must be local or remote",
				Method:         http.MethodPost,
				Path:           resolve,
				Body:           map[string]any{"keep": "both"},
				ExpectedStatus: http.StatusBadRequest,
			},
			{
				Name:           "no remote version to take",
				Method:         http.MethodPost,
				Path:           resolve,
				Body:           map[string]any{"keep": "remote"},
				ExpectedStatus: http.StatusUnprocessableEntity,
			},
			{
				Name:           "keep local",
				Method:         http.MethodPost,
				Path:           resolve,
				Body:           map[string]any{"keep": "local"},
				ExpectedStatus: http.StatusOK,
			},
			{
				Name:           "already resolved",
				Method:         http.MethodPost,
				Path:           resolve,
				Body:           map[string]any{"keep": "local"},
				ExpectedStatus: http.StatusNotFound,
			},
		})

		status, body = a.do(t, http.MethodGet, "/api/v1/sync/conflicts?all=true", nil)
		require.Equal(t, http.StatusOK, status)
		all := list(t, body)
		require.Len(t, all, 1)
		assert.Equal(t, "kept_local", all[0].(map[string]any)["resolution"])
	})
}

func TestSyncAPI_RemoteDown(t *testing.T) {
	a := newAPI(t)
	a.material(t, "Vienna")
	a.remote.SetOffline(true)

	a.clock.Advance(time.Minute)
	status, body := a.do(t, http.MethodPost, "/api/v1/sync/run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "NETWORK_UNAVAILABLE", errorCode(body))
}

func TestHealth_DatabaseDown(t *testing.T) {
	h := handler.NewHealthHandler(pingFunc(func(context.Context) error { return errors.New("disk I/O error") }), nil)
	engine := gin.New()
	h.RegisterRoutes(engine.Group("/api/v1"))

	w := testutil.Do(t, engine, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := testutil.DecodeJSON(t, w)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "error", body["database"])
	assert.Nil(t, body["last_sync"])
}
