// Package ledgersync keeps the local record store eventually consistent
// with the remote ledger. A cycle pushes local pending rows and deletes,
// then pulls remote changes newer than each table's watermark.
package ledgersync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/config"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/logger"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/persistence"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Store is the part of the local store the engine works with
type Store interface {
	Schema() *record.Schema
	Get(ctx context.Context, table, id string) (record.Row, error)
	PendingRows(ctx context.Context, table string) ([]record.Row, error)
	MarkSynced(ctx context.Context, table, id string, revision int64) (bool, error)
	MarkConflict(ctx context.Context, table, id string, revision int64, reason string) (bool, error)
	ApplyRemote(ctx context.Context, table string, remote ledger.RemoteRow, base *record.Row, loser *ledger.AuditEntry) error
	AttachRemote(ctx context.Context, table string, remote ledger.RemoteRow) error
	RecordAudit(ctx context.Context, entry ledger.AuditEntry) error
	Conflicts(ctx context.Context, all bool) ([]ledger.Conflict, error)
	OpenConflict(ctx context.Context, table, id string) (ledger.Conflict, error)
	KeepLocal(ctx context.Context, table, id string) error
	TakeRemote(ctx context.Context, table string, remote ledger.RemoteRow) error
	Tombstones(ctx context.Context, table string) ([]ledger.Tombstone, error)
	ClearTombstone(ctx context.Context, table, id string) error
	Watermark(ctx context.Context, table string) (time.Time, error)
	AdvanceWatermark(ctx context.Context, table string, at time.Time) (bool, error)
}

var _ Store = (*persistence.RecordStore)(nil)

// CycleHook runs after every cycle with its report
type CycleHook func(ctx context.Context, report *CycleReport)

// Engine runs sync cycles. Only one cycle runs at a time.
type Engine struct {
	store   Store
	remote  ledger.Adapter
	cfg     config.SyncConfig
	tables  []string
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	hooks []CycleHook

	lastMu sync.RWMutex
	last   *CycleReport
}

// Option configures an Engine
type Option func(*Engine)

// WithTables limits and orders the synced tables
func WithTables(tables ...string) Option {
	return func(e *Engine) {
		e.tables = tables
	}
}

// WithMetrics attaches Prometheus collectors
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock replaces the clock stamping reports
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine syncing every table of the store's schema
func NewEngine(store Store, remote ledger.Adapter, cfg config.SyncConfig, logger *zap.Logger, opts ...Option) *Engine {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	e := &Engine{
		store:  store,
		remote: remote,
		cfg:    cfg,
		tables: store.Schema().Names(),
		logger: logger.Named("sync"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AfterCycle registers a hook run after each cycle
func (e *Engine) AfterCycle(hook CycleHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, hook)
}

// LastReport returns the report of the most recent cycle, nil before the first
func (e *Engine) LastReport() *CycleReport {
	e.lastMu.RLock()
	defer e.lastMu.RUnlock()
	return e.last
}

// RunCycle pushes then pulls every table. A push that keeps failing with a
// transient error ends the cycle with NETWORK_UNAVAILABLE or RATE_LIMITED;
// the rows stay pending for the next cycle. Rejections and schema
// mismatches do not fail the cycle; they are listed in the report.
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := &CycleReport{ID: uuid.NewString(), StartedAt: e.now()}
	ctx = logger.WithCycleID(ctx, report.ID)
	ctx, span := telemetry.StartSpan(ctx, "sync.cycle", attribute.Int("sync.tables", len(e.tables)))

	err := e.push(ctx, report)
	if err != nil {
		report.PullSkipped = true
	} else {
		err = e.pull(ctx, report)
	}
	report.Err = err
	report.FinishedAt = e.now()

	e.lastMu.Lock()
	e.last = report
	e.lastMu.Unlock()

	if e.metrics != nil {
		e.metrics.observe(report)
	}
	totals := report.Totals()
	span.SetAttributes(
		attribute.Int("sync.pushed", totals.Pushed),
		attribute.Int("sync.pulled", totals.Pulled),
		attribute.Int("sync.escalations", len(report.Escalations)),
	)
	telemetry.EndSpan(span, err)
	e.logCycle(ctx, report)
	for _, hook := range e.hooks {
		hook(ctx, report)
	}
	return report, err
}

func (e *Engine) logCycle(ctx context.Context, r *CycleReport) {
	totals := r.Totals()
	fields := []zap.Field{
		zap.Int("pushed", totals.Pushed),
		zap.Int("deleted", totals.Deleted),
		zap.Int("pulled", totals.Pulled),
		zap.Int("rejected", totals.Rejected),
		zap.Int("escalations", len(r.Escalations)),
		zap.Duration("duration", r.Duration()),
	}
	log := logger.Enrich(ctx, e.logger)
	switch {
	case r.Err != nil:
		log.Warn("Sync cycle ended early", append(fields, zap.Error(r.Err))...)
	case totals.Pushed+totals.Deleted+totals.Pulled > 0:
		log.Info("Sync cycle completed", fields...)
	default:
		log.Debug("Sync cycle completed", fields...)
	}
}

func (e *Engine) push(ctx context.Context, report *CycleReport) error {
	for _, table := range e.tables {
		tr := report.Table(table)
		rows, err := e.store.PendingRows(ctx, table)
		if err != nil {
			return err
		}
		for _, row := range rows {
			err := e.retry(ctx, func() error {
				return e.remote.UpsertRow(ctx, table, row.ID, row.Fields)
			})
			if err != nil {
				if errors.Is(err, ledger.ErrRemoteRejected) {
					if err := e.reject(ctx, report, table, row, err); err != nil {
						return err
					}
					continue
				}
				return e.networkError(err)
			}

			synced, err := e.store.MarkSynced(ctx, table, row.ID, row.Revision)
			if err != nil {
				return err
			}
			if synced {
				tr.Pushed++
			} else {
				tr.Requeued++
			}
		}

		tombstones, err := e.store.Tombstones(ctx, table)
		if err != nil {
			return err
		}
		for _, ts := range tombstones {
			err := e.retry(ctx, func() error {
				return e.remote.DeleteRow(ctx, table, ts.RowID)
			})
			if err != nil {
				if errors.Is(err, ledger.ErrRemoteRejected) {
					// the tombstone stays and the delete is retried next cycle
					e.escalate(report, shared.CodeSyncConflict, table, ts.RowID, err)
					continue
				}
				return e.networkError(err)
			}
			if err := e.store.ClearTombstone(ctx, table, ts.RowID); err != nil {
				return err
			}
			tr.Deleted++
		}
	}
	return nil
}

func (e *Engine) reject(ctx context.Context, report *CycleReport, table string, row record.Row, cause error) error {
	marked, err := e.store.MarkConflict(ctx, table, row.ID, row.Revision, cause.Error())
	if err != nil {
		return err
	}
	if !marked {
		// edited since it was read; the new revision is pushed next cycle
		report.Table(table).Requeued++
		return nil
	}
	report.Table(table).Rejected++
	e.escalate(report, shared.CodeSyncConflict, table, row.ID, cause)
	return nil
}

func (e *Engine) pull(ctx context.Context, report *CycleReport) error {
	for _, table := range e.tables {
		if err := e.pullTable(ctx, report, table); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) pullTable(ctx context.Context, report *CycleReport, table string) error {
	schema, ok := e.store.Schema().Table(table)
	if !ok {
		return fmt.Errorf("table %s is not registered", table)
	}
	tr := report.Table(table)

	watermark, err := e.store.Watermark(ctx, table)
	if err != nil {
		return err
	}
	var remote []ledger.RemoteRow
	err = e.retry(ctx, func() error {
		var err error
		remote, err = e.remote.ListRows(ctx, table)
		return err
	})
	if err != nil {
		var coercion *record.CoercionError
		if errors.Is(err, ledger.ErrRemoteRejected) || errors.As(err, &coercion) {
			e.escalate(report, shared.CodeSchemaMismatch, table, "", err)
			return nil
		}
		return e.networkError(err)
	}

	tombstones, err := e.store.Tombstones(ctx, table)
	if err != nil {
		return err
	}
	deleted := make(map[string]bool, len(tombstones))
	for _, ts := range tombstones {
		deleted[ts.RowID] = true
	}

	newest := watermark
	complete := true
	for _, rr := range remote {
		if rr.Malformed != nil {
			complete = false
			e.escalate(report, shared.CodeSchemaMismatch, table, rr.ID, rr.Malformed)
			continue
		}
		if rr.ModifiedAt.Before(watermark) || deleted[rr.ID] {
			continue
		}
		if rr.ModifiedAt.After(newest) {
			newest = rr.ModifiedAt
		}

		err := e.applyRow(ctx, schema, tr, rr)
		var coercion *record.CoercionError
		var invariant *record.InvariantError
		switch {
		case err == nil:
		case errors.As(err, &coercion), errors.As(err, &invariant):
			complete = false
			e.escalate(report, shared.CodeSchemaMismatch, table, rr.ID, err)
		case errors.Is(err, persistence.ErrStale):
			complete = false
			tr.Deferred++
		default:
			return err
		}
	}

	if !complete || !newest.After(watermark) {
		return nil
	}
	advanced, err := e.store.AdvanceWatermark(ctx, table, newest)
	if err != nil {
		return err
	}
	tr.WatermarkAdvanced = advanced
	return nil
}

// applyRow reconciles one remote row with its local counterpart
func (e *Engine) applyRow(ctx context.Context, schema record.TableSchema, tr *TableReport, rr ledger.RemoteRow) error {
	local, err := e.store.Get(ctx, schema.Name, rr.ID)
	if errors.Is(err, shared.ErrNotFound) {
		if err := e.store.ApplyRemote(ctx, schema.Name, rr, nil, nil); err != nil {
			return err
		}
		tr.Pulled++
		return nil
	}
	if err != nil {
		return err
	}

	incoming, err := schema.Coerce(rr.Fields)
	if err != nil {
		return err
	}

	switch local.State {
	case record.Synced:
		if local.Fields.Covers(incoming) {
			tr.Unchanged++
			return nil
		}
		if err := e.store.ApplyRemote(ctx, schema.Name, rr, &local, nil); err != nil {
			return err
		}
		tr.Pulled++

	case record.Pending:
		if local.UpdatedAt.After(rr.ModifiedAt) {
			tr.KeptLocal++
			return e.store.RecordAudit(ctx, ledger.AuditEntry{
				Table:            schema.Name,
				RowID:            rr.ID,
				Winner:           ledger.WinnerLocal,
				LosingFields:     rr.Fields,
				LosingModifiedAt: rr.ModifiedAt,
			})
		}
		loser := &ledger.AuditEntry{
			Table:            schema.Name,
			RowID:            rr.ID,
			Winner:           ledger.WinnerRemote,
			LosingFields:     local.Fields,
			LosingModifiedAt: local.UpdatedAt,
		}
		if err := e.store.ApplyRemote(ctx, schema.Name, rr, &local, loser); err != nil {
			return err
		}
		e.logger.Info("Remote version replaced a local edit",
			zap.String("table", schema.Name),
			zap.String("row_id", rr.ID),
			zap.Time("local_updated_at", local.UpdatedAt),
			zap.Time("remote_modified_at", rr.ModifiedAt))
		tr.Pulled++

	case record.Conflict:
		if err := e.store.AttachRemote(ctx, schema.Name, rr); err != nil {
			return err
		}
		tr.Attached++
	}
	return nil
}

// retry runs op with exponential backoff while it fails transiently
func (e *Engine) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if e.cfg.InitialBackoff > 0 {
		b.InitialInterval = e.cfg.InitialBackoff
	}
	if e.cfg.MaxBackoff > 0 {
		b.MaxInterval = e.cfg.MaxBackoff
	}
	b.MaxElapsedTime = e.cfg.MaxElapsed

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.MaxAttempts-1)), ctx)
	return backoff.RetryNotify(func() error {
		err := op()
		if err == nil || ledger.Retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		if e.metrics != nil {
			e.metrics.pushFailed(failureReason(err))
		}
		e.logger.Debug("Remote ledger call failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	})
}

// networkError maps an exhausted transient failure onto the domain error
// reported for the cycle. Other errors, such as cancellation, pass through.
func (e *Engine) networkError(err error) error {
	if e.metrics != nil && ledger.Retryable(err) {
		e.metrics.pushFailed(failureReason(err))
	}
	switch {
	case errors.Is(err, ledger.ErrRateLimited):
		return shared.Errorf(shared.CodeRateLimited, "remote ledger is rate limiting requests: %v", err)
	case errors.Is(err, ledger.ErrUnavailable):
		return shared.Errorf(shared.CodeNetworkUnavailable, "remote ledger is unreachable: %v", err)
	default:
		return err
	}
}

func (e *Engine) escalate(report *CycleReport, code, table, rowID string, cause error) {
	if e.metrics != nil && errors.Is(cause, ledger.ErrRemoteRejected) {
		e.metrics.pushFailed(failureReason(cause))
	}
	report.Escalations = append(report.Escalations, Escalation{
		Code:    code,
		Table:   table,
		RowID:   rowID,
		Message: cause.Error(),
	})
	e.logger.Warn("Sync needs attention",
		zap.String("code", code),
		zap.String("table", table),
		zap.String("row_id", rowID),
		zap.Error(cause))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ledger.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ledger.ErrRemoteRejected):
		return "rejected"
	default:
		return "other"
	}
}

// ListConflicts returns open conflicts, or every conflict when all is set
func (e *Engine) ListConflicts(ctx context.Context, all bool) ([]ledger.Conflict, error) {
	return e.store.Conflicts(ctx, all)
}

// ResolveConflict closes the open conflict on a row. Keeping the local
// version queues it for another push; taking the remote one applies the
// version attached to the conflict, fetching it if none was attached yet.
func (e *Engine) ResolveConflict(ctx context.Context, table, id string, keepLocal bool) error {
	c, err := e.store.OpenConflict(ctx, table, id)
	if err != nil {
		return err
	}
	if keepLocal {
		if err := e.store.KeepLocal(ctx, table, id); err != nil {
			return err
		}
		e.logger.Info("Conflict resolved", zap.String("table", table), zap.String("row_id", id), zap.String("kept", "local"))
		return nil
	}

	remote, err := e.remoteVersion(ctx, c)
	if err != nil {
		return err
	}
	if err := e.store.TakeRemote(ctx, table, remote); err != nil {
		return err
	}
	e.logger.Info("Conflict resolved", zap.String("table", table), zap.String("row_id", id), zap.String("kept", "remote"))
	return nil
}

func (e *Engine) remoteVersion(ctx context.Context, c ledger.Conflict) (ledger.RemoteRow, error) {
	if fields, ok := c.RemoteFields.Get(); ok {
		return ledger.RemoteRow{ID: c.RowID, Fields: fields, ModifiedAt: c.RemoteModifiedAt.OrElse(e.now())}, nil
	}
	var rows []ledger.RemoteRow
	err := e.retry(ctx, func() error {
		var err error
		rows, err = e.remote.ListRows(ctx, c.Table)
		return err
	})
	if err != nil {
		return ledger.RemoteRow{}, e.networkError(err)
	}
	for _, r := range rows {
		if r.ID == c.RowID {
			return r, nil
		}
	}
	return ledger.RemoteRow{}, shared.Errorf(shared.CodeInvalidState, "the remote ledger has no version of %s row %s; keep the local one", c.Table, c.RowID)
}
