// Package ledger holds the adapters to the remote system of record. Each
// adapter maps its transport failures onto the sentinels of the domain
// ledger package so the sync engine can tell transient from permanent ones.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
)

// MemoryLedger is an in-process ledger for offline development and tests.
// Failures can be injected per call and successful writes are counted.
type MemoryLedger struct {
	mu       sync.Mutex
	tables   map[string]map[string]ledger.RemoteRow
	now      func() time.Time
	failNext []error
	failAll  error
	rejected map[string]error
	writes   int
}

// NewMemoryLedger creates an empty memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		tables:   make(map[string]map[string]ledger.RemoteRow),
		now:      time.Now,
		rejected: make(map[string]error),
	}
}

// SetClock replaces the clock stamping ModifiedAt on writes
func (m *MemoryLedger) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FailNext makes the next n calls fail with err
func (m *MemoryLedger) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for range n {
		m.failNext = append(m.failNext, err)
	}
}

// SetOffline makes every call fail with ErrUnavailable until called with false
func (m *MemoryLedger) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offline {
		m.failAll = ledger.ErrUnavailable
	} else {
		m.failAll = nil
	}
}

// Reject makes writes of one row fail with ErrRemoteRejected
func (m *MemoryLedger) Reject(table, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[table+"/"+id] = ledger.ErrRemoteRejected
}

// Accept undoes Reject
func (m *MemoryLedger) Accept(table, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rejected, table+"/"+id)
}

// Put stores a row as another client would, stamped with its own ModifiedAt.
// It is not counted as a write.
func (m *MemoryLedger) Put(table string, row ledger.RemoteRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row.Fields = row.Fields.Clone()
	m.table(table)[row.ID] = row
}

// Row returns one stored row
func (m *MemoryLedger) Row(table, id string) (ledger.RemoteRow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tables[table][id]
	if ok {
		row.Fields = row.Fields.Clone()
	}
	return row, ok
}

// Writes returns how many upserts and deletes succeeded
func (m *MemoryLedger) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// ListRows returns every row of table ordered by id
func (m *MemoryLedger) ListRows(ctx context.Context, table string) ([]ledger.RemoteRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	rows := make([]ledger.RemoteRow, 0, len(m.tables[table]))
	for _, row := range m.tables[table] {
		row.Fields = row.Fields.Clone()
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

// UpsertRow stores fields under id. Absent values keep the stored ones.
func (m *MemoryLedger) UpsertRow(ctx context.Context, table, id string, fields record.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(ctx); err != nil {
		return err
	}
	if err := m.rejected[table+"/"+id]; err != nil {
		return err
	}

	rows := m.table(table)
	current, ok := rows[id]
	merged := make(record.Fields, len(fields))
	if ok {
		merged = current.Fields.Clone()
	}
	for col, v := range fields {
		if !v.IsAbsent() {
			merged[col] = v
		}
	}
	m.writes++
	if ok && current.Fields.Covers(merged) && merged.Covers(current.Fields) {
		return nil
	}
	rows[id] = ledger.RemoteRow{ID: id, Fields: merged, ModifiedAt: m.now().UTC()}
	return nil
}

// DeleteRow removes a row; deleting a missing row succeeds
func (m *MemoryLedger) DeleteRow(ctx context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(ctx); err != nil {
		return err
	}
	if err := m.rejected[table+"/"+id]; err != nil {
		return err
	}
	delete(m.tables[table], id)
	m.writes++
	return nil
}

func (m *MemoryLedger) table(name string) map[string]ledger.RemoteRow {
	rows, ok := m.tables[name]
	if !ok {
		rows = make(map[string]ledger.RemoteRow)
		m.tables[name] = rows
	}
	return rows
}

func (m *MemoryLedger) fail(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failAll != nil {
		return m.failAll
	}
	if len(m.failNext) > 0 {
		err := m.failNext[0]
		m.failNext = m.failNext[1:]
		return err
	}
	return nil
}

var _ ledger.Adapter = (*MemoryLedger)(nil)
