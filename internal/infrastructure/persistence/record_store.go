package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordStore implements record.Store on gorm with one table per entity.
// The same type serves the sync engine through the methods in sync_store.go.
type RecordStore struct {
	db     *Database
	tx     *gorm.DB // non-nil inside WithTx
	schema *record.Schema
	now    func() time.Time
}

// NewRecordStore creates a store over the given schema
func NewRecordStore(db *Database, schema *record.Schema) *RecordStore {
	return &RecordStore{
		db:     db,
		schema: schema,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of the store that reads the time from now.
func (s *RecordStore) WithClock(now func() time.Time) *RecordStore {
	clone := *s
	clone.now = func() time.Time { return now().UTC() }
	return &clone
}

// Schema returns the table set the store serves
func (s *RecordStore) Schema() *record.Schema {
	return s.schema
}

func (s *RecordStore) table(name string) (record.TableSchema, error) {
	t, ok := s.schema.Table(name)
	if !ok {
		return record.TableSchema{}, unknownTable(name)
	}
	return t, nil
}

// reader returns the handle for reads: the open transaction, if any.
func (s *RecordStore) reader(ctx context.Context) *gorm.DB {
	if s.tx != nil {
		return s.tx
	}
	return s.db.DB.WithContext(ctx)
}

// write runs fn in the open transaction or in a new gated one.
func (s *RecordStore) write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.Write(ctx, fn)
}

func (s *RecordStore) bound(tx *gorm.DB) *RecordStore {
	clone := *s
	clone.tx = tx
	return &clone
}

// WithTx runs fn with a store bound to one transaction under the write gate.
// Nested calls join the outer transaction.
func (s *RecordStore) WithTx(ctx context.Context, fn func(tx record.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	return s.db.Write(ctx, func(tx *gorm.DB) error {
		return fn(s.bound(tx))
	})
}

// GetAll returns the rows of table matching q
func (s *RecordStore) GetAll(ctx context.Context, table string, q record.Query) ([]record.Row, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	return s.selectRows(s.reader(ctx), t, q)
}

func (s *RecordStore) selectRows(db *gorm.DB, t record.TableSchema, q record.Query) ([]record.Row, error) {
	tx, err := applyQuery(db.Table(t.Name), t, q)
	if err != nil {
		return nil, err
	}
	var raw []map[string]any
	if err := tx.Find(&raw).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.Name, err)
	}
	rows := make([]record.Row, 0, len(raw))
	for _, m := range raw {
		row, err := decodeRow(t, m)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Get returns one row by id
func (s *RecordStore) Get(ctx context.Context, table, id string) (record.Row, error) {
	t, err := s.table(table)
	if err != nil {
		return record.Row{}, err
	}
	row, found, err := s.find(s.reader(ctx), t, id)
	if err != nil {
		return record.Row{}, err
	}
	if !found {
		return record.Row{}, notFound(table, id)
	}
	return row, nil
}

func (s *RecordStore) find(db *gorm.DB, t record.TableSchema, id string) (record.Row, bool, error) {
	rows, err := s.selectRows(db, t, record.Where(record.Eq(record.ColumnID, record.Text(id))))
	if err != nil {
		return record.Row{}, false, err
	}
	if len(rows) == 0 {
		return record.Row{}, false, nil
	}
	return rows[0], true, nil
}

// Insert stores a new pending row under a fresh UUID
func (s *RecordStore) Insert(ctx context.Context, table string, fields record.Fields) (record.Row, error) {
	t, err := s.table(table)
	if err != nil {
		return record.Row{}, err
	}
	coerced, err := prepareInsert(t, fields)
	if err != nil {
		return record.Row{}, invalidInput(err)
	}

	id := uuid.NewString()
	var row record.Row
	err = s.write(ctx, func(tx *gorm.DB) error {
		values := columnValues(coerced)
		values[record.ColumnID] = id
		values[record.ColumnSyncState] = record.Pending.String()
		values[record.ColumnRevision] = int64(1)
		values[record.ColumnUpdatedAt] = s.now()
		if err := tx.Table(t.Name).Create(values).Error; err != nil {
			return fmt.Errorf("failed to insert into %s: %w", t.Name, err)
		}
		var found bool
		row, found, err = s.find(tx, t, id)
		if err == nil && !found {
			err = fmt.Errorf("inserted row %s/%s vanished", t.Name, id)
		}
		if err != nil {
			return err
		}
		return invalidState(t.Validate(id, nil, row.Fields))
	})
	return row, err
}

// Update changes columns of an existing row and marks it pending. Absent
// values are skipped. An update that changes nothing writes nothing.
func (s *RecordStore) Update(ctx context.Context, table, id string, fields record.Fields) (record.Row, error) {
	t, err := s.table(table)
	if err != nil {
		return record.Row{}, err
	}
	coerced, err := t.Coerce(fields)
	if err != nil {
		return record.Row{}, invalidInput(err)
	}

	var row record.Row
	err = s.write(ctx, func(tx *gorm.DB) error {
		current, found, err := s.find(tx, t, id)
		if err != nil {
			return err
		}
		if !found {
			return notFound(table, id)
		}
		if current.Fields.Covers(coerced) {
			row = current
			return nil
		}

		values := columnValues(coerced)
		values[record.ColumnSyncState] = record.Pending.String()
		values[record.ColumnRevision] = gorm.Expr("? + 1", clause.Column{Name: record.ColumnRevision})
		values[record.ColumnUpdatedAt] = s.now()
		if err := updateRow(tx, t.Name, id, values); err != nil {
			return err
		}
		row, _, err = s.find(tx, t, id)
		if err != nil {
			return err
		}
		return invalidState(t.Validate(id, current.Fields, row.Fields))
	})
	return row, err
}

// Delete removes a row and leaves a tombstone for the sync engine
func (s *RecordStore) Delete(ctx context.Context, table, id string) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	return s.write(ctx, func(tx *gorm.DB) error {
		res := tx.Exec("DELETE FROM ? WHERE ? = ?", clause.Table{Name: t.Name}, clause.Column{Name: record.ColumnID}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete from %s: %w", t.Name, res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound(table, id)
		}
		stone := models.TombstoneModel{Table: t.Name, RowID: id, DeletedAt: s.now()}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&stone).Error; err != nil {
			return fmt.Errorf("failed to record tombstone: %w", err)
		}
		return closeConflicts(tx, t.Name, id, ledger.ResolutionDeleted, s.now())
	})
}

// prepareInsert coerces insert values, drops absent ones and checks that
// required columns are present.
func prepareInsert(t record.TableSchema, fields record.Fields) (record.Fields, error) {
	coerced, err := t.Coerce(fields)
	if err != nil {
		return nil, err
	}
	for col, v := range coerced {
		if v.IsAbsent() {
			delete(coerced, col)
		}
	}
	if err := t.CheckRequired(coerced); err != nil {
		return nil, err
	}
	return coerced, nil
}

// columnValues maps fields to bind values, skipping absent ones.
func columnValues(f record.Fields) map[string]any {
	values := make(map[string]any, len(f)+4)
	for col, v := range f {
		if v.IsAbsent() {
			continue
		}
		values[col] = v.Native()
	}
	return values
}

func updateRow(tx *gorm.DB, table, id string, values map[string]any) error {
	res := tx.Table(table).Where(clause.Eq{Column: clause.Column{Name: record.ColumnID}, Value: id}).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update %s: %w", table, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(table, id)
	}
	return nil
}

func notFound(table, id string) error {
	return shared.Errorf(shared.CodeNotFound, "%s row %s not found", table, id)
}

func invalidState(err error) error {
	var ie *record.InvariantError
	if errors.As(err, &ie) {
		return shared.NewDomainError(shared.CodeInvalidState, ie.Error())
	}
	return err
}

func invalidInput(err error) error {
	var ce *record.CoercionError
	if errors.As(err, &ce) {
		return shared.NewDomainError(shared.CodeInvalidInput, ce.Error())
	}
	return err
}

var _ record.Store = (*RecordStore)(nil)
