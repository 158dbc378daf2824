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

// ErrStale is returned when a sync write finds the row changed since the
// engine read it. The engine skips the row and retries next cycle.
var ErrStale = errors.New("row changed since it was read")

// PendingRows returns the rows of table waiting to be pushed
func (s *RecordStore) PendingRows(ctx context.Context, table string) ([]record.Row, error) {
	return s.GetAll(ctx, table, record.Where(record.Eq(record.ColumnSyncState, record.Text(record.Pending.String()))))
}

// MarkSynced flips a pushed row to synced, but only if it still carries the
// pushed revision. It reports whether the row was updated. Any open conflict
// on the row is closed as superseded.
func (s *RecordStore) MarkSynced(ctx context.Context, table, id string, revision int64) (bool, error) {
	t, err := s.table(table)
	if err != nil {
		return false, err
	}
	var updated bool
	err = s.write(ctx, func(tx *gorm.DB) error {
		res := tx.Table(t.Name).
			Where(clause.Eq{Column: clause.Column{Name: record.ColumnID}, Value: id}).
			Where(clause.Eq{Column: clause.Column{Name: record.ColumnRevision}, Value: revision}).
			Where(clause.Eq{Column: clause.Column{Name: record.ColumnSyncState}, Value: record.Pending.String()}).
			Update(record.ColumnSyncState, record.Synced.String())
		if res.Error != nil {
			return fmt.Errorf("failed to mark %s/%s synced: %w", t.Name, id, res.Error)
		}
		updated = res.RowsAffected > 0
		if !updated {
			return nil
		}
		return closeConflicts(tx, t.Name, id, ledger.ResolutionSuperseded, s.now())
	})
	return updated, err
}

// MarkConflict moves a rejected row to the conflict state and opens a
// conflict record holding the local version. It is a no-op when the row
// changed after the push started.
func (s *RecordStore) MarkConflict(ctx context.Context, table, id string, revision int64, reason string) (bool, error) {
	t, err := s.table(table)
	if err != nil {
		return false, err
	}
	var marked bool
	err = s.write(ctx, func(tx *gorm.DB) error {
		row, found, err := s.find(tx, t, id)
		if err != nil || !found || row.Revision != revision {
			return err
		}
		res := tx.Table(t.Name).
			Where(clause.Eq{Column: clause.Column{Name: record.ColumnID}, Value: id}).
			Update(record.ColumnSyncState, record.Conflict.String())
		if res.Error != nil {
			return fmt.Errorf("failed to mark %s/%s conflicted: %w", t.Name, id, res.Error)
		}
		marked = true

		open, err := openConflict(tx, t.Name, id)
		if err != nil {
			return err
		}
		local, err := models.EncodeFields(row.Fields)
		if err != nil {
			return err
		}
		if open != nil {
			return tx.Model(open).Updates(map[string]any{"reason": reason, "local_payload": local}).Error
		}
		return tx.Create(&models.ConflictModel{
			ID:           uuid.NewString(),
			Table:        t.Name,
			RowID:        id,
			Reason:       reason,
			LocalPayload: local,
			OpenedAt:     s.now(),
		}).Error
	})
	return marked, err
}

// ApplyRemote writes a remote version locally as synced. base is the local
// row the caller based its decision on (nil if it had none); if the row
// changed since, nothing is written and ErrStale is returned. Values that do
// not fit the table fail with a *record.CoercionError, and a version that
// breaks the table check fails with a *record.InvariantError; neither is
// written. loser, when set, is stored in the audit table in the same
// transaction.
func (s *RecordStore) ApplyRemote(ctx context.Context, table string, remote ledger.RemoteRow, base *record.Row, loser *ledger.AuditEntry) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	coerced, err := t.Coerce(remote.Fields)
	if err != nil {
		return err
	}
	return s.write(ctx, func(tx *gorm.DB) error {
		current, found, err := s.find(tx, t, remote.ID)
		if err != nil {
			return err
		}
		switch {
		case base == nil && found:
			return ErrStale
		case base != nil && (!found || current.Revision != base.Revision):
			return ErrStale
		}

		if !found {
			fields, err := prepareInsert(t, coerced)
			if err != nil {
				return err
			}
			values := columnValues(fields)
			values[record.ColumnID] = remote.ID
			values[record.ColumnSyncState] = record.Synced.String()
			values[record.ColumnRevision] = int64(1)
			values[record.ColumnUpdatedAt] = remote.ModifiedAt.UTC()
			if err := tx.Table(t.Name).Create(values).Error; err != nil {
				return fmt.Errorf("failed to insert remote row into %s: %w", t.Name, err)
			}
		} else {
			values := columnValues(coerced)
			values[record.ColumnSyncState] = record.Synced.String()
			values[record.ColumnRevision] = gorm.Expr("? + 1", clause.Column{Name: record.ColumnRevision})
			values[record.ColumnUpdatedAt] = remote.ModifiedAt.UTC()
			if err := updateRow(tx, t.Name, remote.ID, values); err != nil {
				return err
			}
		}
		stored, _, err := s.find(tx, t, remote.ID)
		if err != nil {
			return err
		}
		if err := t.Validate(remote.ID, nil, stored.Fields); err != nil {
			return err
		}

		if loser == nil {
			return nil
		}
		entry := *loser
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.RecordedAt.IsZero() {
			entry.RecordedAt = s.now()
		}
		var m models.AuditModel
		if err := m.FromDomain(entry); err != nil {
			return err
		}
		return tx.Create(&m).Error
	})
}

// AttachRemote stores the latest remote version on the open conflict of a
// row. Re-attaching the same version writes nothing.
func (s *RecordStore) AttachRemote(ctx context.Context, table string, remote ledger.RemoteRow) error {
	payload, err := models.EncodeFields(remote.Fields)
	if err != nil {
		return err
	}
	modified := remote.ModifiedAt.UTC()

	open, err := openConflict(s.reader(ctx), table, remote.ID)
	if err != nil || open == nil {
		return err
	}
	if open.RemotePayload != nil && *open.RemotePayload == payload &&
		open.RemoteModifiedAt != nil && open.RemoteModifiedAt.Equal(modified) {
		return nil
	}
	return s.write(ctx, func(tx *gorm.DB) error {
		return tx.Model(&models.ConflictModel{}).
			Where("id = ?", open.ID).
			Updates(map[string]any{"remote_payload": payload, "remote_modified_at": modified}).Error
	})
}

// Conflicts lists conflicts, open ones only unless all is set
func (s *RecordStore) Conflicts(ctx context.Context, all bool) ([]ledger.Conflict, error) {
	q := s.reader(ctx).Model(&models.ConflictModel{})
	if !all {
		q = q.Where("resolved_at IS NULL")
	}
	var rows []models.ConflictModel
	if err := q.Order("opened_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	out := make([]ledger.Conflict, 0, len(rows))
	for i := range rows {
		c, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// OpenConflict returns the open conflict on a row
func (s *RecordStore) OpenConflict(ctx context.Context, table, id string) (ledger.Conflict, error) {
	m, err := openConflict(s.reader(ctx), table, id)
	if err != nil {
		return ledger.Conflict{}, err
	}
	if m == nil {
		return ledger.Conflict{}, shared.Errorf(shared.CodeNotFound, "no open conflict on %s row %s", table, id)
	}
	return m.ToDomain()
}

// KeepLocal resolves a conflict in favour of the local version: the row
// becomes a fresh local mutation and is pushed again next cycle.
func (s *RecordStore) KeepLocal(ctx context.Context, table, id string) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	return s.write(ctx, func(tx *gorm.DB) error {
		row, found, err := s.find(tx, t, id)
		if err != nil {
			return err
		}
		if !found {
			return notFound(table, id)
		}
		if row.State != record.Conflict {
			return shared.Errorf(shared.CodeInvalidState, "%s row %s is %s, not in conflict", table, id, row.State)
		}
		if err := updateRow(tx, t.Name, id, map[string]any{
			record.ColumnSyncState: record.Pending.String(),
			record.ColumnRevision:  gorm.Expr("? + 1", clause.Column{Name: record.ColumnRevision}),
			record.ColumnUpdatedAt: s.now(),
		}); err != nil {
			return err
		}
		return closeConflicts(tx, t.Name, id, ledger.ResolutionKeptLocal, s.now())
	})
}

// TakeRemote resolves a conflict in favour of the given remote version.
func (s *RecordStore) TakeRemote(ctx context.Context, table string, remote ledger.RemoteRow) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	return s.WithTx(ctx, func(store record.Store) error {
		bound := store.(*RecordStore)
		row, found, err := bound.find(bound.tx, t, remote.ID)
		if err != nil {
			return err
		}
		if !found {
			return notFound(table, remote.ID)
		}
		if row.State != record.Conflict {
			return shared.Errorf(shared.CodeInvalidState, "%s row %s is %s, not in conflict", table, remote.ID, row.State)
		}
		loser := &ledger.AuditEntry{
			Table:            t.Name,
			RowID:            remote.ID,
			Winner:           ledger.WinnerRemote,
			LosingFields:     row.Fields,
			LosingModifiedAt: row.UpdatedAt,
		}
		if err := bound.ApplyRemote(ctx, table, remote, &row, loser); err != nil {
			return invalidState(err)
		}
		return closeConflicts(bound.tx, t.Name, remote.ID, ledger.ResolutionTookRemote, s.now())
	})
}

// RecordAudit stores a losing version without touching the row, for a
// remote version that lost to a newer local edit.
func (s *RecordStore) RecordAudit(ctx context.Context, entry ledger.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = s.now()
	}
	var m models.AuditModel
	if err := m.FromDomain(entry); err != nil {
		return err
	}
	return s.write(ctx, func(tx *gorm.DB) error {
		return tx.Create(&m).Error
	})
}

// Audit returns the audit trail of a row, oldest first
func (s *RecordStore) Audit(ctx context.Context, table, id string) ([]ledger.AuditEntry, error) {
	var rows []models.AuditModel
	err := s.reader(ctx).
		Where("table_name = ? AND row_id = ?", table, id).
		Order("recorded_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read audit: %w", err)
	}
	out := make([]ledger.AuditEntry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Tombstones returns the local deletes of table not yet pushed
func (s *RecordStore) Tombstones(ctx context.Context, table string) ([]ledger.Tombstone, error) {
	var rows []models.TombstoneModel
	err := s.reader(ctx).
		Where("table_name = ?", table).
		Order("deleted_at ASC").Order("row_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read tombstones: %w", err)
	}
	out := make([]ledger.Tombstone, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// ClearTombstone forgets a delete once the remote has applied it
func (s *RecordStore) ClearTombstone(ctx context.Context, table, id string) error {
	return s.write(ctx, func(tx *gorm.DB) error {
		return tx.Where("table_name = ? AND row_id = ?", table, id).Delete(&models.TombstoneModel{}).Error
	})
}

// Watermark returns the pull watermark of table, zero if never pulled
func (s *RecordStore) Watermark(ctx context.Context, table string) (time.Time, error) {
	var m models.WatermarkModel
	err := s.reader(ctx).Where("table_name = ?", table).Limit(1).Find(&m).Error
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read watermark: %w", err)
	}
	if m.Table == "" {
		return time.Time{}, nil
	}
	return m.Watermark.UTC(), nil
}

// AdvanceWatermark moves the watermark of table forward to at. It never
// moves backwards and writes nothing when at is not newer.
func (s *RecordStore) AdvanceWatermark(ctx context.Context, table string, at time.Time) (bool, error) {
	current, err := s.Watermark(ctx, table)
	if err != nil {
		return false, err
	}
	if !at.After(current) {
		return false, nil
	}
	err = s.write(ctx, func(tx *gorm.DB) error {
		m := models.WatermarkModel{Table: table, Watermark: at.UTC(), UpdatedAt: s.now()}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	})
	return err == nil, err
}

func openConflict(db *gorm.DB, table, id string) (*models.ConflictModel, error) {
	var rows []models.ConflictModel
	err := db.Where("table_name = ? AND row_id = ? AND resolved_at IS NULL", table, id).
		Order("opened_at DESC").Limit(1).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read conflict: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func closeConflicts(tx *gorm.DB, table, id string, resolution ledger.Resolution, at time.Time) error {
	return tx.Model(&models.ConflictModel{}).
		Where("table_name = ? AND row_id = ? AND resolved_at IS NULL", table, id).
		Updates(map[string]any{"resolved_at": at, "resolution": string(resolution)}).Error
}
