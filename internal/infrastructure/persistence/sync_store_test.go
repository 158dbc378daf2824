package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
)

func remoteKeg(id, label string, at time.Time) ledger.RemoteRow {
	return ledger.RemoteRow{
		ID:         id,
		Fields:     record.Fields{"label": record.Text(label), "litres": record.Text("50")},
		ModifiedAt: at,
	}
}

func TestSyncStore_MarkSynced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	row := insertKeg(t, s, "K-1", nil)

	pending, err := s.PendingRows(ctx, "kegs")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	t.Run("stale revision is left pending", func(t *testing.T) {
		ok, err := s.MarkSynced(ctx, "kegs", row.ID, row.Revision+1)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("pushed revision becomes synced", func(t *testing.T) {
		ok, err := s.MarkSynced(ctx, "kegs", row.ID, row.Revision)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.Get(ctx, "kegs", row.ID)
		require.NoError(t, err)
		assert.Equal(t, record.Synced, got.State)
		assert.Equal(t, row.Revision, got.Revision)

		pending, err := s.PendingRows(ctx, "kegs")
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("local edit makes it pending again", func(t *testing.T) {
		got, err := s.Update(ctx, "kegs", row.ID, record.Fields{"label": record.Text("K-1b")})
		require.NoError(t, err)
		assert.Equal(t, record.Pending, got.State)
		assert.Equal(t, int64(2), got.Revision)
	})
}

func TestSyncStore_Conflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	row := insertKeg(t, s, "K-1", nil)

	ok, err := s.MarkConflict(ctx, "kegs", row.ID, row.Revision+5, "stale")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.MarkConflict(ctx, "kegs", row.ID, row.Revision, "duplicate gyle")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.Get(ctx, "kegs", row.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Conflict, got.State)

	open, err := s.OpenConflict(ctx, "kegs", row.ID)
	require.NoError(t, err)
	assert.Equal(t, "duplicate gyle", open.Reason)
	assert.Equal(t, "K-1", open.LocalFields.Text("label"))
	assert.False(t, open.RemoteFields.IsSome())
	assert.True(t, open.IsOpen())

	t.Run("a second rejection updates the open conflict", func(t *testing.T) {
		ok, err := s.MarkConflict(ctx, "kegs", row.ID, row.Revision, "still duplicate")
		require.NoError(t, err)
		assert.True(t, ok)
		all, err := s.Conflicts(ctx, false)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "still duplicate", all[0].Reason)
	})

	t.Run("remote version is attached", func(t *testing.T) {
		at := fixedNow.Add(time.Hour)
		require.NoError(t, s.AttachRemote(ctx, "kegs", remoteKeg(row.ID, "K-remote", at)))
		require.NoError(t, s.AttachRemote(ctx, "kegs", remoteKeg(row.ID, "K-remote", at)))

		c, err := s.OpenConflict(ctx, "kegs", row.ID)
		require.NoError(t, err)
		remote, ok := c.RemoteFields.Get()
		require.True(t, ok)
		assert.Equal(t, "K-remote", remote.Text("label"))
		modified, ok := c.RemoteModifiedAt.Get()
		require.True(t, ok)
		assert.True(t, modified.Equal(at))
	})

	t.Run("keep local", func(t *testing.T) {
		require.NoError(t, s.KeepLocal(ctx, "kegs", row.ID))

		got, err := s.Get(ctx, "kegs", row.ID)
		require.NoError(t, err)
		assert.Equal(t, record.Pending, got.State)
		assert.Equal(t, row.Revision+1, got.Revision)

		_, err = s.OpenConflict(ctx, "kegs", row.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		all, err := s.Conflicts(ctx, true)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, ledger.ResolutionKeptLocal, all[0].Resolution)
		assert.False(t, all[0].IsOpen())

		assert.ErrorIs(t, s.KeepLocal(ctx, "kegs", row.ID), shared.ErrInvalidState)
	})
}

func TestSyncStore_TakeRemote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	row := insertKeg(t, s, "local", nil)

	remote := remoteKeg(row.ID, "remote", fixedNow.Add(time.Minute))
	assert.ErrorIs(t, s.TakeRemote(ctx, "kegs", remote), shared.ErrInvalidState)

	_, err := s.MarkConflict(ctx, "kegs", row.ID, row.Revision, "rejected")
	require.NoError(t, err)
	require.NoError(t, s.TakeRemote(ctx, "kegs", remote))

	got, err := s.Get(ctx, "kegs", row.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Synced, got.State)
	assert.Equal(t, "remote", got.Fields.Text("label"))
	assert.True(t, got.Fields.Decimal("litres").Equal(decimal.NewFromInt(50)))

	audit, err := s.Audit(ctx, "kegs", row.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, ledger.WinnerRemote, audit[0].Winner)
	assert.Equal(t, "local", audit[0].LosingFields.Text("label"))

	all, err := s.Conflicts(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, ledger.ResolutionTookRemote, all[0].Resolution)
}

func TestSyncStore_ApplyRemote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := uuid.NewString()
	at := fixedNow.Add(-time.Hour)

	t.Run("new remote row is inserted synced", func(t *testing.T) {
		require.NoError(t, s.ApplyRemote(ctx, "kegs", remoteKeg(id, "pulled", at), nil, nil))

		got, err := s.Get(ctx, "kegs", id)
		require.NoError(t, err)
		assert.Equal(t, record.Synced, got.State)
		assert.Equal(t, int64(1), got.Revision)
		assert.True(t, got.UpdatedAt.Equal(at))
		assert.Equal(t, "cellar", got.Fields.Text("location"))
	})

	t.Run("inserting over an existing row is stale", func(t *testing.T) {
		err := s.ApplyRemote(ctx, "kegs", remoteKeg(id, "again", at), nil, nil)
		assert.ErrorIs(t, err, ErrStale)
	})

	t.Run("update based on an old revision is stale", func(t *testing.T) {
		base, err := s.Get(ctx, "kegs", id)
		require.NoError(t, err)
		_, err = s.Update(ctx, "kegs", id, record.Fields{"label": record.Text("edited")})
		require.NoError(t, err)

		err = s.ApplyRemote(ctx, "kegs", remoteKeg(id, "newer", at.Add(time.Minute)), &base, nil)
		assert.ErrorIs(t, err, ErrStale)

		got, err := s.Get(ctx, "kegs", id)
		require.NoError(t, err)
		assert.Equal(t, "edited", got.Fields.Text("label"))
	})

	t.Run("update keeps the loser in the audit table", func(t *testing.T) {
		base, err := s.Get(ctx, "kegs", id)
		require.NoError(t, err)
		loser := &ledger.AuditEntry{
			Table:            "kegs",
			RowID:            id,
			Winner:           ledger.WinnerRemote,
			LosingFields:     base.Fields,
			LosingModifiedAt: base.UpdatedAt,
		}
		remoteAt := fixedNow.Add(time.Hour)
		require.NoError(t, s.ApplyRemote(ctx, "kegs", remoteKeg(id, "remote wins", remoteAt), &base, loser))

		got, err := s.Get(ctx, "kegs", id)
		require.NoError(t, err)
		assert.Equal(t, record.Synced, got.State)
		assert.Equal(t, base.Revision+1, got.Revision)
		assert.Equal(t, "remote wins", got.Fields.Text("label"))

		audit, err := s.Audit(ctx, "kegs", id)
		require.NoError(t, err)
		require.Len(t, audit, 1)
		assert.Equal(t, "edited", audit[0].LosingFields.Text("label"))
		assert.NotEmpty(t, audit[0].ID)
	})

	t.Run("value that does not fit the column", func(t *testing.T) {
		bad := ledger.RemoteRow{
			ID:         uuid.NewString(),
			Fields:     record.Fields{"label": record.Text("x"), "litres": record.Text("lots")},
			ModifiedAt: at,
		}
		err := s.ApplyRemote(ctx, "kegs", bad, nil, nil)
		var ce *record.CoercionError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "litres", ce.Column)
	})

	t.Run("unknown remote column", func(t *testing.T) {
		bad := ledger.RemoteRow{
			ID:         uuid.NewString(),
			Fields:     record.Fields{"label": record.Text("x"), "colour": record.Text("red")},
			ModifiedAt: at,
		}
		var ce *record.CoercionError
		assert.ErrorAs(t, s.ApplyRemote(ctx, "kegs", bad, nil, nil), &ce)
	})
}

func TestSyncStore_Tombstones(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := insertKeg(t, s, "A", nil)
	b := insertKeg(t, s, "B", nil)

	_, err := s.MarkConflict(ctx, "kegs", a.ID, a.Revision, "rejected")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "kegs", a.ID))
	require.NoError(t, s.Delete(ctx, "kegs", b.ID))

	stones, err := s.Tombstones(ctx, "kegs")
	require.NoError(t, err)
	assert.Len(t, stones, 2)

	all, err := s.Conflicts(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, ledger.ResolutionDeleted, all[0].Resolution)

	require.NoError(t, s.ClearTombstone(ctx, "kegs", a.ID))
	stones, err = s.Tombstones(ctx, "kegs")
	require.NoError(t, err)
	require.Len(t, stones, 1)
	assert.Equal(t, b.ID, stones[0].RowID)

	other, err := s.Tombstones(ctx, "casks")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSyncStore_Watermark(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.Watermark(ctx, "kegs")
	require.NoError(t, err)
	assert.True(t, w.IsZero())

	t1 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	moved, err := s.AdvanceWatermark(ctx, "kegs", t1)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = s.AdvanceWatermark(ctx, "kegs", t1.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = s.AdvanceWatermark(ctx, "kegs", t1)
	require.NoError(t, err)
	assert.False(t, moved)

	t2 := t1.Add(48 * time.Hour)
	moved, err = s.AdvanceWatermark(ctx, "kegs", t2)
	require.NoError(t, err)
	assert.True(t, moved)

	w, err = s.Watermark(ctx, "kegs")
	require.NoError(t, err)
	assert.True(t, w.Equal(t2))
}

func TestSyncStore_RecordAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	row := insertKeg(t, s, "K-9", nil)
	lost := time.Date(2025, 2, 27, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordAudit(ctx, ledger.AuditEntry{
		Table:            "kegs",
		RowID:            row.ID,
		Winner:           ledger.WinnerLocal,
		LosingFields:     record.Fields{"label": record.Text("K-9 remote")},
		LosingModifiedAt: lost,
	}))

	audit, err := s.Audit(ctx, "kegs", row.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, ledger.WinnerLocal, audit[0].Winner)
	assert.Equal(t, "K-9 remote", audit[0].LosingFields.Text("label"))
	assert.True(t, audit[0].LosingModifiedAt.Equal(lost))
	assert.True(t, audit[0].RecordedAt.Equal(fixedNow))

	got, err := s.Get(ctx, "kegs", row.ID)
	require.NoError(t, err)
	assert.Equal(t, row.Revision, got.Revision)
	assert.Equal(t, record.Pending, got.State)
}
