package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/strategy/batch"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewBatch(t *testing.T) {
	b, err := NewBatch("malt", decimal.NewFromInt(25), date(2025, 1, 1))
	require.NoError(t, err)
	assert.True(t, b.QuantityRemaining.Equal(b.QuantityInitial))
	assert.True(t, b.Valid())

	_, err = NewBatch("malt", decimal.Zero, date(2025, 1, 1))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = NewBatch("", decimal.NewFromInt(1), date(2025, 1, 1))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = NewBatch("malt", decimal.NewFromInt(1), time.Time{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestBatch_Take(t *testing.T) {
	b := Batch{ID: "b1", QuantityInitial: decimal.NewFromInt(20), QuantityRemaining: decimal.NewFromInt(20)}

	left, err := b.Take(decimal.NewFromInt(20))
	require.NoError(t, err)
	assert.True(t, left.IsZero())

	_, err = b.Take(decimal.NewFromInt(21))
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)

	_, err = b.Take(decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestBatch_RowMapping(t *testing.T) {
	b := Batch{
		MaterialID:        "m1",
		QuantityInitial:   decimal.NewFromInt(10),
		QuantityRemaining: decimal.NewFromInt(4),
		ReceivedDate:      date(2025, 5, 1),
		LotCode:           record.Some("LOT-9"),
	}
	back := BatchFromRow(record.Row{ID: "b1", Fields: b.Fields()})
	assert.Equal(t, "b1", back.ID)
	assert.True(t, back.QuantityRemaining.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, "LOT-9", back.LotCode.OrElse(""))
	assert.False(t, back.Supplier.IsSome())
	assert.False(t, back.UnitCost.IsSome())
}

func TestBatchTableCheck(t *testing.T) {
	var batches record.TableSchema
	for _, ts := range Tables() {
		if ts.Name == TableBatches {
			batches = ts
		}
	}
	require.NotNil(t, batches.Check)

	version := func(initial, remaining string) record.Fields {
		return record.Fields{"quantity_initial": record.DecString(initial), "quantity_remaining": record.DecString(remaining)}
	}

	assert.NoError(t, batches.Validate("b1", nil, version("10", "10")))
	assert.NoError(t, batches.Validate("b1", version("10", "10"), version("10", "4")))
	assert.NoError(t, batches.Validate("b1", version("10", "4"), version("10", "0")))

	var ie *record.InvariantError
	assert.ErrorAs(t, batches.Validate("b1", nil, version("10", "-5")), &ie)
	assert.ErrorAs(t, batches.Validate("b1", nil, version("10", "11")), &ie)
	err := batches.Validate("b1", version("10", "4"), version("10", "6"))
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, TableBatches, ie.Table)
	assert.Equal(t, "b1", ie.RowID)
	assert.Contains(t, ie.Reason, "may only decrease")
}

func TestMaterial_BelowReorder(t *testing.T) {
	m := Material{CurrentStock: decimal.NewFromInt(5), ReorderLevel: decimal.NewFromInt(5)}
	assert.True(t, m.BelowReorder())

	m.ReorderLevel = decimal.Zero
	assert.False(t, m.BelowReorder())
}

func TestPlanner_Plan(t *testing.T) {
	p := NewPlanner(batch.NewFIFOBatchStrategy())
	ctx := context.Background()
	batches := []Batch{
		{ID: "b2", MaterialID: "m", QuantityInitial: decimal.NewFromInt(80), QuantityRemaining: decimal.NewFromInt(80), ReceivedDate: date(2026, 1, 1)},
		{ID: "b1", MaterialID: "m", QuantityInitial: decimal.NewFromInt(20), QuantityRemaining: decimal.NewFromInt(20), ReceivedDate: date(2025, 1, 1)},
	}

	t.Run("fifo across batches", func(t *testing.T) {
		takes, err := p.Plan(ctx, "m", decimal.NewFromInt(30), batches)
		require.NoError(t, err)
		require.Len(t, takes, 2)
		assert.Equal(t, "b1", takes[0].BatchID)
		assert.True(t, takes[0].Quantity.Equal(decimal.NewFromInt(20)))
		assert.Equal(t, "b2", takes[1].BatchID)
		assert.True(t, takes[1].Quantity.Equal(decimal.NewFromInt(10)))
	})

	t.Run("insufficient stock returns no takes", func(t *testing.T) {
		takes, err := p.Plan(ctx, "m", decimal.NewFromInt(101), batches)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Nil(t, takes)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := p.Plan(ctx, "m", decimal.Zero, batches)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	assert.Equal(t, "fifo", p.StrategyName())
}

func TestAllocation_Consumptions(t *testing.T) {
	at := date(2025, 6, 1)
	a := Allocation{
		ID:         "a1",
		MaterialID: "m",
		Takes: []Take{
			{BatchID: "b1", Quantity: decimal.NewFromInt(20)},
			{BatchID: "b2", Quantity: decimal.NewFromInt(10)},
		},
		Mixed:  &MixedBatchMarker{AllocationID: "a1", MaterialID: "m", BatchIDs: []string{"b1", "b2"}},
		BrewID: record.Some("brew"),
		At:     at,
	}
	assert.True(t, a.Total().Equal(decimal.NewFromInt(30)))

	cs := a.Consumptions()
	require.Len(t, cs, 2)
	assert.Equal(t, int64(1), cs[0].Sequence)
	assert.Equal(t, int64(2), cs[1].Sequence)
	assert.True(t, cs[0].Mixed)
	assert.Equal(t, "brew", cs[1].BrewID.OrElse(""))

	back := ConsumptionFromRow(record.Row{ID: "c", Fields: cs[1].Fields()})
	assert.Equal(t, "b2", back.BatchID)
	assert.Equal(t, int64(2), back.Sequence)
}
