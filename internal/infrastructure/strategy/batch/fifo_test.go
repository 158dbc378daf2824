package batch

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared/strategy"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestFIFOBatchStrategy_SelectBatches(t *testing.T) {
	s := NewFIFOBatchStrategy()
	ctx := context.Background()

	batches := []strategy.Batch{
		{ID: "b2", MaterialID: "malt", Remaining: decimal.NewFromInt(80), ReceivedDate: day("2026-01-01")},
		{ID: "b1", MaterialID: "malt", Remaining: decimal.NewFromInt(20), ReceivedDate: day("2025-01-01")},
		{ID: "hops", MaterialID: "hops", Remaining: decimal.NewFromInt(500), ReceivedDate: day("2024-01-01")},
	}

	t.Run("takes the oldest batch first", func(t *testing.T) {
		result, err := s.SelectBatches(ctx, strategy.BatchSelectionContext{MaterialID: "malt", Quantity: decimal.NewFromInt(30)}, batches)
		require.NoError(t, err)

		require.Len(t, result.Selections, 2)
		assert.Equal(t, "b1", result.Selections[0].BatchID)
		assert.True(t, result.Selections[0].Quantity.Equal(decimal.NewFromInt(20)))
		assert.Equal(t, "b2", result.Selections[1].BatchID)
		assert.True(t, result.Selections[1].Quantity.Equal(decimal.NewFromInt(10)))
		assert.True(t, result.TotalQty.Equal(decimal.NewFromInt(30)))
		assert.True(t, result.Covered())
	})

	t.Run("single batch when the oldest covers the request", func(t *testing.T) {
		result, err := s.SelectBatches(ctx, strategy.BatchSelectionContext{MaterialID: "malt", Quantity: decimal.NewFromInt(5)}, batches)
		require.NoError(t, err)

		require.Len(t, result.Selections, 1)
		assert.Equal(t, "b1", result.Selections[0].BatchID)
	})

	t.Run("reports shortfall", func(t *testing.T) {
		result, err := s.SelectBatches(ctx, strategy.BatchSelectionContext{MaterialID: "malt", Quantity: decimal.NewFromInt(150)}, batches)
		require.NoError(t, err)

		assert.False(t, result.Covered())
		assert.True(t, result.ShortfallQty.Equal(decimal.NewFromInt(50)))
		assert.True(t, result.TotalQty.Equal(decimal.NewFromInt(100)))
	})

	t.Run("skips empty batches", func(t *testing.T) {
		withEmpty := append([]strategy.Batch{
			{ID: "b0", MaterialID: "malt", Remaining: decimal.Zero, ReceivedDate: day("2020-01-01")},
		}, batches...)

		result, err := s.SelectBatches(ctx, strategy.BatchSelectionContext{MaterialID: "malt", Quantity: decimal.NewFromInt(1)}, withEmpty)
		require.NoError(t, err)
		require.Len(t, result.Selections, 1)
		assert.Equal(t, "b1", result.Selections[0].BatchID)
	})

	t.Run("same received date ordered by id", func(t *testing.T) {
		sameDay := []strategy.Batch{
			{ID: "z", MaterialID: "yeast", Remaining: decimal.NewFromInt(1), ReceivedDate: day("2025-06-01")},
			{ID: "a", MaterialID: "yeast", Remaining: decimal.NewFromInt(1), ReceivedDate: day("2025-06-01")},
		}
		result, err := s.SelectBatches(ctx, strategy.BatchSelectionContext{MaterialID: "yeast", Quantity: decimal.NewFromInt(2)}, sameDay)
		require.NoError(t, err)
		require.Len(t, result.Selections, 2)
		assert.Equal(t, "a", result.Selections[0].BatchID)
		assert.Equal(t, "z", result.Selections[1].BatchID)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		before := batches[0].Remaining
		_, err := s.SelectBatches(ctx, strategy.BatchSelectionContext{MaterialID: "malt", Quantity: decimal.NewFromInt(100)}, batches)
		require.NoError(t, err)
		assert.True(t, batches[0].Remaining.Equal(before))
		assert.Equal(t, "b2", batches[0].ID)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.SelectBatches(cancelled, strategy.BatchSelectionContext{MaterialID: "malt", Quantity: decimal.NewFromInt(1)}, batches)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFIFOBatchStrategy_Metadata(t *testing.T) {
	s := NewFIFOBatchStrategy()
	assert.Equal(t, "fifo", s.Name())
	assert.NotEmpty(t, s.Description())
}
