package batch

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared/strategy"
)

// FIFOBatchStrategy implements First In First Out batch selection.
// Batches are drawn oldest received first; batches received on the same
// day are ordered by ID so the result is deterministic.
type FIFOBatchStrategy struct {
	strategy.BaseStrategy
}

// NewFIFOBatchStrategy creates a new FIFO batch strategy
func NewFIFOBatchStrategy() *FIFOBatchStrategy {
	return &FIFOBatchStrategy{
		BaseStrategy: strategy.NewBaseStrategy("fifo", "oldest received batch first"),
	}
}

// SelectBatches selects batches in FIFO order by received date
func (s *FIFOBatchStrategy) SelectBatches(
	ctx context.Context,
	selCtx strategy.BatchSelectionContext,
	batches []strategy.Batch,
) (strategy.BatchSelectionResult, error) {
	if err := ctx.Err(); err != nil {
		return strategy.BatchSelectionResult{}, err
	}

	filtered := filterAvailableBatches(batches, selCtx.MaterialID)
	sort.SliceStable(filtered, func(i, j int) bool {
		if !filtered[i].ReceivedDate.Equal(filtered[j].ReceivedDate) {
			return filtered[i].ReceivedDate.Before(filtered[j].ReceivedDate)
		}
		return filtered[i].ID < filtered[j].ID
	})

	return selectFromBatches(filtered, selCtx.Quantity), nil
}

// filterAvailableBatches keeps batches of the material with stock left
func filterAvailableBatches(batches []strategy.Batch, materialID string) []strategy.Batch {
	filtered := make([]strategy.Batch, 0, len(batches))
	for _, b := range batches {
		if b.MaterialID == materialID && b.Remaining.IsPositive() {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// selectFromBatches walks sorted batches taking min(need, remaining) from each
func selectFromBatches(batches []strategy.Batch, quantity decimal.Decimal) strategy.BatchSelectionResult {
	remainingQty := quantity
	selections := make([]strategy.BatchSelection, 0)
	totalQty := decimal.Zero

	for _, b := range batches {
		if !remainingQty.IsPositive() {
			break
		}

		selectedQty := decimal.Min(remainingQty, b.Remaining)
		selections = append(selections, strategy.BatchSelection{
			BatchID:  b.ID,
			Quantity: selectedQty,
		})

		remainingQty = remainingQty.Sub(selectedQty)
		totalQty = totalQty.Add(selectedQty)
	}

	return strategy.BatchSelectionResult{
		Selections:   selections,
		TotalQty:     totalQty,
		ShortfallQty: remainingQty,
	}
}
