package strategy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Batch is a received lot of one material as seen by a selection strategy
type Batch struct {
	ID           string
	MaterialID   string
	Remaining    decimal.Decimal
	ReceivedDate time.Time
}

// BatchSelection is the quantity to take from one batch
type BatchSelection struct {
	BatchID  string
	Quantity decimal.Decimal
}

// BatchSelectionContext provides context for batch selection
type BatchSelectionContext struct {
	MaterialID string
	Quantity   decimal.Decimal
}

// BatchSelectionResult contains the result of batch selection. A positive
// ShortfallQty means the batches could not cover the request.
type BatchSelectionResult struct {
	Selections   []BatchSelection
	TotalQty     decimal.Decimal
	ShortfallQty decimal.Decimal
}

// Covered reports whether the selection satisfies the whole request
func (r BatchSelectionResult) Covered() bool {
	return !r.ShortfallQty.IsPositive()
}

// BatchManagementStrategy decides which batches a consumption draws from
type BatchManagementStrategy interface {
	Strategy
	// SelectBatches selects batches for consumption based on strategy rules.
	// It never mutates batches.
	SelectBatches(ctx context.Context, selCtx BatchSelectionContext, batches []Batch) (BatchSelectionResult, error)
}
