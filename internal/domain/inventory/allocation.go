package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared/strategy"
)

// Take is the quantity drawn from one batch
type Take struct {
	BatchID  string
	Quantity decimal.Decimal
}

// MixedBatchMarker records that one allocation drew from several batches,
// in draw order, so the resulting brew can be traced back to every lot.
type MixedBatchMarker struct {
	AllocationID string
	MaterialID   string
	BatchIDs     []string
}

// Allocation is the outcome of consuming a quantity of a material
type Allocation struct {
	ID         string
	MaterialID string
	Quantity   decimal.Decimal
	Takes      []Take
	Mixed      *MixedBatchMarker
	BrewID     record.Optional[string]
	At         time.Time
}

// Total returns the sum of all takes
func (a Allocation) Total() decimal.Decimal {
	total := decimal.Zero
	for _, t := range a.Takes {
		total = total.Add(t.Quantity)
	}
	return total
}

// Consumptions returns one consumption record per take
func (a Allocation) Consumptions() []Consumption {
	out := make([]Consumption, 0, len(a.Takes))
	for i, t := range a.Takes {
		out = append(out, Consumption{
			AllocationID: a.ID,
			MaterialID:   a.MaterialID,
			BatchID:      t.BatchID,
			Sequence:     int64(i + 1),
			Quantity:     t.Quantity,
			Mixed:        a.Mixed != nil,
			BrewID:       a.BrewID,
			ConsumedAt:   a.At,
		})
	}
	return out
}

// Planner turns a request into batch takes using a selection strategy
type Planner struct {
	strategy strategy.BatchManagementStrategy
}

// NewPlanner creates a planner backed by s
func NewPlanner(s strategy.BatchManagementStrategy) *Planner {
	return &Planner{strategy: s}
}

// Plan selects the takes covering quantity of materialID. It is all or
// nothing: if the batches cannot cover the request it returns
// INSUFFICIENT_STOCK and no takes.
func (p *Planner) Plan(ctx context.Context, materialID string, quantity decimal.Decimal, batches []Batch) ([]Take, error) {
	if !quantity.IsPositive() {
		return nil, shared.Errorf(shared.CodeInvalidInput, "allocation quantity must be positive, got %s", quantity)
	}

	candidates := make([]strategy.Batch, 0, len(batches))
	for _, b := range batches {
		candidates = append(candidates, b.Candidate())
	}
	result, err := p.strategy.SelectBatches(ctx, strategy.BatchSelectionContext{
		MaterialID: materialID,
		Quantity:   quantity,
	}, candidates)
	if err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	if !result.Covered() {
		return nil, shared.Errorf(shared.CodeInsufficientStock,
			"only %s available, %s requested", result.TotalQty, quantity)
	}

	takes := make([]Take, 0, len(result.Selections))
	for _, s := range result.Selections {
		takes = append(takes, Take{BatchID: s.BatchID, Quantity: s.Quantity})
	}
	return takes, nil
}

// StrategyName names the selection strategy in use
func (p *Planner) StrategyName() string {
	return p.strategy.Name()
}
