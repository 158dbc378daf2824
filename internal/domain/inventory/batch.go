package inventory

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared/strategy"
)

// Batch is one received delivery of a material. Only QuantityRemaining ever
// changes, and only downwards.
type Batch struct {
	ID                string
	MaterialID        string
	QuantityInitial   decimal.Decimal
	QuantityRemaining decimal.Decimal
	ReceivedDate      time.Time
	Supplier          record.Optional[string]
	LotCode           record.Optional[string]
	UnitCost          record.Optional[decimal.Decimal]
}

// NewBatch validates a delivery and returns it with the full quantity
// remaining.
func NewBatch(materialID string, quantity decimal.Decimal, received time.Time) (Batch, error) {
	if materialID == "" {
		return Batch{}, shared.NewDomainError(shared.CodeInvalidInput, "material is required")
	}
	if !quantity.IsPositive() {
		return Batch{}, shared.Errorf(shared.CodeInvalidInput, "batch quantity must be positive, got %s", quantity)
	}
	if received.IsZero() {
		return Batch{}, shared.NewDomainError(shared.CodeInvalidInput, "received date is required")
	}
	return Batch{
		MaterialID:        materialID,
		QuantityInitial:   quantity,
		QuantityRemaining: quantity,
		ReceivedDate:      received.UTC(),
	}, nil
}

// BatchFromRow maps an inventory_batches row
func BatchFromRow(r record.Row) Batch {
	return Batch{
		ID:                r.ID,
		MaterialID:        r.Fields.Text("material_id"),
		QuantityInitial:   r.Fields.Decimal("quantity_initial"),
		QuantityRemaining: r.Fields.Decimal("quantity_remaining"),
		ReceivedDate:      r.Fields.Time("received_date"),
		Supplier:          r.Fields.OptText("supplier"),
		LotCode:           r.Fields.OptText("lot_code"),
		UnitCost:          r.Fields.OptDecimal("unit_cost"),
	}
}

// Fields returns the row fields of the batch
func (b Batch) Fields() record.Fields {
	return record.Fields{
		"material_id":        record.Text(b.MaterialID),
		"quantity_initial":   record.Dec(b.QuantityInitial),
		"quantity_remaining": record.Dec(b.QuantityRemaining),
		"received_date":      record.Time(b.ReceivedDate),
		"supplier":           record.OptionalText(b.Supplier),
		"lot_code":           record.OptionalText(b.LotCode),
		"unit_cost":          record.OptionalDec(b.UnitCost),
	}
}

// Take returns the remaining quantity after drawing q, or
// INSUFFICIENT_STOCK if the batch does not hold q.
func (b Batch) Take(q decimal.Decimal) (decimal.Decimal, error) {
	if !q.IsPositive() {
		return b.QuantityRemaining, shared.Errorf(shared.CodeInvalidInput, "take quantity must be positive, got %s", q)
	}
	if q.GreaterThan(b.QuantityRemaining) {
		return b.QuantityRemaining, shared.Errorf(shared.CodeInsufficientStock,
			"batch %s holds %s, cannot take %s", b.ID, b.QuantityRemaining, q)
	}
	return b.QuantityRemaining.Sub(q), nil
}

// Valid reports whether 0 <= remaining <= initial
func (b Batch) Valid() bool {
	return !b.QuantityRemaining.IsNegative() && b.QuantityRemaining.LessThanOrEqual(b.QuantityInitial)
}

// Candidate converts the batch for a selection strategy
func (b Batch) Candidate() strategy.Batch {
	return strategy.Batch{
		ID:           b.ID,
		MaterialID:   b.MaterialID,
		Remaining:    b.QuantityRemaining,
		ReceivedDate: b.ReceivedDate,
	}
}
