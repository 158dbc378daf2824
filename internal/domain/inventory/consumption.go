package inventory

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
)

// Consumption is the persisted trace of one take
type Consumption struct {
	ID           string
	AllocationID string
	MaterialID   string
	BatchID      string
	Sequence     int64
	Quantity     decimal.Decimal
	Mixed        bool
	BrewID       record.Optional[string]
	ConsumedAt   time.Time
}

// ConsumptionFromRow maps an inventory_consumptions row
func ConsumptionFromRow(r record.Row) Consumption {
	return Consumption{
		ID:           r.ID,
		AllocationID: r.Fields.Text("allocation_id"),
		MaterialID:   r.Fields.Text("material_id"),
		BatchID:      r.Fields.Text("batch_id"),
		Sequence:     r.Fields.Int("sequence"),
		Quantity:     r.Fields.Decimal("quantity"),
		Mixed:        r.Fields.Bool("mixed"),
		BrewID:       r.Fields.OptText("brew_id"),
		ConsumedAt:   r.Fields.Time("consumed_at"),
	}
}

// Fields returns the row fields of the consumption
func (c Consumption) Fields() record.Fields {
	return record.Fields{
		"allocation_id": record.Text(c.AllocationID),
		"material_id":   record.Text(c.MaterialID),
		"batch_id":      record.Text(c.BatchID),
		"sequence":      record.Int(c.Sequence),
		"quantity":      record.Dec(c.Quantity),
		"mixed":         record.Bool(c.Mixed),
		"brew_id":       record.OptionalText(c.BrewID),
		"consumed_at":   record.Time(c.ConsumedAt),
	}
}

// Trace is every consumption of one allocation in draw order
type Trace struct {
	AllocationID string
	MaterialID   string
	Mixed        bool
	Takes        []Consumption
}
