package inventory

import (
	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
)

// Material is an ingredient or consumable held in stock. CurrentStock is a
// denormalized total that must converge on the sum of its batches'
// remaining quantities.
type Material struct {
	ID           string
	Name         string
	Unit         string
	Category     string
	CurrentStock decimal.Decimal
	ReorderLevel decimal.Decimal
	State        record.SyncState
}

// MaterialFromRow maps a materials row
func MaterialFromRow(r record.Row) Material {
	return Material{
		ID:           r.ID,
		Name:         r.Fields.Text("name"),
		Unit:         r.Fields.Text("unit"),
		Category:     r.Fields.Text("category"),
		CurrentStock: r.Fields.Decimal("current_stock"),
		ReorderLevel: r.Fields.Decimal("reorder_level"),
		State:        r.State,
	}
}

// Fields returns the row fields of a new material
func (m Material) Fields() record.Fields {
	return record.Fields{
		"name":          record.Text(m.Name),
		"unit":          record.Text(m.Unit),
		"category":      record.Text(m.Category),
		"current_stock": record.Dec(m.CurrentStock),
		"reorder_level": record.Dec(m.ReorderLevel),
	}
}

// BelowReorder reports whether stock has fallen to the reorder level
func (m Material) BelowReorder() bool {
	return m.ReorderLevel.IsPositive() && m.CurrentStock.LessThanOrEqual(m.ReorderLevel)
}
