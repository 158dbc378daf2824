// Package inventory holds the materials, received batches and consumption
// records of the brewery stock, and the rules that keep them consistent.
package inventory

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
)

// Table names
const (
	TableMaterials    = "materials"
	TableBatches      = "inventory_batches"
	TableConsumptions = "inventory_consumptions"
)

// Tables returns the inventory table schemas
func Tables() []record.TableSchema {
	zero := record.Dec(decimal.Zero)
	return []record.TableSchema{
		{
			Name: TableMaterials,
			Columns: []record.Column{
				{Name: "name", Type: record.TypeText},
				{Name: "unit", Type: record.TypeText, Default: record.Text("kg")},
				{Name: "category", Type: record.TypeText, Default: record.Text("other")},
				{Name: "current_stock", Type: record.TypeDecimal, Default: zero},
				{Name: "reorder_level", Type: record.TypeDecimal, Default: zero, AddedIn: 2},
			},
		},
		{
			Name: TableBatches,
			Columns: []record.Column{
				{Name: "material_id", Type: record.TypeText},
				{Name: "quantity_initial", Type: record.TypeDecimal},
				{Name: "quantity_remaining", Type: record.TypeDecimal},
				{Name: "received_date", Type: record.TypeTime},
				{Name: "supplier", Type: record.TypeText, Nullable: true},
				{Name: "lot_code", Type: record.TypeText, Nullable: true},
				{Name: "unit_cost", Type: record.TypeDecimal, Nullable: true},
			},
			Check: checkBatch,
		},
		{
			Name: TableConsumptions,
			Columns: []record.Column{
				{Name: "allocation_id", Type: record.TypeText},
				{Name: "material_id", Type: record.TypeText},
				{Name: "batch_id", Type: record.TypeText},
				{Name: "sequence", Type: record.TypeInt},
				{Name: "quantity", Type: record.TypeDecimal},
				{Name: "mixed", Type: record.TypeBool, Default: record.Bool(false)},
				{Name: "brew_id", Type: record.TypeText, Nullable: true},
				{Name: "consumed_at", Type: record.TypeTime},
			},
		},
	}
}

// checkBatch keeps 0 <= quantity_remaining <= quantity_initial on every
// stored version, and lets a local update only lower quantity_remaining.
func checkBatch(before, after record.Fields) error {
	b := Batch{
		QuantityInitial:   after.Decimal("quantity_initial"),
		QuantityRemaining: after.Decimal("quantity_remaining"),
	}
	if !b.Valid() {
		return fmt.Errorf("quantity_remaining %s is outside 0..%s", b.QuantityRemaining, b.QuantityInitial)
	}
	if before == nil {
		return nil
	}
	if prev := before.Decimal("quantity_remaining"); b.QuantityRemaining.GreaterThan(prev) {
		return fmt.Errorf("quantity_remaining may only decrease, %s to %s", prev, b.QuantityRemaining)
	}
	return nil
}
