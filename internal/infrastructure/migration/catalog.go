package migration

import (
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/duty"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/inventory"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/production"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/sales"
)

// Catalog returns every table the brewery core stores and syncs, in
// sync order.
func Catalog() *record.Schema {
	var tables []record.TableSchema
	tables = append(tables, inventory.Tables()...)
	tables = append(tables, production.Tables()...)
	tables = append(tables, duty.Tables()...)
	tables = append(tables, sales.Tables()...)
	return record.MustSchema(tables...)
}
