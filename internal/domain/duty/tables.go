package duty

import (
	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
)

// Table names
const (
	TableLines    = "duty_lines"
	TableReclaims = "spoilage_reclaims"
	TableReturns  = "duty_returns"
)

// Tables returns the duty table schemas
func Tables() []record.TableSchema {
	returnCols := []record.Column{
		{Name: "period", Type: record.TypeText},
		{Name: "status", Type: record.TypeText, Default: record.Text(string(StatusDraft))},
	}
	zero := record.Dec(decimal.Zero)
	for _, c := range Categories {
		returnCols = append(returnCols,
			record.Column{Name: string(c) + "_litres", Type: record.TypeDecimal, Default: zero},
			record.Column{Name: string(c) + "_lpa", Type: record.TypeDecimal, Default: zero},
			record.Column{Name: string(c) + "_duty", Type: record.TypeDecimal, Default: zero},
		)
	}
	returnCols = append(returnCols,
		record.Column{Name: "reclaim_duty", Type: record.TypeDecimal, Default: zero},
		record.Column{Name: "gross_duty", Type: record.TypeDecimal, Default: zero},
		record.Column{Name: "net_duty", Type: record.TypeDecimal, Default: zero},
		record.Column{Name: "anomaly", Type: record.TypeBool, Default: record.Bool(false)},
		record.Column{Name: "finalized_at", Type: record.TypeTime, Nullable: true},
		record.Column{Name: "submitted_at", Type: record.TypeTime, Nullable: true},
	)

	return []record.TableSchema{
		{
			Name: TableLines,
			Columns: []record.Column{
				{Name: "period", Type: record.TypeText},
				{Name: "brew_id", Type: record.TypeText, Nullable: true},
				{Name: "gyle", Type: record.TypeText},
				{Name: "packaged_at", Type: record.TypeTime},
				{Name: "container_litres", Type: record.TypeDecimal},
				{Name: "containers", Type: record.TypeInt},
				{Name: "litres", Type: record.TypeDecimal},
				{Name: "abv", Type: record.TypeDecimal},
				{Name: "lpa", Type: record.TypeDecimal},
				{Name: "category", Type: record.TypeText},
				{Name: "rate", Type: record.TypeDecimal},
				{Name: "duty", Type: record.TypeDecimal},
			},
		},
		{
			Name: TableReclaims,
			Columns: []record.Column{
				{Name: "period", Type: record.TypeText},
				{Name: "gyle", Type: record.TypeText},
				{Name: "litres", Type: record.TypeDecimal},
				{Name: "abv", Type: record.TypeDecimal},
				{Name: "lpa", Type: record.TypeDecimal},
				{Name: "category", Type: record.TypeText},
				{Name: "rate", Type: record.TypeDecimal},
				{Name: "duty", Type: record.TypeDecimal},
				{Name: "reason", Type: record.TypeText},
				{Name: "recorded_at", Type: record.TypeTime},
			},
		},
		{Name: TableReturns, Columns: returnCols},
	}
}
