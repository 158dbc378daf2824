// Package sales holds sales and the invoices that bill them.
package sales

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
)

// Table names
const (
	TableSales    = "sales"
	TableInvoices = "invoices"
)

// Tables returns the sales table schemas
func Tables() []record.TableSchema {
	return []record.TableSchema{
		{
			Name: TableSales,
			Columns: []record.Column{
				{Name: "sale_date", Type: record.TypeTime},
				{Name: "customer", Type: record.TypeText},
				{Name: "product", Type: record.TypeText},
				{Name: "quantity", Type: record.TypeDecimal},
				{Name: "amount", Type: record.TypeDecimal},
				{Name: "invoice_id", Type: record.TypeText, Nullable: true},
			},
		},
		{
			Name: TableInvoices,
			Columns: []record.Column{
				{Name: "invoice_number", Type: record.TypeText},
				{Name: "customer", Type: record.TypeText},
				{Name: "issued_at", Type: record.TypeTime},
				{Name: "total", Type: record.TypeDecimal},
			},
		},
	}
}

// Sale is one sale line. InvoiceID is None until the sale is billed.
type Sale struct {
	ID        string
	SaleDate  time.Time
	Customer  string
	Product   string
	Quantity  decimal.Decimal
	Amount    decimal.Decimal
	InvoiceID record.Optional[string]
}

// SaleFromRow maps a sales row
func SaleFromRow(r record.Row) Sale {
	return Sale{
		ID:        r.ID,
		SaleDate:  r.Fields.Time("sale_date"),
		Customer:  r.Fields.Text("customer"),
		Product:   r.Fields.Text("product"),
		Quantity:  r.Fields.Decimal("quantity"),
		Amount:    r.Fields.Decimal("amount"),
		InvoiceID: r.Fields.OptText("invoice_id"),
	}
}

// Fields returns the row fields of the sale
func (s Sale) Fields() record.Fields {
	return record.Fields{
		"sale_date":  record.Time(s.SaleDate),
		"customer":   record.Text(s.Customer),
		"product":    record.Text(s.Product),
		"quantity":   record.Dec(s.Quantity),
		"amount":     record.Dec(s.Amount),
		"invoice_id": record.OptionalText(s.InvoiceID),
	}
}

// Invoiced reports whether the sale has been billed
func (s Sale) Invoiced() bool {
	return s.InvoiceID.IsSome()
}

// Invoice bills one or more sales of a customer
type Invoice struct {
	ID            string
	InvoiceNumber string
	Customer      string
	IssuedAt      time.Time
	Total         decimal.Decimal
}

// InvoiceFromRow maps an invoices row
func InvoiceFromRow(r record.Row) Invoice {
	return Invoice{
		ID:            r.ID,
		InvoiceNumber: r.Fields.Text("invoice_number"),
		Customer:      r.Fields.Text("customer"),
		IssuedAt:      r.Fields.Time("issued_at"),
		Total:         r.Fields.Decimal("total"),
	}
}

// Fields returns the row fields of the invoice
func (i Invoice) Fields() record.Fields {
	return record.Fields{
		"invoice_number": record.Text(i.InvoiceNumber),
		"customer":       record.Text(i.Customer),
		"issued_at":      record.Time(i.IssuedAt),
		"total":          record.Dec(i.Total),
	}
}
