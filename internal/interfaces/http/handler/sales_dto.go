package handler

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/sales"
)

// SaleResponse represents a sale in API responses
type SaleResponse struct {
	ID        string          `json:"id"`
	SaleDate  time.Time       `json:"sale_date"`
	Customer  string          `json:"customer"`
	Product   string          `json:"product"`
	Quantity  decimal.Decimal `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	InvoiceID *string         `json:"invoice_id,omitempty"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	Customer      string          `json:"customer"`
	IssuedAt      time.Time       `json:"issued_at"`
	Total         decimal.Decimal `json:"total"`
}

// ToSaleResponse converts a domain sale to its response
func ToSaleResponse(s sales.Sale) SaleResponse {
	return SaleResponse{
		ID:        s.ID,
		SaleDate:  s.SaleDate,
		Customer:  s.Customer,
		Product:   s.Product,
		Quantity:  s.Quantity,
		Amount:    s.Amount,
		InvoiceID: s.InvoiceID.Ptr(),
	}
}

// ToSaleResponses converts a list of sales
func ToSaleResponses(list []sales.Sale) []SaleResponse {
	out := make([]SaleResponse, len(list))
	for i, s := range list {
		out[i] = ToSaleResponse(s)
	}
	return out
}

// ToInvoiceResponse converts a domain invoice to its response
func ToInvoiceResponse(i sales.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:            i.ID,
		InvoiceNumber: i.InvoiceNumber,
		Customer:      i.Customer,
		IssuedAt:      i.IssuedAt,
		Total:         i.Total,
	}
}
