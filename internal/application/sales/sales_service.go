// Package sales records sales and bills them on invoices.
package sales

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/sales"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
	"go.uber.org/zap"
)

// RecordSaleRequest represents one sale line
type RecordSaleRequest struct {
	SaleDate time.Time       `json:"sale_date" binding:"required"`
	Customer string          `json:"customer" binding:"required"`
	Product  string          `json:"product" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// CreateInvoiceRequest bills a set of sales of one customer
type CreateInvoiceRequest struct {
	InvoiceNumber string    `json:"invoice_number" binding:"required"`
	IssuedAt      time.Time `json:"issued_at"`
	SaleIDs       []string  `json:"sale_ids" binding:"required,min=1"`
}

// SalesService handles sales and invoicing
type SalesService struct {
	store  record.Store
	logger *zap.Logger
}

// NewSalesService creates a new SalesService
func NewSalesService(store record.Store, logger *zap.Logger) *SalesService {
	return &SalesService{store: store, logger: logger.Named("sales")}
}

// RecordSale stores a new, uninvoiced sale
func (s *SalesService) RecordSale(ctx context.Context, req RecordSaleRequest) (*sales.Sale, error) {
	sale := sales.Sale{
		SaleDate: req.SaleDate.UTC(),
		Customer: strings.TrimSpace(req.Customer),
		Product:  strings.TrimSpace(req.Product),
		Quantity: req.Quantity,
		Amount:   req.Amount,
	}
	switch {
	case sale.Customer == "" || sale.Product == "":
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "customer and product are required")
	case !sale.Quantity.IsPositive():
		return nil, shared.Errorf(shared.CodeInvalidInput, "quantity must be positive, got %s", sale.Quantity)
	case sale.Amount.IsNegative():
		return nil, shared.Errorf(shared.CodeInvalidInput, "amount cannot be negative, got %s", sale.Amount)
	}
	row, err := s.store.Insert(ctx, sales.TableSales, sale.Fields())
	if err != nil {
		return nil, err
	}
	out := sales.SaleFromRow(row)
	return &out, nil
}

// ListUninvoiced returns the sales not yet billed, oldest first
func (s *SalesService) ListUninvoiced(ctx context.Context) ([]sales.Sale, error) {
	rows, err := s.store.GetAll(ctx, sales.TableSales,
		record.Where(record.IsNull("invoice_id")).Sorted(record.Asc("sale_date")))
	if err != nil {
		return nil, err
	}
	out := make([]sales.Sale, 0, len(rows))
	for _, r := range rows {
		out = append(out, sales.SaleFromRow(r))
	}
	return out, nil
}

// CreateInvoice bills the given sales on a new invoice. Every sale must
// belong to the same customer and be unbilled.
func (s *SalesService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*sales.Invoice, error) {
	number := strings.TrimSpace(req.InvoiceNumber)
	if number == "" || len(req.SaleIDs) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "invoice number and at least one sale are required")
	}
	issued := req.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}

	var invoice sales.Invoice
	err := s.store.WithTx(ctx, func(tx record.Store) error {
		dup, err := tx.GetAll(ctx, sales.TableInvoices, record.Where(record.Eq("invoice_number", record.Text(number))))
		if err != nil {
			return err
		}
		if len(dup) > 0 {
			return shared.Errorf(shared.CodeAlreadyExists, "invoice %s already exists", number)
		}

		billed := make([]sales.Sale, 0, len(req.SaleIDs))
		total := decimal.Zero
		for _, id := range req.SaleIDs {
			row, err := tx.Get(ctx, sales.TableSales, id)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return shared.Errorf(shared.CodeNotFound, "sale %s not found", id)
				}
				return err
			}
			sale := sales.SaleFromRow(row)
			if sale.Invoiced() {
				return shared.Errorf(shared.CodeInvalidState, "sale %s is already invoiced", id)
			}
			if len(billed) > 0 && sale.Customer != billed[0].Customer {
				return shared.Errorf(shared.CodeInvalidInput, "sale %s belongs to %s, not %s", id, sale.Customer, billed[0].Customer)
			}
			billed = append(billed, sale)
			total = total.Add(sale.Amount)
		}

		row, err := tx.Insert(ctx, sales.TableInvoices, sales.Invoice{
			InvoiceNumber: number,
			Customer:      billed[0].Customer,
			IssuedAt:      issued.UTC(),
			Total:         total,
		}.Fields())
		if err != nil {
			return err
		}
		invoice = sales.InvoiceFromRow(row)

		for _, sale := range billed {
			if _, err := tx.Update(ctx, sales.TableSales, sale.ID, record.Fields{"invoice_id": record.Text(invoice.ID)}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Invoice created",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("customer", invoice.Customer),
		zap.Int("sales", len(req.SaleIDs)),
		zap.String("total", invoice.Total.String()))
	return &invoice, nil
}
