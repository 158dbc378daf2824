package inventory

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/inventory"
)

// CreateMaterialRequest represents a request to register a material
type CreateMaterialRequest struct {
	Name         string           `json:"name" binding:"required,min=1,max=200"`
	Unit         string           `json:"unit" binding:"omitempty,max=20"`
	Category     string           `json:"category" binding:"omitempty,max=50"`
	ReorderLevel *decimal.Decimal `json:"reorder_level"`
}

// ReceiveBatchRequest represents a delivery of a material
type ReceiveBatchRequest struct {
	MaterialID   string           `json:"material_id" binding:"required"`
	Quantity     decimal.Decimal  `json:"quantity"`
	ReceivedDate time.Time        `json:"received_date" binding:"required"`
	Supplier     *string          `json:"supplier"`
	LotCode      *string          `json:"lot_code"`
	UnitCost     *decimal.Decimal `json:"unit_cost"`
}

// AllocateRequest represents a request to consume stock
type AllocateRequest struct {
	MaterialID string          `json:"-"`
	Quantity   decimal.Decimal `json:"quantity"`
	BrewID     *string         `json:"brew_id"`
}

// MaterialResponse represents a material in API responses
type MaterialResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Category     string          `json:"category"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	BelowReorder bool            `json:"below_reorder"`
	SyncState    string          `json:"sync_state"`
}

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	ID                string           `json:"id"`
	MaterialID        string           `json:"material_id"`
	QuantityInitial   decimal.Decimal  `json:"quantity_initial"`
	QuantityRemaining decimal.Decimal  `json:"quantity_remaining"`
	ReceivedDate      time.Time        `json:"received_date"`
	Supplier          *string          `json:"supplier,omitempty"`
	LotCode           *string          `json:"lot_code,omitempty"`
	UnitCost          *decimal.Decimal `json:"unit_cost,omitempty"`
}

// TakeResponse is the quantity drawn from one batch
type TakeResponse struct {
	BatchID  string          `json:"batch_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// MixedBatchResponse lists the batches of a multi-batch allocation in draw order
type MixedBatchResponse struct {
	AllocationID string   `json:"allocation_id"`
	BatchIDs     []string `json:"batch_ids"`
}

// AllocationResponse represents the outcome of an allocation
type AllocationResponse struct {
	ID         string              `json:"id"`
	MaterialID string              `json:"material_id"`
	Quantity   decimal.Decimal     `json:"quantity"`
	Takes      []TakeResponse      `json:"takes"`
	Mixed      *MixedBatchResponse `json:"mixed,omitempty"`
	BrewID     *string             `json:"brew_id,omitempty"`
	Strategy   string              `json:"strategy"`
	At         time.Time           `json:"at"`
}

// ReconcileResult reports the stock figure of one material before and
// after reconciliation
type ReconcileResult struct {
	MaterialID string          `json:"material_id"`
	Before     decimal.Decimal `json:"before"`
	After      decimal.Decimal `json:"after"`
	Adjusted   bool            `json:"adjusted"`
}

// TraceResponse lists every consumption of one allocation
type TraceResponse struct {
	AllocationID string         `json:"allocation_id"`
	MaterialID   string         `json:"material_id"`
	Mixed        bool           `json:"mixed"`
	Takes        []TakeResponse `json:"takes"`
	BrewID       *string        `json:"brew_id,omitempty"`
	ConsumedAt   time.Time      `json:"consumed_at"`
}

// ToMaterialResponse converts a domain Material to a response
func ToMaterialResponse(m inventory.Material) MaterialResponse {
	return MaterialResponse{
		ID:           m.ID,
		Name:         m.Name,
		Unit:         m.Unit,
		Category:     m.Category,
		CurrentStock: m.CurrentStock,
		ReorderLevel: m.ReorderLevel,
		BelowReorder: m.BelowReorder(),
		SyncState:    m.State.String(),
	}
}

// ToBatchResponse converts a domain Batch to a response
func ToBatchResponse(b inventory.Batch) BatchResponse {
	return BatchResponse{
		ID:                b.ID,
		MaterialID:        b.MaterialID,
		QuantityInitial:   b.QuantityInitial,
		QuantityRemaining: b.QuantityRemaining,
		ReceivedDate:      b.ReceivedDate,
		Supplier:          b.Supplier.Ptr(),
		LotCode:           b.LotCode.Ptr(),
		UnitCost:          b.UnitCost.Ptr(),
	}
}

// ToAllocationResponse converts a domain Allocation to a response
func ToAllocationResponse(a inventory.Allocation, strategyName string) AllocationResponse {
	resp := AllocationResponse{
		ID:         a.ID,
		MaterialID: a.MaterialID,
		Quantity:   a.Quantity,
		Takes:      toTakeResponses(a.Takes),
		Strategy:   strategyName,
		BrewID:     a.BrewID.Ptr(),
		At:         a.At,
	}
	if a.Mixed != nil {
		resp.Mixed = &MixedBatchResponse{AllocationID: a.Mixed.AllocationID, BatchIDs: a.Mixed.BatchIDs}
	}
	return resp
}

func toTakeResponses(takes []inventory.Take) []TakeResponse {
	out := make([]TakeResponse, 0, len(takes))
	for _, t := range takes {
		out = append(out, TakeResponse{BatchID: t.BatchID, Quantity: t.Quantity})
	}
	return out
}
