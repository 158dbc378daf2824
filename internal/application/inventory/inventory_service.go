// Package inventory implements the stock use cases: receiving batches,
// FIFO allocation with traceability, and reconciliation of the
// denormalized stock figure.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/inventory"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared/strategy"
	"go.uber.org/zap"
)

// InventoryService handles inventory-related business operations
type InventoryService struct {
	store    record.Store
	planner  *inventory.Planner
	notifier StockAlertNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewInventoryService creates a new InventoryService that selects batches
// with the given strategy
func NewInventoryService(store record.Store, batches strategy.BatchManagementStrategy, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		store:   store,
		planner: inventory.NewPlanner(batches),
		logger:  logger.Named("inventory"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier sets the receiver of low stock alerts
func (s *InventoryService) SetNotifier(n StockAlertNotifier) {
	s.notifier = n
}

// SetClock overrides the time source used for consumption timestamps
func (s *InventoryService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateMaterial registers a new material with zero stock
func (s *InventoryService) CreateMaterial(ctx context.Context, req CreateMaterialRequest) (*MaterialResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "material name is required")
	}
	m := inventory.Material{
		Name:         name,
		Unit:         defaultString(req.Unit, "kg"),
		Category:     defaultString(req.Category, "other"),
		CurrentStock: decimal.Zero,
		ReorderLevel: decimal.Zero,
	}
	if req.ReorderLevel != nil {
		if req.ReorderLevel.IsNegative() {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "reorder level cannot be negative")
		}
		m.ReorderLevel = *req.ReorderLevel
	}

	row, err := s.store.Insert(ctx, inventory.TableMaterials, m.Fields())
	if err != nil {
		return nil, err
	}
	resp := ToMaterialResponse(inventory.MaterialFromRow(row))
	return &resp, nil
}

// GetMaterial returns one material
func (s *InventoryService) GetMaterial(ctx context.Context, id string) (*MaterialResponse, error) {
	m, err := loadMaterial(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	resp := ToMaterialResponse(m)
	return &resp, nil
}

// ListMaterials returns every material ordered by name
func (s *InventoryService) ListMaterials(ctx context.Context) ([]MaterialResponse, error) {
	rows, err := s.store.GetAll(ctx, inventory.TableMaterials, record.Query{}.Sorted(record.Asc("name")))
	if err != nil {
		return nil, err
	}
	out := make([]MaterialResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, ToMaterialResponse(inventory.MaterialFromRow(r)))
	}
	return out, nil
}

// ListBatches returns the batches of a material, oldest first
func (s *InventoryService) ListBatches(ctx context.Context, materialID string) ([]BatchResponse, error) {
	batches, err := loadBatches(ctx, s.store, materialID, false)
	if err != nil {
		return nil, err
	}
	out := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, ToBatchResponse(b))
	}
	return out, nil
}

// ReceiveBatch records a delivery and adds it to the material's stock
func (s *InventoryService) ReceiveBatch(ctx context.Context, req ReceiveBatchRequest) (*BatchResponse, error) {
	b, err := inventory.NewBatch(req.MaterialID, req.Quantity, req.ReceivedDate)
	if err != nil {
		return nil, err
	}
	b.Supplier = record.FromPtr(req.Supplier)
	b.LotCode = record.FromPtr(req.LotCode)
	b.UnitCost = record.FromPtr(req.UnitCost)
	if c, ok := b.UnitCost.Get(); ok && c.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "unit cost cannot be negative")
	}

	err = s.store.WithTx(ctx, func(tx record.Store) error {
		m, err := loadMaterial(ctx, tx, req.MaterialID)
		if err != nil {
			return err
		}
		row, err := tx.Insert(ctx, inventory.TableBatches, b.Fields())
		if err != nil {
			return err
		}
		b = inventory.BatchFromRow(row)
		_, err = tx.Update(ctx, inventory.TableMaterials, m.ID, record.Fields{
			"current_stock": record.Dec(m.CurrentStock.Add(b.QuantityInitial)),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Batch received",
		zap.String("material_id", b.MaterialID),
		zap.String("batch_id", b.ID),
		zap.String("quantity", b.QuantityInitial.String()))
	resp := ToBatchResponse(b)
	return &resp, nil
}

// Allocate consumes quantity of a material from its batches, oldest first.
// Every batch decrement, the stock decrement and the consumption records
// are written in one transaction; if the batches cannot cover the request
// nothing changes and INSUFFICIENT_STOCK is returned.
func (s *InventoryService) Allocate(ctx context.Context, req AllocateRequest) (*AllocationResponse, error) {
	if !req.Quantity.IsPositive() {
		return nil, shared.Errorf(shared.CodeInvalidInput, "allocation quantity must be positive, got %s", req.Quantity)
	}

	alloc := inventory.Allocation{
		ID:         uuid.NewString(),
		MaterialID: req.MaterialID,
		Quantity:   req.Quantity,
		BrewID:     record.FromPtr(req.BrewID),
		At:         s.now().UTC(),
	}
	var material inventory.Material

	err := s.store.WithTx(ctx, func(tx record.Store) error {
		m, err := loadMaterial(ctx, tx, req.MaterialID)
		if err != nil {
			return err
		}
		batches, err := loadBatches(ctx, tx, req.MaterialID, true)
		if err != nil {
			return err
		}
		takes, err := s.planner.Plan(ctx, req.MaterialID, req.Quantity, batches)
		if err != nil {
			return err
		}

		byID := make(map[string]inventory.Batch, len(batches))
		for _, b := range batches {
			byID[b.ID] = b
		}
		for _, t := range takes {
			remaining, err := byID[t.BatchID].Take(t.Quantity)
			if err != nil {
				return err
			}
			if _, err := tx.Update(ctx, inventory.TableBatches, t.BatchID, record.Fields{
				"quantity_remaining": record.Dec(remaining),
			}); err != nil {
				return fmt.Errorf("decrement batch %s: %w", t.BatchID, err)
			}
		}

		alloc.Takes = takes
		if len(takes) > 1 {
			ids := make([]string, 0, len(takes))
			for _, t := range takes {
				ids = append(ids, t.BatchID)
			}
			alloc.Mixed = &inventory.MixedBatchMarker{AllocationID: alloc.ID, MaterialID: alloc.MaterialID, BatchIDs: ids}
		}
		for _, c := range alloc.Consumptions() {
			if _, err := tx.Insert(ctx, inventory.TableConsumptions, c.Fields()); err != nil {
				return fmt.Errorf("record consumption: %w", err)
			}
		}

		m.CurrentStock = m.CurrentStock.Sub(alloc.Total())
		row, err := tx.Update(ctx, inventory.TableMaterials, m.ID, record.Fields{
			"current_stock": record.Dec(m.CurrentStock),
		})
		if err != nil {
			return err
		}
		material = inventory.MaterialFromRow(row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stock allocated",
		zap.String("allocation_id", alloc.ID),
		zap.String("material_id", alloc.MaterialID),
		zap.String("quantity", alloc.Quantity.String()),
		zap.Int("batches", len(alloc.Takes)),
		zap.Bool("mixed", alloc.Mixed != nil))
	s.checkReorder(ctx, material)

	resp := ToAllocationResponse(alloc, s.planner.StrategyName())
	return &resp, nil
}

// SetCurrentStock is rejected: stock only changes through receipts and
// allocations so that it always matches the batches.
func (s *InventoryService) SetCurrentStock(ctx context.Context, materialID string, quantity decimal.Decimal) error {
	return shared.Errorf(shared.CodeInvalidState,
		"stock of material %s is derived from its batches; receive or allocate instead of setting %s", materialID, quantity)
}

// Reconcile recomputes a material's current stock from its batches and
// corrects the stored figure when they disagree.
func (s *InventoryService) Reconcile(ctx context.Context, materialID string) (*ReconcileResult, error) {
	var result ReconcileResult
	err := s.store.WithTx(ctx, func(tx record.Store) error {
		m, err := loadMaterial(ctx, tx, materialID)
		if err != nil {
			return err
		}
		r, err := reconcile(ctx, tx, m)
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}
	if result.Adjusted {
		s.logger.Warn("Material stock corrected",
			zap.String("material_id", result.MaterialID),
			zap.String("before", result.Before.String()),
			zap.String("after", result.After.String()))
	}
	return &result, nil
}

// ReconcileAll reconciles every material and returns the ones that changed
func (s *InventoryService) ReconcileAll(ctx context.Context) ([]ReconcileResult, error) {
	rows, err := s.store.GetAll(ctx, inventory.TableMaterials, record.Query{})
	if err != nil {
		return nil, err
	}
	var adjusted []ReconcileResult
	for _, row := range rows {
		r, err := s.Reconcile(ctx, row.ID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return adjusted, err
		}
		if r.Adjusted {
			adjusted = append(adjusted, *r)
		}
	}
	return adjusted, nil
}

// Traceability returns the consumption records of one allocation in draw order
func (s *InventoryService) Traceability(ctx context.Context, allocationID string) (*TraceResponse, error) {
	rows, err := s.store.GetAll(ctx, inventory.TableConsumptions,
		record.Where(record.Eq("allocation_id", record.Text(allocationID))).Sorted(record.Asc("sequence")))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, shared.Errorf(shared.CodeNotFound, "allocation %s not found", allocationID)
	}

	first := inventory.ConsumptionFromRow(rows[0])
	trace := &TraceResponse{
		AllocationID: allocationID,
		MaterialID:   first.MaterialID,
		Mixed:        first.Mixed,
		BrewID:       first.BrewID.Ptr(),
		ConsumedAt:   first.ConsumedAt,
	}
	for _, r := range rows {
		c := inventory.ConsumptionFromRow(r)
		trace.Takes = append(trace.Takes, TakeResponse{BatchID: c.BatchID, Quantity: c.Quantity})
	}
	return trace, nil
}

func (s *InventoryService) checkReorder(ctx context.Context, m inventory.Material) {
	if !m.BelowReorder() {
		return
	}
	alert := NewStockAlert(m)
	if s.notifier == nil {
		s.logger.Warn("Material at or below reorder level",
			zap.String("material_id", m.ID),
			zap.String("current_stock", alert.CurrentStock),
			zap.String("reorder_level", alert.ReorderLevel))
		return
	}
	if err := s.notifier.SendAlert(ctx, alert); err != nil {
		s.logger.Error("Failed to send stock alert", zap.String("material_id", m.ID), zap.Error(err))
	}
}

func reconcile(ctx context.Context, tx record.Store, m inventory.Material) (ReconcileResult, error) {
	batches, err := loadBatches(ctx, tx, m.ID, false)
	if err != nil {
		return ReconcileResult{}, err
	}
	total := decimal.Zero
	for _, b := range batches {
		total = total.Add(b.QuantityRemaining)
	}
	result := ReconcileResult{MaterialID: m.ID, Before: m.CurrentStock, After: total}
	if m.CurrentStock.Equal(total) {
		return result, nil
	}
	if _, err := tx.Update(ctx, inventory.TableMaterials, m.ID, record.Fields{"current_stock": record.Dec(total)}); err != nil {
		return result, err
	}
	result.Adjusted = true
	return result, nil
}

func loadMaterial(ctx context.Context, store record.Store, id string) (inventory.Material, error) {
	row, err := store.Get(ctx, inventory.TableMaterials, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return inventory.Material{}, shared.Errorf(shared.CodeNotFound, "material %s not found", id)
		}
		return inventory.Material{}, err
	}
	return inventory.MaterialFromRow(row), nil
}

// loadBatches returns the batches of a material ordered oldest first,
// optionally only those with stock left.
func loadBatches(ctx context.Context, store record.Store, materialID string, available bool) ([]inventory.Batch, error) {
	where := record.Eq("material_id", record.Text(materialID))
	if available {
		where = record.And(where, record.Gt("quantity_remaining", record.Int(0)))
	}
	rows, err := store.GetAll(ctx, inventory.TableBatches, record.Where(where).Sorted(record.Asc("received_date")))
	if err != nil {
		return nil, err
	}
	batches := make([]inventory.Batch, 0, len(rows))
	for _, r := range rows {
		batches = append(batches, inventory.BatchFromRow(r))
	}
	return batches, nil
}

func defaultString(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}
