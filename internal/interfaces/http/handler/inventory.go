package handler

import (
	"github.com/gin-gonic/gin"
	inventoryapp "github.com/tonka1973/BreweryManager-sub001/internal/application/inventory"
)

// InventoryHandler handles material, batch and allocation endpoints
type InventoryHandler struct {
	BaseHandler
	inventoryService *inventoryapp.InventoryService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(inventoryService *inventoryapp.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

// CreateMaterial registers a material
// @Router /inventory/materials [post]
func (h *InventoryHandler) CreateMaterial(c *gin.Context) {
	var req inventoryapp.CreateMaterialRequest
	if !h.BindJSON(c, &req) {
		return
	}
	material, err := h.inventoryService.CreateMaterial(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, material)
}

// ListMaterials lists every material
// @Router /inventory/materials [get]
func (h *InventoryHandler) ListMaterials(c *gin.Context) {
	materials, err := h.inventoryService.ListMaterials(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, materials)
}

// GetMaterial returns one material
// @Router /inventory/materials/{id} [get]
func (h *InventoryHandler) GetMaterial(c *gin.Context) {
	material, err := h.inventoryService.GetMaterial(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, material)
}

// ListBatches lists the batches of a material oldest first
// @Router /inventory/materials/{id}/batches [get]
func (h *InventoryHandler) ListBatches(c *gin.Context) {
	batches, err := h.inventoryService.ListBatches(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// ReceiveBatch godoc
// @Summary      Receive a batch
// @Description  Records a delivery and raises the material's current stock
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.ReceiveBatchRequest true "Delivery"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /inventory/batches [post]
func (h *InventoryHandler) ReceiveBatch(c *gin.Context) {
	var req inventoryapp.ReceiveBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}
	batch, err := h.inventoryService.ReceiveBatch(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, batch)
}

// Allocate godoc
// @Summary      Allocate stock
// @Description  Draws the quantity from the material's batches oldest first. Fails with INSUFFICIENT_STOCK and changes nothing when the batches cannot cover it.
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        id path string true "Material ID"
// @Param        request body inventoryapp.AllocateRequest true "Quantity"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /inventory/materials/{id}/allocate [post]
func (h *InventoryHandler) Allocate(c *gin.Context) {
	var req inventoryapp.AllocateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.MaterialID = c.Param("id")

	allocation, err := h.inventoryService.Allocate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, allocation)
}

// Reconcile resets one material's current stock to the sum of its batches
// @Router /inventory/materials/{id}/reconcile [post]
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	result, err := h.inventoryService.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ReconcileAll reconciles every material
// @Router /inventory/reconcile [post]
func (h *InventoryHandler) ReconcileAll(c *gin.Context) {
	results, err := h.inventoryService.ReconcileAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if results == nil {
		results = []inventoryapp.ReconcileResult{}
	}
	h.Success(c, results)
}

// Traceability lists the batches an allocation drew from
// @Router /inventory/allocations/{id} [get]
func (h *InventoryHandler) Traceability(c *gin.Context) {
	trace, err := h.inventoryService.Traceability(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, trace)
}

// RegisterRoutes registers the inventory routes
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/inventory")
	g.POST("/materials", h.CreateMaterial)
	g.GET("/materials", h.ListMaterials)
	g.GET("/materials/:id", h.GetMaterial)
	g.GET("/materials/:id/batches", h.ListBatches)
	g.POST("/materials/:id/allocate", h.Allocate)
	g.POST("/materials/:id/reconcile", h.Reconcile)
	g.POST("/reconcile", h.ReconcileAll)
	g.POST("/batches", h.ReceiveBatch)
	g.GET("/allocations/:id", h.Traceability)
}
