package handler

import (
	"github.com/gin-gonic/gin"
	salesapp "github.com/tonka1973/BreweryManager-sub001/internal/application/sales"
)

// SalesHandler handles sale and invoice endpoints
type SalesHandler struct {
	BaseHandler
	salesService *salesapp.SalesService
}

// NewSalesHandler creates a new SalesHandler
func NewSalesHandler(salesService *salesapp.SalesService) *SalesHandler {
	return &SalesHandler{salesService: salesService}
}

// RecordSale godoc
// @Summary      Record a sale
// @Tags         sales
// @Accept       json
// @Produce      json
// @Param        request body salesapp.RecordSaleRequest true "Sale"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Router       /sales [post]
func (h *SalesHandler) RecordSale(c *gin.Context) {
	var req salesapp.RecordSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	sale, err := h.salesService.RecordSale(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToSaleResponse(*sale))
}

// ListUninvoiced lists sales that are not yet billed
// @Router /sales/uninvoiced [get]
func (h *SalesHandler) ListUninvoiced(c *gin.Context) {
	list, err := h.salesService.ListUninvoiced(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToSaleResponses(list))
}

// CreateInvoice godoc
// @Summary      Invoice a set of sales
// @Description  All sales must belong to one customer and be uninvoiced
// @Tags         sales
// @Accept       json
// @Produce      json
// @Param        request body salesapp.CreateInvoiceRequest true "Invoice"
// @Success      201 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /sales/invoices [post]
func (h *SalesHandler) CreateInvoice(c *gin.Context) {
	var req salesapp.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	invoice, err := h.salesService.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToInvoiceResponse(*invoice))
}

// RegisterRoutes registers the sales routes
func (h *SalesHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/sales")
	g.POST("", h.RecordSale)
	g.GET("/uninvoiced", h.ListUninvoiced)
	g.POST("/invoices", h.CreateInvoice)
}
