package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	dutyapp "github.com/tonka1973/BreweryManager-sub001/internal/application/duty"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/duty"
)

// DutyHandler handles ABV, duty line and duty return endpoints
type DutyHandler struct {
	BaseHandler
	dutyService *dutyapp.DutyService
}

// NewDutyHandler creates a new DutyHandler
func NewDutyHandler(dutyService *dutyapp.DutyService) *DutyHandler {
	return &DutyHandler{dutyService: dutyService}
}

// RateResponse is the effective rate of one duty bucket
type RateResponse struct {
	Category string          `json:"category"`
	Rate     decimal.Decimal `json:"rate"`
	Relief   decimal.Decimal `json:"relief"`
}

// RatesResponse lists the rate table in use
type RatesResponse struct {
	EffectiveFrom     time.Time        `json:"effective_from"`
	AnnualHectolitres decimal.Decimal  `json:"annual_hectolitres"`
	ReliefBandUpTo    *decimal.Decimal `json:"relief_band_up_to,omitempty"`
	Rates             []RateResponse   `json:"rates"`
}

// CalculateABV godoc
// @Summary      ABV from gravity readings
// @Description  Returns determined=false when either reading is missing or the pair is out of range
// @Tags         duty
// @Accept       json
// @Produce      json
// @Param        request body dutyapp.ABVRequest true "Readings"
// @Success      200 {object} dto.Response
// @Router       /duty/abv [post]
func (h *DutyHandler) CalculateABV(c *gin.Context) {
	var req dutyapp.ABVRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.Success(c, h.dutyService.CalculateABV(req))
}

// CreateBrew records a brew
// @Router /duty/brews [post]
func (h *DutyHandler) CreateBrew(c *gin.Context) {
	var req dutyapp.CreateBrewRequest
	if !h.BindJSON(c, &req) {
		return
	}
	brew, err := h.dutyService.CreateBrew(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, brew)
}

// RecordGravity stores new readings on a brew and recomputes its ABV
// @Router /duty/brews/{id}/gravity [post]
func (h *DutyHandler) RecordGravity(c *gin.Context) {
	var req dutyapp.ABVRequest
	if !h.BindJSON(c, &req) {
		return
	}
	brew, err := h.dutyService.RecordGravity(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, brew)
}

// RecordPackaging creates the duty line of a packaging run
// @Router /duty/packaging [post]
func (h *DutyHandler) RecordPackaging(c *gin.Context) {
	var req dutyapp.PackagingRequest
	if !h.BindJSON(c, &req) {
		return
	}
	line, err := h.dutyService.RecordPackaging(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, line)
}

// RecordSpoilage records a spoilage reclaim against a period
// @Router /duty/spoilage [post]
func (h *DutyHandler) RecordSpoilage(c *gin.Context) {
	var req dutyapp.SpoilageRequest
	if !h.BindJSON(c, &req) {
		return
	}
	reclaim, err := h.dutyService.RecordSpoilage(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, reclaim)
}

// ListLines lists the duty lines of a period
// @Router /duty/returns/{period}/lines [get]
func (h *DutyHandler) ListLines(c *gin.Context) {
	lines, err := h.dutyService.ListLines(c.Request.Context(), c.Param("period"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lines)
}

// GetReturn godoc
// @Summary      Monthly duty return
// @Description  Aggregates the period's duty lines into the four buckets. Returns the stored return once finalized.
// @Tags         duty
// @Produce      json
// @Param        period path string true "Period, YYYY-MM"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Router       /duty/returns/{period} [get]
func (h *DutyHandler) GetReturn(c *gin.Context) {
	ret, err := h.dutyService.BuildReturn(c.Request.Context(), c.Param("period"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ret)
}

// FinalizeReturn godoc
// @Summary      Finalize a duty return
// @Description  Freezes the period; later packaging or spoilage in it fails with PERIOD_FINALIZED
// @Tags         duty
// @Produce      json
// @Param        period path string true "Period, YYYY-MM"
// @Success      200 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /duty/returns/{period}/finalize [post]
func (h *DutyHandler) FinalizeReturn(c *gin.Context) {
	ret, err := h.dutyService.Finalize(c.Request.Context(), c.Param("period"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ret)
}

// SubmitReturn marks a finalized return as submitted
// @Router /duty/returns/{period}/submit [post]
func (h *DutyHandler) SubmitReturn(c *gin.Context) {
	ret, err := h.dutyService.Submit(c.Request.Context(), c.Param("period"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ret)
}

// Rates lists the effective rate per bucket
// @Router /duty/rates [get]
func (h *DutyHandler) Rates(c *gin.Context) {
	table := h.dutyService.Rates()
	resp := RatesResponse{EffectiveFrom: table.EffectiveFrom, AnnualHectolitres: table.AnnualHectolitres()}
	if band, ok := table.Band(); ok {
		resp.ReliefBandUpTo = &band.UpToHectolitres
	}
	for _, category := range duty.Categories {
		resp.Rates = append(resp.Rates, RateResponse{
			Category: string(category),
			Rate:     table.Rate(category),
			Relief:   table.Relief(category),
		})
	}
	h.Success(c, resp)
}

// RegisterRoutes registers the duty routes
func (h *DutyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/duty")
	g.POST("/abv", h.CalculateABV)
	g.GET("/rates", h.Rates)
	g.POST("/brews", h.CreateBrew)
	g.POST("/brews/:id/gravity", h.RecordGravity)
	g.POST("/packaging", h.RecordPackaging)
	g.POST("/spoilage", h.RecordSpoilage)
	g.GET("/returns/:period", h.GetReturn)
	g.GET("/returns/:period/lines", h.ListLines)
	g.POST("/returns/:period/finalize", h.FinalizeReturn)
	g.POST("/returns/:period/submit", h.SubmitReturn)
}
