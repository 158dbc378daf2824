package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/ledgersync"
)

// SyncHandler exposes the sync engine to operators
type SyncHandler struct {
	BaseHandler
	engine       *ledgersync.Engine
	cycleTimeout time.Duration
}

// NewSyncHandler creates a new SyncHandler. A manual cycle runs for at most
// cycleTimeout regardless of the request deadline; zero leaves it unbounded.
func NewSyncHandler(engine *ledgersync.Engine, cycleTimeout time.Duration) *SyncHandler {
	return &SyncHandler{engine: engine, cycleTimeout: cycleTimeout}
}

// Run godoc
// @Summary      Run a sync cycle now
// @Description  Pushes pending rows and deletes, then pulls remote changes. Waits for a cycle already in progress.
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      429 {object} dto.Response
// @Failure      503 {object} dto.Response
// @Router       /sync/run [post]
func (h *SyncHandler) Run(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	if h.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cycleTimeout)
		defer cancel()
	}
	report, err := h.engine.RunCycle(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToCycleResponse(report))
}

// LastCycle returns the report of the most recent cycle
// @Router /sync/last [get]
func (h *SyncHandler) LastCycle(c *gin.Context) {
	report := h.engine.LastReport()
	if report == nil {
		h.Success(c, nil)
		return
	}
	h.Success(c, ToCycleResponse(report))
}

// ListConflicts godoc
// @Summary      List sync conflicts
// @Description  Open conflicts only, unless all=true
// @Tags         sync
// @Produce      json
// @Param        all query bool false "Include resolved conflicts"
// @Success      200 {object} dto.Response
// @Router       /sync/conflicts [get]
func (h *SyncHandler) ListConflicts(c *gin.Context) {
	conflicts, err := h.engine.ListConflicts(c.Request.Context(), c.Query("all") == "true")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]ConflictResponse, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, ToConflictResponse(conflict))
	}
	h.Success(c, out)
}

// ResolveConflict godoc
// @Summary      Resolve a sync conflict
// @Description  keep=local re-queues the local version for push; keep=remote overwrites it with the remote version
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        table path string true "Table name"
// @Param        id path string true "Row ID"
// @Param        request body ResolveConflictRequest true "Resolution"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /sync/conflicts/{table}/{id}/resolve [post]
func (h *SyncHandler) ResolveConflict(c *gin.Context) {
	var req ResolveConflictRequest
	if !h.BindJSON(c, &req) {
		return
	}
	table, id := c.Param("table"), c.Param("id")
	if err := h.engine.ResolveConflict(c.Request.Context(), table, id, req.Keep == "local"); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"table": table, "row_id": id, "kept": req.Keep})
}

// RegisterRoutes registers the sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/sync")
	g.POST("/run", h.Run)
	g.GET("/last", h.LastCycle)
	g.GET("/conflicts", h.ListConflicts)
	g.POST("/conflicts/:table/:id/resolve", h.ResolveConflict)
}
