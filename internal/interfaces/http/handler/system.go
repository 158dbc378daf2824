package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/ledgersync"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Pinger checks that the store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports store reachability and the last sync cycle
type HealthHandler struct {
	db     Pinger
	engine *ledgersync.Engine
	now    func() time.Time
}

// NewHealthHandler creates a new HealthHandler. engine may be nil.
func NewHealthHandler(db Pinger, engine *ledgersync.Engine) *HealthHandler {
	return &HealthHandler{db: db, engine: engine, now: time.Now}
}

// LastSync summarizes the most recent sync cycle
type LastSync struct {
	ID          string    `json:"id"`
	FinishedAt  time.Time `json:"finished_at"`
	Escalations int       `json:"escalations"`
	Error       string    `json:"error,omitempty"`
}

// Health godoc
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200 {object} map[string]any
// @Failure      503 {object} map[string]any
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"time":     h.now().Format(time.RFC3339),
		"database": "ok",
	}
	if h.engine != nil {
		if last := h.engine.LastReport(); last != nil {
			summary := LastSync{ID: last.ID, FinishedAt: last.FinishedAt, Escalations: len(last.Escalations)}
			if last.Err != nil {
				summary.Error = last.Err.Error()
			}
			body["last_sync"] = summary
		}
	}

	if err := h.db.Ping(c.Request.Context()); err != nil {
		logger.L(c.Request.Context()).Warn("Health check failed", zap.Error(err))
		body["status"] = "unhealthy"
		body["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// RegisterRoutes registers the health route
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
}
