package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/archhealth/backend-go/internal/cache"
	"github.com/archhealth/backend-go/internal/domain"
)

// AnalysisHandler serves tenant analysis reports
type AnalysisHandler struct {
	workers WorkerManager
	cache   cache.Cache
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(workers WorkerManager, c cache.Cache) *AnalysisHandler {
	return &AnalysisHandler{workers: workers, cache: c}
}

// GetAnalysis returns the cached report, or collects and analyzes on demand
// when none is cached or refresh=true
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	ctx := c.Request.Context()

	if c.Query("refresh") != "true" {
		var report domain.AnalysisReport
		found, err := h.cache.Get(ctx, cache.AnalysisKey(tenantID), &report)
		if err != nil {
			slog.Warn("Analysis cache read failed", "tenant", tenantID, "error", err)
		}
		if found {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, report)
			return
		}
	}

	report, err := h.workers.AnalyzeNow(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "No active session for tenant"})
			return
		}
		slog.Error("On-demand analysis failed", "tenant", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, report)
}
