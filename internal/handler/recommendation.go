package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/archhealth/backend-go/internal/cache"
	"github.com/archhealth/backend-go/internal/domain"
)

const (
	defaultRecommendationLimit = 20
	maxRecommendationLimit     = 100
)

// RecommendationStore reads and updates persisted recommendations
type RecommendationStore interface {
	ListRecommendations(ctx context.Context, tenantID string, limit int) ([]domain.Recommendation, error)
	SetRecommendationImplemented(ctx context.Context, tenantID, id string, implemented bool) error
}

// RecommendationHandler handles recommendation endpoints
type RecommendationHandler struct {
	store RecommendationStore
	cache cache.Cache
	ttl   time.Duration
}

// NewRecommendationHandler creates a new RecommendationHandler. Listings are
// cached under the tenant's dashboard prefix for ttl.
func NewRecommendationHandler(store RecommendationStore, c cache.Cache, ttl time.Duration) *RecommendationHandler {
	return &RecommendationHandler{store: store, cache: c, ttl: ttl}
}

// ListRecommendations returns the newest recommendations for a tenant
func (h *RecommendationHandler) ListRecommendations(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Database not available"})
		return
	}
	tenantID := c.Param("tenant_id")
	ctx := c.Request.Context()

	limitStr := c.DefaultQuery("limit", strconv.Itoa(defaultRecommendationLimit))
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > maxRecommendationLimit {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be between 1 and 100"})
		return
	}

	key := cache.DashboardKey(tenantID, "recommendations", strconv.Itoa(limit))
	var recs []domain.Recommendation
	if found, _ := h.cache.Get(ctx, key, &recs); found {
		c.JSON(http.StatusOK, recs)
		return
	}

	recs, err = h.store.ListRecommendations(ctx, tenantID, limit)
	if err != nil {
		slog.Error("Failed to list recommendations", "tenant", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	if err := h.cache.Set(ctx, key, recs, h.ttl); err != nil {
		slog.Warn("Failed to cache recommendations", "tenant", tenantID, "error", err)
	}
	c.JSON(http.StatusOK, recs)
}

type implementedRequest struct {
	Implemented *bool `json:"implemented"`
}

// MarkImplemented sets a recommendation's implemented flag, true unless the
// body says otherwise
func (h *RecommendationHandler) MarkImplemented(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Database not available"})
		return
	}
	tenantID := c.Param("tenant_id")
	recID := c.Param("recommendation_id")
	ctx := c.Request.Context()

	implemented := true
	if c.Request.ContentLength > 0 {
		var body implementedRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		if body.Implemented != nil {
			implemented = *body.Implemented
		}
	}

	if err := h.store.SetRecommendationImplemented(ctx, tenantID, recID, implemented); err != nil {
		if errors.Is(err, domain.ErrRecommendationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Recommendation not found"})
			return
		}
		slog.Error("Failed to update recommendation", "tenant", tenantID, "recommendation", recID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	if err := h.cache.InvalidatePrefix(ctx, cache.DashboardPrefix(tenantID)); err != nil {
		slog.Warn("Failed to invalidate dashboard cache", "tenant", tenantID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"id": recID, "implemented": implemented})
}
