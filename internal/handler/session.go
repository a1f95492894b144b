package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/archhealth/backend-go/internal/domain"
	"github.com/archhealth/backend-go/internal/worker"
)

// WorkerManager is the worker registry as seen by the HTTP layer
type WorkerManager interface {
	Start(ctx context.Context, tenantID string, creds domain.Credentials) (worker.Status, error)
	Stop(tenantID string) error
	Status(tenantID string) (worker.Status, error)
	List() []worker.Status
	AnalyzeNow(ctx context.Context, tenantID string) (*domain.AnalysisReport, error)
}

// SessionHandler registers and removes tenant sessions
type SessionHandler struct {
	workers WorkerManager
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(workers WorkerManager) *SessionHandler {
	return &SessionHandler{workers: workers}
}

// CreateSession validates the credentials and (re)starts the tenant's worker
func (h *SessionHandler) CreateSession(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	var creds domain.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	status, err := h.workers.Start(c.Request.Context(), tenantID, creds)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, status)
	case errors.Is(err, domain.ErrTokenInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired credentials"})
	case errors.Is(err, domain.ErrServiceDisabled):
		c.JSON(http.StatusForbidden, gin.H{"detail": "Credentials lack permission to read the account"})
	default:
		slog.Error("Failed to start worker", "tenant", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	}
}

// DeleteSession stops the tenant's worker
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	if err := h.workers.Stop(tenantID); err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "No active session for tenant"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped", "tenant_id": tenantID})
}
