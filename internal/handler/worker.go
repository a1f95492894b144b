package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/archhealth/backend-go/internal/domain"
	"github.com/archhealth/backend-go/internal/worker"
)

// WorkerHandler exposes the worker registry
type WorkerHandler struct {
	workers      WorkerManager
	pollInterval time.Duration
	maxStream    time.Duration
}

// NewWorkerHandler creates a new WorkerHandler
func NewWorkerHandler(workers WorkerManager) *WorkerHandler {
	return &WorkerHandler{
		workers:      workers,
		pollInterval: time.Second,
		maxStream:    5 * time.Minute,
	}
}

// ListWorkers returns every registered worker
func (h *WorkerHandler) ListWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, h.workers.List())
}

// GetWorker returns one tenant's worker status
func (h *WorkerHandler) GetWorker(c *gin.Context) {
	status, err := h.workers.Status(c.Param("tenant_id"))
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func sendSSE(c *gin.Context, event string, data any) {
	j, err := json.Marshal(data)
	if err != nil {
		slog.Warn("SSE marshal error", "error", err)
		return
	}
	_, _ = fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, j)
	if f, ok := c.Writer.(http.Flusher); ok {
		f.Flush()
	}
}

// StreamWorker pushes the worker's status as server-sent events whenever its
// state or cycle count changes, until the worker stops
func (h *WorkerHandler) StreamWorker(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	status, err := h.workers.Status(tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Tenant not found"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendSSE(c, "worker", status)
	if status.State.Terminal() {
		sendSSE(c, "done", gin.H{"state": status.State})
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	maxTimeout := time.After(h.maxStream)
	last := status

	for {
		select {
		case <-maxTimeout:
			sendSSE(c, "timeout", gin.H{"message": "stream max timeout reached"})
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			current, err := h.workers.Status(tenantID)
			if err != nil {
				sendSSE(c, "done", gin.H{"state": worker.StateCancelled})
				return
			}
			if current.State == last.State && current.Cycles == last.Cycles {
				continue
			}
			last = current
			sendSSE(c, "worker", current)
			if current.State.Terminal() {
				sendSSE(c, "done", gin.H{"state": current.State})
				return
			}
		}
	}
}
