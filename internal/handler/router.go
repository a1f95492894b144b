package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/archhealth/backend-go/internal/observability"
)

// SetupRouter configures all API routes
func SetupRouter(
	session *SessionHandler,
	analysis *AnalysisHandler,
	recommendations *RecommendationHandler,
	workers *WorkerHandler,
	metrics *observability.Metrics,
	corsOrigin string,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(corsOrigin))
	r.Use(PrometheusMiddleware(metrics))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"active_workers": len(workers.workers.List()),
		})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Tenant endpoints
	tenantGroup := r.Group("/api/tenants/:tenant_id")
	{
		tenantGroup.POST("/session", session.CreateSession)
		tenantGroup.DELETE("/session", session.DeleteSession)
		tenantGroup.GET("/analysis", analysis.GetAnalysis)
		tenantGroup.GET("/recommendations", recommendations.ListRecommendations)
		tenantGroup.POST("/recommendations/:recommendation_id/implemented", recommendations.MarkImplemented)
	}

	// Worker registry endpoints
	workerGroup := r.Group("/api/workers")
	{
		workerGroup.GET("", workers.ListWorkers)
		workerGroup.GET("/:tenant_id", workers.GetWorker)
		workerGroup.GET("/:tenant_id/stream", workers.StreamWorker)
	}

	return r
}
