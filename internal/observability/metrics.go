package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metric instruments
type Metrics struct {
	CollectionCyclesTotal   *prometheus.CounterVec
	CollectionCycleDuration prometheus.Histogram
	ActiveWorkers           prometheus.Gauge
	FetchFailuresTotal      *prometheus.CounterVec
	OverallScore            *prometheus.GaugeVec
	AlertsSentTotal         *prometheus.CounterVec
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
}

// NewMetrics registers and returns all metrics on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the metrics on reg
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CollectionCyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "archhealth_collection_cycles_total",
			Help: "Total number of tenant collection cycles",
		}, []string{"outcome"}),

		CollectionCycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "archhealth_collection_cycle_duration_seconds",
			Help:    "Duration of tenant collection cycles in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),

		ActiveWorkers: f.NewGauge(prometheus.GaugeOpts{
			Name: "archhealth_active_workers",
			Help: "Number of running tenant collection workers",
		}),

		FetchFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "archhealth_fetch_failures_total",
			Help: "Collector fetches that fell back to an empty result",
		}, []string{"source"}),

		OverallScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "archhealth_overall_score",
			Help: "Latest overall Well-Architected score per tenant",
		}, []string{"tenant"}),

		AlertsSentTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "archhealth_alerts_sent_total",
			Help: "Critical finding alerts sent",
		}, []string{"status"}),

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "archhealth_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archhealth_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
		}, []string{"method", "path"}),
	}
}

// RecordWorkerStart increments the active workers gauge
func (m *Metrics) RecordWorkerStart() {
	m.ActiveWorkers.Inc()
}

// RecordWorkerEnd decrements the active workers gauge
func (m *Metrics) RecordWorkerEnd() {
	m.ActiveWorkers.Dec()
}

// RecordCycle records a finished collection cycle
func (m *Metrics) RecordCycle(outcome string, duration float64) {
	m.CollectionCyclesTotal.WithLabelValues(outcome).Inc()
	m.CollectionCycleDuration.Observe(duration)
}

// RecordFetchFailure records a collector fetch replaced by its fallback
func (m *Metrics) RecordFetchFailure(source string) {
	m.FetchFailuresTotal.WithLabelValues(source).Inc()
}

// RecordScore stores the tenant's latest overall score
func (m *Metrics) RecordScore(tenantID string, score float64) {
	m.OverallScore.WithLabelValues(tenantID).Set(score)
}

// ForgetTenant drops per-tenant series
func (m *Metrics) ForgetTenant(tenantID string) {
	m.OverallScore.DeleteLabelValues(tenantID)
}

// RecordAlert records an alert delivery attempt
func (m *Metrics) RecordAlert(status string) {
	m.AlertsSentTotal.WithLabelValues(status).Inc()
}
