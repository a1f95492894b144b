package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/archhealth/backend-go/internal/analyzer"
	"github.com/archhealth/backend-go/internal/cache"
	"github.com/archhealth/backend-go/internal/domain"
	"github.com/archhealth/backend-go/internal/notify"
	"github.com/archhealth/backend-go/internal/observability"
)

// Collector is the tenant-scoped view of the cloud account.
// It is implemented by *collector.Session.
type Collector interface {
	ValidateSession(ctx context.Context) error
	Regions() []string
	FetchInstances(ctx context.Context) ([]domain.Instance, error)
	FetchBuckets(ctx context.Context) ([]domain.Bucket, error)
	FetchFindings(ctx context.Context, minSeverity domain.Severity) ([]domain.Finding, error)
	FetchGuardDutyFindings(ctx context.Context, regions []string) ([]domain.Finding, error)
	FetchCostByService(ctx context.Context, start, end time.Time, granularity string) (domain.CostData, error)
	FetchCPUMetrics(ctx context.Context, region, instanceID string) (domain.CPUMetrics, error)
}

// CollectorFactory opens a Collector for a tenant's credentials
type CollectorFactory func(ctx context.Context, creds domain.Credentials) (Collector, error)

// Store persists cycle output. It is implemented by *db.Queries.
type Store interface {
	SaveMetrics(ctx context.Context, tenantID string, points []domain.MetricPoint, expiresAt time.Time) error
	SaveCosts(ctx context.Context, tenantID string, cost domain.CostData, expiresAt time.Time) error
	SaveFindings(ctx context.Context, tenantID string, findings []domain.Finding, seenAt time.Time) error
	SaveRecommendations(ctx context.Context, tenantID string, recs []domain.Recommendation, createdAt time.Time) ([]domain.Recommendation, error)
	UpdateLastCollection(ctx context.Context, tenantID string, at time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Schedule holds the worker timing knobs
type Schedule struct {
	Interval        time.Duration
	InitialDelay    time.Duration
	InitialJitter   time.Duration
	ErrorBackoff    time.Duration
	RestartGrace    time.Duration
	AnalysisTTL     time.Duration
	InventoryTTL    time.Duration
	MetricRetention time.Duration
}

// DefaultSchedule returns the production timings
func DefaultSchedule() Schedule {
	return Schedule{
		Interval:        15 * time.Minute,
		InitialDelay:    5 * time.Second,
		InitialJitter:   30 * time.Second,
		ErrorBackoff:    60 * time.Second,
		RestartGrace:    2 * time.Second,
		AnalysisTTL:     time.Hour,
		InventoryTTL:    5 * time.Minute,
		MetricRetention: 30 * 24 * time.Hour,
	}
}

// Deps is everything a worker needs besides its own collector
type Deps struct {
	NewCollector CollectorFactory
	Store        Store
	Cache        cache.Cache
	Analyzer     *analyzer.Analyzer
	Alerter      *notify.Alerter
	Metrics      *observability.Metrics
	Schedule     Schedule
}

func (d Deps) withDefaults() Deps {
	if d.Cache == nil {
		d.Cache = cache.NewMemory()
	}
	if d.Analyzer == nil {
		d.Analyzer = analyzer.New()
	}
	if d.Alerter == nil {
		d.Alerter = notify.NewAlerter(nil, nil)
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewMetricsWith(prometheus.NewRegistry())
	}
	if d.Schedule == (Schedule{}) {
		d.Schedule = DefaultSchedule()
	}
	return d
}
