package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/archhealth/backend-go/internal/cache"
	"github.com/archhealth/backend-go/internal/domain"
	"github.com/archhealth/backend-go/internal/notify"
	"github.com/archhealth/backend-go/internal/observability"
)

type fakeCollector struct {
	validateFn  func(ctx context.Context) error
	instancesFn func(ctx context.Context) ([]domain.Instance, error)
	bucketsFn   func(ctx context.Context) ([]domain.Bucket, error)
	findingsFn  func(ctx context.Context, min domain.Severity) ([]domain.Finding, error)
	guardDutyFn func(ctx context.Context, regions []string) ([]domain.Finding, error)
	costFn      func(ctx context.Context, start, end time.Time, granularity string) (domain.CostData, error)
	cpuFn       func(ctx context.Context, region, id string) (domain.CPUMetrics, error)

	validations atomic.Int32
	fetches     atomic.Int32

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeCollector) count(source string) {
	f.fetches.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[source]++
}

func (f *fakeCollector) callsFor(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[source]
}

func (f *fakeCollector) ValidateSession(ctx context.Context) error {
	f.validations.Add(1)
	if f.validateFn != nil {
		return f.validateFn(ctx)
	}
	return nil
}

func (f *fakeCollector) Regions() []string { return []string{"us-east-1", "eu-west-1"} }

func (f *fakeCollector) FetchInstances(ctx context.Context) ([]domain.Instance, error) {
	f.count(SourceEC2)
	if f.instancesFn != nil {
		return f.instancesFn(ctx)
	}
	return []domain.Instance{
		{ID: "i-1", Type: "m5.large", State: domain.StateRunning, AvailabilityZone: "us-east-1a", Region: "us-east-1", HasTags: true},
		{ID: "i-2", Type: "m5.large", State: domain.StateRunning, AvailabilityZone: "us-east-1b", Region: "us-east-1", HasTags: true},
		{ID: "i-3", Type: "t2.micro", State: domain.StateStopped, AvailabilityZone: "us-east-1a", Region: "us-east-1"},
	}, nil
}

func (f *fakeCollector) FetchBuckets(ctx context.Context) ([]domain.Bucket, error) {
	f.count(SourceS3)
	if f.bucketsFn != nil {
		return f.bucketsFn(ctx)
	}
	return []domain.Bucket{{Name: "logs", Region: "us-east-1", Encrypted: true}}, nil
}

func (f *fakeCollector) FetchFindings(ctx context.Context, min domain.Severity) ([]domain.Finding, error) {
	f.count(SourceSecurityHub)
	if f.findingsFn != nil {
		return f.findingsFn(ctx, min)
	}
	return []domain.Finding{{ID: "hub-1", Severity: domain.SeverityCritical, Title: "Root key", Type: "IAM", Source: "securityhub"}}, nil
}

func (f *fakeCollector) FetchGuardDutyFindings(ctx context.Context, regions []string) ([]domain.Finding, error) {
	f.count(SourceGuardDuty)
	if f.guardDutyFn != nil {
		return f.guardDutyFn(ctx, regions)
	}
	return []domain.Finding{{ID: "gd-1", Severity: domain.SeverityMedium, Title: "Port scan", Type: "Recon", Source: "guardduty"}}, nil
}

func (f *fakeCollector) FetchCostByService(ctx context.Context, start, end time.Time, granularity string) (domain.CostData, error) {
	f.count(SourceCost)
	if f.costFn != nil {
		return f.costFn(ctx, start, end, granularity)
	}
	return domain.CostData{
		TotalCost: 300,
		ByService: map[string]float64{"Amazon Elastic Compute Cloud - Compute": 250, "Amazon S3": 50},
		Start:     start, End: end, Granularity: granularity,
	}, nil
}

func (f *fakeCollector) FetchCPUMetrics(ctx context.Context, region, id string) (domain.CPUMetrics, error) {
	f.count(SourceCloudWatch)
	if f.cpuFn != nil {
		return f.cpuFn(ctx, region, id)
	}
	return domain.CPUMetrics{Average: 40, Max: 60, Datapoints: []float64{30, 40, 50}}, nil
}

type fakeStore struct {
	mu              sync.Mutex
	metrics         int
	costs           int
	findings        int
	recommendations []domain.Recommendation
	lastCollection  map[string]time.Time
	purges          int
	saveErr         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{lastCollection: make(map[string]time.Time)}
}

func (s *fakeStore) SaveMetrics(_ context.Context, _ string, points []domain.MetricPoint, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics += len(points)
	return s.saveErr
}

func (s *fakeStore) SaveCosts(context.Context, string, domain.CostData, time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costs++
	return s.saveErr
}

func (s *fakeStore) SaveFindings(_ context.Context, _ string, findings []domain.Finding, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings += len(findings)
	return s.saveErr
}

func (s *fakeStore) SaveRecommendations(_ context.Context, tenantID string, recs []domain.Recommendation, at time.Time) ([]domain.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Recommendation, len(recs))
	for i, r := range recs {
		r.ID = "rec-" + string(rune('a'+i))
		r.TenantID = tenantID
		r.CreatedAt = at
		out[i] = r
	}
	s.recommendations = append(s.recommendations, out...)
	return out, nil
}

func (s *fakeStore) UpdateLastCollection(_ context.Context, tenantID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCollection[tenantID] = at
	return nil
}

func (s *fakeStore) PurgeExpired(context.Context, time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purges++
	return 3, nil
}

func (s *fakeStore) lastCollectionFor(tenantID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastCollection[tenantID]
	return t, ok
}

type countingSender struct {
	sent atomic.Int32
}

func (c *countingSender) Send(context.Context, notify.Message) error {
	c.sent.Add(1)
	return nil
}

type recipientSender struct {
	sent atomic.Int32
}

func (r *recipientSender) Send(_ context.Context, msg notify.Message) error {
	if msg.To == "" {
		return notify.ErrNoRecipient
	}
	r.sent.Add(1)
	return nil
}

func fastSchedule() Schedule {
	return Schedule{
		Interval:        20 * time.Millisecond,
		InitialDelay:    0,
		InitialJitter:   0,
		ErrorBackoff:    10 * time.Millisecond,
		RestartGrace:    time.Second,
		AnalysisTTL:     time.Hour,
		InventoryTTL:    time.Minute,
		MetricRetention: time.Hour,
	}
}

func testDeps(c Collector, store *fakeStore) Deps {
	return Deps{
		NewCollector: func(context.Context, domain.Credentials) (Collector, error) { return c, nil },
		Store:        store,
		Cache:        cache.NewMemory(),
		Metrics:      observability.NewMetricsWith(prometheus.NewRegistry()),
		Schedule:     fastSchedule(),
	}
}
