package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archhealth/backend-go/internal/domain"
)

func TestCollectAllSources(t *testing.T) {
	c := &fakeCollector{}

	snap, err := Collect(context.Background(), c, time.Now(), nil)

	require.NoError(t, err)
	assert.Len(t, snap.Instances, 3)
	assert.Len(t, snap.Buckets, 1)
	assert.Len(t, snap.Findings, 2)
	assert.Equal(t, 300.0, snap.Cost.TotalCost)
	assert.Empty(t, snap.Failed)
}

func TestCollectFallsBackPerSource(t *testing.T) {
	c := &fakeCollector{
		findingsFn: func(context.Context, domain.Severity) ([]domain.Finding, error) {
			return nil, fmt.Errorf("securityhub: %w", domain.ErrServiceDisabled)
		},
		costFn: func(context.Context, time.Time, time.Time, string) (domain.CostData, error) {
			return domain.CostData{}, errors.New("throttled")
		},
	}
	var mu sync.Mutex
	var failed []string

	snap, err := Collect(context.Background(), c, time.Now(), func(source string, _ error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, source)
	})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{SourceSecurityHub, SourceCost}, failed)
	assert.ElementsMatch(t, []string{SourceSecurityHub, SourceCost}, snap.Failed)
	assert.Len(t, snap.Instances, 3, "other sources are unaffected")
	require.Len(t, snap.Findings, 1)
	assert.Equal(t, "gd-1", snap.Findings[0].ID)
	assert.NotNil(t, snap.Cost.ByService)
	assert.Zero(t, snap.Cost.TotalCost)
}

func TestCollectTokenInvalid(t *testing.T) {
	c := &fakeCollector{
		instancesFn: func(context.Context) ([]domain.Instance, error) {
			return nil, fmt.Errorf("ec2: %w", domain.ErrTokenInvalid)
		},
	}

	snap, err := Collect(context.Background(), c, time.Now(), nil)

	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	assert.Empty(t, snap.Instances)
	assert.NotNil(t, snap.Instances)
	assert.Len(t, snap.Buckets, 1)
}

func TestCollectCostWindow(t *testing.T) {
	var gotStart, gotEnd time.Time
	var gotGranularity string
	c := &fakeCollector{
		costFn: func(_ context.Context, start, end time.Time, granularity string) (domain.CostData, error) {
			gotStart, gotEnd, gotGranularity = start, end, granularity
			return domain.CostData{}, nil
		},
	}
	now := time.Date(2026, 3, 15, 13, 45, 0, 0, time.UTC)

	_, err := Collect(context.Background(), c, now, nil)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), gotEnd)
	assert.Equal(t, time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC), gotStart)
	assert.Equal(t, "MONTHLY", gotGranularity)
}

func TestCollectPassesMinSeverityAndRegions(t *testing.T) {
	var gotMin domain.Severity
	var gotRegions []string
	c := &fakeCollector{
		findingsFn: func(_ context.Context, min domain.Severity) ([]domain.Finding, error) {
			gotMin = min
			return nil, nil
		},
		guardDutyFn: func(_ context.Context, regions []string) ([]domain.Finding, error) {
			gotRegions = regions
			return nil, nil
		},
	}

	_, err := Collect(context.Background(), c, time.Now(), nil)

	require.NoError(t, err)
	assert.Equal(t, domain.SeverityLow, gotMin)
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, gotRegions)
}

func TestCollectCPURunningOnly(t *testing.T) {
	c := &fakeCollector{
		cpuFn: func(_ context.Context, _ string, id string) (domain.CPUMetrics, error) {
			if id == "i-2" {
				return domain.CPUMetrics{}, errors.New("no data")
			}
			return domain.CPUMetrics{Average: 55, Max: 90}, nil
		},
	}
	instances := []domain.Instance{
		{ID: "i-1", State: domain.StateRunning, Region: "us-east-1"},
		{ID: "i-2", State: domain.StateRunning, Region: "us-east-1"},
		{ID: "i-3", State: domain.StateStopped, Region: "us-east-1"},
	}
	failures := 0

	cpu := CollectCPU(context.Background(), c, instances, func(string, error) { failures++ })

	require.Len(t, cpu, 2)
	assert.Equal(t, 55.0, cpu["i-1"].Average)
	assert.Equal(t, domain.CPUMetrics{}, cpu["i-2"])
	assert.NotContains(t, cpu, "i-3")
	assert.Equal(t, 1, failures)
}

func TestMetricPoints(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := &Snapshot{
		Instances: make([]domain.Instance, 2),
		Buckets:   make([]domain.Bucket, 1),
		Cost:      domain.CostData{TotalCost: 12},
		CPU:       map[string]domain.CPUMetrics{"i-1": {Average: 10, Max: 20}},
	}

	points := metricPoints(snap, ts)

	require.Len(t, points, 6)
	assert.Equal(t, 2.0, points[0].Value)
	assert.Equal(t, 12.0, points[3].Value)
	for _, p := range points {
		assert.Equal(t, ts, p.Timestamp)
	}
}
