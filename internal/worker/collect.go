package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/archhealth/backend-go/internal/analyzer"
	"github.com/archhealth/backend-go/internal/domain"
)

// Fetch sources, used as log and metric labels
const (
	SourceEC2         = "ec2"
	SourceS3          = "s3"
	SourceSecurityHub = "securityhub"
	SourceGuardDuty   = "guardduty"
	SourceCost        = "costexplorer"
	SourceCloudWatch  = "cloudwatch"
)

const (
	costLookback       = 30 * 24 * time.Hour
	cpuFetchLimit      = 8
	findingMinSeverity = domain.SeverityLow
)

// Snapshot is one cycle's raw inventories
type Snapshot struct {
	Instances []domain.Instance
	Buckets   []domain.Bucket
	Findings  []domain.Finding
	Cost      domain.CostData
	CPU       map[string]domain.CPUMetrics
	// Failed lists the sources that fell back to an empty result
	Failed []string
}

// Input converts the snapshot into analyzer input
func (s *Snapshot) Input(tenantID string) analyzer.Input {
	return analyzer.Input{
		TenantID:  tenantID,
		Instances: s.Instances,
		Buckets:   s.Buckets,
		Cost:      s.Cost,
		Findings:  s.Findings,
		CPU:       s.CPU,
	}
}

// FailureFunc observes a fetch that fell back to its empty default
type FailureFunc func(source string, err error)

// Collect fetches every inventory concurrently. A failed fetch yields an empty
// default and never aborts the others. The only error returned is
// domain.ErrTokenInvalid, since no further fetch can succeed after it.
func Collect(ctx context.Context, c Collector, now time.Time, onFailure FailureFunc) (*Snapshot, error) {
	snap := &Snapshot{
		Instances: []domain.Instance{},
		Buckets:   []domain.Bucket{},
		Findings:  []domain.Finding{},
		Cost:      domain.CostData{ByService: map[string]float64{}},
		CPU:       map[string]domain.CPUMetrics{},
	}

	var (
		mu        sync.Mutex
		hubFind   []domain.Finding
		gdFind    []domain.Finding
		tokenErr  error
		endOfDay  = now.UTC().Truncate(24 * time.Hour)
		costStart = endOfDay.Add(-costLookback)
	)

	fallback := func(source string, err error) {
		mu.Lock()
		defer mu.Unlock()
		snap.Failed = append(snap.Failed, source)
		if errors.Is(err, domain.ErrTokenInvalid) {
			tokenErr = err
		}
		logFetchFailure(source, err)
		if onFailure != nil {
			onFailure(source, err)
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		if v, err := c.FetchInstances(ctx); err != nil {
			fallback(SourceEC2, err)
		} else {
			snap.Instances = v
		}
		return nil
	})
	g.Go(func() error {
		if v, err := c.FetchBuckets(ctx); err != nil {
			fallback(SourceS3, err)
		} else {
			snap.Buckets = v
		}
		return nil
	})
	g.Go(func() error {
		if v, err := c.FetchFindings(ctx, findingMinSeverity); err != nil {
			fallback(SourceSecurityHub, err)
		} else {
			hubFind = v
		}
		return nil
	})
	g.Go(func() error {
		if v, err := c.FetchGuardDutyFindings(ctx, c.Regions()); err != nil {
			fallback(SourceGuardDuty, err)
		} else {
			gdFind = v
		}
		return nil
	})
	g.Go(func() error {
		if v, err := c.FetchCostByService(ctx, costStart, endOfDay, "MONTHLY"); err != nil {
			fallback(SourceCost, err)
		} else {
			snap.Cost = v
		}
		return nil
	})
	_ = g.Wait()

	snap.Findings = append(append(snap.Findings, hubFind...), gdFind...)
	if tokenErr != nil {
		return snap, tokenErr
	}
	return snap, ctx.Err()
}

// CollectCPU gathers CPU utilization for every running instance. Instances
// without data or with a failed fetch get zero metrics.
func CollectCPU(ctx context.Context, c Collector, instances []domain.Instance, onFailure FailureFunc) map[string]domain.CPUMetrics {
	out := make(map[string]domain.CPUMetrics)
	var mu sync.Mutex
	var reported bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cpuFetchLimit)
	for _, inst := range instances {
		if inst.State != domain.StateRunning {
			continue
		}
		g.Go(func() error {
			m, err := c.FetchCPUMetrics(gctx, inst.Region, inst.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Debug("CPU metrics unavailable", "instance", inst.ID, "error", err)
				if !reported && onFailure != nil {
					reported = true
					onFailure(SourceCloudWatch, err)
				}
				m = domain.CPUMetrics{}
			}
			out[inst.ID] = m
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func logFetchFailure(source string, err error) {
	switch {
	case errors.Is(err, domain.ErrServiceDisabled):
		slog.Info("Source not enabled, using empty result", "source", source, "error", err)
	case errors.Is(err, context.Canceled):
		slog.Debug("Fetch cancelled", "source", source)
	default:
		slog.Warn("Fetch failed, using empty result", "source", source, "error", err)
	}
}
