package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/archhealth/backend-go/internal/domain"
)

// Input is one cycle's raw inventories. The analyzer never fetches on its own.
type Input struct {
	TenantID  string
	Instances []domain.Instance
	Buckets   []domain.Bucket
	Cost      domain.CostData
	Findings  []domain.Finding
	CPU       map[string]domain.CPUMetrics
}

// Analyzer scores an account against the six pillars
type Analyzer struct {
	now func() time.Time
}

// New creates an Analyzer
func New() *Analyzer {
	return &Analyzer{now: func() time.Time { return time.Now().UTC() }}
}

// Analyze aggregates the inputs once, then runs the pillar evaluators and the
// sub-analyses concurrently off the shared aggregate.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*domain.AnalysisReport, error) {
	pc := Aggregate(in.Instances, in.Buckets, in.Findings)

	var (
		pillars map[domain.Pillar]domain.PillarScore
		cost    domain.CostReport
		perf    domain.PerformanceReport
		sec     domain.SecurityReport
		rel     domain.ReliabilityReport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { pillars = EvaluatePillars(&pc); return gctx.Err() })
	g.Go(func() error { cost = AnalyzeCost(&pc, in.Cost); return gctx.Err() })
	g.Go(func() error { perf = AnalyzePerformance(&pc, in.CPU); return gctx.Err() })
	g.Go(func() error { sec = AnalyzeSecurity(&pc); return gctx.Err() })
	g.Go(func() error { rel = AnalyzeReliability(&pc); return gctx.Err() })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", in.TenantID, err)
	}

	overall := OverallScore(pillars)
	recs := GenerateRecommendations(pillars, cost, perf, sec, rel, &pc)

	report := &domain.AnalysisReport{
		TenantID:        in.TenantID,
		Timestamp:       a.now(),
		OverallScore:    overall,
		OverallRating:   Rating(overall),
		Pillars:         pillars,
		Cost:            cost,
		Performance:     perf,
		Security:        sec,
		Reliability:     rel,
		Recommendations: recs,
	}
	report.ExecutiveSummary = executiveSummary(report, &pc)
	return report, nil
}

func executiveSummary(r *domain.AnalysisReport, pc *PreComputedData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall architecture score is %.1f (%s) across %d instances and %d buckets.",
		r.OverallScore, r.OverallRating, pc.EC2Count, pc.S3Count)

	strongest, weakest := domain.Pillars[0], domain.Pillars[0]
	for _, p := range domain.Pillars[1:] {
		if r.Pillars[p].Score > r.Pillars[strongest].Score {
			strongest = p
		}
		if r.Pillars[p].Score < r.Pillars[weakest].Score {
			weakest = p
		}
	}
	if strongest != weakest {
		fmt.Fprintf(&b, " Strongest pillar: %s (%.1f). Weakest pillar: %s (%.1f).",
			pillarLabel(strongest), r.Pillars[strongest].Score, pillarLabel(weakest), r.Pillars[weakest].Score)
	}

	critical := 0
	for _, rec := range r.Recommendations {
		if rec.Priority == domain.PriorityCritical {
			critical++
		}
	}
	fmt.Fprintf(&b, " %d recommendations (%d critical).", len(r.Recommendations), critical)
	if r.Cost.PotentialMonthlySavings > 0 {
		fmt.Fprintf(&b, " Estimated savings potential: $%.2f/month.", r.Cost.PotentialMonthlySavings)
	}
	return b.String()
}

func pillarLabel(p domain.Pillar) string {
	words := strings.Split(string(p), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
