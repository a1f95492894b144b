package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/archhealth/backend-go/internal/domain"
)

const (
	highCPUThreshold = 80.0
	spikeZScore      = 2.0
)

// AnalyzePerformance summarizes CPU utilization across instances and flags issues.
// cpu is keyed by instance ID; series without datapoints fall back to their average and max.
func AnalyzePerformance(pc *PreComputedData, cpu map[string]domain.CPUMetrics) domain.PerformanceReport {
	ids := make([]string, 0, len(cpu))
	for id := range cpu {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var values []float64
	var maxCPU float64
	for _, id := range ids {
		m := cpu[id]
		if len(m.Datapoints) > 0 {
			values = append(values, m.Datapoints...)
			for _, v := range m.Datapoints {
				maxCPU = math.Max(maxCPU, v)
			}
			maxCPU = math.Max(maxCPU, m.Max)
			continue
		}
		if m.Average > 0 || m.Max > 0 {
			values = append(values, m.Average)
			maxCPU = math.Max(maxCPU, m.Max)
		}
	}

	avg := Mean(values)
	report := domain.PerformanceReport{
		AverageCPU:       round2(avg),
		MaxCPU:           round2(maxCPU),
		Datapoints:       len(values),
		CPUSpikes:        CountOutliers(values, spikeZScore),
		OldGenerationPct: round1(pc.OldGenerationRatio() * 100),
		Issues:           []domain.PerformanceIssue{},
	}

	score := baseScore
	if avg > highCPUThreshold {
		report.Issues = append(report.Issues, domain.PerformanceIssue{
			Type:     domain.IssueHighCPU,
			Severity: domain.PriorityHigh,
			Message:  fmt.Sprintf("Average CPU utilization is %.1f%%", avg),
		})
		score -= 20
	}
	if pc.OldGenerationCount > 0 {
		report.Issues = append(report.Issues, domain.PerformanceIssue{
			Type:     domain.IssueOldGeneration,
			Severity: domain.PriorityMedium,
			Message:  fmt.Sprintf("%d instances run on previous-generation types", pc.OldGenerationCount),
		})
		score -= 10
	}
	report.PerformanceScore = clamp(score)
	return report
}
