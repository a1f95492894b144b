package analyzer

import "github.com/archhealth/backend-go/internal/domain"

const topFindingCount = 5

// AnalyzeSecurity reports finding totals and the most severe findings
func AnalyzeSecurity(pc *PreComputedData) domain.SecurityReport {
	bySeverity := make(map[domain.Severity]int, len(domain.Severities))
	// severity buckets are walked in rank order so payload order is kept within a level
	var ordered []domain.Finding
	for _, sev := range domain.Severities {
		bySeverity[sev] = pc.SeverityCount(sev)
		ordered = append(ordered, pc.FindingsBySeverity[sev]...)
	}
	if len(ordered) > topFindingCount {
		ordered = ordered[:topFindingCount]
	}

	top := make([]domain.FindingSummary, 0, len(ordered))
	for _, f := range ordered {
		top = append(top, domain.FindingSummary{
			ID:       f.ID,
			Title:    f.Title,
			Severity: domain.ParseSeverity(string(f.Severity)),
		})
	}

	return domain.SecurityReport{
		TotalFindings:      pc.TotalFindings,
		BySeverity:         bySeverity,
		PublicBuckets:      pc.PublicBuckets,
		UnencryptedBuckets: pc.UnencryptedBuckets,
		TopFindings:        top,
		SecurityScore:      round1(EvaluateSecurity(pc)),
	}
}
