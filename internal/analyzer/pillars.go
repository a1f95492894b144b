package analyzer

import (
	"math"

	"github.com/archhealth/backend-go/internal/domain"
)

const (
	baseScore    = 100.0
	neutralScore = 70.0
)

// severityWeights is the per-finding security deduction
var severityWeights = map[domain.Severity]float64{
	domain.SeverityCritical:      15,
	domain.SeverityHigh:          8,
	domain.SeverityMedium:        3,
	domain.SeverityLow:           1,
	domain.SeverityInformational: 0,
}

var pillarDescriptions = map[domain.Pillar]string{
	domain.PillarOperationalExcellence: "Resource tagging and operational footprint",
	domain.PillarSecurity:              "Security findings and data protection",
	domain.PillarReliability:           "Availability zone and region redundancy",
	domain.PillarPerformance:           "Instance generation and compute efficiency",
	domain.PillarCostOptimization:      "Idle capacity and commitment coverage",
	domain.PillarSustainability:        "Energy-efficient and right-sized capacity",
}

// EvaluateOperationalExcellence scores tagging hygiene and regional spread
func EvaluateOperationalExcellence(pc *PreComputedData) float64 {
	if pc.EC2Count == 0 {
		return neutralScore
	}
	score := baseScore
	tagged := pc.TaggedRatio()
	if tagged < 0.5 {
		score -= 20
	} else if tagged < 0.8 {
		score -= 10
	}
	if pc.DistinctRegions < 2 {
		score -= 15
	}
	return clamp(score)
}

// EvaluateSecurity deducts per finding by severity and per exposed bucket
func EvaluateSecurity(pc *PreComputedData) float64 {
	if pc.EC2Count == 0 && pc.S3Count == 0 && pc.TotalFindings == 0 {
		return neutralScore
	}
	return clamp(baseScore - securityDeductions(pc))
}

func securityDeductions(pc *PreComputedData) float64 {
	var d float64
	for _, sev := range domain.Severities {
		d += severityWeights[sev] * float64(pc.SeverityCount(sev))
	}
	d += 10 * float64(pc.PublicBuckets)
	d += 5 * float64(pc.UnencryptedBuckets)
	return d
}

// EvaluateReliability scores availability zone spread and balance
func EvaluateReliability(pc *PreComputedData) float64 {
	if pc.EC2Count == 0 {
		return neutralScore
	}
	score := baseScore
	switch {
	case pc.DistinctAZs < 2:
		score -= 25
	case pc.DistinctAZs == 2:
		if pc.MaxAZPercentage > 80 {
			score -= 20
		} else if pc.IsAZBalanced {
			score -= 10
		} else {
			score -= 15
		}
	default:
		if !pc.IsAZBalanced {
			score -= 5
		}
	}
	// backup coverage is not collected yet
	score -= 5
	return clamp(score)
}

// EvaluatePerformance penalizes old-generation instance types
func EvaluatePerformance(pc *PreComputedData) float64 {
	if pc.EC2Count == 0 {
		return neutralScore
	}
	return clamp(baseScore - pc.OldGenerationRatio()*30)
}

// EvaluateCostOptimization penalizes stopped capacity and missing commitments
func EvaluateCostOptimization(pc *PreComputedData) float64 {
	if pc.EC2Count == 0 {
		return neutralScore
	}
	score := baseScore - pc.StoppedRatio()*20
	if pc.EC2Count > 5 {
		score -= 15
	}
	return clamp(score)
}

// EvaluateSustainability scores idle capacity, instance efficiency and footprint
func EvaluateSustainability(pc *PreComputedData) float64 {
	if pc.EC2Count == 0 {
		return neutralScore
	}
	score := baseScore - pc.StoppedRatio()*25
	if pc.Running > 0 {
		eff := pc.EfficiencyRatio()
		switch {
		case eff < 0.3:
			score -= 20
		case eff < 0.6:
			score -= 10
		case eff < 0.8:
			score -= 5
		}
	}
	if pc.DistinctRegions < 2 {
		score -= 10
	}
	if pc.OldGenerationRatio() > 0.5 {
		score -= 15
	}
	return clamp(score)
}

// EvaluatePillars runs all six evaluators
func EvaluatePillars(pc *PreComputedData) map[domain.Pillar]domain.PillarScore {
	raw := map[domain.Pillar]float64{
		domain.PillarOperationalExcellence: EvaluateOperationalExcellence(pc),
		domain.PillarSecurity:              EvaluateSecurity(pc),
		domain.PillarReliability:           EvaluateReliability(pc),
		domain.PillarPerformance:           EvaluatePerformance(pc),
		domain.PillarCostOptimization:      EvaluateCostOptimization(pc),
		domain.PillarSustainability:        EvaluateSustainability(pc),
	}
	out := make(map[domain.Pillar]domain.PillarScore, len(raw))
	for p, s := range raw {
		s = round1(s)
		out[p] = domain.PillarScore{
			Score:       s,
			Rating:      Rating(s),
			Description: pillarDescriptions[p],
		}
	}
	return out
}

// OverallScore is the mean of the six pillar scores, rounded to one decimal
func OverallScore(pillars map[domain.Pillar]domain.PillarScore) float64 {
	if len(pillars) == 0 {
		return 0
	}
	var sum float64
	for _, p := range domain.Pillars {
		sum += pillars[p].Score
	}
	return round1(sum / float64(len(domain.Pillars)))
}

// Rating maps a score onto its label
func Rating(score float64) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 80:
		return "Very Good"
	case score >= 70:
		return "Good"
	case score >= 60:
		return "Fair"
	case score >= 50:
		return "Needs Improvement"
	default:
		return "Poor"
	}
}

func clamp(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(100, score))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
