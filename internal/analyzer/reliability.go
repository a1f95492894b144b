package analyzer

import (
	"fmt"

	"github.com/archhealth/backend-go/internal/domain"
)

// Single point of failure types
const (
	SPOFSingleRegion = "single_region"
	SPOFSingleAZ     = "single_az"
	SPOFUnbalancedAZ = "unbalanced_az"
)

// AnalyzeReliability reports redundancy and single points of failure
func AnalyzeReliability(pc *PreComputedData) domain.ReliabilityReport {
	multiAZ := pc.DistinctAZs >= 2
	multiRegion := pc.DistinctRegions >= 2

	score := neutralScore
	if multiRegion {
		score += 20
	} else if multiAZ {
		if pc.IsAZBalanced {
			score += 15
		} else {
			score += 5
		}
	}

	spofs := []domain.SinglePointOfFailure{}
	if pc.EC2Count > 0 {
		if !multiRegion {
			spofs = append(spofs, domain.SinglePointOfFailure{
				Type:    SPOFSingleRegion,
				Impact:  domain.PriorityHigh,
				Message: "All instances run in a single region",
			})
		}
		if !multiAZ {
			spofs = append(spofs, domain.SinglePointOfFailure{
				Type:    SPOFSingleAZ,
				Impact:  domain.PriorityCritical,
				Message: "All instances run in a single availability zone",
			})
		} else if !pc.IsAZBalanced {
			spofs = append(spofs, domain.SinglePointOfFailure{
				Type:    SPOFUnbalancedAZ,
				Impact:  domain.PriorityHigh,
				Message: fmt.Sprintf("%.1f%% of instances are concentrated in one availability zone", pc.MaxAZPercentage),
			})
		}
	}

	return domain.ReliabilityReport{
		MultiAZ:          multiAZ,
		MultiRegion:      multiRegion,
		AZCount:          pc.DistinctAZs,
		RegionCount:      pc.DistinctRegions,
		AZBalanced:       pc.IsAZBalanced,
		MaxAZPercentage:  round1(pc.MaxAZPercentage),
		SinglePoints:     spofs,
		ReliabilityScore: clamp(score),
	}
}
