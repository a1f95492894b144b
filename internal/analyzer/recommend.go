package analyzer

import (
	"fmt"
	"sort"

	"github.com/archhealth/backend-go/internal/domain"
)

// Recommendation categories
const (
	CategoryGettingStarted = "getting_started"
	CategorySecurity       = "security"
	CategoryCost           = "cost_optimization"
	CategoryReliability    = "reliability"
	CategoryPerformance    = "performance"
	CategoryOperations     = "operational_excellence"
	CategorySustainability = "sustainability"
)

// GenerateRecommendations turns one analysis run into a prioritized remediation list.
// Rules are evaluated in a fixed order and the result is stably sorted by priority.
func GenerateRecommendations(
	pillars map[domain.Pillar]domain.PillarScore,
	cost domain.CostReport,
	perf domain.PerformanceReport,
	sec domain.SecurityReport,
	rel domain.ReliabilityReport,
	pc *PreComputedData,
) []domain.Recommendation {
	if pc.TotalResources() == 0 {
		return []domain.Recommendation{{
			Priority:    domain.PriorityLow,
			Category:    CategoryGettingStarted,
			Title:       "Getting Started",
			Description: "No EC2 instances or S3 buckets were found. Deploy workloads or verify the scanned regions to start receiving architecture recommendations.",
			Impact:      "Enables architecture analysis",
			Effort:      "Low",
		}}
	}

	var recs []domain.Recommendation
	add := func(r domain.Recommendation) { recs = append(recs, r) }

	// 1. security findings
	if sec.SecurityScore < 80 && sec.TotalFindings > 0 {
		add(domain.Recommendation{
			Priority: domain.PriorityCritical,
			Category: CategorySecurity,
			Title:    "Address Critical Security Findings",
			Description: fmt.Sprintf("%d security findings detected (%d critical, %d high). Review and remediate the highest severity findings first.",
				sec.TotalFindings, sec.BySeverity[domain.SeverityCritical], sec.BySeverity[domain.SeverityHigh]),
			Impact: "Reduces exposure to active threats",
			Effort: "Medium",
		})
	}

	// 2. encryption
	if pc.UnencryptedBuckets > 0 {
		add(domain.Recommendation{
			Priority:    domain.PriorityHigh,
			Category:    CategorySecurity,
			Title:       "Enable S3 Bucket Encryption",
			Description: fmt.Sprintf("%d S3 buckets have no default encryption. Enable SSE-S3 or SSE-KMS.", pc.UnencryptedBuckets),
			Impact:      "Protects data at rest",
			Effort:      "Low",
		})
	}

	// 3. cost
	if cost.PotentialMonthlySavings > 100 && pc.EC2Count > 0 {
		add(domain.Recommendation{
			Priority: domain.PriorityHigh,
			Category: CategoryCost,
			Title:    "Implement Cost Optimization Strategies",
			Description: fmt.Sprintf("Rightsizing, Reserved Instances or Savings Plans and removing stopped instances could save about $%.2f per month.",
				cost.PotentialMonthlySavings),
			Impact:           "Lowers monthly spend",
			Effort:           "Medium",
			PotentialSavings: cost.PotentialMonthlySavings,
		})
	}

	// 4. availability
	if pc.EC2Count > 0 {
		if !rel.MultiAZ {
			add(domain.Recommendation{
				Priority:    domain.PriorityHigh,
				Category:    CategoryReliability,
				Title:       "Enable Multi-AZ Deployment",
				Description: "All instances run in a single availability zone. Distribute workloads across at least two zones.",
				Impact:      "Survives availability zone outages",
				Effort:      "Medium",
			})
		} else if !rel.AZBalanced {
			add(domain.Recommendation{
				Priority:    domain.PriorityMedium,
				Category:    CategoryReliability,
				Title:       "Balance AZ Distribution",
				Description: fmt.Sprintf("%.1f%% of instances are in one availability zone. Rebalance so no zone holds more than half.", rel.MaxAZPercentage),
				Impact:      "Limits blast radius of a zone failure",
				Effort:      "Low",
			})
		}
		if !rel.MultiRegion && pc.EC2Count >= 5 {
			add(domain.Recommendation{
				Priority:    domain.PriorityMedium,
				Category:    CategoryReliability,
				Title:       "Consider Multi-Region Deployment",
				Description: "All instances run in one region. Evaluate a warm standby or pilot light in a second region.",
				Impact:      "Survives regional outages",
				Effort:      "High",
			})
		}
	}

	// 5. performance
	if pc.EC2Count > 0 && perf.PerformanceScore < 80 {
		for _, issue := range perf.Issues {
			switch issue.Type {
			case domain.IssueOldGeneration:
				add(domain.Recommendation{
					Priority:    domain.PriorityMedium,
					Category:    CategoryPerformance,
					Title:       "Upgrade Previous-Generation Instances",
					Description: issue.Message + ". Move to current generation families for better price-performance.",
					Impact:      "Improves price-performance",
					Effort:      "Medium",
				})
			case domain.IssueHighCPU:
				add(domain.Recommendation{
					Priority:    domain.PriorityHigh,
					Category:    CategoryPerformance,
					Title:       "Increase Compute Capacity",
					Description: issue.Message + ". Scale out with Auto Scaling or move to larger instance sizes.",
					Impact:      "Prevents saturation and latency",
					Effort:      "Medium",
				})
			}
		}
	}

	// 6. operations
	if pc.TotalResources() > 0 {
		if pillars[domain.PillarOperationalExcellence].Score < 80 && pc.TaggedRatio() < 0.8 {
			add(domain.Recommendation{
				Priority:    domain.PriorityMedium,
				Category:    CategoryOperations,
				Title:       "Implement Resource Tagging Strategy",
				Description: fmt.Sprintf("Only %.0f%% of instances are tagged. Enforce owner, environment and cost-center tags.", pc.TaggedRatio()*100),
				Impact:      "Improves ownership and cost attribution",
				Effort:      "Low",
			})
		}
		if pc.EC2Count > 5 && pc.DistinctRegions < 2 {
			add(domain.Recommendation{
				Priority:    domain.PriorityMedium,
				Category:    CategoryOperations,
				Title:       "Set Up Centralized Monitoring",
				Description: "Create CloudWatch dashboards and alarms covering the fleet.",
				Impact:      "Faster incident detection",
				Effort:      "Medium",
			})
		}
	}

	// 7. sustainability
	if pc.Running > 0 && pc.EfficiencyRatio() < 0.6 {
		add(domain.Recommendation{
			Priority:         domain.PriorityMedium,
			Category:         CategorySustainability,
			Title:            "Adopt Energy-Efficient Instance Types",
			Description:      fmt.Sprintf("Only %.0f%% of running instances use efficient families. Consider Graviton or current generation types.", pc.EfficiencyRatio()*100),
			Impact:           "Lower energy use and cost",
			Effort:           "Medium",
			PotentialSavings: round2(cost.TotalMonthlyCost * 0.15),
		})
	}
	if pc.StoppedRatio() > 0.2 {
		add(domain.Recommendation{
			Priority:         domain.PriorityMedium,
			Category:         CategorySustainability,
			Title:            "Eliminate Idle Resources",
			Description:      fmt.Sprintf("%d instances are stopped. Snapshot and terminate instances that are no longer needed.", pc.Stopped),
			Impact:           "Removes idle storage and capacity",
			Effort:           "Low",
			PotentialSavings: round2(cost.TotalMonthlyCost * 0.10),
		})
	}

	// 8. backups
	if pc.EC2Count >= 3 {
		add(domain.Recommendation{
			Priority:    domain.PriorityMedium,
			Category:    CategoryReliability,
			Title:       "Implement Automated Backup Strategy",
			Description: "Use AWS Backup plans for EBS volumes and instances with defined retention.",
			Impact:      "Enables recovery from data loss",
			Effort:      "Low",
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.Rank() < recs[j].Priority.Rank()
	})
	return recs
}
