package domain

import "time"

// Pillar names one Well-Architected scoring dimension
type Pillar string

const (
	PillarOperationalExcellence Pillar = "operational_excellence"
	PillarSecurity              Pillar = "security"
	PillarReliability           Pillar = "reliability"
	PillarPerformance           Pillar = "performance_efficiency"
	PillarCostOptimization      Pillar = "cost_optimization"
	PillarSustainability        Pillar = "sustainability"
)

// Pillars lists the six pillars in report order
var Pillars = []Pillar{
	PillarOperationalExcellence,
	PillarSecurity,
	PillarReliability,
	PillarPerformance,
	PillarCostOptimization,
	PillarSustainability,
}

// PillarScore is one pillar's result for an analysis run
type PillarScore struct {
	Score       float64 `json:"score"`
	Rating      string  `json:"rating"`
	Description string  `json:"description"`
}

// Priority orders recommendations
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Rank returns the sort rank of a priority; lower sorts first
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Recommendation is one remediation item. ID, TenantID and CreatedAt are
// assigned when the recommendation is persisted.
type Recommendation struct {
	ID               string    `json:"id,omitempty"`
	TenantID         string    `json:"tenant_id,omitempty"`
	Priority         Priority  `json:"priority"`
	Category         string    `json:"category"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Impact           string    `json:"impact"`
	Effort           string    `json:"effort"`
	PotentialSavings float64   `json:"potential_savings"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	Implemented      bool      `json:"implemented"`
}

// ServiceCost is one ranked entry of the cost breakdown
type ServiceCost struct {
	Service string  `json:"service"`
	Cost    float64 `json:"cost"`
}

// CostReport is the cost sub-analysis
type CostReport struct {
	TotalMonthlyCost        float64       `json:"total_monthly_cost"`
	TopServices             []ServiceCost `json:"top_services"`
	EC2Cost                 float64       `json:"ec2_cost"`
	PotentialMonthlySavings float64       `json:"potential_monthly_savings"`
	CostPerResource         float64       `json:"cost_per_resource"`
	CostEfficiencyScore     float64       `json:"cost_efficiency_score"`
}

// PerformanceIssue is a typed performance flag
type PerformanceIssue struct {
	Type     string   `json:"type"`
	Severity Priority `json:"severity"`
	Message  string   `json:"message"`
}

// Performance issue types
const (
	IssueHighCPU       = "high_cpu_utilization"
	IssueOldGeneration = "old_generation_instances"
)

// PerformanceReport is the performance sub-analysis
type PerformanceReport struct {
	AverageCPU       float64            `json:"average_cpu"`
	MaxCPU           float64            `json:"max_cpu"`
	Datapoints       int                `json:"datapoints"`
	CPUSpikes        int                `json:"cpu_spikes"`
	OldGenerationPct float64            `json:"old_generation_pct"`
	Issues           []PerformanceIssue `json:"issues"`
	PerformanceScore float64            `json:"performance_score"`
}

// FindingSummary is a trimmed finding for report slices
type FindingSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Severity Severity `json:"severity"`
}

// SecurityReport is the security sub-analysis
type SecurityReport struct {
	TotalFindings      int              `json:"total_findings"`
	BySeverity         map[Severity]int `json:"by_severity"`
	PublicBuckets      int              `json:"public_buckets"`
	UnencryptedBuckets int              `json:"unencrypted_buckets"`
	TopFindings        []FindingSummary `json:"top_findings"`
	SecurityScore      float64          `json:"security_score"`
}

// SinglePointOfFailure is one reliability warning
type SinglePointOfFailure struct {
	Type    string   `json:"type"`
	Impact  Priority `json:"impact"`
	Message string   `json:"message"`
}

// ReliabilityReport is the reliability sub-analysis
type ReliabilityReport struct {
	MultiAZ          bool                   `json:"multi_az"`
	MultiRegion      bool                   `json:"multi_region"`
	AZCount          int                    `json:"az_count"`
	RegionCount      int                    `json:"region_count"`
	AZBalanced       bool                   `json:"az_balanced"`
	MaxAZPercentage  float64                `json:"max_az_percentage"`
	SinglePoints     []SinglePointOfFailure `json:"single_points_of_failure"`
	ReliabilityScore float64                `json:"reliability_score"`
}

// AnalysisReport is the full result of one analysis run
type AnalysisReport struct {
	TenantID         string                 `json:"tenant_id"`
	Timestamp        time.Time              `json:"timestamp"`
	OverallScore     float64                `json:"overall_score"`
	OverallRating    string                 `json:"overall_rating"`
	Pillars          map[Pillar]PillarScore `json:"pillars"`
	Cost             CostReport             `json:"cost"`
	Performance      PerformanceReport      `json:"performance"`
	Security         SecurityReport         `json:"security"`
	Reliability      ReliabilityReport      `json:"reliability"`
	Recommendations  []Recommendation       `json:"recommendations"`
	ExecutiveSummary string                 `json:"executive_summary"`
}
