package analyzer

import (
	"strings"

	"github.com/archhealth/backend-go/internal/domain"
)

// unknownKey groups instances whose state, AZ or region is missing
const unknownKey = "unknown"

var (
	oldGenerationPrefixes   = []string{"t2.", "m3.", "m4.", "c3.", "c4.", "r3.", "r4."}
	energyEfficientPrefixes = []string{"t3.", "t4g.", "m5.", "m6i.", "c5.", "c6i.", "r5.", "r6i."}
)

// PreComputedData is the single-pass summary of one cycle's raw inventories.
// It is built once per analysis and only read afterwards.
type PreComputedData struct {
	EC2Count int
	S3Count  int

	TaggedInstances int
	Running         int
	Stopped         int

	StateDistribution  map[string]int
	InstanceTypeCounts map[string]int

	OldGenerationCount    int
	EnergyEfficientCount  int
	EfficientRunningCount int

	AZCounts        map[string]int
	AZPercentages   map[string]float64
	MaxAZPercentage float64
	IsAZBalanced    bool
	DistinctAZs     int

	RegionCounts    map[string]int
	DistinctRegions int
	BucketRegions   map[string]int

	PublicBuckets      int
	UnencryptedBuckets int

	FindingsBySeverity map[domain.Severity][]domain.Finding
	TotalFindings      int
}

// TaggedRatio is the share of instances carrying at least one tag
func (p *PreComputedData) TaggedRatio() float64 {
	return ratio(p.TaggedInstances, p.EC2Count)
}

// StoppedRatio is the share of instances in the stopped state
func (p *PreComputedData) StoppedRatio() float64 {
	return ratio(p.Stopped, p.EC2Count)
}

// OldGenerationRatio is the share of instances on an old-generation type
func (p *PreComputedData) OldGenerationRatio() float64 {
	return ratio(p.OldGenerationCount, p.EC2Count)
}

// EfficiencyRatio is the share of running instances on an energy-efficient type
func (p *PreComputedData) EfficiencyRatio() float64 {
	return ratio(p.EfficientRunningCount, p.Running)
}

// TotalResources counts instances and buckets
func (p *PreComputedData) TotalResources() int {
	return p.EC2Count + p.S3Count
}

// SeverityCount returns the number of findings with the given severity
func (p *PreComputedData) SeverityCount(s domain.Severity) int {
	return len(p.FindingsBySeverity[s])
}

type typeClass struct {
	oldGeneration   bool
	energyEfficient bool
}

// Aggregate reduces raw inventories into the counts every evaluator reads.
// It makes one pass over each input and never fails.
func Aggregate(instances []domain.Instance, buckets []domain.Bucket, findings []domain.Finding) PreComputedData {
	pc := PreComputedData{
		EC2Count:           len(instances),
		S3Count:            len(buckets),
		StateDistribution:  make(map[string]int),
		InstanceTypeCounts: make(map[string]int),
		AZCounts:           make(map[string]int),
		AZPercentages:      make(map[string]float64),
		RegionCounts:       make(map[string]int),
		BucketRegions:      make(map[string]int),
		FindingsBySeverity: make(map[domain.Severity][]domain.Finding),
		TotalFindings:      len(findings),
	}

	classes := make(map[string]typeClass)
	for _, inst := range instances {
		if inst.HasTags {
			pc.TaggedInstances++
		}

		state := orUnknown(inst.State)
		pc.StateDistribution[state]++
		running := state == domain.StateRunning
		switch state {
		case domain.StateRunning:
			pc.Running++
		case domain.StateStopped:
			pc.Stopped++
		}

		if inst.Type != "" {
			pc.InstanceTypeCounts[inst.Type]++
		}
		class, ok := classes[inst.Type]
		if !ok {
			class = classify(inst.Type)
			classes[inst.Type] = class
		}
		if class.oldGeneration {
			pc.OldGenerationCount++
		}
		if class.energyEfficient {
			pc.EnergyEfficientCount++
			if running {
				pc.EfficientRunningCount++
			}
		}

		pc.AZCounts[orUnknown(inst.AvailabilityZone)]++
		pc.RegionCounts[orUnknown(inst.Region)]++
	}

	pc.DistinctAZs = len(pc.AZCounts)
	pc.DistinctRegions = len(pc.RegionCounts)
	if pc.EC2Count > 0 {
		for az, n := range pc.AZCounts {
			share := float64(n) / float64(pc.EC2Count) * 100
			pc.AZPercentages[az] = share
			if share > pc.MaxAZPercentage {
				pc.MaxAZPercentage = share
			}
		}
	}
	pc.IsAZBalanced = pc.DistinctAZs >= 2 && pc.MaxAZPercentage <= 50

	for _, b := range buckets {
		if b.Public {
			pc.PublicBuckets++
		}
		if !b.Encrypted {
			pc.UnencryptedBuckets++
		}
		pc.BucketRegions[orUnknown(b.Region)]++
	}

	for _, f := range findings {
		sev := domain.ParseSeverity(string(f.Severity))
		pc.FindingsBySeverity[sev] = append(pc.FindingsBySeverity[sev], f)
	}

	return pc
}

func classify(instanceType string) typeClass {
	t := strings.ToLower(instanceType)
	return typeClass{
		oldGeneration:   hasAnyPrefix(t, oldGenerationPrefixes),
		energyEfficient: hasAnyPrefix(t, energyEfficientPrefixes),
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func orUnknown(s string) string {
	if s == "" {
		return unknownKey
	}
	return s
}

func ratio(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total)
}
