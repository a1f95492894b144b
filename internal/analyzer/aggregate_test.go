package analyzer

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archhealth/backend-go/internal/domain"
)

func makeInstances(n int, typ, state, az, region string, tagged bool) []domain.Instance {
	out := make([]domain.Instance, n)
	for i := range out {
		out[i] = domain.Instance{
			ID:               fmt.Sprintf("i-%s-%s-%d", az, state, i),
			Type:             typ,
			State:            state,
			AvailabilityZone: az,
			Region:           region,
			HasTags:          tagged,
		}
	}
	return out
}

func randomInstances(r *rand.Rand, n int) []domain.Instance {
	types := []string{"t2.micro", "m5.large", "c6i.xlarge", "r4.2xlarge", "x1.16xlarge", ""}
	states := []string{"running", "stopped", "pending", "terminated", ""}
	azs := []string{"us-east-1a", "us-east-1b", "us-east-1c", "eu-west-1a", ""}
	regions := []string{"us-east-1", "eu-west-1", ""}
	out := make([]domain.Instance, n)
	for i := range out {
		out[i] = domain.Instance{
			ID:               fmt.Sprintf("i-%d", i),
			Type:             types[r.Intn(len(types))],
			State:            states[r.Intn(len(states))],
			AvailabilityZone: azs[r.Intn(len(azs))],
			Region:           regions[r.Intn(len(regions))],
			HasTags:          r.Intn(2) == 0,
		}
	}
	return out
}

func randomFindings(r *rand.Rand, n int) []domain.Finding {
	sevs := []domain.Severity{"CRITICAL", "HIGH", "MEDIUM", "LOW", "INFORMATIONAL", "", "weird"}
	out := make([]domain.Finding, n)
	for i := range out {
		out[i] = domain.Finding{ID: fmt.Sprintf("f-%d", i), Severity: sevs[r.Intn(len(sevs))]}
	}
	return out
}

func TestAggregateEmpty(t *testing.T) {
	pc := Aggregate(nil, nil, nil)

	assert.Equal(t, 0, pc.EC2Count)
	assert.Equal(t, 0, pc.S3Count)
	assert.Equal(t, 0, pc.DistinctAZs)
	assert.False(t, pc.IsAZBalanced)
	assert.Empty(t, pc.AZPercentages)
	assert.Zero(t, pc.TaggedRatio())
	assert.Zero(t, pc.EfficiencyRatio())
}

func TestAggregateCounts(t *testing.T) {
	instances := []domain.Instance{
		{ID: "i-1", Type: "t2.micro", State: "running", AvailabilityZone: "us-east-1a", Region: "us-east-1", HasTags: true},
		{ID: "i-2", Type: "t2.micro", State: "stopped", AvailabilityZone: "us-east-1b", Region: "us-east-1"},
		{ID: "i-3", Type: "m5.large", State: "running", AvailabilityZone: "us-east-1a", Region: "us-east-1", HasTags: true},
		{ID: "i-4", Type: "c6i.large", State: "pending", AvailabilityZone: "eu-west-1a", Region: "eu-west-1"},
		{ID: "i-5", Type: "M4.XLARGE", State: "", AvailabilityZone: "", Region: ""},
	}
	buckets := []domain.Bucket{
		{Name: "a", Region: "us-east-1", Public: true, Encrypted: true},
		{Name: "b", Region: "eu-west-1", Public: false, Encrypted: false},
		{Name: "c", Region: "", Public: true, Encrypted: false},
	}
	findings := []domain.Finding{
		{ID: "f-1", Severity: domain.SeverityCritical},
		{ID: "f-2", Severity: "high"},
		{ID: "f-3", Severity: ""},
	}

	pc := Aggregate(instances, buckets, findings)

	assert.Equal(t, 5, pc.EC2Count)
	assert.Equal(t, 3, pc.S3Count)
	assert.Equal(t, 2, pc.TaggedInstances)
	assert.Equal(t, 2, pc.Running)
	assert.Equal(t, 1, pc.Stopped)
	assert.Equal(t, map[string]int{"running": 2, "stopped": 1, "pending": 1, "unknown": 1}, pc.StateDistribution)
	assert.Equal(t, 2, pc.InstanceTypeCounts["t2.micro"])

	assert.Equal(t, 3, pc.OldGenerationCount, "t2 twice and m4 case-insensitively")
	assert.Equal(t, 2, pc.EnergyEfficientCount)
	assert.Equal(t, 1, pc.EfficientRunningCount)

	assert.Equal(t, 4, pc.DistinctAZs)
	assert.Equal(t, 2, pc.AZCounts["us-east-1a"])
	assert.Equal(t, 1, pc.AZCounts["unknown"])
	assert.InDelta(t, 40.0, pc.MaxAZPercentage, 1e-9)
	assert.True(t, pc.IsAZBalanced)

	assert.Equal(t, 3, pc.DistinctRegions)
	assert.Equal(t, 1, pc.BucketRegions["eu-west-1"])

	assert.Equal(t, 2, pc.PublicBuckets)
	assert.Equal(t, 2, pc.UnencryptedBuckets)

	assert.Equal(t, 3, pc.TotalFindings)
	assert.Len(t, pc.FindingsBySeverity[domain.SeverityCritical], 1)
	assert.Len(t, pc.FindingsBySeverity[domain.SeverityHigh], 1)
	assert.Len(t, pc.FindingsBySeverity[domain.SeverityInformational], 1)
	assert.Equal(t, "f-2", pc.FindingsBySeverity[domain.SeverityHigh][0].ID)
}

func TestAggregateBalanceRequiresTwoZones(t *testing.T) {
	pc := Aggregate(makeInstances(4, "m5.large", "running", "us-east-1a", "us-east-1", true), nil, nil)

	assert.Equal(t, 1, pc.DistinctAZs)
	assert.InDelta(t, 100.0, pc.MaxAZPercentage, 1e-9)
	assert.False(t, pc.IsAZBalanced)

	instances := append(
		makeInstances(2, "m5.large", "running", "us-east-1a", "us-east-1", true),
		makeInstances(2, "m5.large", "running", "us-east-1b", "us-east-1", true)...,
	)
	pc = Aggregate(instances, nil, nil)
	assert.InDelta(t, 50.0, pc.MaxAZPercentage, 1e-9)
	assert.True(t, pc.IsAZBalanced, "exactly half is still balanced")
}

func TestAggregateInvariantsRandomized(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		instances := randomInstances(r, r.Intn(60))
		findings := randomFindings(r, r.Intn(30))
		buckets := make([]domain.Bucket, r.Intn(10))

		pc := Aggregate(instances, buckets, findings)

		require.Equal(t, len(instances), pc.EC2Count)
		require.Equal(t, len(buckets), pc.S3Count)
		require.LessOrEqual(t, pc.TaggedInstances, pc.EC2Count)
		require.LessOrEqual(t, pc.Running+pc.Stopped, pc.EC2Count)

		stateSum := 0
		for _, n := range pc.StateDistribution {
			stateSum += n
		}
		require.Equal(t, pc.EC2Count, stateSum)

		if pc.EC2Count > 0 {
			var pctSum float64
			for _, p := range pc.AZPercentages {
				pctSum += p
			}
			require.InDelta(t, 100.0, pctSum, 0.01)
		}

		if pc.IsAZBalanced {
			require.GreaterOrEqual(t, pc.DistinctAZs, 2)
			require.LessOrEqual(t, pc.MaxAZPercentage, 50.0)
		}

		seen := 0
		for _, group := range pc.FindingsBySeverity {
			seen += len(group)
		}
		require.Equal(t, len(findings), seen)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	instances := randomInstances(r, 40)
	findings := randomFindings(r, 15)
	buckets := []domain.Bucket{{Name: "x", Public: true}, {Name: "y", Encrypted: true}}

	first := Aggregate(instances, buckets, findings)
	second := Aggregate(instances, buckets, findings)

	assert.Equal(t, first, second)
}
