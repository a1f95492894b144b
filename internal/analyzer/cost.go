package analyzer

import (
	"sort"

	"github.com/archhealth/backend-go/internal/domain"
)

// EC2ServiceName is the Cost Explorer SERVICE dimension value for compute spend
const EC2ServiceName = "Amazon Elastic Compute Cloud - Compute"

const (
	topServiceCount        = 5
	rightsizingShare       = 0.3
	rightsizingSavingsRate = 0.2
	reservedSavingsRate    = 0.3
	stoppedSavingsRate     = 0.2
)

// AnalyzeCost ranks spend by service and estimates achievable monthly savings
func AnalyzeCost(pc *PreComputedData, cost domain.CostData) domain.CostReport {
	total := cost.TotalCost
	if total <= 0 {
		for _, v := range cost.ByService {
			total += v
		}
	}

	services := make([]domain.ServiceCost, 0, len(cost.ByService))
	for name, v := range cost.ByService {
		services = append(services, domain.ServiceCost{Service: name, Cost: round2(v)})
	}
	sort.Slice(services, func(i, j int) bool {
		if services[i].Cost != services[j].Cost {
			return services[i].Cost > services[j].Cost
		}
		return services[i].Service < services[j].Service
	})
	if len(services) > topServiceCount {
		services = services[:topServiceCount]
	}

	ec2Cost := cost.ByService[EC2ServiceName]

	savings := rightsizingSavingsRate * rightsizingShare * ec2Cost
	if pc.EC2Count > 5 {
		savings += reservedSavingsRate * ec2Cost
	}
	if pc.EC2Count > 0 {
		avgInstanceCost := ec2Cost / float64(pc.EC2Count)
		savings += float64(pc.Stopped) * avgInstanceCost * stoppedSavingsRate
	}

	var perResource float64
	if n := pc.TotalResources(); n > 0 {
		perResource = total / float64(n)
	}

	return domain.CostReport{
		TotalMonthlyCost:        round2(total),
		TopServices:             services,
		EC2Cost:                 round2(ec2Cost),
		PotentialMonthlySavings: round2(savings),
		CostPerResource:         round2(perResource),
		CostEfficiencyScore:     costEfficiencyScore(perResource, pc.TotalResources()),
	}
}

func costEfficiencyScore(perResource float64, resources int) float64 {
	switch {
	case resources == 0:
		return 100
	case perResource <= 20:
		return 100
	case perResource <= 50:
		return 80
	case perResource <= 100:
		return 60
	default:
		return 40
	}
}
