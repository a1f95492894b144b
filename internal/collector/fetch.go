package collector

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/securityhub"
	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/archhealth/backend-go/internal/domain"
)

const (
	costMetric          = "UnblendedCost"
	guardDutyMaxResults = 50
	securityHubPageSize = 100
	bucketConcurrency   = 8
	cpuPeriodSeconds    = 300
)

// FetchInstances lists instances across all scan regions. Terminated instances are dropped.
func (s *Session) FetchInstances(ctx context.Context) ([]domain.Instance, error) {
	return fanOut(ctx, s, "ec2", s.regions, s.fetchRegionInstances)
}

func (s *Session) fetchRegionInstances(ctx context.Context, region string) ([]domain.Instance, error) {
	p := ec2.NewDescribeInstancesPaginator(s.clients.EC2(region), &ec2.DescribeInstancesInput{})

	var out []domain.Instance
	for p.HasMorePages() {
		var page *ec2.DescribeInstancesOutput
		err := s.call(ctx, "describe instances "+region, func(ctx context.Context) error {
			var err error
			page, err = p.NextPage(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				if inst.State != nil && inst.State.Name == ec2types.InstanceStateNameTerminated {
					continue
				}
				out = append(out, toInstance(inst, region))
			}
		}
	}

	slog.Debug("Fetched EC2 instances", "region", region, "count", len(out))
	return out, nil
}

func toInstance(inst ec2types.Instance, region string) domain.Instance {
	out := domain.Instance{
		ID:      aws.ToString(inst.InstanceId),
		Type:    string(inst.InstanceType),
		Region:  region,
		HasTags: len(inst.Tags) > 0,
	}
	if inst.State != nil {
		out.State = string(inst.State.Name)
	}
	if inst.Placement != nil {
		out.AvailabilityZone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	return out
}

// FetchBuckets lists buckets with their region, public exposure and default encryption
func (s *Session) FetchBuckets(ctx context.Context) ([]domain.Bucket, error) {
	client := s.clients.S3(s.homeRegion)

	type listed struct{ name, region string }
	var names []listed
	var token *string
	for {
		var page *s3.ListBucketsOutput
		err := s.call(ctx, "list buckets", func(ctx context.Context) error {
			var err error
			page, err = client.ListBuckets(ctx, &s3.ListBucketsInput{ContinuationToken: token})
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, b := range page.Buckets {
			names = append(names, listed{name: aws.ToString(b.Name), region: aws.ToString(b.BucketRegion)})
		}
		token = page.ContinuationToken
		if token == nil || *token == "" {
			break
		}
	}

	buckets := make([]domain.Bucket, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bucketConcurrency)
	for i, b := range names {
		g.Go(func() error {
			bucket, err := s.inspectBucket(gctx, b.name, b.region)
			if err != nil {
				return err
			}
			buckets[i] = bucket
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("Fetched S3 buckets", "count", len(buckets))
	return buckets, nil
}

// inspectBucket only fails on rejected credentials or cancellation; other
// per-bucket errors fall back to not-public and encrypted
func (s *Session) inspectBucket(ctx context.Context, name, region string) (domain.Bucket, error) {
	b := domain.Bucket{Name: name, Region: region, Encrypted: true}

	if b.Region == "" {
		var loc *s3.GetBucketLocationOutput
		err := s.call(ctx, "get bucket location "+name, func(ctx context.Context) error {
			var err error
			loc, err = s.clients.S3(s.homeRegion).GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(name)})
			return err
		})
		if fatal(err) {
			return b, err
		}
		b.Region = bucketRegion(loc, err)
	}
	client := s.clients.S3(b.Region)

	var pab *s3.GetPublicAccessBlockOutput
	err := s.call(ctx, "get public access block "+name, func(ctx context.Context) error {
		var err error
		pab, err = client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(name)})
		return err
	})
	switch {
	case fatal(err):
		return b, err
	case hasCode(err, "NoSuchPublicAccessBlockConfiguration"):
		b.Public = true
	case err == nil && pab.PublicAccessBlockConfiguration != nil:
		cfg := pab.PublicAccessBlockConfiguration
		b.Public = !(aws.ToBool(cfg.BlockPublicAcls) &&
			aws.ToBool(cfg.IgnorePublicAcls) &&
			aws.ToBool(cfg.BlockPublicPolicy) &&
			aws.ToBool(cfg.RestrictPublicBuckets))
	case err != nil:
		slog.Debug("Public access block unavailable", "bucket", name, "error", err)
	}

	var enc *s3.GetBucketEncryptionOutput
	err = s.call(ctx, "get bucket encryption "+name, func(ctx context.Context) error {
		var err error
		enc, err = client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(name)})
		return err
	})
	switch {
	case fatal(err):
		return b, err
	case hasCode(err, "ServerSideEncryptionConfigurationNotFoundError"):
		b.Encrypted = false
	case err == nil:
		b.Encrypted = enc.ServerSideEncryptionConfiguration != nil &&
			len(enc.ServerSideEncryptionConfiguration.Rules) > 0
	default:
		slog.Debug("Bucket encryption unavailable", "bucket", name, "error", err)
	}

	return b, nil
}

func bucketRegion(loc *s3.GetBucketLocationOutput, err error) string {
	if err != nil || loc == nil {
		return "unknown"
	}
	switch c := string(loc.LocationConstraint); c {
	case "":
		return "us-east-1"
	case "EU":
		return "eu-west-1"
	default:
		return c
	}
}

// FetchFindings returns active Security Hub findings at or above minSeverity
func (s *Session) FetchFindings(ctx context.Context, minSeverity domain.Severity) ([]domain.Finding, error) {
	var labels []shtypes.StringFilter
	for _, sev := range domain.Severities {
		if sev.AtLeast(minSeverity) {
			labels = append(labels, shtypes.StringFilter{
				Value:      aws.String(string(sev)),
				Comparison: shtypes.StringFilterComparisonEquals,
			})
		}
	}
	input := &securityhub.GetFindingsInput{
		Filters: &shtypes.AwsSecurityFindingFilters{
			SeverityLabel: labels,
			RecordState: []shtypes.StringFilter{
				{Value: aws.String("ACTIVE"), Comparison: shtypes.StringFilterComparisonEquals},
			},
		},
		MaxResults: aws.Int32(securityHubPageSize),
	}

	client := s.clients.SecurityHub(s.homeRegion)
	var out []domain.Finding
	for len(out) < s.opts.FindingLimit {
		var page *securityhub.GetFindingsOutput
		err := s.call(ctx, "get security hub findings", func(ctx context.Context) error {
			var err error
			page, err = client.GetFindings(ctx, input)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, f := range page.Findings {
			out = append(out, toSecurityHubFinding(f, s.homeRegion))
		}
		if page.NextToken == nil || *page.NextToken == "" {
			break
		}
		input.NextToken = page.NextToken
	}
	if len(out) > s.opts.FindingLimit {
		out = out[:s.opts.FindingLimit]
	}
	return out, nil
}

func toSecurityHubFinding(f shtypes.AwsSecurityFinding, fallbackRegion string) domain.Finding {
	sev := domain.SeverityInformational
	if f.Severity != nil {
		if f.Severity.Label != "" {
			sev = domain.ParseSeverity(string(f.Severity.Label))
		} else if f.Severity.Normalized != nil {
			sev = domain.NormalizeSeverityScore(float64(aws.ToInt32(f.Severity.Normalized)) / 10)
		}
	}
	region := aws.ToString(f.Region)
	if region == "" {
		region = fallbackRegion
	}
	var typ string
	if len(f.Types) > 0 {
		typ = f.Types[0]
	}
	return domain.Finding{
		ID:       aws.ToString(f.Id),
		Severity: sev,
		Title:    aws.ToString(f.Title),
		Type:     typ,
		Region:   region,
		Source:   "securityhub",
	}
}

// FetchGuardDutyFindings returns the most severe GuardDuty findings per region.
// Regions without a detector contribute nothing.
func (s *Session) FetchGuardDutyFindings(ctx context.Context, regions []string) ([]domain.Finding, error) {
	if len(regions) == 0 {
		regions = s.regions
	}
	return fanOut(ctx, s, "guardduty", regions, s.fetchRegionGuardDuty)
}

func (s *Session) fetchRegionGuardDuty(ctx context.Context, region string) ([]domain.Finding, error) {
	client := s.clients.GuardDuty(region)

	var detectors *guardduty.ListDetectorsOutput
	err := s.call(ctx, "list detectors "+region, func(ctx context.Context) error {
		var err error
		detectors, err = client.ListDetectors(ctx, &guardduty.ListDetectorsInput{})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(detectors.DetectorIds) == 0 {
		return nil, nil
	}
	detectorID := detectors.DetectorIds[0]

	var ids *guardduty.ListFindingsOutput
	err = s.call(ctx, "list guardduty findings "+region, func(ctx context.Context) error {
		var err error
		ids, err = client.ListFindings(ctx, &guardduty.ListFindingsInput{
			DetectorId: aws.String(detectorID),
			SortCriteria: &gdtypes.SortCriteria{
				AttributeName: aws.String("severity"),
				OrderBy:       gdtypes.OrderByDesc,
			},
			MaxResults: aws.Int32(guardDutyMaxResults),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(ids.FindingIds) == 0 {
		return nil, nil
	}

	var details *guardduty.GetFindingsOutput
	err = s.call(ctx, "get guardduty findings "+region, func(ctx context.Context) error {
		var err error
		details, err = client.GetFindings(ctx, &guardduty.GetFindingsInput{
			DetectorId: aws.String(detectorID),
			FindingIds: ids.FindingIds,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Finding, 0, len(details.Findings))
	for _, f := range details.Findings {
		r := aws.ToString(f.Region)
		if r == "" {
			r = region
		}
		out = append(out, domain.Finding{
			ID:       aws.ToString(f.Id),
			Severity: domain.NormalizeSeverityScore(aws.ToFloat64(f.Severity)),
			Title:    aws.ToString(f.Title),
			Type:     aws.ToString(f.Type),
			Region:   r,
			Source:   "guardduty",
		})
	}
	return out, nil
}

// FetchCostByService sums unblended cost per service over [start, end)
func (s *Session) FetchCostByService(ctx context.Context, start, end time.Time, granularity string) (domain.CostData, error) {
	gran := cetypes.Granularity(strings.ToUpper(granularity))
	if gran == "" {
		gran = cetypes.GranularityMonthly
	}
	input := &costexplorer.GetCostAndUsageInput{
		Granularity: gran,
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format("2006-01-02")),
			End:   aws.String(end.Format("2006-01-02")),
		},
		Metrics: []string{costMetric},
		GroupBy: []cetypes.GroupDefinition{
			{Key: aws.String("SERVICE"), Type: cetypes.GroupDefinitionTypeDimension},
		},
	}

	data := domain.CostData{
		ByService:   make(map[string]float64),
		Start:       start,
		End:         end,
		Granularity: string(gran),
	}
	client := s.clients.CostExplorer()
	for {
		var out *costexplorer.GetCostAndUsageOutput
		err := s.call(ctx, "get cost and usage", func(ctx context.Context) error {
			var err error
			out, err = client.GetCostAndUsage(ctx, input)
			return err
		})
		if err != nil {
			return domain.CostData{}, err
		}
		for _, r := range out.ResultsByTime {
			for _, g := range r.Groups {
				if len(g.Keys) == 0 {
					continue
				}
				m, ok := g.Metrics[costMetric]
				if !ok {
					continue
				}
				amount, err := strconv.ParseFloat(aws.ToString(m.Amount), 64)
				if err != nil {
					continue
				}
				data.ByService[g.Keys[0]] += amount
				data.TotalCost += amount
			}
		}
		if out.NextPageToken == nil || *out.NextPageToken == "" {
			break
		}
		input.NextPageToken = out.NextPageToken
	}
	return data, nil
}

// FetchCPUMetrics summarizes CPUUtilization for one instance over the lookback window.
// No datapoints is not an error.
func (s *Session) FetchCPUMetrics(ctx context.Context, region, instanceID string) (domain.CPUMetrics, error) {
	if region == "" {
		region = s.homeRegion
	}
	end := s.now().UTC()
	start := end.Add(-s.opts.MetricLookback)

	var out *cloudwatch.GetMetricStatisticsOutput
	err := s.call(ctx, "get cpu statistics "+instanceID, func(ctx context.Context) error {
		var err error
		out, err = s.clients.CloudWatch(region).GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
			Namespace:  aws.String("AWS/EC2"),
			MetricName: aws.String("CPUUtilization"),
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String("InstanceId"), Value: aws.String(instanceID)},
			},
			StartTime:  aws.Time(start),
			EndTime:    aws.Time(end),
			Period:     aws.Int32(cpuPeriodSeconds),
			Statistics: []cwtypes.Statistic{cwtypes.StatisticAverage, cwtypes.StatisticMaximum},
		})
		return err
	})
	if err != nil {
		return domain.CPUMetrics{}, err
	}

	points := out.Datapoints
	sort.Slice(points, func(i, j int) bool {
		return aws.ToTime(points[i].Timestamp).Before(aws.ToTime(points[j].Timestamp))
	})

	var m domain.CPUMetrics
	var sum float64
	for _, dp := range points {
		avg := aws.ToFloat64(dp.Average)
		m.Datapoints = append(m.Datapoints, avg)
		sum += avg
		m.Max = math.Max(m.Max, math.Max(avg, aws.ToFloat64(dp.Maximum)))
	}
	if len(m.Datapoints) > 0 {
		m.Average = sum / float64(len(m.Datapoints))
	}
	return m, nil
}

// fatal reports errors that must abort a multi-call fetch
func fatal(err error) bool {
	return errors.Is(err, domain.ErrTokenInvalid) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func hasCode(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
