package collector

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/securityhub"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/archhealth/backend-go/internal/domain"
)

type mockEC2Client struct {
	describeInstancesFn func(ctx context.Context, input *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
}

func (m *mockEC2Client) DescribeInstances(ctx context.Context, input *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return m.describeInstancesFn(ctx, input)
}

type mockS3Client struct {
	listBucketsFn          func(ctx context.Context, input *s3.ListBucketsInput) (*s3.ListBucketsOutput, error)
	getBucketLocationFn    func(ctx context.Context, input *s3.GetBucketLocationInput) (*s3.GetBucketLocationOutput, error)
	getPublicAccessBlockFn func(ctx context.Context, input *s3.GetPublicAccessBlockInput) (*s3.GetPublicAccessBlockOutput, error)
	getBucketEncryptionFn  func(ctx context.Context, input *s3.GetBucketEncryptionInput) (*s3.GetBucketEncryptionOutput, error)
}

func (m *mockS3Client) ListBuckets(ctx context.Context, input *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	return m.listBucketsFn(ctx, input)
}

func (m *mockS3Client) GetBucketLocation(ctx context.Context, input *s3.GetBucketLocationInput, _ ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	return m.getBucketLocationFn(ctx, input)
}

func (m *mockS3Client) GetPublicAccessBlock(ctx context.Context, input *s3.GetPublicAccessBlockInput, _ ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error) {
	return m.getPublicAccessBlockFn(ctx, input)
}

func (m *mockS3Client) GetBucketEncryption(ctx context.Context, input *s3.GetBucketEncryptionInput, _ ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error) {
	return m.getBucketEncryptionFn(ctx, input)
}

type mockSecurityHubClient struct {
	getFindingsFn func(ctx context.Context, input *securityhub.GetFindingsInput) (*securityhub.GetFindingsOutput, error)
}

func (m *mockSecurityHubClient) GetFindings(ctx context.Context, input *securityhub.GetFindingsInput, _ ...func(*securityhub.Options)) (*securityhub.GetFindingsOutput, error) {
	return m.getFindingsFn(ctx, input)
}

type mockGuardDutyClient struct {
	listDetectorsFn func(ctx context.Context, input *guardduty.ListDetectorsInput) (*guardduty.ListDetectorsOutput, error)
	listFindingsFn  func(ctx context.Context, input *guardduty.ListFindingsInput) (*guardduty.ListFindingsOutput, error)
	getFindingsFn   func(ctx context.Context, input *guardduty.GetFindingsInput) (*guardduty.GetFindingsOutput, error)
}

func (m *mockGuardDutyClient) ListDetectors(ctx context.Context, input *guardduty.ListDetectorsInput, _ ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error) {
	return m.listDetectorsFn(ctx, input)
}

func (m *mockGuardDutyClient) ListFindings(ctx context.Context, input *guardduty.ListFindingsInput, _ ...func(*guardduty.Options)) (*guardduty.ListFindingsOutput, error) {
	return m.listFindingsFn(ctx, input)
}

func (m *mockGuardDutyClient) GetFindings(ctx context.Context, input *guardduty.GetFindingsInput, _ ...func(*guardduty.Options)) (*guardduty.GetFindingsOutput, error) {
	return m.getFindingsFn(ctx, input)
}

type mockCostExplorerClient struct {
	getCostAndUsageFn func(ctx context.Context, input *costexplorer.GetCostAndUsageInput) (*costexplorer.GetCostAndUsageOutput, error)
}

func (m *mockCostExplorerClient) GetCostAndUsage(ctx context.Context, input *costexplorer.GetCostAndUsageInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	return m.getCostAndUsageFn(ctx, input)
}

type mockCloudWatchClient struct {
	getMetricStatisticsFn func(ctx context.Context, input *cloudwatch.GetMetricStatisticsInput) (*cloudwatch.GetMetricStatisticsOutput, error)
}

func (m *mockCloudWatchClient) GetMetricStatistics(ctx context.Context, input *cloudwatch.GetMetricStatisticsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	return m.getMetricStatisticsFn(ctx, input)
}

type mockSTSClient struct {
	getCallerIdentityFn func(ctx context.Context, input *sts.GetCallerIdentityInput) (*sts.GetCallerIdentityOutput, error)
}

func (m *mockSTSClient) GetCallerIdentity(ctx context.Context, input *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return m.getCallerIdentityFn(ctx, input)
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

// testSession builds a Session with no-op sleeps and the given clients
func testSession(clients Clients, regions ...string) *Session {
	if len(regions) == 0 {
		regions = []string{"us-east-1"}
	}
	policy := DefaultPolicy
	policy.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return newSession(clients, "us-east-1", regions, domain.Credentials{}, Options{Policy: policy})
}
