package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/securityhub"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/archhealth/backend-go/internal/domain"
)

// costExplorerRegion is the only endpoint Cost Explorer serves from
const costExplorerRegion = "us-east-1"

// Options tunes a Session
type Options struct {
	// Regions overrides the scan regions when the credentials carry none
	Regions []string
	// Limiter bounds concurrent AWS calls across every session sharing it
	Limiter *semaphore.Weighted
	// RegionConcurrency bounds the per-call regional fan-out
	RegionConcurrency int
	Policy            Policy
	// FindingLimit caps Security Hub findings per fetch
	FindingLimit int
	// MetricLookback is the CloudWatch window for CPU statistics
	MetricLookback time.Duration
}

func (o Options) withDefaults() Options {
	if o.Limiter == nil {
		o.Limiter = semaphore.NewWeighted(16)
	}
	if o.RegionConcurrency < 1 {
		o.RegionConcurrency = 4
	}
	if o.Policy.MaxAttempts == 0 {
		o.Policy = DefaultPolicy
	}
	if o.FindingLimit < 1 {
		o.FindingLimit = 200
	}
	if o.MetricLookback <= 0 {
		o.MetricLookback = time.Hour
	}
	return o
}

// Session collects one tenant's inventories with the credentials it was built from
type Session struct {
	clients    Clients
	homeRegion string
	regions    []string
	creds      domain.Credentials
	opts       Options
	now        func() time.Time

	mu        sync.Mutex
	accountID string
}

// NewSession builds a Session from a tenant's static or temporary credentials
func NewSession(ctx context.Context, creds domain.Credentials, defaultRegion string, opts Options) (*Session, error) {
	region := creds.Region
	if region == "" {
		region = defaultRegion
	}
	provider := credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(provider),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	regions := creds.ScanRegions()
	if len(creds.Regions) == 0 && len(opts.Regions) > 0 {
		regions = opts.Regions
	}
	return newSession(NewClients(cfg), region, regions, creds, opts), nil
}

// NewProfileSession builds a Session from the default credential chain or a named profile
func NewProfileSession(ctx context.Context, profile, region string, opts Options) (*Session, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newSession(NewClients(cfg), cfg.Region, opts.Regions, domain.Credentials{}, opts), nil
}

func newSession(clients Clients, home string, regions []string, creds domain.Credentials, opts Options) *Session {
	if len(regions) == 0 {
		regions = []string{home}
	}
	return &Session{
		clients:    clients,
		homeRegion: home,
		regions:    regions,
		creds:      creds,
		opts:       opts.withDefaults(),
		now:        time.Now,
	}
}

// NewClients builds SDK clients from cfg, one per region on demand
func NewClients(cfg aws.Config) Clients {
	return Clients{
		EC2: perRegion(func(region string) EC2API {
			return ec2.NewFromConfig(cfg, func(o *ec2.Options) { o.Region = region })
		}),
		S3: perRegion(func(region string) S3API {
			return s3.NewFromConfig(cfg, func(o *s3.Options) { o.Region = region })
		}),
		SecurityHub: perRegion(func(region string) SecurityHubAPI {
			return securityhub.NewFromConfig(cfg, func(o *securityhub.Options) { o.Region = region })
		}),
		GuardDuty: perRegion(func(region string) GuardDutyAPI {
			return guardduty.NewFromConfig(cfg, func(o *guardduty.Options) { o.Region = region })
		}),
		CostExplorer: func() CostExplorerAPI {
			return costexplorer.NewFromConfig(cfg, func(o *costexplorer.Options) { o.Region = costExplorerRegion })
		},
		CloudWatch: perRegion(func(region string) CloudWatchAPI {
			return cloudwatch.NewFromConfig(cfg, func(o *cloudwatch.Options) { o.Region = region })
		}),
		STS: func() STSAPI { return sts.NewFromConfig(cfg) },
	}
}

func perRegion[T any](build func(string) T) func(string) T {
	var mu sync.Mutex
	cache := make(map[string]T)
	return func(region string) T {
		mu.Lock()
		defer mu.Unlock()
		if c, ok := cache[region]; ok {
			return c
		}
		c := build(region)
		cache[region] = c
		return c
	}
}

// Regions returns the regions this session scans
func (s *Session) Regions() []string {
	return s.regions
}

// AccountID returns the account resolved by the last successful ValidateSession
func (s *Session) AccountID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountID
}

// ValidateSession checks that the held credentials are still accepted
func (s *Session) ValidateSession(ctx context.Context) error {
	if s.creds.Expired(s.now()) {
		return fmt.Errorf("session expired at %s: %w", s.creds.Expiration.Format(time.RFC3339), domain.ErrTokenInvalid)
	}

	var out *sts.GetCallerIdentityOutput
	err := s.call(ctx, "get caller identity", func(ctx context.Context) error {
		var err error
		out, err = s.clients.STS().GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		return err
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.accountID = aws.ToString(out.Account)
	s.mu.Unlock()
	return nil
}

// call runs one AWS request under the shared limiter with the retry policy.
// The limiter is held per attempt, not across backoff sleeps.
func (s *Session) call(ctx context.Context, op string, fn func(context.Context) error) error {
	err := Retry(ctx, s.opts.Policy, func(ctx context.Context) error {
		if err := s.opts.Limiter.Acquire(ctx, 1); err != nil {
			return err
		}
		defer s.opts.Limiter.Release(1)
		return fn(ctx)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// fanOut runs fn for every region. A failing region is logged and skipped so
// the others still report; the call fails only when every region failed or
// the credentials were rejected.
func fanOut[T any](ctx context.Context, s *Session, source string, regions []string, fn func(context.Context, string) ([]T, error)) ([]T, error) {
	results := make([][]T, len(regions))
	errs := make([]error, len(regions))

	g := new(errgroup.Group)
	g.SetLimit(s.opts.RegionConcurrency)
	for i, region := range regions {
		g.Go(func() error {
			items, err := fn(ctx, region)
			if err != nil {
				if errors.Is(err, domain.ErrTokenInvalid) {
					return err
				}
				slog.Warn("Regional fetch failed", "source", source, "region", region, "error", err)
				errs[i] = err
				return nil
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed > 0 && failed == len(regions) {
		return nil, fmt.Errorf("%s: all %d regions failed: %w", source, failed, errors.Join(errs...))
	}

	var out []T
	for _, items := range results {
		out = append(out, items...)
	}
	return out, nil
}
