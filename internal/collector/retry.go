package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aws/smithy-go"

	"github.com/archhealth/backend-go/internal/domain"
)

// Policy is a bounded exponential backoff
type Policy struct {
	MaxAttempts int
	Multiplier  float64
	MinDelay    time.Duration
	MaxDelay    time.Duration

	sleep func(context.Context, time.Duration) error
}

// DefaultPolicy retries transient failures three times, waiting 2s then 4s, never more than 10s
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	Multiplier:  2,
	MinDelay:    2 * time.Second,
	MaxDelay:    10 * time.Second,
}

// Delay returns the wait before retry n (1-based)
func (p Policy) Delay(n int) time.Duration {
	d := float64(p.MinDelay)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
	}
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d < float64(p.MinDelay) {
		return p.MinDelay
	}
	return time.Duration(d)
}

// Retry runs fn until it succeeds, returns a non-retryable error, or runs out of attempts.
// Permanent AWS errors come back wrapped in domain.ErrServiceDisabled and expired
// credentials in domain.ErrTokenInvalid.
func Retry(ctx context.Context, p Policy, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		err = classify(err)
		if !IsRetryable(err) || attempt == attempts {
			break
		}
		if serr := sleep(ctx, p.Delay(attempt)); serr != nil {
			return serr
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var tokenErrorCodes = map[string]bool{
	"ExpiredToken":                true,
	"ExpiredTokenException":       true,
	"InvalidClientTokenId":        true,
	"UnrecognizedClientException": true,
	"InvalidToken":                true,
	"SignatureDoesNotMatch":       true,
}

var permanentErrorCodes = map[string]bool{
	"AccessDenied":                  true,
	"AccessDeniedException":         true,
	"UnauthorizedOperation":         true,
	"AuthorizationError":            true,
	"OptInRequired":                 true,
	"SubscriptionRequiredException": true,
	"InvalidAccessException":        true,
	"DataUnavailableException":      true,
}

var retryableErrorCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"RequestLimitExceeded":                   true,
	"RequestThrottled":                       true,
	"RequestThrottledException":              true,
	"TooManyRequestsException":               true,
	"LimitExceededException":                 true,
	"ProvisionedThroughputExceededException": true,
	"ServiceUnavailable":                     true,
	"InternalError":                          true,
	"InternalFailure":                        true,
	"RequestTimeout":                         true,
	"RequestTimeoutException":                true,
	"SlowDown":                               true,
}

// classify maps AWS error codes onto domain sentinels
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	code := apiErr.ErrorCode()
	switch {
	case tokenErrorCodes[code]:
		return fmt.Errorf("%w: %w", domain.ErrTokenInvalid, err)
	case permanentErrorCodes[code]:
		return fmt.Errorf("%w: %w", domain.ErrServiceDisabled, err)
	}
	return err
}

// IsRetryable reports whether err is a transient failure worth another attempt
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, domain.ErrTokenInvalid) || errors.Is(err, domain.ErrServiceDisabled) {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return retryableErrorCodes[apiErr.ErrorCode()] || apiErr.ErrorFault() == smithy.FaultServer
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
