package domain

import "errors"

var (
	// ErrTokenInvalid is returned when a tenant's session can no longer be used
	ErrTokenInvalid = errors.New("session token invalid or expired")

	// ErrServiceDisabled is returned when an AWS service is not enabled or not permitted for the account
	ErrServiceDisabled = errors.New("service not enabled for account")

	// ErrTenantNotFound is returned when a tenant ID has no known state
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrNoActiveSession is returned when a tenant has no running collection worker
	ErrNoActiveSession = errors.New("no active session for tenant")

	// ErrRecommendationNotFound is returned when a recommendation ID is not found
	ErrRecommendationNotFound = errors.New("recommendation not found")
)
