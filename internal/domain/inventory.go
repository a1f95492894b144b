package domain

import (
	"strings"
	"time"
)

// Instance lifecycle states as reported by EC2
const (
	StateRunning = "running"
	StateStopped = "stopped"
)

// Instance is one compute resource, normalized at the collector boundary
type Instance struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	State            string `json:"state"`
	AvailabilityZone string `json:"availability_zone"`
	Region           string `json:"region"`
	HasTags          bool   `json:"has_tags"`
}

// Bucket is one object-storage container
type Bucket struct {
	Name      string `json:"name"`
	Region    string `json:"region"`
	Public    bool   `json:"public"`
	Encrypted bool   `json:"encrypted"`
}

// Severity is the label scheme every finding is normalized onto
type Severity string

const (
	SeverityCritical      Severity = "CRITICAL"
	SeverityHigh          Severity = "HIGH"
	SeverityMedium        Severity = "MEDIUM"
	SeverityLow           Severity = "LOW"
	SeverityInformational Severity = "INFORMATIONAL"
)

// Severities lists labels from most to least severe
var Severities = []Severity{
	SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInformational,
}

// Rank orders severities; lower is more severe
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// AtLeast reports whether s is as severe as min or more
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() <= min.Rank()
}

// ParseSeverity maps a free-form label onto the severity scheme.
// Unknown labels become INFORMATIONAL.
func ParseSeverity(label string) Severity {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "CRITICAL":
		return SeverityCritical
	case "HIGH":
		return SeverityHigh
	case "MEDIUM", "MODERATE":
		return SeverityMedium
	case "LOW":
		return SeverityLow
	default:
		return SeverityInformational
	}
}

// NormalizeSeverityScore maps a numeric 0-10 severity (GuardDuty, Security Hub
// normalized/10) onto the label scheme
func NormalizeSeverityScore(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	case score >= 1.0:
		return SeverityLow
	default:
		return SeverityInformational
	}
}

// Finding is a detected security issue
type Finding struct {
	ID       string   `json:"id"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Type     string   `json:"type"`
	Region   string   `json:"region"`
	Source   string   `json:"source,omitempty"`
}

// CostData is spend for a period grouped by AWS service
type CostData struct {
	TotalCost   float64            `json:"total_cost"`
	ByService   map[string]float64 `json:"by_service"`
	Start       time.Time          `json:"start"`
	End         time.Time          `json:"end"`
	Granularity string             `json:"granularity"`
}

// CPUMetrics summarizes CPUUtilization for one instance. The zero value means no data.
type CPUMetrics struct {
	Average    float64   `json:"average"`
	Max        float64   `json:"max"`
	Datapoints []float64 `json:"datapoints,omitempty"`
}

// MetricPoint is one time-series sample persisted per tenant
type MetricPoint struct {
	TenantID  string    `json:"tenant_id"`
	Service   string    `json:"service"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Credentials is the credential handle a tenant worker holds in memory
type Credentials struct {
	AccessKeyID     string    `json:"access_key_id" binding:"required"`
	SecretAccessKey string    `json:"secret_access_key" binding:"required"`
	SessionToken    string    `json:"session_token,omitempty"`
	Region          string    `json:"region,omitempty"`
	Regions         []string  `json:"regions,omitempty"`
	Expiration      time.Time `json:"expiration,omitempty"`
	NotifyEmail     string    `json:"notify_email,omitempty"`
}

// Expired reports whether the credentials carry an expiry that has passed
func (c Credentials) Expired(now time.Time) bool {
	return !c.Expiration.IsZero() && !now.Before(c.Expiration)
}

// ScanRegions returns the regions to collect from, defaulting to the home region
func (c Credentials) ScanRegions() []string {
	if len(c.Regions) > 0 {
		return c.Regions
	}
	if c.Region != "" {
		return []string{c.Region}
	}
	return nil
}
