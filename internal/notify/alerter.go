package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/archhealth/backend-go/internal/domain"
)

// maxDigestLines caps the findings listed in one alert body
const maxDigestLines = 20

// Alerter sends one digest per cycle of findings at or above a severity,
// skipping findings already alerted for the tenant
type Alerter struct {
	sender      Sender
	dedup       *Dedup
	minSeverity domain.Severity
}

// NewAlerter creates an Alerter that reports CRITICAL findings
func NewAlerter(sender Sender, dedup *Dedup) *Alerter {
	if sender == nil {
		sender = Nop{}
	}
	if dedup == nil {
		dedup = NewDedup(defaultDedupCapacity)
	}
	return &Alerter{sender: sender, dedup: dedup, minSeverity: domain.SeverityCritical}
}

// NotifyFindings sends the unseen findings and returns how many were included.
// Fingerprints are recorded only after a successful send, so findings that
// could not be delivered (including ErrNoRecipient) are offered again later.
func (a *Alerter) NotifyFindings(ctx context.Context, tenantID, to string, findings []domain.Finding) (int, error) {
	var fresh []domain.Finding
	var fps []string
	batch := make(map[string]bool)
	for _, f := range findings {
		if f.ID == "" || !domain.ParseSeverity(string(f.Severity)).AtLeast(a.minSeverity) {
			continue
		}
		fp := Fingerprint(tenantID, f.ID)
		if batch[fp] || a.dedup.Seen(fp) {
			continue
		}
		batch[fp] = true
		fresh = append(fresh, f)
		fps = append(fps, fp)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := a.sender.Send(ctx, digest(tenantID, to, fresh)); err != nil {
		return 0, err
	}
	a.dedup.Mark(fps...)
	return len(fresh), nil
}

func digest(tenantID, to string, findings []domain.Finding) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%d new security findings for tenant %s:\n\n", len(findings), tenantID)
	for i, f := range findings {
		if i == maxDigestLines {
			fmt.Fprintf(&b, "... and %d more\n", len(findings)-maxDigestLines)
			break
		}
		fmt.Fprintf(&b, "- [%s] %s (%s, %s)\n", f.Severity, f.Title, f.Region, f.ID)
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("[archhealth] %d new critical security findings", len(findings)),
		Body:    b.String(),
	}
}
