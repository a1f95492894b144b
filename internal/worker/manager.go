package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/archhealth/backend-go/internal/cache"
	"github.com/archhealth/backend-go/internal/domain"
)

// Manager is the registry of tenant workers. At most one live worker exists
// per tenant.
type Manager struct {
	deps Deps

	// lifecycle serializes Start and Stop so two logins for one tenant
	// never race each other
	lifecycle sync.Mutex

	mu      sync.Mutex
	workers map[string]*Worker

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a Manager
func NewManager(deps Deps) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:    deps.withDefaults(),
		workers: make(map[string]*Worker),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start opens a collector for creds and starts the tenant's worker,
// replacing any worker already running for it. The running worker is only
// replaced once the new credentials validate.
func (m *Manager) Start(ctx context.Context, tenantID string, creds domain.Credentials) (Status, error) {
	if m.deps.NewCollector == nil {
		return Status{}, fmt.Errorf("start %s: no collector factory configured", tenantID)
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	c, err := m.deps.NewCollector(ctx, creds)
	if err != nil {
		return Status{}, fmt.Errorf("open collector for %s: %w", tenantID, err)
	}

	w := newWorker(tenantID, creds, c, m.deps)
	if err := w.validate(ctx); err != nil {
		return w.Status(), err
	}

	if old := m.remove(tenantID); old != nil {
		old.Stop()
		if !old.Wait(m.deps.Schedule.RestartGrace) {
			slog.Warn("Previous worker did not exit within grace period", "tenant", tenantID)
		}
	}
	w.launch(m.ctx)

	m.mu.Lock()
	m.workers[tenantID] = w
	m.mu.Unlock()

	slog.Info("Worker started", "tenant", tenantID, "regions", c.Regions())
	return w.Status(), nil
}

// Stop cancels the tenant's worker and waits up to the restart grace period
func (m *Manager) Stop(tenantID string) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	w := m.remove(tenantID)
	if w == nil {
		return domain.ErrNoActiveSession
	}
	w.Stop()
	w.Wait(m.deps.Schedule.RestartGrace)
	m.deps.Metrics.ForgetTenant(tenantID)
	return nil
}

// Status returns the status of one tenant's worker
func (m *Manager) Status(tenantID string) (Status, error) {
	w := m.get(tenantID)
	if w == nil {
		return Status{}, domain.ErrTenantNotFound
	}
	return w.Status(), nil
}

// List returns all registered workers ordered by tenant
func (m *Manager) List() []Status {
	m.mu.Lock()
	out := make([]Status, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, w.Status())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out
}

// Cleanup removes workers whose loop has exited and returns how many
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, w := range m.workers {
		select {
		case <-w.Done():
			delete(m.workers, id)
			removed++
		default:
		}
	}
	if removed > 0 {
		slog.Info("Cleaned up finished workers", "count", removed)
	}
	return removed
}

// RunCleanup garbage-collects finished workers and expired data every
// interval until ctx is done
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Manager) sweep(ctx context.Context) {
	m.Cleanup()

	if p, ok := m.deps.Cache.(interface{ PurgeExpired() int }); ok {
		if n := p.PurgeExpired(); n > 0 {
			slog.Debug("Purged expired cache entries", "count", n)
		}
	}
	if m.deps.Store != nil {
		n, err := m.deps.Store.PurgeExpired(ctx, time.Now().UTC())
		if err != nil {
			slog.Warn("Failed to purge expired rows", "error", err)
		} else if n > 0 {
			slog.Info("Purged expired rows", "count", n)
		}
	}
}

// Shutdown cancels every worker and waits for them to exit or ctx to end
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	m.mu.Lock()
	workers := make([]*Worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.workers = make(map[string]*Worker)
	m.mu.Unlock()

	for _, w := range workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			return fmt.Errorf("shutdown: %d workers still running: %w", len(workers), ctx.Err())
		}
	}
	slog.Info("All workers stopped", "count", len(workers))
	return nil
}

// AnalyzeNow runs an on-demand collection and analysis with the tenant's
// collector and caches the report. Nothing is persisted.
func (m *Manager) AnalyzeNow(ctx context.Context, tenantID string) (*domain.AnalysisReport, error) {
	w := m.get(tenantID)
	if w == nil {
		return nil, domain.ErrNoActiveSession
	}
	select {
	case <-w.Done():
		return nil, domain.ErrNoActiveSession
	default:
	}

	onFailure := func(source string, _ error) { m.deps.Metrics.RecordFetchFailure(source) }
	snap, err := Collect(ctx, w.collector, time.Now().UTC(), onFailure)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", tenantID, err)
	}
	snap.CPU = CollectCPU(ctx, w.collector, snap.Instances, onFailure)

	report, err := m.deps.Analyzer.Analyze(ctx, snap.Input(tenantID))
	if err != nil {
		return nil, err
	}
	if err := m.deps.Cache.Set(ctx, cache.AnalysisKey(tenantID), report, m.deps.Schedule.AnalysisTTL); err != nil {
		slog.Warn("Failed to cache analysis", "tenant", tenantID, "error", err)
	}
	m.deps.Metrics.RecordScore(tenantID, report.OverallScore)
	return report, nil
}

func (m *Manager) get(tenantID string) *Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workers[tenantID]
}

func (m *Manager) remove(tenantID string) *Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.workers[tenantID]
	delete(m.workers, tenantID)
	return w
}
