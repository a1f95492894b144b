package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/archhealth/backend-go/internal/cache"
	"github.com/archhealth/backend-go/internal/domain"
	"github.com/archhealth/backend-go/internal/notify"
)

// State is a worker lifecycle state
type State string

const (
	StateCreated      State = "created"
	StateScheduled    State = "scheduled"
	StateCollecting   State = "collecting"
	StateIdle         State = "idle"
	StateCancelled    State = "cancelled"
	StateTokenExpired State = "token_expired"
	StateFatal        State = "fatal"
)

// Terminal reports whether the worker has exited
func (s State) Terminal() bool {
	return s == StateCancelled || s == StateTokenExpired || s == StateFatal
}

const finalizeTimeout = 10 * time.Second

// Status is a point-in-time view of a worker
type Status struct {
	TenantID       string     `json:"tenant_id"`
	State          State      `json:"state"`
	StartedAt      time.Time  `json:"started_at"`
	LastCollection *time.Time `json:"last_collection,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	Cycles         int        `json:"cycles"`
}

// Worker runs the periodic collection loop for one tenant
type Worker struct {
	tenantID  string
	creds     domain.Credentials
	collector Collector
	deps      Deps
	now       func() time.Time

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

func newWorker(tenantID string, creds domain.Credentials, c Collector, deps Deps) *Worker {
	now := func() time.Time { return time.Now().UTC() }
	return &Worker{
		tenantID:  tenantID,
		creds:     creds,
		collector: c,
		deps:      deps,
		now:       now,
		status:    Status{TenantID: tenantID, State: StateCreated, StartedAt: now()},
		done:      make(chan struct{}),
	}
}

// validate checks the session before the worker is launched.
// A failed validation ends the worker without retry.
func (w *Worker) validate(ctx context.Context) error {
	if err := w.collector.ValidateSession(ctx); err != nil {
		state := StateFatal
		if errors.Is(err, domain.ErrTokenInvalid) {
			state = StateTokenExpired
		}
		w.finish(state, err)
		close(w.done)
		return fmt.Errorf("validate session for %s: %w", w.tenantID, err)
	}
	return nil
}

// launch starts the loop under parent
func (w *Worker) launch(parent context.Context) {
	runCtx, cancel := context.WithCancel(parent)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.deps.Metrics.RecordWorkerStart()
	go w.run(runCtx)
}

// Stop requests cancellation; the loop exits at its next suspension point
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the loop has exited
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the loop exits or timeout elapses
func (w *Worker) Wait(timeout time.Duration) bool {
	select {
	case <-w.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Status returns a copy of the worker's status
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.status
	if s.LastCollection != nil {
		t := *s.LastCollection
		s.LastCollection = &t
	}
	return s
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.deps.Metrics.RecordWorkerEnd()
	log := slog.With("tenant", w.tenantID)

	sched := w.deps.Schedule
	w.setState(StateScheduled)
	if !sleepCtx(ctx, sched.InitialDelay+jitter(sched.InitialJitter)) {
		w.finish(StateCancelled, nil)
		return
	}

	for {
		w.setState(StateCollecting)
		err := w.runCycle(ctx)

		wait := sched.Interval
		switch {
		case err == nil:
		case ctx.Err() != nil:
			w.finish(StateCancelled, nil)
			return
		case errors.Is(err, domain.ErrTokenInvalid):
			log.Warn("Session no longer valid, stopping worker", "error", err)
			w.finish(StateTokenExpired, err)
			return
		default:
			log.Error("Collection cycle failed", "error", err, "backoff", sched.ErrorBackoff)
			w.recordError(err)
			wait = sched.ErrorBackoff
		}

		w.setState(StateIdle)
		if !sleepCtx(ctx, wait) {
			w.finish(StateCancelled, nil)
			return
		}

		if err := w.collector.ValidateSession(ctx); err != nil {
			switch {
			case ctx.Err() != nil:
				w.finish(StateCancelled, nil)
				return
			case errors.Is(err, domain.ErrTokenInvalid):
				log.Warn("Session expired, stopping worker", "error", err)
				w.finish(StateTokenExpired, err)
				return
			default:
				log.Warn("Session check failed, retrying after backoff", "error", err)
				w.recordError(err)
				if !sleepCtx(ctx, sched.ErrorBackoff) {
					w.finish(StateCancelled, nil)
					return
				}
			}
		}
	}
}

// runCycle runs one collection cycle. Panics are returned as errors so a
// single bad cycle never kills the worker.
func (w *Worker) runCycle(ctx context.Context) (err error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Collection cycle panicked", "tenant", w.tenantID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("cycle panic: %v", r)
		}
		if err != nil {
			outcome = "error"
		}
		w.deps.Metrics.RecordCycle(outcome, time.Since(start).Seconds())
	}()
	defer w.finalize(ctx)

	return w.cycle(ctx)
}

func (w *Worker) cycle(ctx context.Context) error {
	now := w.now()
	log := slog.With("tenant", w.tenantID)
	onFailure := func(source string, _ error) { w.deps.Metrics.RecordFetchFailure(source) }

	// Phase 1: fetch
	snap, err := Collect(ctx, w.collector, now, onFailure)
	if err != nil {
		return fmt.Errorf("phase fetch: %w", err)
	}
	log.Info("Inventories collected",
		"instances", len(snap.Instances), "buckets", len(snap.Buckets),
		"findings", len(snap.Findings), "failed_sources", snap.Failed)

	// Phase 2: persist, collect CPU metrics, alert
	var g errgroup.Group
	g.Go(func() error {
		snap.CPU = CollectCPU(ctx, w.collector, snap.Instances, onFailure)
		w.persist(ctx, "metrics", func(s Store) error {
			return s.SaveMetrics(ctx, w.tenantID, metricPoints(snap, now), now.Add(w.deps.Schedule.MetricRetention))
		})
		return nil
	})
	g.Go(func() error {
		w.persist(ctx, "costs", func(s Store) error {
			return s.SaveCosts(ctx, w.tenantID, snap.Cost, now.Add(w.deps.Schedule.MetricRetention))
		})
		return nil
	})
	g.Go(func() error {
		w.persist(ctx, "findings", func(s Store) error {
			return s.SaveFindings(ctx, w.tenantID, snap.Findings, now)
		})
		return nil
	})
	g.Go(func() error {
		w.cacheInventory(ctx, snap)
		return nil
	})
	g.Go(func() error {
		w.alert(ctx, snap.Findings)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	// Phase 3: analyze the phase 1 payloads
	report, err := w.deps.Analyzer.Analyze(ctx, snap.Input(w.tenantID))
	if err != nil {
		return fmt.Errorf("phase analyze: %w", err)
	}
	if w.deps.Store != nil {
		saved, err := w.deps.Store.SaveRecommendations(ctx, w.tenantID, report.Recommendations, now)
		if err != nil {
			log.Warn("Failed to persist recommendations", "error", err)
		} else {
			report.Recommendations = saved
		}
	}
	if err := w.deps.Cache.Set(ctx, cache.AnalysisKey(w.tenantID), report, w.deps.Schedule.AnalysisTTL); err != nil {
		log.Warn("Failed to cache analysis", "error", err)
	}
	w.deps.Metrics.RecordScore(w.tenantID, report.OverallScore)
	log.Info("Analysis complete", "overall_score", report.OverallScore, "rating", report.OverallRating,
		"recommendations", len(report.Recommendations))
	return nil
}

// finalize always records the collection time and drops dashboard caches,
// even when the cycle was cut short
func (w *Worker) finalize(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	at := w.now()
	w.persist(ctx, "last_collection", func(s Store) error {
		return s.UpdateLastCollection(ctx, w.tenantID, at)
	})
	if err := w.deps.Cache.InvalidatePrefix(ctx, cache.DashboardPrefix(w.tenantID)); err != nil {
		slog.Warn("Failed to invalidate dashboard cache", "tenant", w.tenantID, "error", err)
	}

	w.mu.Lock()
	w.status.LastCollection = &at
	w.status.Cycles++
	w.mu.Unlock()
}

func (w *Worker) persist(ctx context.Context, what string, fn func(Store) error) {
	if w.deps.Store == nil {
		return
	}
	if err := fn(w.deps.Store); err != nil && ctx.Err() == nil {
		slog.Warn("Persistence failed", "tenant", w.tenantID, "dataset", what, "error", err)
	}
}

func (w *Worker) cacheInventory(ctx context.Context, snap *Snapshot) {
	ttl := w.deps.Schedule.InventoryTTL
	for kind, v := range map[string]any{SourceEC2: snap.Instances, SourceS3: snap.Buckets} {
		if err := w.deps.Cache.Set(ctx, cache.InventoryKey(w.tenantID, kind), v, ttl); err != nil {
			slog.Warn("Failed to cache inventory", "tenant", w.tenantID, "kind", kind, "error", err)
		}
	}
}

func (w *Worker) alert(ctx context.Context, findings []domain.Finding) {
	n, err := w.deps.Alerter.NotifyFindings(ctx, w.tenantID, w.creds.NotifyEmail, findings)
	switch {
	case errors.Is(err, notify.ErrNoRecipient):
		w.deps.Metrics.RecordAlert("skipped")
		slog.Debug("No alert recipient for tenant", "tenant", w.tenantID)
	case err != nil:
		w.deps.Metrics.RecordAlert("failed")
		slog.Warn("Failed to send finding alert", "tenant", w.tenantID, "error", err)
	case n > 0:
		w.deps.Metrics.RecordAlert("sent")
		slog.Info("Finding alert sent", "tenant", w.tenantID, "findings", n)
	}
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.State = s
}

func (w *Worker) recordError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.LastError = err.Error()
}

func (w *Worker) finish(s State, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.State = s
	if err != nil {
		w.status.LastError = err.Error()
	}
	slog.Info("Worker stopped", "tenant", w.tenantID, "state", s)
}

// metricPoints flattens a snapshot into time-series samples
func metricPoints(snap *Snapshot, ts time.Time) []domain.MetricPoint {
	points := []domain.MetricPoint{
		{Service: SourceEC2, Metric: "instance_count", Value: float64(len(snap.Instances)), Timestamp: ts},
		{Service: SourceS3, Metric: "bucket_count", Value: float64(len(snap.Buckets)), Timestamp: ts},
		{Service: "findings", Metric: "total", Value: float64(len(snap.Findings)), Timestamp: ts},
		{Service: SourceCost, Metric: "total_cost", Value: snap.Cost.TotalCost, Timestamp: ts},
	}
	for id, m := range snap.CPU {
		points = append(points,
			domain.MetricPoint{Service: SourceEC2 + ":" + id, Metric: "CPUUtilization.Average", Value: m.Average, Timestamp: ts},
			domain.MetricPoint{Service: SourceEC2 + ":" + id, Metric: "CPUUtilization.Maximum", Value: m.Max, Timestamp: ts},
		)
	}
	return points
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
