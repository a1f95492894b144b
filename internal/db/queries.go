package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/archhealth/backend-go/internal/domain"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Queries holds the persistence operations of the collection pipeline
type Queries struct {
	db    DBTX
	newID func() string
}

// New creates Queries over a pool, connection or transaction
func New(db DBTX) *Queries {
	return &Queries{db: db, newID: func() string { return uuid.NewString() }}
}

const upsertMetric = `
INSERT INTO metrics (tenant_id, service, metric, ts, value, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (tenant_id, service, metric, ts)
DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`

// SaveMetrics upserts time-series points that expire at expiresAt
func (q *Queries) SaveMetrics(ctx context.Context, tenantID string, points []domain.MetricPoint, expiresAt time.Time) error {
	b := &pgx.Batch{}
	for _, p := range points {
		b.Queue(upsertMetric, tenantID, p.Service, p.Metric, p.Timestamp, p.Value, expiresAt)
	}
	return q.execBatch(ctx, "save metrics", b)
}

const upsertCost = `
INSERT INTO costs (tenant_id, service, date, amount, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (tenant_id, service, date)
DO UPDATE SET amount = EXCLUDED.amount, expires_at = EXCLUDED.expires_at`

// SaveCosts upserts per-service spend keyed by the period start date
func (q *Queries) SaveCosts(ctx context.Context, tenantID string, cost domain.CostData, expiresAt time.Time) error {
	date := cost.Start.UTC().Truncate(24 * time.Hour)
	services := make([]string, 0, len(cost.ByService))
	for svc := range cost.ByService {
		services = append(services, svc)
	}
	sort.Strings(services)

	b := &pgx.Batch{}
	for _, svc := range services {
		b.Queue(upsertCost, tenantID, svc, date, cost.ByService[svc], expiresAt)
	}
	return q.execBatch(ctx, "save costs", b)
}

const upsertFinding = `
INSERT INTO findings (tenant_id, type, finding_id, severity, title, region, source, last_seen)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (tenant_id, type, finding_id)
DO UPDATE SET severity = EXCLUDED.severity, title = EXCLUDED.title, last_seen = EXCLUDED.last_seen`

// SaveFindings upserts findings keyed by (tenant, type, id)
func (q *Queries) SaveFindings(ctx context.Context, tenantID string, findings []domain.Finding, seenAt time.Time) error {
	b := &pgx.Batch{}
	for _, f := range findings {
		b.Queue(upsertFinding, tenantID, f.Type, f.ID, string(f.Severity), f.Title, f.Region, f.Source, seenAt)
	}
	return q.execBatch(ctx, "save findings", b)
}

const insertRecommendation = `
INSERT INTO recommendations (id, tenant_id, priority, category, title, description, impact, effort, potential_savings, created_at, implemented)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE)`

// SaveRecommendations inserts recs with fresh ids and returns the stored copies
func (q *Queries) SaveRecommendations(ctx context.Context, tenantID string, recs []domain.Recommendation, createdAt time.Time) ([]domain.Recommendation, error) {
	saved := make([]domain.Recommendation, len(recs))
	b := &pgx.Batch{}
	for i, r := range recs {
		r.ID = q.newID()
		r.TenantID = tenantID
		r.CreatedAt = createdAt
		r.Implemented = false
		saved[i] = r
		b.Queue(insertRecommendation, r.ID, tenantID, string(r.Priority), r.Category, r.Title,
			r.Description, r.Impact, r.Effort, r.PotentialSavings, createdAt)
	}
	if err := q.execBatch(ctx, "save recommendations", b); err != nil {
		return nil, err
	}
	return saved, nil
}

const upsertLastCollection = `
INSERT INTO tenants (tenant_id, last_collection_at) VALUES ($1, $2)
ON CONFLICT (tenant_id) DO UPDATE SET last_collection_at = EXCLUDED.last_collection_at`

// UpdateLastCollection records when the tenant's last cycle finished
func (q *Queries) UpdateLastCollection(ctx context.Context, tenantID string, at time.Time) error {
	if _, err := q.db.Exec(ctx, upsertLastCollection, tenantID, at); err != nil {
		return fmt.Errorf("update last collection: %w", err)
	}
	return nil
}

const listRecommendations = `
SELECT id::text, tenant_id, priority, category, title, description, impact, effort, potential_savings, created_at, implemented
FROM recommendations
WHERE tenant_id = $1
ORDER BY created_at DESC,
    CASE priority WHEN 'CRITICAL' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 ELSE 3 END
LIMIT $2`

// ListRecommendations returns the newest recommendations for a tenant
func (q *Queries) ListRecommendations(ctx context.Context, tenantID string, limit int) ([]domain.Recommendation, error) {
	rows, err := q.db.Query(ctx, listRecommendations, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecommendation)
	if err != nil {
		return nil, fmt.Errorf("scan recommendations: %w", err)
	}
	return recs, nil
}

func scanRecommendation(row pgx.CollectableRow) (domain.Recommendation, error) {
	var r domain.Recommendation
	var priority string
	err := row.Scan(&r.ID, &r.TenantID, &priority, &r.Category, &r.Title, &r.Description,
		&r.Impact, &r.Effort, &r.PotentialSavings, &r.CreatedAt, &r.Implemented)
	r.Priority = domain.Priority(priority)
	return r, err
}

const setImplemented = `
UPDATE recommendations SET implemented = $3 WHERE tenant_id = $1 AND id::text = $2`

// SetRecommendationImplemented flags a recommendation as done or not done
func (q *Queries) SetRecommendationImplemented(ctx context.Context, tenantID, id string, implemented bool) error {
	tag, err := q.db.Exec(ctx, setImplemented, tenantID, id, implemented)
	if err != nil {
		return fmt.Errorf("set implemented: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecommendationNotFound
	}
	return nil
}

// PurgeExpired deletes metric and cost rows past their expiry
func (q *Queries) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"metrics", "costs"} {
		tag, err := q.db.Exec(ctx, "DELETE FROM "+table+" WHERE expires_at <= $1", now)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", table, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func (q *Queries) execBatch(ctx context.Context, op string, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	br := q.db.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
