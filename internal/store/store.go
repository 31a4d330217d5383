// Package store persists simulation runs and their per-day metrics to
// Postgres. It follows the same connection-pooling and schema-bootstrap
// idiom as the teacher's internal/db package, minus the OpenTelemetry
// instrumentation that package wraps its driver with: a single-process
// batch simulation has no distributed call graph worth tracing.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sherlockdev6/adsim-lab/internal/models"
	"github.com/sherlockdev6/adsim-lab/internal/simerrors"
)

// ErrTransientIO marks a persistence failure worth retrying: a dropped
// connection, a timed-out query, a deadlock. It is the fourth error kind
// named alongside simerrors' engine-side taxonomy, scoped to this package
// because only the persistence collaborator can tell a transient failure
// apart from a permanent one.
var ErrTransientIO = errors.New("transient io error")

// transientIO wraps cause with ErrTransientIO and a short description.
func transientIO(op string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransientIO, op, cause)
}

// IsTransientIO reports whether err is (or wraps) ErrTransientIO.
func IsTransientIO(err error) bool { return errors.Is(err, ErrTransientIO) }

// Store wraps a pooled Postgres connection used to persist run records and
// their day-by-day metrics.
type Store struct {
	db *sql.DB
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS runs (
    id SERIAL PRIMARY KEY,
    scenario_slug TEXT NOT NULL,
    seed BIGINT NOT NULL,
    n_days INT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    started_at TIMESTAMP NULL,
    completed_at TIMESTAMP NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS day_metrics (
    run_id INT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    day INT NOT NULL,
    impressions BIGINT NOT NULL,
    clicks BIGINT NOT NULL,
    conversions BIGINT NOT NULL,
    cost DOUBLE PRECISION NOT NULL,
    revenue DOUBLE PRECISION NOT NULL,
    avg_position DOUBLE PRECISION NOT NULL,
    avg_quality_score DOUBLE PRECISION NOT NULL,
    impression_share DOUBLE PRECISION NOT NULL,
    lost_is_budget DOUBLE PRECISION NOT NULL,
    lost_is_rank DOUBLE PRECISION NOT NULL,
    fraud_clicks BIGINT NOT NULL,
    tracking_lost_conversions BIGINT NOT NULL,
    causal_log JSONB NOT NULL,
    PRIMARY KEY (run_id, day)
);

CREATE INDEX IF NOT EXISTS idx_day_metrics_run_id ON day_metrics (run_id);
`

// Open connects to Postgres with connection pooling and ensures the schema exists.
func Open(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, simerrors.ConfigError("store.dsn", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, transientIO("ping postgres", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	zap.L().Info("connected to postgres run store",
		zap.Int("max_open_conns", maxOpenConns), zap.Int("max_idle_conns", maxIdleConns))
	return s, nil
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.ExecContext(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	return nil
}

// Close terminates the pooled connection.
func (s *Store) Close() {
	if s != nil && s.db != nil {
		if err := s.db.Close(); err != nil {
			zap.L().Error("store close", zap.Error(err))
		}
	}
}

// RunRecord is the persisted identity and lifecycle state of one simulation run.
type RunRecord struct {
	ID           int64
	ScenarioSlug string
	Seed         int64
	NDays        int
	Status       models.RunStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
}

// CreateRun inserts a new run row in RunPending status and returns its ID.
func (s *Store) CreateRun(ctx context.Context, scenarioSlug string, seed int64, nDays int) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO runs (scenario_slug, seed, n_days, status) VALUES ($1, $2, $3, $4) RETURNING id`,
		scenarioSlug, seed, nDays, models.RunPending,
	).Scan(&id)
	if err != nil {
		return 0, transientIO("create run", err)
	}
	return id, nil
}

// StartRun marks a run as running and stamps its start time.
func (s *Store) StartRun(ctx context.Context, runID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = $1, started_at = NOW() WHERE id = $2`, models.RunRunning, runID)
	if err != nil {
		return transientIO(fmt.Sprintf("start run %d", runID), err)
	}
	return nil
}

// FinishRun marks a run completed or failed and stamps its completion time.
func (s *Store) FinishRun(ctx context.Context, runID int64, status models.RunStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = $1, completed_at = NOW() WHERE id = $2`, status, runID)
	if err != nil {
		return transientIO(fmt.Sprintf("finish run %d", runID), err)
	}
	return nil
}

// SaveDayMetrics persists one day's metrics for a run. Causal log weights
// are stored as a JSONB object.
func (s *Store) SaveDayMetrics(ctx context.Context, runID int64, m models.DayMetrics) error {
	causalJSON, err := json.Marshal(m.CausalLog)
	if err != nil {
		return fmt.Errorf("store: marshal causal log for run %d day %d: %w", runID, m.Day, err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO day_metrics (
            run_id, day, impressions, clicks, conversions, cost, revenue,
            avg_position, avg_quality_score, impression_share,
            lost_is_budget, lost_is_rank, fraud_clicks, tracking_lost_conversions, causal_log
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        ON CONFLICT (run_id, day) DO UPDATE SET
            impressions = EXCLUDED.impressions, clicks = EXCLUDED.clicks,
            conversions = EXCLUDED.conversions, cost = EXCLUDED.cost, revenue = EXCLUDED.revenue,
            avg_position = EXCLUDED.avg_position, avg_quality_score = EXCLUDED.avg_quality_score,
            impression_share = EXCLUDED.impression_share, lost_is_budget = EXCLUDED.lost_is_budget,
            lost_is_rank = EXCLUDED.lost_is_rank, fraud_clicks = EXCLUDED.fraud_clicks,
            tracking_lost_conversions = EXCLUDED.tracking_lost_conversions, causal_log = EXCLUDED.causal_log`,
		runID, m.Day, m.Impressions, m.Clicks, m.Conversions, m.Cost, m.Revenue,
		m.AvgPosition, m.AvgQualityScore, m.ImpressionShare,
		m.LostISBudget, m.LostISRank, m.FraudClicks, m.TrackingLostConversions, causalJSON,
	)
	if err != nil {
		return transientIO(fmt.Sprintf("save day metrics run %d day %d", runID, m.Day), err)
	}
	return nil
}

// LoadRun retrieves a run record by ID.
func (s *Store) LoadRun(ctx context.Context, runID int64) (*RunRecord, error) {
	var r RunRecord
	var started, completed sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, scenario_slug, seed, n_days, status, started_at, completed_at, created_at FROM runs WHERE id = $1`, runID,
	).Scan(&r.ID, &r.ScenarioSlug, &r.Seed, &r.NDays, &r.Status, &started, &completed, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: run %d: %w", runID, simerrors.ErrDomainError)
	}
	if err != nil {
		return nil, transientIO(fmt.Sprintf("load run %d", runID), err)
	}
	if started.Valid {
		r.StartedAt = &started.Time
	}
	if completed.Valid {
		r.CompletedAt = &completed.Time
	}
	return &r, nil
}

// LoadDayMetrics retrieves every day's metrics for a run, ordered by day.
func (s *Store) LoadDayMetrics(ctx context.Context, runID int64) ([]models.DayMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT day, impressions, clicks, conversions, cost, revenue,
               avg_position, avg_quality_score, impression_share,
               lost_is_budget, lost_is_rank, fraud_clicks, tracking_lost_conversions, causal_log
        FROM day_metrics WHERE run_id = $1 ORDER BY day ASC`, runID)
	if err != nil {
		return nil, transientIO(fmt.Sprintf("load day metrics run %d", runID), err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.DayMetrics
	for rows.Next() {
		var m models.DayMetrics
		var causalJSON []byte
		if err := rows.Scan(&m.Day, &m.Impressions, &m.Clicks, &m.Conversions, &m.Cost, &m.Revenue,
			&m.AvgPosition, &m.AvgQualityScore, &m.ImpressionShare,
			&m.LostISBudget, &m.LostISRank, &m.FraudClicks, &m.TrackingLostConversions, &causalJSON); err != nil {
			return nil, fmt.Errorf("store: scan day metrics for run %d: %w", runID, err)
		}
		if err := json.Unmarshal(causalJSON, &m.CausalLog); err != nil {
			return nil, fmt.Errorf("store: unmarshal causal log for run %d day %d: %w", runID, m.Day, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
