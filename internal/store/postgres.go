package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &PostgresStore{pool: pool}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres not initialized")
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS provision_runs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			stage TEXT NOT NULL,
			region TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			failed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS gateway_results (
			run_id TEXT NOT NULL REFERENCES provision_runs(id) ON DELETE CASCADE,
			gateway TEXT NOT NULL,
			name TEXT NOT NULL,
			protocol TEXT NOT NULL,
			api_id TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			created INTEGER NOT NULL,
			reused INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			duration_ms BIGINT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			data JSONB NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (run_id, gateway)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gateway_results_gateway ON gateway_results (gateway, recorded_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// BeginRun inserts the run row.
func (s *PostgresStore) BeginRun(ctx context.Context, run *Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO provision_runs (id, command, stage, region, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.Command, run.Stage, run.Region, run.StartedAt)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun stamps the run with its end time and failure count.
func (s *PostgresStore) FinishRun(ctx context.Context, runID string, failed int, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE provision_runs SET finished_at = $2, failed = $3 WHERE id = $1
	`, runID, at, failed)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// SaveResult journals one gateway outcome. Saving the same gateway twice
// for a run keeps the latest.
func (s *PostgresStore) SaveResult(ctx context.Context, rec *ResultRecord) error {
	data, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO gateway_results (run_id, gateway, name, protocol, api_id, state, created, reused, skipped, duration_ms, error, data, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (run_id, gateway) DO UPDATE SET
			name = EXCLUDED.name,
			protocol = EXCLUDED.protocol,
			api_id = EXCLUDED.api_id,
			state = EXCLUDED.state,
			created = EXCLUDED.created,
			reused = EXCLUDED.reused,
			skipped = EXCLUDED.skipped,
			duration_ms = EXCLUDED.duration_ms,
			error = EXCLUDED.error,
			data = EXCLUDED.data,
			recorded_at = EXCLUDED.recorded_at
	`, rec.RunID, rec.Gateway, rec.Name, rec.Protocol, rec.APIID, rec.State,
		rec.Created, rec.Reused, rec.Skipped, rec.DurationMs, rec.Error, data, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// ListResults returns the most recent outcomes of gateway, newest first.
func (s *PostgresStore) ListResults(ctx context.Context, gateway string, limit int) ([]*ResultRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, gateway, name, protocol, api_id, state, created, reused, skipped, duration_ms, error, data, recorded_at
		FROM gateway_results WHERE gateway = $1
		ORDER BY recorded_at DESC LIMIT $2
	`, gateway, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []*ResultRecord
	for rows.Next() {
		var (
			rec  ResultRecord
			data []byte
		)
		if err := rows.Scan(&rec.RunID, &rec.Gateway, &rec.Name, &rec.Protocol, &rec.APIID, &rec.State,
			&rec.Created, &rec.Reused, &rec.Skipped, &rec.DurationMs, &rec.Error, &data, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(data, &rec.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return out, nil
}
