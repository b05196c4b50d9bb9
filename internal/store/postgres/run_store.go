package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL. The partial unique
// index uq_detection_runs_running admits a single running row.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a new RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

const runCols = `id, status, started_at, finished_at, stats, error`

// Start records a running run. Another running row yields
// domain.ErrAlreadyExists.
func (s *RunStore) Start(ctx context.Context, run domain.DetectionRun) error {
	const query = `
		INSERT INTO detection_runs (id, status, started_at, stats, error)
		VALUES ($1, $2, $3, $4, '')`

	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("postgres: marshal run stats: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, run.ID, string(run.Status), run.StartedAt, stats); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: start run %s: %w", run.ID, err)
	}
	return nil
}

// Finish records the final status, stats and error of a run.
func (s *RunStore) Finish(ctx context.Context, run domain.DetectionRun) error {
	const query = `
		UPDATE detection_runs SET
			status      = $2,
			finished_at = $3,
			stats       = $4,
			error       = $5
		WHERE id = $1`

	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("postgres: marshal run stats: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, run.ID, string(run.Status), run.FinishedAt, stats, run.Error)
	if err != nil {
		return fmt.Errorf("postgres: finish run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Running returns the run marked running, or domain.ErrNotFound.
func (s *RunStore) Running(ctx context.Context) (domain.DetectionRun, error) {
	return s.one(ctx, "running run",
		`SELECT `+runCols+` FROM detection_runs WHERE status = 'running' LIMIT 1`)
}

// Latest returns the most recently started run.
func (s *RunStore) Latest(ctx context.Context) (domain.DetectionRun, error) {
	return s.one(ctx, "latest run",
		`SELECT `+runCols+` FROM detection_runs ORDER BY started_at DESC LIMIT 1`)
}

func (s *RunStore) one(ctx context.Context, what, query string) (domain.DetectionRun, error) {
	run, err := scanRun(s.pool.QueryRow(ctx, query))
	if err != nil {
		if isNoRows(err) {
			return domain.DetectionRun{}, domain.ErrNotFound
		}
		return domain.DetectionRun{}, fmt.Errorf("postgres: get %s: %w", what, err)
	}
	return run, nil
}

func scanRun(row pgx.Row) (domain.DetectionRun, error) {
	var run domain.DetectionRun
	var status string
	var stats []byte
	if err := row.Scan(&run.ID, &status, &run.StartedAt, &run.FinishedAt, &stats, &run.Error); err != nil {
		return domain.DetectionRun{}, err
	}
	run.Status = domain.RunStatus(status)
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &run.Stats); err != nil {
			return domain.DetectionRun{}, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	return run, nil
}
