package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

const lockKey = "arbwatch:detection:run"

// CoordinatorConfig tunes run coordination.
type CoordinatorConfig struct {
	// LockTTL bounds how long a crashed process can hold the run lock.
	LockTTL time.Duration
	// StaleRunAfter is the age after which a run still marked running is
	// presumed dead and marked failed.
	StaleRunAfter time.Duration
}

// Coordinator guarantees that at most one detection run is in flight. A
// second caller fails fast with domain.ErrRunInProgress; it never waits.
type Coordinator struct {
	runs   domain.RunStore
	locks  domain.LockManager
	cfg    CoordinatorConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewCoordinator creates a Coordinator. locks may be nil, in which case the
// run-status row alone serialises runs.
func NewCoordinator(runs domain.RunStore, locks domain.LockManager, cfg CoordinatorConfig, logger *slog.Logger) *Coordinator {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.StaleRunAfter <= 0 {
		cfg.StaleRunAfter = 30 * time.Minute
	}
	return &Coordinator{
		runs:   runs,
		locks:  locks,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "coordinator")),
		now:    time.Now,
	}
}

// Run is a started detection run. It must be finished with Complete or Fail.
type Run struct {
	domain.DetectionRun
	unlock func()
}

// Begin marks a new run as started.
func (c *Coordinator) Begin(ctx context.Context) (*Run, error) {
	unlock := func() {}
	if c.locks != nil {
		u, err := c.locks.Acquire(ctx, lockKey, c.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, domain.ErrRunInProgress
		}
		if err != nil {
			return nil, fmt.Errorf("detection: acquire run lock: %w", err)
		}
		unlock = u
	}

	if err := c.reapStale(ctx); err != nil {
		unlock()
		return nil, err
	}

	run := domain.DetectionRun{
		ID:        uuid.New().String(),
		Status:    domain.RunStatusRunning,
		StartedAt: c.now(),
	}
	if err := c.runs.Start(ctx, run); err != nil {
		unlock()
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.ErrRunInProgress
		}
		return nil, fmt.Errorf("detection: start run: %w", err)
	}

	c.logger.DebugContext(ctx, "run started", slog.String("run_id", run.ID))
	return &Run{DetectionRun: run, unlock: unlock}, nil
}

// Complete marks the run completed with its stats and releases the lock.
func (c *Coordinator) Complete(ctx context.Context, run *Run, stats domain.RunStats) error {
	return c.finish(ctx, run, domain.RunStatusCompleted, stats, "")
}

// Fail marks the run failed with the cause and releases the lock.
func (c *Coordinator) Fail(ctx context.Context, run *Run, stats domain.RunStats, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return c.finish(ctx, run, domain.RunStatusFailed, stats, msg)
}

// Active reports whether a run is currently marked running.
func (c *Coordinator) Active(ctx context.Context) (bool, error) {
	_, err := c.runs.Running(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("detection: check running run: %w", err)
	}
	return true, nil
}

func (c *Coordinator) finish(ctx context.Context, run *Run, status domain.RunStatus, stats domain.RunStats, msg string) error {
	defer run.unlock()

	at := c.now()
	run.Status = status
	run.FinishedAt = &at
	run.Stats = stats
	run.Error = msg
	if err := c.runs.Finish(ctx, run.DetectionRun); err != nil {
		return fmt.Errorf("detection: finish run %s: %w", run.ID, err)
	}
	return nil
}

// reapStale fails a running row older than StaleRunAfter. A younger one
// means another process is mid-run.
func (c *Coordinator) reapStale(ctx context.Context) error {
	cur, err := c.runs.Running(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("detection: check running run: %w", err)
	}
	if c.now().Sub(cur.StartedAt) < c.cfg.StaleRunAfter {
		return domain.ErrRunInProgress
	}

	at := c.now()
	cur.Status = domain.RunStatusFailed
	cur.FinishedAt = &at
	cur.Error = "abandoned: exceeded stale run timeout"
	if err := c.runs.Finish(ctx, cur); err != nil {
		return fmt.Errorf("detection: fail stale run %s: %w", cur.ID, err)
	}
	c.logger.WarnContext(ctx, "stale run marked failed",
		slog.String("run_id", cur.ID),
		slog.Time("started_at", cur.StartedAt),
	)
	return nil
}
