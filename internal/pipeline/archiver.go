package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/scheduler"
)

// Archiver exports old detection history to cold storage on a schedule.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	logger        *slog.Logger
	now           func() time.Time
}

// NewArchiver creates a new Archiver.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Cutoff returns the instant before which records are archived.
func (a *Archiver) Cutoff() time.Time {
	return a.now().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
}

// Run executes a single archive pass over resolved opportunities and volume
// alerts older than the retention window.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.Cutoff()
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	opps, err := a.blobArchiver.ArchiveOpportunities(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive opportunities before %v: %w", cutoff, err)
	}

	alerts, err := a.blobArchiver.ArchiveVolumeAlerts(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive volume alerts before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("opportunities_archived", opps),
		slog.Int64("volume_alerts_archived", alerts),
	)
	return nil
}

// RunCron runs the archiver on a cron schedule (seconds field included)
// until ctx is cancelled.
func (a *Archiver) RunCron(ctx context.Context, spec string) error {
	sched := scheduler.New(a.logger)
	if _, err := sched.Add(ctx, "archive", spec, func(ctx context.Context) {
		if err := a.Run(ctx); err != nil {
			a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("pipeline: schedule archiver: %w", err)
	}
	a.logger.InfoContext(ctx, "archiver cron started", slog.String("cron", spec))
	return sched.Run(ctx)
}
