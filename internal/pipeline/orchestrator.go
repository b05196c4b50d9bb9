// Package pipeline feeds the detection engine: it ingests venue snapshots,
// repairs historical prices and archives cold history.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the ingestion loop and the archive cron side by side.
// Either may be nil.
type Orchestrator struct {
	ingestor       *Ingestor
	archiver       *Archiver
	ingestInterval time.Duration
	archiveCron    string
	logger         *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	ingestor *Ingestor,
	archiver *Archiver,
	ingestInterval time.Duration,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		ingestor:       ingestor,
		archiver:       archiver,
		ingestInterval: ingestInterval,
		archiveCron:    archiveCron,
		logger:         logger,
	}
}

// Run starts the sub-pipelines and blocks until ctx is cancelled or one of
// them fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("ingest_interval", o.ingestInterval),
		slog.String("archive_cron", o.archiveCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.ingestor != nil {
		g.Go(func() error {
			err := o.ingestor.RunLoop(ctx, o.ingestInterval)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ingestor: %w", err)
		})
	}

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
