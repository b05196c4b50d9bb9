package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbwatch/internal/classify"
	"github.com/alanyoungcy/arbwatch/internal/detection"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/fees"
	"github.com/alanyoungcy/arbwatch/internal/pipeline"
	"github.com/alanyoungcy/arbwatch/internal/platform/kalshi"
	"github.com/alanyoungcy/arbwatch/internal/platform/polymarket"
	"github.com/alanyoungcy/arbwatch/internal/server"
	"github.com/alanyoungcy/arbwatch/internal/server/handler"
	"github.com/alanyoungcy/arbwatch/internal/spread"
	"github.com/alanyoungcy/arbwatch/internal/volume"
)

// DetectMode runs the detection engine on its schedule, plus the HTTP server
// when enabled.
func (a *App) DetectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting detect mode", slog.String("schedule", a.cfg.Detection.Schedule))

	runner, err := a.newRunner(deps)
	if err != nil {
		return fmt.Errorf("detect mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCancel(ctx, runner.Run(ctx, a.cfg.Detection.Schedule))
	})
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// IngestMode polls both venues and appends normalized snapshots.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	ingestor, err := a.newIngestor(deps)
	if err != nil {
		return fmt.Errorf("ingest mode: %w", err)
	}
	a.logger.InfoContext(ctx, "starting ingest mode", slog.Duration("interval", a.cfg.Pipeline.IngestInterval.Duration))
	return ignoreCancel(ctx, ingestor.RunLoop(ctx, a.cfg.Pipeline.IngestInterval.Duration))
}

// BackfillMode renormalizes stored Kalshi snapshots once and exits.
func (a *App) BackfillMode(ctx context.Context, deps *Dependencies) error {
	backfill := pipeline.NewBackfill(deps.SnapshotStore, deps.AuditStore, a.cfg.Pipeline.BackfillBatchSize, a.logger)
	fixed, err := backfill.Run(ctx, domain.PlatformKalshi)
	if err != nil {
		return fmt.Errorf("backfill mode: %w", err)
	}
	a.logger.InfoContext(ctx, "backfill complete", slog.Int("fixed", fixed))
	return nil
}

// ArchiveMode exports old records to object storage on the archive cron.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Pipeline.ArchiveRetentionDays, a.logger)
	a.logger.InfoContext(ctx, "starting archive mode", slog.String("cron", a.cfg.Pipeline.ArchiveCron))
	return ignoreCancel(ctx, archiver.RunCron(ctx, a.cfg.Pipeline.ArchiveCron))
}

// FullMode starts detection, ingestion, archiving and the HTTP server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	runner, err := a.newRunner(deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	ingestor, err := a.newIngestor(deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	orch := pipeline.NewOrchestrator(
		ingestor,
		pipeline.NewArchiver(deps.Archiver, a.cfg.Pipeline.ArchiveRetentionDays, a.logger),
		a.cfg.Pipeline.IngestInterval.Duration,
		a.cfg.Pipeline.ArchiveCron,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCancel(ctx, orch.Run(ctx))
	})
	g.Go(func() error {
		return ignoreCancel(ctx, runner.Run(ctx, a.cfg.Detection.Schedule))
	})
	a.startHTTPServer(ctx, g, deps)

	if err := deps.Notifier.NotifyAll(ctx, "arbwatch started", "mode "+a.cfg.Mode); err != nil {
		a.logger.WarnContext(ctx, "startup notification failed", slog.String("error", err.Error()))
	}
	return g.Wait()
}

// startHTTPServer adds the operational HTTP server to g when enabled. The
// server shuts down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		return
	}

	var events handler.EventReader
	if deps.SignalBus != nil {
		events = deps.SignalBus
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Probes, a.logger),
		Status:  handler.NewStatusHandler(a.cfg.Mode, deps.RunStore, deps.OpportunityStore, events, detection.ChannelOpportunities, a.logger),
		Metrics: promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry}),
	}, a.logger)

	g.Go(func() error {
		return srv.Run(ctx)
	})
}

func (a *App) newRunner(deps *Dependencies) (*detection.Runner, error) {
	dc := a.cfg.Detection

	settlement, err := fees.ParseSettlementMode(dc.Settlement)
	if err != nil {
		return nil, err
	}
	thresholds := classify.Thresholds{
		MinExecutableSpreadPct: decimal.NewFromFloat(dc.MinExecutableSpreadPct),
		MinExecutableSizeUSD:   decimal.NewFromFloat(dc.MinExecutableSizeUSD),
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	var bus domain.SignalBus
	if deps.SignalBus != nil {
		bus = deps.SignalBus
	}

	coord := detection.NewCoordinator(deps.RunStore, deps.LockManager, detection.CoordinatorConfig{
		LockTTL:       dc.LockTTL.Duration,
		StaleRunAfter: dc.StaleRunAfter.Duration,
	}, a.logger)

	return detection.NewRunner(detection.Config{
		Concurrency: dc.Concurrency,
		LegTimeout:  dc.LegTimeout.Duration,
		Settlement:  settlement,
	}, detection.RunnerDeps{
		Stores: detection.Stores{
			Markets:       deps.MarketStore,
			Snapshots:     deps.SnapshotStore,
			Pairs:         deps.PairStore,
			Fees:          deps.FeeStore,
			Opportunities: deps.OpportunityStore,
			Alerts:        deps.VolumeAlertStore,
		},
		Coordinator: coord,
		Calculator: spread.NewCalculator(spread.Config{
			LiquidityCeilingUSD:     decimal.NewFromFloat(dc.LiquidityCeilingUSD),
			MaxPositionUSD:          decimal.NewFromFloat(dc.MaxPositionUSD),
			ReferenceCapitalUSD:     decimal.NewFromFloat(dc.ReferenceCapitalUSD),
			VolumeLiquidityFraction: decimal.NewFromFloat(dc.VolumeLiquidityFraction),
		}),
		Thresholds: thresholds,
		Volume: volume.NewDetector(volume.Config{
			Window:          a.cfg.Volume.Window.Duration,
			AlertMultiplier: a.cfg.Volume.AlertMultiplier,
			MinSamples:      a.cfg.Volume.MinSamples,
		}, deps.SnapshotStore),
		Events:  detection.NewEvents(bus, deps.Notifier, a.logger),
		Metrics: detection.NewMetrics(deps.Registry),
	}, a.logger), nil
}

func (a *App) newIngestor(deps *Dependencies) (*pipeline.Ingestor, error) {
	kc := kalshi.NewClient(a.cfg.Kalshi.BaseURL, a.cfg.Kalshi.ApiKey)
	pem, err := readKalshiKey(a.cfg.Kalshi.RsaPrivateKeyPath)
	if err != nil {
		return nil, err
	}
	if pem != nil {
		if err := kc.SetRSAPrivateKey(pem); err != nil {
			return nil, err
		}
	}

	sources := []pipeline.Source{
		polymarket.NewSource(polymarket.NewGammaClient(a.cfg.Polymarket.GammaHost), a.cfg.Polymarket.PageSize, a.cfg.Polymarket.MaxPages),
		kalshi.NewSource(kc, a.cfg.Kalshi.PageSize, a.cfg.Kalshi.MaxPages),
	}
	return pipeline.NewIngestor(deps.MarketStore, deps.SnapshotStore, sources, a.logger), nil
}

// ignoreCancel turns the error a loop returns on shutdown into nil.
func ignoreCancel(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
