package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/normalize"
)

// Source lists a venue's markets with their current raw prices.
type Source interface {
	Platform() domain.Platform
	Fetch(ctx context.Context, now time.Time) ([]domain.MarketQuote, error)
}

// IngestStats summarises one ingestion pass.
type IngestStats struct {
	Markets   int
	Snapshots int
	Unpriced  int
	Failed    int
}

// Ingestor turns venue listings into catalog rows and normalized snapshots.
type Ingestor struct {
	markets   domain.MarketStore
	snapshots domain.SnapshotStore
	sources   []Source
	logger    *slog.Logger
	now       func() time.Time
}

// NewIngestor creates a new Ingestor.
func NewIngestor(markets domain.MarketStore, snapshots domain.SnapshotStore, sources []Source, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		markets:   markets,
		snapshots: snapshots,
		sources:   sources,
		logger:    logger.With(slog.String("component", "ingestor")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run polls every source once, concurrently. A failing venue is logged and
// does not stop the others; the returned error joins every venue failure.
func (in *Ingestor) Run(ctx context.Context) (IngestStats, error) {
	var (
		mu    sync.Mutex
		total IngestStats
		errs  []error
	)

	var g errgroup.Group
	for _, src := range in.sources {
		g.Go(func() error {
			stats, err := in.ingest(ctx, src)

			mu.Lock()
			defer mu.Unlock()
			total.Markets += stats.Markets
			total.Snapshots += stats.Snapshots
			total.Unpriced += stats.Unpriced
			total.Failed += stats.Failed
			if err != nil {
				in.logger.ErrorContext(ctx, "venue ingestion failed",
					slog.String("platform", string(src.Platform())),
					slog.String("error", err.Error()),
				)
				errs = append(errs, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return total, errors.Join(errs...)
}

func (in *Ingestor) ingest(ctx context.Context, src Source) (IngestStats, error) {
	var stats IngestStats
	platform := src.Platform()

	quotes, err := src.Fetch(ctx, in.now())
	if err != nil && len(quotes) == 0 {
		return stats, fmt.Errorf("pipeline: fetch %s: %w", platform, err)
	}
	if err != nil {
		in.logger.WarnContext(ctx, "partial venue listing",
			slog.String("platform", string(platform)),
			slog.Int("quotes", len(quotes)),
			slog.String("error", err.Error()),
		)
	}

	for _, q := range quotes {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stored, err := in.store(ctx, platform, q)
		switch {
		case err != nil:
			stats.Failed++
			in.logger.WarnContext(ctx, "quote not stored",
				slog.String("platform", string(platform)),
				slog.String("platform_id", q.Market.PlatformID),
				slog.String("error", err.Error()),
			)
		case stored:
			stats.Markets++
			stats.Snapshots++
		default:
			stats.Markets++
			stats.Unpriced++
		}
	}

	in.logger.InfoContext(ctx, "venue ingested",
		slog.String("platform", string(platform)),
		slog.Int("markets", stats.Markets),
		slog.Int("snapshots", stats.Snapshots),
		slog.Int("unpriced", stats.Unpriced),
		slog.Int("failed", stats.Failed),
	)
	return stats, nil
}

// store upserts the market and appends its snapshot. Prices are normalized
// here and nowhere else. A listing without any price updates the catalog
// only and reports false.
func (in *Ingestor) store(ctx context.Context, platform domain.Platform, q domain.MarketQuote) (bool, error) {
	q.Market.Platform = platform
	market, err := in.markets.Upsert(ctx, q.Market)
	if err != nil {
		return false, err
	}

	if !priced(q.Snapshot) {
		return false, nil
	}

	snap, err := normalize.Snapshot(platform, q.Snapshot)
	if err != nil {
		return false, err
	}
	snap.MarketID = market.ID
	if _, err := in.snapshots.Insert(ctx, snap); err != nil {
		return false, err
	}
	return true, nil
}

func priced(s domain.PriceSnapshot) bool {
	return s.YesPrice > 0 || s.NoPrice > 0 || s.YesAsk != nil || s.NoAsk != nil
}

// RunLoop ingests immediately and then on every interval until ctx ends.
func (in *Ingestor) RunLoop(ctx context.Context, interval time.Duration) error {
	in.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("ingestor loop stopped")
			return ctx.Err()
		case <-ticker.C:
			in.tick(ctx)
		}
	}
}

func (in *Ingestor) tick(ctx context.Context) {
	start := time.Now()
	stats, err := in.Run(ctx)
	attrs := []any{
		slog.Int("markets", stats.Markets),
		slog.Int("snapshots", stats.Snapshots),
		slog.Duration("took", time.Since(start)),
	}
	if err != nil {
		in.logger.WarnContext(ctx, "ingestion pass finished with errors", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	in.logger.InfoContext(ctx, "ingestion pass complete", attrs...)
}
