package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/normalize"
)

// Backfill rewrites stored snapshots whose prices were saved in venue-native
// units. It only touches rows with a price above 1, so a second pass finds
// nothing to do.
type Backfill struct {
	snapshots domain.SnapshotStore
	audit     domain.AuditStore
	batchSize int
	logger    *slog.Logger
}

// NewBackfill creates a Backfill. audit may be nil.
func NewBackfill(snapshots domain.SnapshotStore, audit domain.AuditStore, batchSize int, logger *slog.Logger) *Backfill {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Backfill{
		snapshots: snapshots,
		audit:     audit,
		batchSize: batchSize,
		logger:    logger.With(slog.String("component", "backfill")),
	}
}

// Run repairs every broken snapshot of platform and returns how many rows
// were rewritten.
func (b *Backfill) Run(ctx context.Context, platform domain.Platform) (int, error) {
	var (
		afterID int64
		fixed   int
	)
	for {
		batch, err := b.snapshots.ListForRepair(ctx, platform, afterID, b.batchSize)
		if err != nil {
			return fixed, fmt.Errorf("pipeline: list snapshots for repair after %d: %w", afterID, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, snap := range batch {
			afterID = snap.ID
			if !normalize.NeedsRepair(platform, snap) {
				continue
			}
			repaired, err := normalize.Snapshot(platform, snap)
			if err != nil {
				return fixed, fmt.Errorf("pipeline: normalize snapshot %d: %w", snap.ID, err)
			}
			if err := b.snapshots.RewritePrices(ctx, repaired); err != nil {
				return fixed, fmt.Errorf("pipeline: rewrite snapshot %d: %w", snap.ID, err)
			}
			fixed++
		}

		b.logger.InfoContext(ctx, "backfill batch done",
			slog.String("platform", string(platform)),
			slog.Int64("last_id", afterID),
			slog.Int("fixed", fixed),
		)
		if len(batch) < b.batchSize {
			break
		}
	}

	if b.audit != nil && fixed > 0 {
		if err := b.audit.Log(ctx, "backfill.snapshots", map[string]any{
			"platform": string(platform),
			"fixed":    fixed,
		}); err != nil {
			b.logger.WarnContext(ctx, "backfill audit log failed", slog.String("error", err.Error()))
		}
	}
	return fixed, nil
}
