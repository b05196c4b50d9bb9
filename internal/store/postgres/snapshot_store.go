package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotCols = `id, market_id, yes_price, no_price,
	yes_bid, yes_ask, no_bid, no_ask, yes_ask_size, no_ask_size,
	volume_24h, volume_all_time, snapshot_at, is_backfill`

// Insert appends a snapshot and returns its id.
func (s *SnapshotStore) Insert(ctx context.Context, snap domain.PriceSnapshot) (int64, error) {
	const query = `
		INSERT INTO price_snapshots (
			market_id, yes_price, no_price,
			yes_bid, yes_ask, no_bid, no_ask, yes_ask_size, no_ask_size,
			volume_24h, volume_all_time, snapshot_at, is_backfill
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13
		)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		snap.MarketID, snap.YesPrice, snap.NoPrice,
		snap.YesBid, snap.YesAsk, snap.NoBid, snap.NoAsk, snap.YesAskSize, snap.NoAskSize,
		snap.Volume24h, snap.VolumeAllTime, snap.SnapshotAt, snap.IsBackfill,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert snapshot for %s: %w", snap.MarketID, err)
	}
	return id, nil
}

// Latest returns the most recent snapshot of a market.
func (s *SnapshotStore) Latest(ctx context.Context, marketID string) (domain.PriceSnapshot, error) {
	const query = `SELECT ` + snapshotCols + ` FROM price_snapshots
		WHERE market_id = $1
		ORDER BY snapshot_at DESC, id DESC
		LIMIT 1`

	snap, err := scanSnapshot(s.pool.QueryRow(ctx, query, marketID))
	if err != nil {
		if isNoRows(err) {
			return domain.PriceSnapshot{}, domain.ErrNotFound
		}
		return domain.PriceSnapshot{}, fmt.Errorf("postgres: latest snapshot for %s: %w", marketID, err)
	}
	return snap, nil
}

// History returns a market's snapshots taken at or after since, oldest first.
func (s *SnapshotStore) History(ctx context.Context, marketID string, since time.Time) ([]domain.PriceSnapshot, error) {
	const query = `SELECT ` + snapshotCols + ` FROM price_snapshots
		WHERE market_id = $1 AND snapshot_at >= $2
		ORDER BY snapshot_at, id`

	return s.list(ctx, "snapshot history", query, marketID, since)
}

// ListForRepair pages through snapshots of one platform that still hold a
// price field above 1.
func (s *SnapshotStore) ListForRepair(ctx context.Context, platform domain.Platform, afterID int64, limit int) ([]domain.PriceSnapshot, error) {
	const query = `SELECT ` + prefixedSnapshotCols + ` FROM price_snapshots s
		JOIN markets m ON m.id = s.market_id
		WHERE m.platform = $1 AND s.id > $2
		  AND (s.yes_price > 1 OR s.no_price > 1
		       OR s.yes_bid > 1 OR s.yes_ask > 1
		       OR s.no_bid > 1 OR s.no_ask > 1)
		ORDER BY s.id
		LIMIT $3`

	return s.list(ctx, "snapshots for repair", query, string(platform), afterID, limit)
}

// RewritePrices overwrites the price fields of a stored snapshot and flags
// it as backfilled.
func (s *SnapshotStore) RewritePrices(ctx context.Context, snap domain.PriceSnapshot) error {
	const query = `
		UPDATE price_snapshots SET
			yes_price   = $2,
			no_price    = $3,
			yes_bid     = $4,
			yes_ask     = $5,
			no_bid      = $6,
			no_ask      = $7,
			is_backfill = TRUE
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		snap.ID, snap.YesPrice, snap.NoPrice,
		snap.YesBid, snap.YesAsk, snap.NoBid, snap.NoAsk,
	)
	if err != nil {
		return fmt.Errorf("postgres: rewrite snapshot %d: %w", snap.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const prefixedSnapshotCols = `s.id, s.market_id, s.yes_price, s.no_price,
	s.yes_bid, s.yes_ask, s.no_bid, s.no_ask, s.yes_ask_size, s.no_ask_size,
	s.volume_24h, s.volume_all_time, s.snapshot_at, s.is_backfill`

func (s *SnapshotStore) list(ctx context.Context, what, query string, args ...any) ([]domain.PriceSnapshot, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", what, err)
	}
	defer rows.Close()

	var out []domain.PriceSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list %s rows: %w", what, err)
	}
	return out, nil
}

func scanSnapshot(row pgx.Row) (domain.PriceSnapshot, error) {
	var snap domain.PriceSnapshot
	err := row.Scan(
		&snap.ID, &snap.MarketID, &snap.YesPrice, &snap.NoPrice,
		&snap.YesBid, &snap.YesAsk, &snap.NoBid, &snap.NoAsk, &snap.YesAskSize, &snap.NoAskSize,
		&snap.Volume24h, &snap.VolumeAllTime, &snap.SnapshotAt, &snap.IsBackfill,
	)
	return snap, err
}
