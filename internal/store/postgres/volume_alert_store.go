package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// VolumeAlertStore implements domain.VolumeAlertStore using PostgreSQL.
type VolumeAlertStore struct {
	pool *pgxpool.Pool
}

// NewVolumeAlertStore creates a new VolumeAlertStore backed by the given connection pool.
func NewVolumeAlertStore(pool *pgxpool.Pool) *VolumeAlertStore {
	return &VolumeAlertStore{pool: pool}
}

// Insert appends an alert.
func (s *VolumeAlertStore) Insert(ctx context.Context, a domain.VolumeAlert) error {
	const query = `
		INSERT INTO volume_alerts (
			id, market_id, volume_usd, rolling_avg_7d, multiplier, z_score, alert_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.MarketID, a.VolumeUSD, a.RollingAvg7d, a.Multiplier, a.ZScore, a.AlertAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert volume alert for %s: %w", a.MarketID, err)
	}
	return nil
}

// ListBefore returns alerts raised strictly before the cutoff, oldest first.
func (s *VolumeAlertStore) ListBefore(ctx context.Context, before time.Time) ([]domain.VolumeAlert, error) {
	const query = `
		SELECT id, market_id, volume_usd, rolling_avg_7d, multiplier, z_score, alert_at
		FROM volume_alerts
		WHERE alert_at < $1
		ORDER BY alert_at`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list volume alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.VolumeAlert
	for rows.Next() {
		var a domain.VolumeAlert
		if err := rows.Scan(&a.ID, &a.MarketID, &a.VolumeUSD, &a.RollingAvg7d, &a.Multiplier, &a.ZScore, &a.AlertAt); err != nil {
			return nil, fmt.Errorf("postgres: scan volume alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list volume alerts rows: %w", err)
	}
	return out, nil
}
