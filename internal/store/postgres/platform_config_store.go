package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// PlatformConfigStore implements domain.PlatformConfigStore using PostgreSQL.
type PlatformConfigStore struct {
	pool *pgxpool.Pool
}

// NewPlatformConfigStore creates a new PlatformConfigStore backed by the given connection pool.
func NewPlatformConfigStore(pool *pgxpool.Pool) *PlatformConfigStore {
	return &PlatformConfigStore{pool: pool}
}

// List returns the current fee schedule of every platform.
func (s *PlatformConfigStore) List(ctx context.Context) ([]domain.PlatformConfig, error) {
	const query = `
		SELECT platform, taker_fee_pct, maker_fee_pct, settlement_fee_pct, withdrawal_fee_pct, updated_at
		FROM platform_configs
		ORDER BY platform`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list platform configs: %w", err)
	}
	defer rows.Close()

	var out []domain.PlatformConfig
	for rows.Next() {
		var c domain.PlatformConfig
		var platform string
		if err := rows.Scan(
			&platform, &c.TakerFeePct, &c.MakerFeePct, &c.SettlementFeePct, &c.WithdrawalFeePct, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan platform config: %w", err)
		}
		c.Platform = domain.Platform(platform)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list platform configs rows: %w", err)
	}
	return out, nil
}

// Upsert writes a platform's fee schedule. Detection picks it up on its
// next run.
func (s *PlatformConfigStore) Upsert(ctx context.Context, c domain.PlatformConfig) error {
	const query = `
		INSERT INTO platform_configs (
			platform, taker_fee_pct, maker_fee_pct, settlement_fee_pct, withdrawal_fee_pct, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (platform) DO UPDATE SET
			taker_fee_pct      = EXCLUDED.taker_fee_pct,
			maker_fee_pct      = EXCLUDED.maker_fee_pct,
			settlement_fee_pct = EXCLUDED.settlement_fee_pct,
			withdrawal_fee_pct = EXCLUDED.withdrawal_fee_pct,
			updated_at         = NOW()`

	_, err := s.pool.Exec(ctx, query,
		string(c.Platform), c.TakerFeePct, c.MakerFeePct, c.SettlementFeePct, c.WithdrawalFeePct,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert platform config %s: %w", c.Platform, err)
	}
	return nil
}
