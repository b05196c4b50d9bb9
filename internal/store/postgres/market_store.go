package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, platform, platform_id, title, status, resolution_date, created_at, updated_at`

// Upsert inserts a market or updates the one with the same venue identity.
// The existing row keeps its id; a new row gets m.ID or a fresh uuid.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) (domain.Market, error) {
	const query = `
		INSERT INTO markets (
			id, platform, platform_id, title, status, resolution_date, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)
		ON CONFLICT (platform, platform_id) DO UPDATE SET
			title           = EXCLUDED.title,
			status          = EXCLUDED.status,
			resolution_date = EXCLUDED.resolution_date,
			updated_at      = NOW()
		RETURNING ` + marketCols

	id := m.ID
	if id == "" {
		id = uuid.New().String()
	}
	stored, err := scanMarket(s.pool.QueryRow(ctx, query,
		id, string(m.Platform), m.PlatformID, m.Title, string(m.Status), m.ResolutionDate,
	))
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: upsert market %s/%s: %w", m.Platform, m.PlatformID, err)
	}
	return stored, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// ListOpen returns every market with status open.
func (s *MarketStore) ListOpen(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE status = 'open' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list open markets rows: %w", err)
	}
	return markets, nil
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var platform, status string
	err := row.Scan(
		&m.ID, &platform, &m.PlatformID, &m.Title, &status,
		&m.ResolutionDate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Platform = domain.Platform(platform)
	m.Status = domain.MarketStatus(status)
	return m, nil
}
