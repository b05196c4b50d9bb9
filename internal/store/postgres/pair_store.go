package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// PairStore implements domain.PairStore using PostgreSQL. Pairs are written
// by the review workflow; this store only reads them.
type PairStore struct {
	pool *pgxpool.Pool
}

// NewPairStore creates a new PairStore backed by the given connection pool.
func NewPairStore(pool *pgxpool.Pool) *PairStore {
	return &PairStore{pool: pool}
}

// ListConfirmed returns every pair in confirmed status.
func (s *PairStore) ListConfirmed(ctx context.Context) ([]domain.MarketPair, error) {
	const query = `
		SELECT id, market_a_id, market_b_id, match_score, status, created_at, updated_at
		FROM market_pairs
		WHERE status = 'confirmed'
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list confirmed pairs: %w", err)
	}
	defer rows.Close()

	var pairs []domain.MarketPair
	for rows.Next() {
		var p domain.MarketPair
		var status string
		if err := rows.Scan(&p.ID, &p.MarketAID, &p.MarketBID, &p.MatchScore, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan pair: %w", err)
		}
		p.Status = domain.PairStatus(status)
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list confirmed pairs rows: %w", err)
	}
	return pairs, nil
}
