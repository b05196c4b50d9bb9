package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL. The
// partial unique index uq_arb_opportunities_active keeps at most one active
// row per (type, subject_id).
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunityCols = `id, type, subject_id, quality,
	gross_spread_pct, total_fees_pct, net_spread_pct, max_deployable_usd, capital_weighted_spread,
	detected_at, last_seen_at, snapshot_count, duration_seconds, resolved_at, resolution, details`

// ListActive returns every unresolved opportunity.
func (s *OpportunityStore) ListActive(ctx context.Context) ([]domain.ArbOpportunity, error) {
	const query = `SELECT ` + opportunityCols + ` FROM arb_opportunities
		WHERE resolved_at IS NULL
		ORDER BY detected_at`

	return s.list(ctx, "active opportunities", query)
}

// Upsert inserts a new active opportunity, or refreshes the active one with
// the same key in the same statement. On refresh the database bumps
// snapshot_count and recomputes duration_seconds from the stored
// detected_at, so two writers can never lose an increment.
func (s *OpportunityStore) Upsert(ctx context.Context, opp domain.ArbOpportunity) (domain.ArbOpportunity, error) {
	const query = `
		INSERT INTO arb_opportunities (
			id, type, subject_id, quality,
			gross_spread_pct, total_fees_pct, net_spread_pct, max_deployable_usd, capital_weighted_spread,
			detected_at, last_seen_at, snapshot_count, duration_seconds, details
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, 1, 0, $12
		)
		ON CONFLICT (type, subject_id) WHERE resolved_at IS NULL DO UPDATE SET
			quality                 = EXCLUDED.quality,
			gross_spread_pct        = EXCLUDED.gross_spread_pct,
			total_fees_pct          = EXCLUDED.total_fees_pct,
			net_spread_pct          = EXCLUDED.net_spread_pct,
			max_deployable_usd      = EXCLUDED.max_deployable_usd,
			capital_weighted_spread = EXCLUDED.capital_weighted_spread,
			details                 = EXCLUDED.details,
			last_seen_at            = EXCLUDED.last_seen_at,
			snapshot_count          = arb_opportunities.snapshot_count + 1,
			duration_seconds        = FLOOR(EXTRACT(EPOCH FROM (EXCLUDED.last_seen_at - arb_opportunities.detected_at)))::BIGINT
		RETURNING ` + opportunityCols

	details, err := json.Marshal(opp.Details)
	if err != nil {
		return domain.ArbOpportunity{}, fmt.Errorf("postgres: marshal opportunity details: %w", err)
	}

	stored, err := scanOpportunity(s.pool.QueryRow(ctx, query,
		opp.ID, string(opp.Type), opp.SubjectID, string(opp.Quality),
		opp.GrossSpreadPct, opp.TotalFeesPct, opp.NetSpreadPct, opp.MaxDeployableUSD, opp.CapitalWeightedSpread,
		opp.DetectedAt, opp.LastSeenAt, details,
	))
	if err != nil {
		return domain.ArbOpportunity{}, fmt.Errorf("postgres: upsert opportunity %s: %w", opp.Key(), err)
	}
	return stored, nil
}

// Resolve closes an active opportunity. An unknown or already resolved id
// returns domain.ErrNotFound.
func (s *OpportunityStore) Resolve(ctx context.Context, id string, at time.Time, reason domain.ResolutionReason) error {
	const query = `
		UPDATE arb_opportunities SET
			resolved_at = $2,
			resolution  = $3
		WHERE id = $1 AND resolved_at IS NULL`

	tag, err := s.pool.Exec(ctx, query, id, at, string(reason))
	if err != nil {
		return fmt.Errorf("postgres: resolve opportunity %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListResolvedBefore returns opportunities resolved strictly before the
// cutoff, oldest first.
func (s *OpportunityStore) ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.ArbOpportunity, error) {
	const query = `SELECT ` + opportunityCols + ` FROM arb_opportunities
		WHERE resolved_at IS NOT NULL AND resolved_at < $1
		ORDER BY resolved_at`

	return s.list(ctx, "resolved opportunities", query, before)
}

// ListRecent returns the most recently seen opportunities, active or not.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbOpportunity, error) {
	const query = `SELECT ` + opportunityCols + ` FROM arb_opportunities
		ORDER BY last_seen_at DESC
		LIMIT $1`

	return s.list(ctx, "recent opportunities", query, limit)
}

func (s *OpportunityStore) list(ctx context.Context, what, query string, args ...any) ([]domain.ArbOpportunity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", what, err)
	}
	defer rows.Close()

	var out []domain.ArbOpportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		out = append(out, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list %s rows: %w", what, err)
	}
	return out, nil
}

func scanOpportunity(row pgx.Row) (domain.ArbOpportunity, error) {
	var (
		opp          domain.ArbOpportunity
		typ, quality string
		resolution   *string
		details      []byte
	)
	err := row.Scan(
		&opp.ID, &typ, &opp.SubjectID, &quality,
		&opp.GrossSpreadPct, &opp.TotalFeesPct, &opp.NetSpreadPct, &opp.MaxDeployableUSD, &opp.CapitalWeightedSpread,
		&opp.DetectedAt, &opp.LastSeenAt, &opp.SnapshotCount, &opp.DurationSeconds,
		&opp.ResolvedAt, &resolution, &details,
	)
	if err != nil {
		return domain.ArbOpportunity{}, err
	}
	opp.Type = domain.OpportunityType(typ)
	opp.Quality = domain.Quality(quality)
	if resolution != nil {
		opp.Resolution = domain.ResolutionReason(*resolution)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &opp.Details); err != nil {
			return domain.ArbOpportunity{}, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	return opp, nil
}
