package domain

import (
	"context"
	"time"
)

// MarketStore is the market catalog. Ingestion writes it; detection reads it.
type MarketStore interface {
	// Upsert inserts or updates a market keyed on (platform, platform_id)
	// and returns the stored row, including its id.
	Upsert(ctx context.Context, market Market) (Market, error)
	GetByID(ctx context.Context, id string) (Market, error)
	ListOpen(ctx context.Context) ([]Market, error)
}

// SnapshotStore holds the append-only price snapshot series.
type SnapshotStore interface {
	Insert(ctx context.Context, snap PriceSnapshot) (int64, error)
	Latest(ctx context.Context, marketID string) (PriceSnapshot, error)
	// History returns snapshots for a market taken at or after since,
	// oldest first.
	History(ctx context.Context, marketID string, since time.Time) ([]PriceSnapshot, error)
	// ListForRepair pages through snapshots of one platform that still hold
	// a price field above 1, ordered by id.
	ListForRepair(ctx context.Context, platform Platform, afterID int64, limit int) ([]PriceSnapshot, error)
	// RewritePrices overwrites the price fields of an existing snapshot and
	// flags it as backfilled.
	RewritePrices(ctx context.Context, snap PriceSnapshot) error
}

// PairStore gives read-only access to cross-venue pairings.
type PairStore interface {
	ListConfirmed(ctx context.Context) ([]MarketPair, error)
}

// PlatformConfigStore gives read-only access to venue fee schedules.
type PlatformConfigStore interface {
	List(ctx context.Context) ([]PlatformConfig, error)
}

// OpportunityStore persists arbitrage opportunities.
type OpportunityStore interface {
	ListActive(ctx context.Context) ([]ArbOpportunity, error)
	// Upsert atomically inserts a new active opportunity or refreshes the
	// active one with the same key, returning the stored row.
	Upsert(ctx context.Context, opp ArbOpportunity) (ArbOpportunity, error)
	// Resolve closes an active opportunity. Returns ErrNotFound when the id
	// is unknown or already resolved.
	Resolve(ctx context.Context, id string, at time.Time, reason ResolutionReason) error
	ListResolvedBefore(ctx context.Context, before time.Time) ([]ArbOpportunity, error)
}

// VolumeAlertStore persists volume alerts.
type VolumeAlertStore interface {
	Insert(ctx context.Context, alert VolumeAlert) error
	ListBefore(ctx context.Context, before time.Time) ([]VolumeAlert, error)
}

// RunStore persists detection run records.
type RunStore interface {
	// Start records a running run. Returns ErrAlreadyExists when another
	// run is still marked running.
	Start(ctx context.Context, run DetectionRun) error
	Finish(ctx context.Context, run DetectionRun) error
	// Running returns the run currently marked running, or ErrNotFound.
	Running(ctx context.Context) (DetectionRun, error)
	Latest(ctx context.Context) (DetectionRun, error)
}

// AuditStore records significant operational events.
type AuditStore interface {
	Log(ctx context.Context, event string, details map[string]any) error
}
