package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityType is the shape of an arbitrage.
type OpportunityType string

const (
	// OpportunityUnderround buys YES and NO of one market for less than $1.
	OpportunityUnderround OpportunityType = "underround"
	// OpportunityCrossPlatform buys complementary sides of a confirmed pair
	// on two venues for less than $1.
	OpportunityCrossPlatform OpportunityType = "cross_platform"
)

// Quality is the practical tradability tier of an opportunity.
type Quality string

const (
	QualityExecutable  Quality = "executable"
	QualityThin        Quality = "thin"
	QualityTheoretical Quality = "theoretical"
	// QualityNone marks a spread that is not an opportunity at all. It is
	// never persisted.
	QualityNone Quality = "none"
)

// Surfaced reports whether the tier is one that gets stored and shown.
func (q Quality) Surfaced() bool {
	switch q {
	case QualityExecutable, QualityThin, QualityTheoretical:
		return true
	case QualityNone:
		return false
	default:
		return false
	}
}

// ResolutionReason records why an active opportunity was closed.
type ResolutionReason string

const (
	ResolutionSpreadGone    ResolutionReason = "spread_gone"
	ResolutionMarketClosed  ResolutionReason = "market_closed"
	ResolutionInvalidSpread ResolutionReason = "invalid_spread"
	// ResolutionPairUnconfirmed closes a cross-platform record whose pair
	// is no longer confirmed by the pairing service.
	ResolutionPairUnconfirmed ResolutionReason = "pair_unconfirmed"
)

// OpportunityKey identifies the subject an opportunity is tracked against:
// the market id for underrounds, the pair id for cross-platform spreads.
type OpportunityKey struct {
	Type      OpportunityType
	SubjectID string
}

func (k OpportunityKey) String() string {
	return string(k.Type) + ":" + k.SubjectID
}

// OpportunityLeg is one side that has to be bought to capture the spread.
type OpportunityLeg struct {
	Platform     Platform        `json:"platform"`
	MarketID     string          `json:"market_id"`
	Side         string          `json:"side"` // "yes" or "no"
	AskPrice     float64         `json:"ask_price"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
}

// OpportunityDetails is the free-form evidence stored with an opportunity.
type OpportunityDetails struct {
	Direction string           `json:"direction,omitempty"`
	Legs      []OpportunityLeg `json:"legs"`
}

// ArbOpportunity is the detection engine's primary mutable record.
type ArbOpportunity struct {
	ID        string          `json:"id"`
	Type      OpportunityType `json:"type"`
	SubjectID string          `json:"subject_id"`
	Quality   Quality         `json:"quality"`

	GrossSpreadPct        decimal.Decimal `json:"gross_spread_pct"`
	TotalFeesPct          decimal.Decimal `json:"total_fees_pct"`
	NetSpreadPct          decimal.Decimal `json:"net_spread_pct"`
	MaxDeployableUSD      decimal.Decimal `json:"max_deployable_usd"`
	CapitalWeightedSpread decimal.Decimal `json:"capital_weighted_spread"`

	DetectedAt      time.Time        `json:"detected_at"`
	LastSeenAt      time.Time        `json:"last_seen_at"`
	SnapshotCount   int              `json:"snapshot_count"`
	DurationSeconds int64            `json:"duration_seconds"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
	Resolution      ResolutionReason `json:"resolution,omitempty"`

	Details OpportunityDetails `json:"details"`
}

// Key returns the tracking key of the opportunity.
func (o ArbOpportunity) Key() OpportunityKey {
	return OpportunityKey{Type: o.Type, SubjectID: o.SubjectID}
}

// Active reports whether the opportunity has not been resolved yet.
func (o ArbOpportunity) Active() bool {
	return o.ResolvedAt == nil
}
