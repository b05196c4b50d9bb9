package domain

import "time"

// PairStatus is the review state of a cross-venue pairing.
type PairStatus string

const (
	PairStatusSuggested PairStatus = "suggested"
	PairStatusConfirmed PairStatus = "confirmed"
	PairStatusRejected  PairStatus = "rejected"
)

// MarketPair links a Polymarket market (A) to the Kalshi market (B) that
// settles on the same event. Pairs are produced and reviewed elsewhere; the
// detection engine only reads confirmed ones and never changes Status.
type MarketPair struct {
	ID         string
	MarketAID  string
	MarketBID  string
	MatchScore float64
	Status     PairStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
