package domain

import "time"

// PriceSnapshot is one observation of a market's prices and volume. Rows are
// append-only; the only in-place rewrite is the renormalization backfill.
//
// All price fields hold probabilities in [0,1] once they have passed through
// the normalizer. The bid/ask quartet and ask sizes are optional.
type PriceSnapshot struct {
	ID       int64
	MarketID string

	YesPrice float64
	NoPrice  float64

	YesBid *float64
	YesAsk *float64
	NoBid  *float64
	NoAsk  *float64

	// Contracts resting at the best ask, when the venue reports depth.
	YesAskSize *float64
	NoAskSize  *float64

	Volume24h     float64
	VolumeAllTime float64

	SnapshotAt time.Time
	IsBackfill bool
}

// BestYesAsk returns the price at which YES can be bought, falling back to
// the last YES price when no book is present.
func (s PriceSnapshot) BestYesAsk() float64 {
	if s.YesAsk != nil && *s.YesAsk > 0 {
		return *s.YesAsk
	}
	return s.YesPrice
}

// BestNoAsk returns the price at which NO can be bought. Without a book and
// without a NO price it falls back to the binary complement of YES.
func (s PriceSnapshot) BestNoAsk() float64 {
	if s.NoAsk != nil && *s.NoAsk > 0 {
		return *s.NoAsk
	}
	if s.NoPrice > 0 {
		return s.NoPrice
	}
	return 1 - s.YesPrice
}

// MarketQuote couples a catalog entry with the snapshot fetched alongside it.
// It is the unit produced by venue snapshot sources.
type MarketQuote struct {
	Market   Market
	Snapshot PriceSnapshot
}
