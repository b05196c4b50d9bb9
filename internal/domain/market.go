package domain

import (
	"fmt"
	"time"
)

// Platform identifies a trading venue.
type Platform string

const (
	// PlatformPolymarket quotes prices as probabilities in [0,1].
	PlatformPolymarket Platform = "polymarket"
	// PlatformKalshi quotes prices in cents (1-99). Some historical rows were
	// stored already divided by 100.
	PlatformKalshi Platform = "kalshi"
)

// ParsePlatform validates a platform name.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(s); p {
	case PlatformPolymarket, PlatformKalshi:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
	}
}

// MarketStatus represents the lifecycle state of a market. It is owned by
// the ingestion pipeline; the detection engine only reads it.
type MarketStatus string

const (
	MarketStatusOpen     MarketStatus = "open"
	MarketStatusClosed   MarketStatus = "closed"
	MarketStatusResolved MarketStatus = "resolved"
)

// Market is a single binary contract listed on one venue.
type Market struct {
	ID             string
	Platform       Platform
	PlatformID     string // venue-native id: Kalshi ticker or Gamma market id
	Title          string
	Status         MarketStatus
	ResolutionDate *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Tradable reports whether the market can still carry an opportunity at now:
// it must be open and not past its resolution date.
func (m Market) Tradable(now time.Time) bool {
	if m.Status != MarketStatusOpen {
		return false
	}
	if m.ResolutionDate != nil && !now.Before(*m.ResolutionDate) {
		return false
	}
	return true
}
