package kalshi

import (
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// KalshiMarket is a market as returned by the Kalshi REST API. Prices are in
// cents (0-100); volumes are contract counts.
type KalshiMarket struct {
	Ticker         string  `json:"ticker"`
	EventTicker    string  `json:"event_ticker"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle"`
	Status         string  `json:"status"`
	YesBid         float64 `json:"yes_bid"`
	YesAsk         float64 `json:"yes_ask"`
	NoBid          float64 `json:"no_bid"`
	NoAsk          float64 `json:"no_ask"`
	LastPrice      float64 `json:"last_price"`
	Volume         int64   `json:"volume"`
	Volume24H      int64   `json:"volume_24h"`
	OpenInterest   int64   `json:"open_interest"`
	ExpirationTime string  `json:"expiration_time"`
	CloseTime      string  `json:"close_time"`
	Result         string  `json:"result"` // "yes", "no", "" (unsettled)
}

// KalshiErrorResponse represents a Kalshi API error response.
type KalshiErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MarketStatus maps Kalshi's status vocabulary onto the catalog's.
func (m KalshiMarket) MarketStatus() domain.MarketStatus {
	switch m.Status {
	case "open", "active", "initialized":
		return domain.MarketStatusOpen
	case "settled", "finalized", "determined":
		return domain.MarketStatusResolved
	default:
		return domain.MarketStatusClosed
	}
}

// ToQuote converts the listing into a catalog entry plus a snapshot priced
// in dollars. The YES price is the last trade, or the ask midpoint when
// nothing traded yet. Dollar volume is estimated as contracts times the YES
// price.
func (m KalshiMarket) ToQuote(now time.Time) domain.MarketQuote {
	market := domain.Market{
		Platform:   domain.PlatformKalshi,
		PlatformID: m.Ticker,
		Title:      m.Title,
		Status:     m.MarketStatus(),
	}
	if t, err := time.Parse(time.RFC3339, m.CloseTime); err == nil {
		market.ResolutionDate = &t
	}

	yesCents := m.LastPrice
	if yesCents <= 0 && m.YesAsk > 0 && m.YesBid > 0 {
		yesCents = (m.YesAsk + m.YesBid) / 2
	}
	var yes, no float64
	if yesCents > 0 {
		yes = dollars(yesCents)
		no = dollars(100 - yesCents)
	}

	snap := domain.PriceSnapshot{
		YesPrice:      yes,
		NoPrice:       no,
		YesBid:        positiveDollars(m.YesBid),
		YesAsk:        positiveDollars(m.YesAsk),
		NoBid:         positiveDollars(m.NoBid),
		NoAsk:         positiveDollars(m.NoAsk),
		Volume24h:     float64(m.Volume24H) * yes,
		VolumeAllTime: float64(m.Volume) * yes,
		SnapshotAt:    now,
	}
	return domain.MarketQuote{Market: market, Snapshot: snap}
}

// dollars converts a cent quote. Converting here rather than downstream
// keeps 1 cent (0.01) distinct from a one dollar price.
func dollars(cents float64) float64 {
	return cents / 100
}

func positiveDollars(cents float64) *float64 {
	if cents <= 0 {
		return nil
	}
	v := dollars(cents)
	return &v
}
