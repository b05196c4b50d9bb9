package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/volume"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// APIMarket is a market as returned by the Gamma API. Prices are
// probabilities. Volume fields arrive as numbers or numeric strings
// depending on the endpoint, so they are decoded loosely.
type APIMarket struct {
	ID             string   `json:"id"`
	Question       string   `json:"question"`
	ConditionID    string   `json:"conditionId"`
	Slug           string   `json:"slug"`
	Active         flexBool `json:"active"`
	Closed         flexBool `json:"closed"`
	EndDate        string   `json:"endDate"`
	Outcomes       string   `json:"outcomes"`      // JSON-encoded: "[\"Yes\",\"No\"]"
	OutcomePrices  string   `json:"outcomePrices"` // JSON-encoded: "[\"0.5\",\"0.5\"]"
	BestBid        *float64 `json:"bestBid"`
	BestAsk        *float64 `json:"bestAsk"`
	LastTradePrice float64  `json:"lastTradePrice"`
	Volume         any      `json:"volume"`
	Volume24hr     any      `json:"volume24hr"`
	Volume1wk      any      `json:"volume1wk"`
}

// MarketStatus maps Gamma's active/closed flags onto the catalog status.
func (m APIMarket) MarketStatus() domain.MarketStatus {
	switch {
	case bool(m.Closed):
		return domain.MarketStatusClosed
	case bool(m.Active):
		return domain.MarketStatusOpen
	default:
		return domain.MarketStatusClosed
	}
}

// ToQuote converts the listing into a catalog entry plus a snapshot. Gamma
// quotes the YES book, so the NO side is its complement: the NO ask is one
// minus the YES bid.
func (m APIMarket) ToQuote(now time.Time) domain.MarketQuote {
	market := domain.Market{
		Platform:   domain.PlatformPolymarket,
		PlatformID: m.ID,
		Title:      m.Question,
		Status:     m.MarketStatus(),
	}
	if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		market.ResolutionDate = &t
	}

	yes, no := m.prices()
	vols := volume.TransformPolymarketVolume(
		volume.SumVolumes(m.Volume1wk),
		volume.SumVolumes(m.Volume),
	)

	snap := domain.PriceSnapshot{
		YesPrice:      yes,
		NoPrice:       no,
		Volume24h:     vols.Volume24h,
		VolumeAllTime: vols.VolumeAllTime,
		SnapshotAt:    now,
	}
	if m.BestBid != nil && *m.BestBid > 0 {
		bid := *m.BestBid
		noAsk := 1 - bid
		snap.YesBid, snap.NoAsk = &bid, &noAsk
	}
	if m.BestAsk != nil && *m.BestAsk > 0 {
		ask := *m.BestAsk
		noBid := 1 - ask
		snap.YesAsk, snap.NoBid = &ask, &noBid
	}
	return domain.MarketQuote{Market: market, Snapshot: snap}
}

// prices reads the YES and NO prices from outcomePrices, falling back to
// the last trade when the field is missing or malformed.
func (m APIMarket) prices() (yes, no float64) {
	var outcomes, prices []string
	if json.Unmarshal([]byte(m.Outcomes), &outcomes) == nil &&
		json.Unmarshal([]byte(m.OutcomePrices), &prices) == nil &&
		len(outcomes) == len(prices) {
		var haveYes, haveNo bool
		for i, o := range outcomes {
			p, err := strconv.ParseFloat(prices[i], 64)
			if err != nil {
				continue
			}
			switch strings.ToLower(o) {
			case "yes":
				yes, haveYes = p, true
			case "no":
				no, haveNo = p, true
			}
		}
		if haveYes && haveNo {
			return yes, no
		}
	}
	if m.LastTradePrice > 0 {
		return m.LastTradePrice, 1 - m.LastTradePrice
	}
	return 0, 0
}
