// Package spread computes gross arbitrage spreads and deployable capital from
// normalized price snapshots. Everything here is a pure function of its
// inputs.
package spread

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Side is the outcome token bought on a leg.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Config bounds deployable capital.
type Config struct {
	// LiquidityCeilingUSD caps the liquidity credited to any single leg.
	// Zero disables the cap.
	LiquidityCeilingUSD decimal.Decimal
	// MaxPositionUSD caps the total notional of one opportunity. Zero
	// disables the cap.
	MaxPositionUSD decimal.Decimal
	// ReferenceCapitalUSD normalizes capital-weighted spreads.
	ReferenceCapitalUSD decimal.Decimal
	// VolumeLiquidityFraction is the share of 24h volume treated as
	// available when a venue reports no depth at the ask.
	VolumeLiquidityFraction decimal.Decimal
}

// Quote is the latest normalized view of one market.
type Quote struct {
	Platform domain.Platform
	MarketID string
	Snapshot domain.PriceSnapshot
}

// Leg is one side bought to capture a spread.
type Leg struct {
	Platform     domain.Platform
	MarketID     string
	Side         Side
	Ask          float64
	LiquidityUSD decimal.Decimal
}

// Spread is a positive gross spread and the legs that produce it.
type Spread struct {
	Type      domain.OpportunityType
	GrossPct  decimal.Decimal
	Direction string
	Legs      []Leg
}

// Calculator evaluates spreads under a fixed capital configuration.
type Calculator struct {
	cfg Config
}

// NewCalculator returns a Calculator for cfg.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Underround evaluates buying YES and NO of a single market. It reports false
// when either ask is missing or the asks sum to $1 or more.
func (c *Calculator) Underround(q Quote) (Spread, bool) {
	yes := c.leg(q, SideYes)
	no := c.leg(q, SideNo)

	gross, ok := grossPct(yes.Ask, no.Ask)
	if !ok {
		return Spread{}, false
	}
	return Spread{
		Type:      domain.OpportunityUnderround,
		GrossPct:  gross,
		Direction: "yes+no@" + string(q.Platform),
		Legs:      []Leg{yes, no},
	}, true
}

// CrossPlatform evaluates a confirmed pair in both leg assignments (YES on a
// with NO on b, and NO on a with YES on b) and keeps the larger positive
// spread. It reports false when neither assignment is positive.
func (c *Calculator) CrossPlatform(a, b Quote) (Spread, bool) {
	yesA, noB := c.leg(a, SideYes), c.leg(b, SideNo)
	noA, yesB := c.leg(a, SideNo), c.leg(b, SideYes)

	first, okFirst := grossPct(yesA.Ask, noB.Ask)
	second, okSecond := grossPct(noA.Ask, yesB.Ask)

	switch {
	case okFirst && (!okSecond || first.GreaterThanOrEqual(second)):
		return Spread{
			Type:      domain.OpportunityCrossPlatform,
			GrossPct:  first,
			Direction: direction(yesA, noB),
			Legs:      []Leg{yesA, noB},
		}, true
	case okSecond:
		return Spread{
			Type:      domain.OpportunityCrossPlatform,
			GrossPct:  second,
			Direction: direction(noA, yesB),
			Legs:      []Leg{noA, yesB},
		}, true
	default:
		return Spread{}, false
	}
}

// Deployable returns the notional that can be put to work across legs: the
// thinnest leg, each capped at the liquidity ceiling, and the whole capped at
// the max position size.
func (c *Calculator) Deployable(legs []Leg) decimal.Decimal {
	if len(legs) == 0 {
		return decimal.Zero
	}
	out := legs[0].LiquidityUSD
	for _, l := range legs[1:] {
		out = decimal.Min(out, l.LiquidityUSD)
	}
	if c.cfg.MaxPositionUSD.IsPositive() {
		out = decimal.Min(out, c.cfg.MaxPositionUSD)
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// CapitalWeighted scales netPct by the fraction of the reference capital the
// opportunity can absorb, so deep spreads rank above thin ones of equal size.
func (c *Calculator) CapitalWeighted(netPct, deployableUSD decimal.Decimal) decimal.Decimal {
	ref := c.cfg.ReferenceCapitalUSD
	if !ref.IsPositive() {
		return netPct
	}
	return netPct.Mul(decimal.Min(deployableUSD, ref)).Div(ref)
}

func (c *Calculator) leg(q Quote, side Side) Leg {
	var ask float64
	var size *float64
	switch side {
	case SideYes:
		ask, size = q.Snapshot.BestYesAsk(), q.Snapshot.YesAskSize
	case SideNo:
		ask, size = q.Snapshot.BestNoAsk(), q.Snapshot.NoAskSize
	}
	return Leg{
		Platform:     q.Platform,
		MarketID:     q.MarketID,
		Side:         side,
		Ask:          ask,
		LiquidityUSD: c.liquidity(ask, size, q.Snapshot.Volume24h),
	}
}

// liquidity is the USD proxy for what can be bought at the ask: depth × price
// when depth is known, otherwise a fraction of 24h volume.
func (c *Calculator) liquidity(ask float64, size *float64, volume24h float64) decimal.Decimal {
	var out decimal.Decimal
	if size != nil && *size > 0 {
		out = decimal.NewFromFloat(*size).Mul(decimal.NewFromFloat(ask))
	} else if volume24h > 0 {
		out = decimal.NewFromFloat(volume24h).Mul(c.cfg.VolumeLiquidityFraction)
	}
	if c.cfg.LiquidityCeilingUSD.IsPositive() {
		out = decimal.Min(out, c.cfg.LiquidityCeilingUSD)
	}
	return out
}

// grossPct returns (1 - (askA + askB)) × 100 when both asks are quoted and
// the result is positive.
func grossPct(askA, askB float64) (decimal.Decimal, bool) {
	if askA <= 0 || askB <= 0 {
		return decimal.Zero, false
	}
	cost := decimal.NewFromFloat(askA).Add(decimal.NewFromFloat(askB))
	gross := decimal.NewFromInt(1).Sub(cost).Mul(hundred)
	if !gross.IsPositive() {
		return decimal.Zero, false
	}
	return gross, true
}

func direction(first, second Leg) string {
	return string(first.Side) + "@" + string(first.Platform) + "+" + string(second.Side) + "@" + string(second.Platform)
}
