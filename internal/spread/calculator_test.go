package spread

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(v float64) *float64 { return &v }

func testCalculator() *Calculator {
	return NewCalculator(Config{
		LiquidityCeilingUSD:     d("5000"),
		MaxPositionUSD:          d("2000"),
		ReferenceCapitalUSD:     d("1000"),
		VolumeLiquidityFraction: d("0.1"),
	})
}

func quote(platform domain.Platform, id string, yesAsk, noAsk float64) Quote {
	return Quote{
		Platform: platform,
		MarketID: id,
		Snapshot: domain.PriceSnapshot{
			MarketID:  id,
			YesPrice:  yesAsk,
			NoPrice:   noAsk,
			YesAsk:    ptr(yesAsk),
			NoAsk:     ptr(noAsk),
			Volume24h: 10000,
		},
	}
}

func TestUnderroundPositive(t *testing.T) {
	c := testCalculator()

	s, ok := c.Underround(quote(domain.PlatformPolymarket, "m1", 0.45, 0.50))
	require.True(t, ok)
	assert.Equal(t, domain.OpportunityUnderround, s.Type)
	assert.True(t, s.GrossPct.Equal(d("5")), "gross=%s", s.GrossPct)
	require.Len(t, s.Legs, 2)
	assert.Equal(t, SideYes, s.Legs[0].Side)
	assert.Equal(t, SideNo, s.Legs[1].Side)
}

func TestUnderroundMatchesFormulaForAllCentPairs(t *testing.T) {
	c := testCalculator()

	for yes := 1; yes < 100; yes++ {
		for no := 1; no < 100; no++ {
			q := quote(domain.PlatformKalshi, "m", float64(yes)/100, float64(no)/100)
			s, ok := c.Underround(q)
			if yes+no >= 100 {
				assert.False(t, ok, "yes=%d no=%d", yes, no)
				continue
			}
			require.True(t, ok, "yes=%d no=%d", yes, no)
			want := decimal.NewFromInt(int64(100 - yes - no))
			assert.True(t, s.GrossPct.Equal(want), "yes=%d no=%d gross=%s", yes, no, s.GrossPct)
		}
	}
}

func TestUnderroundMissingAsk(t *testing.T) {
	c := testCalculator()
	// No YES quote at all; NO falls back to the complement.
	q := Quote{Platform: domain.PlatformKalshi, MarketID: "m", Snapshot: domain.PriceSnapshot{}}

	_, ok := c.Underround(q)
	assert.False(t, ok)
}

func TestCrossPlatformPicksBetterDirection(t *testing.T) {
	c := testCalculator()

	// Polymarket YES is cheap, Kalshi NO is cheap.
	a := quote(domain.PlatformPolymarket, "poly", 0.30, 0.70)
	b := quote(domain.PlatformKalshi, "kalshi", 0.65, 0.35)

	s, ok := c.CrossPlatform(a, b)
	require.True(t, ok)
	assert.True(t, s.GrossPct.Equal(d("35")), "gross=%s", s.GrossPct)
	assert.Equal(t, "yes@polymarket+no@kalshi", s.Direction)
	assert.Equal(t, "poly", s.Legs[0].MarketID)
	assert.Equal(t, "kalshi", s.Legs[1].MarketID)

	// Mirror image: the other direction wins.
	s, ok = c.CrossPlatform(quote(domain.PlatformPolymarket, "poly", 0.70, 0.30), quote(domain.PlatformKalshi, "kalshi", 0.35, 0.65))
	require.True(t, ok)
	assert.True(t, s.GrossPct.Equal(d("35")), "gross=%s", s.GrossPct)
	assert.Equal(t, "no@polymarket+yes@kalshi", s.Direction)
}

func TestCrossPlatformNone(t *testing.T) {
	c := testCalculator()

	a := quote(domain.PlatformPolymarket, "poly", 0.50, 0.51)
	b := quote(domain.PlatformKalshi, "kalshi", 0.52, 0.50)

	_, ok := c.CrossPlatform(a, b)
	assert.False(t, ok)
}

func TestDeployableUsesThinnestLegAndCaps(t *testing.T) {
	c := testCalculator()

	legs := []Leg{
		{LiquidityUSD: d("1500")},
		{LiquidityUSD: d("800")},
	}
	assert.True(t, c.Deployable(legs).Equal(d("800")))

	legs = []Leg{{LiquidityUSD: d("4000")}, {LiquidityUSD: d("3000")}}
	assert.True(t, c.Deployable(legs).Equal(d("2000")), "max position caps")

	assert.True(t, c.Deployable(nil).IsZero())
}

func TestLegLiquidityPrefersDepth(t *testing.T) {
	c := testCalculator()

	q := quote(domain.PlatformKalshi, "m", 0.40, 0.50)
	q.Snapshot.YesAskSize = ptr(1000) // 1000 contracts × $0.40
	s, ok := c.Underround(q)
	require.True(t, ok)

	assert.True(t, s.Legs[0].LiquidityUSD.Equal(d("400")), "depth: %s", s.Legs[0].LiquidityUSD)
	// No depth on NO: 10% of 10000 volume.
	assert.True(t, s.Legs[1].LiquidityUSD.Equal(d("1000")), "volume proxy: %s", s.Legs[1].LiquidityUSD)

	q.Snapshot.Volume24h = 1_000_000
	s, ok = c.Underround(q)
	require.True(t, ok)
	assert.True(t, s.Legs[1].LiquidityUSD.Equal(d("5000")), "ceiling: %s", s.Legs[1].LiquidityUSD)
}

func TestCapitalWeighted(t *testing.T) {
	c := testCalculator()

	assert.True(t, c.CapitalWeighted(d("10"), d("500")).Equal(d("5")))
	assert.True(t, c.CapitalWeighted(d("10"), d("2500")).Equal(d("10")), "deployable above reference counts as full")
	assert.True(t, c.CapitalWeighted(d("10"), d("0")).IsZero())
}
