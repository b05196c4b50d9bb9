package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func kalshiQuote(ticker string, yes, no float64) domain.MarketQuote {
	return domain.MarketQuote{
		Market: domain.Market{PlatformID: ticker, Status: domain.MarketStatusOpen},
		Snapshot: domain.PriceSnapshot{
			YesPrice: yes, NoPrice: no,
			YesAsk: ptr(yes + 1), NoAsk: ptr(no + 1),
		},
	}
}

func TestIngestorNormalizesOnce(t *testing.T) {
	markets := newMemMarkets()
	snaps := &memSnapshots{}
	sources := []Source{
		staticSource{platform: domain.PlatformKalshi, quotes: []domain.MarketQuote{kalshiQuote("RAIN-24", 65, 35)}},
		staticSource{platform: domain.PlatformPolymarket, quotes: []domain.MarketQuote{{
			Market:   domain.Market{PlatformID: "501", Status: domain.MarketStatusOpen},
			Snapshot: domain.PriceSnapshot{YesPrice: 0.3, NoPrice: 0.7},
		}}},
	}

	stats, err := NewIngestor(markets, snaps, sources, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Markets)
	assert.Equal(t, 2, stats.Snapshots)

	k, err := snaps.Latest(context.Background(), "kalshi/RAIN-24")
	require.NoError(t, err)
	assert.InDelta(t, 0.65, k.YesPrice, 1e-9)
	assert.InDelta(t, 0.35, k.NoPrice, 1e-9)
	require.NotNil(t, k.NoAsk)
	assert.InDelta(t, 0.36, *k.NoAsk, 1e-9)

	p, err := snaps.Latest(context.Background(), "polymarket/501")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, p.YesPrice, 1e-9)
}

func TestIngestorSkipsUnpricedAndKeepsCatalog(t *testing.T) {
	markets := newMemMarkets()
	snaps := &memSnapshots{}
	src := staticSource{platform: domain.PlatformKalshi, quotes: []domain.MarketQuote{{
		Market: domain.Market{PlatformID: "DEAD-1", Status: domain.MarketStatusClosed},
	}}}

	stats, err := NewIngestor(markets, snaps, []Source{src}, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unpriced)
	assert.Empty(t, snaps.rows)

	m, err := markets.GetByID(context.Background(), "kalshi/DEAD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusClosed, m.Status)
}

func TestIngestorFailingVenueDoesNotStopOthers(t *testing.T) {
	boom := errors.New("venue down")
	markets := newMemMarkets()
	snaps := &memSnapshots{}
	sources := []Source{
		staticSource{platform: domain.PlatformKalshi, err: boom},
		staticSource{platform: domain.PlatformPolymarket, quotes: []domain.MarketQuote{{
			Market:   domain.Market{PlatformID: "501", Status: domain.MarketStatusOpen},
			Snapshot: domain.PriceSnapshot{YesPrice: 0.3, NoPrice: 0.7},
		}}},
	}

	stats, err := NewIngestor(markets, snaps, sources, discardLogger()).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, stats.Snapshots)
}

func TestIngestorCountsStoreFailures(t *testing.T) {
	markets := newMemMarkets()
	markets.err = errors.New("db gone")
	src := staticSource{platform: domain.PlatformKalshi, quotes: []domain.MarketQuote{kalshiQuote("A", 50, 50)}}

	stats, err := NewIngestor(markets, &memSnapshots{}, []Source{src}, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
}

func TestBackfillIsIdempotent(t *testing.T) {
	snaps := &memSnapshots{}
	ctx := context.Background()
	// Stored before normalization existed.
	for _, s := range []domain.PriceSnapshot{
		{MarketID: "kalshi/A", YesPrice: 65, NoPrice: 35, YesAsk: ptr(66)},
		{MarketID: "kalshi/B", YesPrice: 0.4, NoPrice: 0.6},
		{MarketID: "kalshi/C", YesPrice: 0.5, NoPrice: 50},
		{MarketID: "polymarket/D", YesPrice: 0.3, NoPrice: 0.7},
	} {
		_, err := snaps.Insert(ctx, s)
		require.NoError(t, err)
	}

	audit := &memAudit{}
	b := NewBackfill(snaps, audit, 1, discardLogger())

	fixed, err := b.Run(ctx, domain.PlatformKalshi)
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)

	a, _ := snaps.Latest(ctx, "kalshi/A")
	assert.InDelta(t, 0.65, a.YesPrice, 1e-9)
	require.NotNil(t, a.YesAsk)
	assert.InDelta(t, 0.66, *a.YesAsk, 1e-9)
	assert.True(t, a.IsBackfill)

	c, _ := snaps.Latest(ctx, "kalshi/C")
	assert.InDelta(t, 0.5, c.YesPrice, 1e-9)
	assert.InDelta(t, 0.5, c.NoPrice, 1e-9)

	untouched, _ := snaps.Latest(ctx, "kalshi/B")
	assert.False(t, untouched.IsBackfill)

	fixed, err = b.Run(ctx, domain.PlatformKalshi)
	require.NoError(t, err)
	assert.Zero(t, fixed)
	assert.Equal(t, []string{"backfill.snapshots"}, audit.events)
}

type countingArchiver struct {
	cutoffs []time.Time
	err     error
}

func (c *countingArchiver) ArchiveOpportunities(_ context.Context, before time.Time) (int64, error) {
	c.cutoffs = append(c.cutoffs, before)
	return 3, c.err
}

func (c *countingArchiver) ArchiveVolumeAlerts(_ context.Context, before time.Time) (int64, error) {
	c.cutoffs = append(c.cutoffs, before)
	return 1, nil
}

func TestArchiverRun(t *testing.T) {
	blob := &countingArchiver{}
	a := NewArchiver(blob, 30, discardLogger())
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	require.NoError(t, a.Run(context.Background()))
	want := now.Add(-30 * 24 * time.Hour)
	assert.Equal(t, []time.Time{want, want}, blob.cutoffs)

	blob.err = errors.New("s3 down")
	blob.cutoffs = nil
	require.Error(t, a.Run(context.Background()))
	assert.Len(t, blob.cutoffs, 1)
}

func TestArchiverRunCronRejectsBadSpec(t *testing.T) {
	a := NewArchiver(&countingArchiver{}, 30, discardLogger())
	assert.Error(t, a.RunCron(context.Background(), "not a cron"))
}

func TestOrchestratorStopsCleanly(t *testing.T) {
	src := staticSource{platform: domain.PlatformPolymarket}
	in := NewIngestor(newMemMarkets(), &memSnapshots{}, []Source{src}, discardLogger())
	o := NewOrchestrator(in, NewArchiver(&countingArchiver{}, 30, discardLogger()), time.Hour, "0 0 3 * * *", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop")
	}
}
