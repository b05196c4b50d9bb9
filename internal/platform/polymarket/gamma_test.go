package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

const rainMarket = `{
	"id": "501",
	"question": "Will it rain?",
	"active": "true",
	"closed": false,
	"endDate": "2030-01-01T00:00:00Z",
	"outcomes": "[\"Yes\",\"No\"]",
	"outcomePrices": "[\"0.30\",\"0.70\"]",
	"bestBid": 0.29,
	"bestAsk": 0.31,
	"volume": "1234567.5",
	"volume1wk": 70000
}`

func TestToQuote(t *testing.T) {
	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(rainMarket), &m))

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	q := m.ToQuote(now)

	assert.Equal(t, domain.PlatformPolymarket, q.Market.Platform)
	assert.Equal(t, "501", q.Market.PlatformID)
	assert.Equal(t, domain.MarketStatusOpen, q.Market.Status)
	require.NotNil(t, q.Market.ResolutionDate)

	s := q.Snapshot
	assert.InDelta(t, 0.30, s.YesPrice, 1e-9)
	assert.InDelta(t, 0.70, s.NoPrice, 1e-9)
	require.NotNil(t, s.YesAsk)
	require.NotNil(t, s.NoAsk)
	assert.InDelta(t, 0.31, *s.YesAsk, 1e-9)
	assert.InDelta(t, 0.71, *s.NoAsk, 1e-9)
	assert.InDelta(t, 10000.0, s.Volume24h, 1e-9)
	assert.InDelta(t, 1234567.5, s.VolumeAllTime, 1e-9)
	assert.Equal(t, now, s.SnapshotAt)
}

func TestToQuoteFallsBackToLastTrade(t *testing.T) {
	m := APIMarket{ID: "1", Active: true, OutcomePrices: "garbage", LastTradePrice: 0.4}
	q := m.ToQuote(time.Now())
	assert.InDelta(t, 0.4, q.Snapshot.YesPrice, 1e-9)
	assert.InDelta(t, 0.6, q.Snapshot.NoPrice, 1e-9)
	assert.Nil(t, q.Snapshot.YesAsk)

	closed := APIMarket{ID: "2", Active: true, Closed: true}
	assert.Equal(t, domain.MarketStatusClosed, closed.MarketStatus())
}

func TestSourcePaginates(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		offsets = append(offsets, r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "0" {
			_, _ = w.Write([]byte("[" + rainMarket + "," + rainMarket + "]"))
			return
		}
		_, _ = w.Write([]byte("[" + rainMarket + "]"))
	}))
	defer srv.Close()

	quotes, err := NewSource(NewGammaClient(srv.URL), 2, 0).Fetch(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Len(t, quotes, 3)
	assert.Equal(t, []string{"0", strconv.Itoa(2)}, offsets)
}

func TestSourceHonoursMaxPages(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte("[" + rainMarket + "]"))
	}))
	defer srv.Close()

	quotes, err := NewSource(NewGammaClient(srv.URL), 1, 3).Fetch(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Len(t, quotes, 3)
	assert.Equal(t, 3, calls)
}

func TestGammaStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGammaClient(srv.URL).GetMarket(context.Background(), "501")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
