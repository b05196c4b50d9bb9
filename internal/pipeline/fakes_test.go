package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memMarkets struct {
	mu   sync.Mutex
	rows map[string]domain.Market // keyed by platform/platform_id
	err  error
}

func newMemMarkets() *memMarkets {
	return &memMarkets{rows: map[string]domain.Market{}}
}

func (m *memMarkets) Upsert(_ context.Context, mk domain.Market) (domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Market{}, m.err
	}
	key := string(mk.Platform) + "/" + mk.PlatformID
	if cur, ok := m.rows[key]; ok {
		mk.ID = cur.ID
	} else {
		mk.ID = key
	}
	m.rows[key] = mk
	return mk, nil
}

func (m *memMarkets) GetByID(_ context.Context, id string) (domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mk := range m.rows {
		if mk.ID == id {
			return mk, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (m *memMarkets) ListOpen(context.Context) ([]domain.Market, error) {
	return nil, nil
}

type memSnapshots struct {
	mu   sync.Mutex
	rows []domain.PriceSnapshot
}

func (s *memSnapshots) Insert(_ context.Context, snap domain.PriceSnapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.ID = int64(len(s.rows) + 1)
	s.rows = append(s.rows, snap)
	return snap.ID, nil
}

func (s *memSnapshots) Latest(_ context.Context, marketID string) (domain.PriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].MarketID == marketID {
			return s.rows[i], nil
		}
	}
	return domain.PriceSnapshot{}, domain.ErrNotFound
}

func (s *memSnapshots) History(context.Context, string, time.Time) ([]domain.PriceSnapshot, error) {
	return nil, nil
}

// ListForRepair treats every market id prefixed with the platform name as
// belonging to that platform.
func (s *memSnapshots) ListForRepair(_ context.Context, platform domain.Platform, afterID int64, limit int) ([]domain.PriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PriceSnapshot
	for _, r := range s.rows {
		if r.ID <= afterID || len(r.MarketID) < len(platform) || r.MarketID[:len(platform)] != string(platform) {
			continue
		}
		if above1(r.YesPrice) || above1(r.NoPrice) || above1p(r.YesBid) || above1p(r.YesAsk) || above1p(r.NoBid) || above1p(r.NoAsk) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func above1(v float64) bool { return v > 1 }

func above1p(v *float64) bool { return v != nil && *v > 1 }

func (s *memSnapshots) RewritePrices(_ context.Context, snap domain.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.ID == snap.ID {
			r.YesPrice, r.NoPrice = snap.YesPrice, snap.NoPrice
			r.YesBid, r.YesAsk, r.NoBid, r.NoAsk = snap.YesBid, snap.YesAsk, snap.NoBid, snap.NoAsk
			r.IsBackfill = true
			s.rows[i] = r
			return nil
		}
	}
	return domain.ErrNotFound
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

type staticSource struct {
	platform domain.Platform
	quotes   []domain.MarketQuote
	err      error
}

func (s staticSource) Platform() domain.Platform { return s.platform }

func (s staticSource) Fetch(context.Context, time.Time) ([]domain.MarketQuote, error) {
	return s.quotes, s.err
}

func ptr(v float64) *float64 { return &v }
