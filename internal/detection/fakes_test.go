package detection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

type fakeMarkets struct {
	mu      sync.Mutex
	markets map[string]domain.Market
}

func newFakeMarkets(ms ...domain.Market) *fakeMarkets {
	f := &fakeMarkets{markets: map[string]domain.Market{}}
	for _, m := range ms {
		f.markets[m.ID] = m
	}
	return f
}

func (f *fakeMarkets) Upsert(_ context.Context, m domain.Market) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markets[m.ID] = m
	return m, nil
}

func (f *fakeMarkets) GetByID(_ context.Context, id string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarkets) ListOpen(_ context.Context) ([]domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Market
	for _, m := range f.markets {
		if m.Status == domain.MarketStatusOpen {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMarkets) setStatus(id string, s domain.MarketStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.markets[id]
	m.Status = s
	f.markets[id] = m
}

type fakeSnapshots struct {
	mu      sync.Mutex
	latest  map[string]domain.PriceSnapshot
	history map[string][]domain.PriceSnapshot
	block   map[string]bool
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{
		latest:  map[string]domain.PriceSnapshot{},
		history: map[string][]domain.PriceSnapshot{},
		block:   map[string]bool{},
	}
}

func (f *fakeSnapshots) Insert(_ context.Context, s domain.PriceSnapshot) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest[s.MarketID] = s
	f.history[s.MarketID] = append(f.history[s.MarketID], s)
	return int64(len(f.history[s.MarketID])), nil
}

func (f *fakeSnapshots) Latest(ctx context.Context, marketID string) (domain.PriceSnapshot, error) {
	f.mu.Lock()
	blocked := f.block[marketID]
	s, ok := f.latest[marketID]
	f.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return domain.PriceSnapshot{}, ctx.Err()
	}
	if !ok {
		return domain.PriceSnapshot{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSnapshots) History(_ context.Context, marketID string, since time.Time) ([]domain.PriceSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PriceSnapshot
	for _, s := range f.history[marketID] {
		if !s.SnapshotAt.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSnapshots) ListForRepair(context.Context, domain.Platform, int64, int) ([]domain.PriceSnapshot, error) {
	return nil, nil
}

func (f *fakeSnapshots) RewritePrices(context.Context, domain.PriceSnapshot) error { return nil }

type fakePairs []domain.MarketPair

func (f fakePairs) ListConfirmed(context.Context) ([]domain.MarketPair, error) {
	var out []domain.MarketPair
	for _, p := range f {
		if p.Status == domain.PairStatusConfirmed {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeFees []domain.PlatformConfig

func (f fakeFees) List(context.Context) ([]domain.PlatformConfig, error) { return f, nil }

// fakeOpportunities mirrors the SQL upsert: refreshing an active row bumps
// the stored count rather than trusting the caller's.
type fakeOpportunities struct {
	mu   sync.Mutex
	rows []domain.ArbOpportunity
}

func (f *fakeOpportunities) ListActive(context.Context) ([]domain.ArbOpportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ArbOpportunity
	for _, o := range f.rows {
		if o.Active() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOpportunities) Upsert(_ context.Context, o domain.ArbOpportunity) (domain.ArbOpportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.rows {
		if cur.Active() && cur.Key() == o.Key() {
			cur.Quality = o.Quality
			cur.GrossSpreadPct = o.GrossSpreadPct
			cur.TotalFeesPct = o.TotalFeesPct
			cur.NetSpreadPct = o.NetSpreadPct
			cur.MaxDeployableUSD = o.MaxDeployableUSD
			cur.CapitalWeightedSpread = o.CapitalWeightedSpread
			cur.Details = o.Details
			cur.LastSeenAt = o.LastSeenAt
			cur.SnapshotCount++
			cur.DurationSeconds = int64(cur.LastSeenAt.Sub(cur.DetectedAt) / time.Second)
			f.rows[i] = cur
			return cur, nil
		}
	}
	f.rows = append(f.rows, o)
	return o, nil
}

func (f *fakeOpportunities) Resolve(_ context.Context, id string, at time.Time, reason domain.ResolutionReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.rows {
		if cur.ID == id && cur.Active() {
			cur.ResolvedAt = &at
			cur.Resolution = reason
			f.rows[i] = cur
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeOpportunities) ListResolvedBefore(context.Context, time.Time) ([]domain.ArbOpportunity, error) {
	return nil, nil
}

func (f *fakeOpportunities) byKey(k domain.OpportunityKey) []domain.ArbOpportunity {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ArbOpportunity
	for _, o := range f.rows {
		if o.Key() == k {
			out = append(out, o)
		}
	}
	return out
}

type fakeAlerts struct {
	mu   sync.Mutex
	rows []domain.VolumeAlert
}

func (f *fakeAlerts) Insert(_ context.Context, a domain.VolumeAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, a)
	return nil
}

func (f *fakeAlerts) ListBefore(context.Context, time.Time) ([]domain.VolumeAlert, error) {
	return nil, nil
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []domain.DetectionRun
}

func (f *fakeRuns) Start(_ context.Context, run domain.DetectionRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.Status == domain.RunStatusRunning {
			return domain.ErrAlreadyExists
		}
	}
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRuns) Finish(_ context.Context, run domain.DetectionRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.runs {
		if r.ID == run.ID {
			f.runs[i] = run
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeRuns) Running(context.Context) (domain.DetectionRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.Status == domain.RunStatusRunning {
			return r, nil
		}
	}
	return domain.DetectionRun{}, domain.ErrNotFound
}

func (f *fakeRuns) Latest(context.Context) (domain.DetectionRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.runs) == 0 {
		return domain.DetectionRun{}, domain.ErrNotFound
	}
	return f.runs[len(f.runs)-1], nil
}

type fakeLocks struct {
	mu   sync.Mutex
	held bool
}

func (f *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held {
		return nil, domain.ErrLockHeld
	}
	f.held = true
	return func() {
		f.mu.Lock()
		f.held = false
		f.mu.Unlock()
	}, nil
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string]int
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}, streamed: map[string]int{}}
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) StreamAppend(_ context.Context, stream string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamed[stream]++
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeNotifier) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}
