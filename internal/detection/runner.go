// Package detection runs the scheduled arbitrage detection cycle: load the
// fee schedule once, fan out over open markets and confirmed pairs, feed the
// lifecycle tracker, persist each transition atomically, and watch volume.
package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbwatch/internal/classify"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/fees"
	"github.com/alanyoungcy/arbwatch/internal/lifecycle"
	"github.com/alanyoungcy/arbwatch/internal/scheduler"
	"github.com/alanyoungcy/arbwatch/internal/spread"
	"github.com/alanyoungcy/arbwatch/internal/volume"
)

// Config tunes a detection run.
type Config struct {
	// Concurrency bounds the number of markets and pairs evaluated at once.
	Concurrency int
	// LegTimeout bounds each per-market load. A leg that times out is
	// treated as missing for the cycle.
	LegTimeout time.Duration
	Settlement fees.SettlementMode
}

// Stores are the persistence collaborators of a run.
type Stores struct {
	Markets       domain.MarketStore
	Snapshots     domain.SnapshotStore
	Pairs         domain.PairStore
	Fees          domain.PlatformConfigStore
	Opportunities domain.OpportunityStore
	Alerts        domain.VolumeAlertStore
}

// RunnerDeps wires a Runner.
type RunnerDeps struct {
	Stores      Stores
	Coordinator *Coordinator
	Calculator  *spread.Calculator
	Thresholds  classify.Thresholds
	Volume      *volume.Detector
	Events      *Events
	Metrics     *Metrics
}

// Runner executes detection cycles.
type Runner struct {
	cfg        Config
	stores     Stores
	coord      *Coordinator
	calc       *spread.Calculator
	thresholds classify.Thresholds
	volume     *volume.Detector
	events     *Events
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(cfg Config, deps RunnerDeps, logger *slog.Logger) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.LegTimeout <= 0 {
		cfg.LegTimeout = 10 * time.Second
	}
	logger = logger.With(slog.String("component", "detection"))
	events := deps.Events
	if events == nil {
		events = NewEvents(nil, nil, logger)
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Runner{
		cfg:        cfg,
		stores:     deps.Stores,
		coord:      deps.Coordinator,
		calc:       deps.Calculator,
		thresholds: deps.Thresholds,
		volume:     deps.Volume,
		events:     events,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes a cycle immediately and then on every tick of spec until ctx
// is cancelled. A tick that collides with a run still in flight is dropped.
func (r *Runner) Run(ctx context.Context, spec string) error {
	sched := scheduler.New(r.logger)
	if _, err := sched.Add(ctx, "detection", spec, r.tick); err != nil {
		return fmt.Errorf("detection: schedule %q: %w", spec, err)
	}
	r.tick(ctx)
	return sched.Run(ctx)
}

func (r *Runner) tick(ctx context.Context) {
	_, err := r.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRunInProgress):
		r.logger.InfoContext(ctx, "detection run skipped: another run in progress")
	case errors.Is(err, context.Canceled):
	default:
		r.logger.ErrorContext(ctx, "detection run failed", slog.String("error", err.Error()))
	}
}

// RunOnce executes one detection cycle under the run coordinator. It returns
// domain.ErrRunInProgress without doing any work when another run is active.
func (r *Runner) RunOnce(ctx context.Context) (domain.RunStats, error) {
	run, err := r.coord.Begin(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrRunInProgress) {
			r.metrics.RunsTotal.WithLabelValues("rejected").Inc()
		}
		return domain.RunStats{}, err
	}

	start := time.Now()
	log := r.logger.With(slog.String("run_id", run.ID))
	stats, runErr := r.cycle(ctx, log)

	// The run record is finished even when ctx was cancelled mid-cycle.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if runErr != nil {
		r.metrics.RunsTotal.WithLabelValues("failed").Inc()
		if err := r.coord.Fail(fctx, run, stats, runErr); err != nil {
			log.ErrorContext(fctx, "record failed run", slog.String("error", err.Error()))
		}
		if !errors.Is(runErr, context.Canceled) {
			r.events.RunFailed(fctx, run.ID, runErr)
		}
		return stats, runErr
	}

	if err := r.coord.Complete(fctx, run, stats); err != nil {
		return stats, err
	}
	r.metrics.RunsTotal.WithLabelValues("completed").Inc()
	r.metrics.RunDurationSeconds.Observe(time.Since(start).Seconds())

	log.InfoContext(ctx, "detection run completed",
		slog.Int("markets", stats.MarketsEvaluated),
		slog.Int("pairs", stats.PairsEvaluated),
		slog.Int("activated", stats.Activated),
		slog.Int("refreshed", stats.Refreshed),
		slog.Int("resolved", stats.Resolved),
		slog.Int("skipped", stats.Skipped),
		slog.Int("volume_alerts", stats.VolumeAlerts),
		slog.Duration("elapsed", time.Since(start)),
	)
	return stats, nil
}

func (r *Runner) cycle(ctx context.Context, log *slog.Logger) (domain.RunStats, error) {
	now := r.now()
	st := &counter{}

	feeCfg, err := fees.Load(ctx, r.stores.Fees, r.cfg.Settlement)
	if err != nil {
		return st.snapshot(), err
	}
	log.DebugContext(ctx, "fee schedules loaded", slog.Any("platforms", feeCfg.Platforms()))

	active, err := r.stores.Opportunities.ListActive(ctx)
	if err != nil {
		return st.snapshot(), fmt.Errorf("detection: list active opportunities: %w", err)
	}
	tracker := lifecycle.NewTracker(active)

	for _, tr := range tracker.SanityCheck(now) {
		log.WarnContext(ctx, "resolving opportunity with impossible spread",
			slog.String("id", tr.Opportunity.ID),
			slog.String("net_spread_pct", tr.Opportunity.NetSpreadPct.String()),
		)
		if err := r.persist(ctx, tracker, tr, st); err != nil {
			return st.snapshot(), err
		}
	}

	markets, err := r.stores.Markets.ListOpen(ctx)
	if err != nil {
		return st.snapshot(), fmt.Errorf("detection: list open markets: %w", err)
	}
	pairs, err := r.stores.Pairs.ListConfirmed(ctx)
	if err != nil {
		return st.snapshot(), fmt.Errorf("detection: list confirmed pairs: %w", err)
	}

	for _, key := range unconfirmedPairKeys(pairs, tracker) {
		obs := lifecycle.Observation{Key: key, Outcome: lifecycle.OutcomePairUnconfirmed}
		if err := r.persist(ctx, tracker, tracker.Apply(obs, now), st); err != nil {
			return st.snapshot(), err
		}
	}

	legs := newLegLoader(r.stores.Markets, r.stores.Snapshots, r.cfg.LegTimeout, markets, now, log)
	ev := evaluator{calc: r.calc, thresholds: r.thresholds, fees: feeCfg}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, id := range underroundSubjects(markets, tracker) {
		g.Go(func() error {
			return r.evaluateMarket(gctx, id, now, ev, legs, tracker, st, log)
		})
	}
	for _, p := range pairs {
		g.Go(func() error {
			return r.evaluatePair(gctx, p, now, ev, legs, tracker, st, log)
		})
	}

	if err := g.Wait(); err != nil {
		return st.snapshot(), err
	}
	if err := ctx.Err(); err != nil {
		return st.snapshot(), err
	}

	r.metrics.ActiveOpportunities.Set(float64(tracker.Len()))
	if r.volume != nil {
		r.metrics.VolumeTrackedMarkets.Set(float64(r.volume.Tracked()))
	}
	return st.snapshot(), nil
}

func (r *Runner) evaluateMarket(ctx context.Context, id string, now time.Time, ev evaluator, legs *legLoader, tracker *lifecycle.Tracker, st *counter, log *slog.Logger) error {
	l := legs.load(ctx, id)
	st.add(func(s *domain.RunStats) { s.MarketsEvaluated++ })

	obs, evalErr := ev.underround(id, l, now)
	if err := r.apply(ctx, obs, evalErr, now, tracker, st, log); err != nil {
		return err
	}

	switch {
	case l.closed(now):
		if r.volume != nil {
			r.volume.Forget(id)
		}
	case l.hasQuote:
		r.observeVolume(ctx, l, st, log)
	}
	return nil
}

func (r *Runner) evaluatePair(ctx context.Context, p domain.MarketPair, now time.Time, ev evaluator, legs *legLoader, tracker *lifecycle.Tracker, st *counter, log *slog.Logger) error {
	a := legs.load(ctx, p.MarketAID)
	b := legs.load(ctx, p.MarketBID)
	st.add(func(s *domain.RunStats) { s.PairsEvaluated++ })

	obs, evalErr := ev.crossPlatform(p, a, b, now)
	return r.apply(ctx, obs, evalErr, now, tracker, st, log)
}

// apply turns an observation into a persisted transition. evalErr is a
// per-key evaluation failure (missing fee schedule) and only skips the key.
func (r *Runner) apply(ctx context.Context, obs lifecycle.Observation, evalErr error, now time.Time, tracker *lifecycle.Tracker, st *counter, log *slog.Logger) error {
	if evalErr != nil {
		r.skip(st, "fee_config_missing")
		log.WarnContext(ctx, "skipping evaluation",
			slog.String("key", obs.Key.String()),
			slog.String("error", evalErr.Error()),
		)
		return nil
	}
	if obs.Outcome == lifecycle.OutcomeMissing {
		r.skip(st, "missing_data")
	}
	return r.persist(ctx, tracker, tracker.Apply(obs, now), st)
}

// persist writes one transition as a single statement and, once it is
// durable, commits it to the tracker and publishes it.
func (r *Runner) persist(ctx context.Context, tracker *lifecycle.Tracker, tr lifecycle.Transition, st *counter) error {
	switch tr.Action {
	case lifecycle.ActionNone:
		return nil
	case lifecycle.ActionActivate, lifecycle.ActionRefresh:
		stored, err := r.stores.Opportunities.Upsert(ctx, tr.Opportunity)
		if err != nil {
			return fmt.Errorf("detection: upsert opportunity %s: %w", tr.Opportunity.Key(), err)
		}
		tr.Opportunity = stored
		r.metrics.NetSpreadPct.Observe(stored.NetSpreadPct.InexactFloat64())
	case lifecycle.ActionResolve:
		opp := tr.Opportunity
		err := r.stores.Opportunities.Resolve(ctx, opp.ID, *opp.ResolvedAt, opp.Resolution)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("detection: resolve opportunity %s: %w", opp.ID, err)
		}
	}

	tracker.Commit(tr)
	st.record(tr.Action)
	r.metrics.TransitionsTotal.WithLabelValues(string(tr.Opportunity.Type), tr.Action.String()).Inc()
	r.events.Opportunity(ctx, tr)
	return nil
}

func (r *Runner) observeVolume(ctx context.Context, l leg, st *counter, log *slog.Logger) {
	if r.volume == nil {
		return
	}
	alert, err := r.volume.Observe(ctx, l.market.ID, l.snapshot.Volume24h, l.snapshot.SnapshotAt)
	if err != nil {
		log.WarnContext(ctx, "volume observation failed",
			slog.String("market_id", l.market.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if alert == nil {
		return
	}
	if err := r.stores.Alerts.Insert(ctx, *alert); err != nil {
		log.WarnContext(ctx, "store volume alert",
			slog.String("market_id", l.market.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	st.add(func(s *domain.RunStats) { s.VolumeAlerts++ })
	r.metrics.VolumeAlertsTotal.Inc()
	r.events.VolumeAlert(ctx, *alert)
}

func (r *Runner) skip(st *counter, reason string) {
	st.add(func(s *domain.RunStats) { s.Skipped++ })
	r.metrics.SkippedTotal.WithLabelValues(reason).Inc()
}

// underroundSubjects is every open market plus every market that still has
// an active underround record but has dropped out of the open list, so
// closed markets get their records resolved.
func underroundSubjects(open []domain.Market, tracker *lifecycle.Tracker) []string {
	seen := make(map[string]bool, len(open))
	out := make([]string, 0, len(open))
	for _, m := range open {
		if !seen[m.ID] {
			seen[m.ID] = true
			out = append(out, m.ID)
		}
	}
	var orphans []string
	for _, k := range tracker.Keys() {
		if k.Type == domain.OpportunityUnderround && !seen[k.SubjectID] {
			orphans = append(orphans, k.SubjectID)
		}
	}
	sort.Strings(orphans)
	return append(out, orphans...)
}

// unconfirmedPairKeys returns the active cross-platform keys whose pair is
// missing from the confirmed list.
func unconfirmedPairKeys(confirmed []domain.MarketPair, tracker *lifecycle.Tracker) []domain.OpportunityKey {
	ids := make(map[string]bool, len(confirmed))
	for _, p := range confirmed {
		ids[p.ID] = true
	}
	var out []domain.OpportunityKey
	for _, k := range tracker.Keys() {
		if k.Type == domain.OpportunityCrossPlatform && !ids[k.SubjectID] {
			out = append(out, k)
		}
	}
	return out
}

// legLoader loads each market at most once per run so underround and
// cross-platform evaluations of the same market see the same snapshot.
type legLoader struct {
	markets   domain.MarketStore
	snapshots domain.SnapshotStore
	timeout   time.Duration
	now       time.Time
	logger    *slog.Logger

	known map[string]domain.Market

	mu      sync.Mutex
	entries map[string]*legEntry
}

type legEntry struct {
	once sync.Once
	leg  leg
}

func newLegLoader(markets domain.MarketStore, snapshots domain.SnapshotStore, timeout time.Duration, open []domain.Market, now time.Time, logger *slog.Logger) *legLoader {
	known := make(map[string]domain.Market, len(open))
	for _, m := range open {
		known[m.ID] = m
	}
	return &legLoader{
		markets:   markets,
		snapshots: snapshots,
		timeout:   timeout,
		now:       now,
		logger:    logger,
		known:     known,
		entries:   make(map[string]*legEntry),
	}
}

func (l *legLoader) load(ctx context.Context, marketID string) leg {
	l.mu.Lock()
	e, ok := l.entries[marketID]
	if !ok {
		e = &legEntry{}
		l.entries[marketID] = e
	}
	l.mu.Unlock()

	e.once.Do(func() { e.leg = l.fetch(ctx, marketID) })
	return e.leg
}

func (l *legLoader) fetch(ctx context.Context, marketID string) leg {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var out leg
	if m, ok := l.known[marketID]; ok {
		out.market, out.hasMarket = m, true
	} else {
		m, err := l.markets.GetByID(ctx, marketID)
		if err != nil {
			l.logger.WarnContext(ctx, "load market",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
			return out
		}
		out.market, out.hasMarket = m, true
	}
	if !out.market.Tradable(l.now) {
		return out
	}

	snap, err := l.snapshots.Latest(ctx, marketID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			l.logger.WarnContext(ctx, "load latest snapshot",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
		return out
	}
	out.snapshot, out.hasQuote = snap, true
	return out
}

// counter accumulates run stats across workers.
type counter struct {
	mu sync.Mutex
	s  domain.RunStats
}

func (c *counter) add(fn func(*domain.RunStats)) {
	c.mu.Lock()
	fn(&c.s)
	c.mu.Unlock()
}

func (c *counter) record(a lifecycle.Action) {
	c.add(func(s *domain.RunStats) {
		switch a {
		case lifecycle.ActionActivate:
			s.Activated++
		case lifecycle.ActionRefresh:
			s.Refreshed++
		case lifecycle.ActionResolve:
			s.Resolved++
		case lifecycle.ActionNone:
		}
	})
}

func (c *counter) snapshot() domain.RunStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
