// Package lifecycle tracks arbitrage opportunities across detection cycles.
//
// A Tracker is a keyed index from (type, subject id) to the single active
// opportunity for that key. Each observation yields at most one transition:
//
//	absent -> active    first positive observation (activate)
//	active -> active    positive observation again (refresh)
//	active -> resolved  spread gone, leg market closed, or net spread above
//	                    the sanity ceiling (resolve)
//
// Resolved is terminal. A later positive observation for the same key starts
// a fresh record with a new id.
package lifecycle

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// DefaultSanityCeilingPct is the net spread above which a value is treated as
// a data bug. A real arbitrage cannot return more than 100%.
var DefaultSanityCeilingPct = decimal.NewFromInt(100)

// Outcome classifies what a detection cycle saw for one key.
type Outcome int

const (
	// OutcomeMissing means the data needed to evaluate the key was not
	// available this cycle (a leg timed out or has no snapshot). The active
	// record, if any, is left as it is.
	OutcomeMissing Outcome = iota
	// OutcomeSpread carries a netted, classified spread in Candidate.
	OutcomeSpread
	// OutcomeNoSpread means the spread was evaluated and is not positive.
	OutcomeNoSpread
	// OutcomeMarketClosed means a leg's market is closed or past its
	// resolution date.
	OutcomeMarketClosed
	// OutcomePairUnconfirmed means the pair behind a cross-platform key has
	// left the confirmed set.
	OutcomePairUnconfirmed
)

// Observation is the result of evaluating one key in one cycle.
type Observation struct {
	Key     domain.OpportunityKey
	Outcome Outcome
	// Candidate holds the spread fields, quality and details when Outcome is
	// OutcomeSpread. Identity and lifecycle fields are ignored.
	Candidate domain.ArbOpportunity
}

// Action is the kind of transition an observation triggers.
type Action int

const (
	ActionNone Action = iota
	ActionActivate
	ActionRefresh
	ActionResolve
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionActivate:
		return "activate"
	case ActionRefresh:
		return "refresh"
	case ActionResolve:
		return "resolve"
	default:
		return "unknown"
	}
}

// Transition is a decided state change. Opportunity is the record as it
// should look after the transition.
type Transition struct {
	Action      Action
	Opportunity domain.ArbOpportunity
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSanityCeiling overrides DefaultSanityCeilingPct.
func WithSanityCeiling(pct decimal.Decimal) Option {
	return func(t *Tracker) { t.ceiling = pct }
}

// WithIDGenerator overrides the uuid generator used for new records.
func WithIDGenerator(fn func() string) Option {
	return func(t *Tracker) { t.newID = fn }
}

// Tracker is safe for concurrent use. Callers must not evaluate the same key
// from two goroutines at once; keys are disjoint across detection workers.
type Tracker struct {
	mu      sync.RWMutex
	active  map[domain.OpportunityKey]domain.ArbOpportunity
	ceiling decimal.Decimal
	newID   func() string
}

// NewTracker seeds the index with the currently active records. If the input
// holds more than one record for a key, the most recently seen one wins.
func NewTracker(active []domain.ArbOpportunity, opts ...Option) *Tracker {
	t := &Tracker{
		active:  make(map[domain.OpportunityKey]domain.ArbOpportunity, len(active)),
		ceiling: DefaultSanityCeilingPct,
		newID:   func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(t)
	}
	for _, opp := range active {
		if !opp.Active() {
			continue
		}
		if cur, ok := t.active[opp.Key()]; ok && cur.LastSeenAt.After(opp.LastSeenAt) {
			continue
		}
		t.active[opp.Key()] = opp
	}
	return t
}

// Apply decides the transition for obs at now. It does not change the index;
// call Commit once the transition has been persisted.
func (t *Tracker) Apply(obs Observation, now time.Time) Transition {
	t.mu.RLock()
	cur, isActive := t.active[obs.Key]
	t.mu.RUnlock()

	switch obs.Outcome {
	case OutcomeMissing:
		return Transition{Action: ActionNone}
	case OutcomeNoSpread:
		if isActive {
			return resolve(cur, now, domain.ResolutionSpreadGone)
		}
		return Transition{Action: ActionNone}
	case OutcomeMarketClosed:
		if isActive {
			return resolve(cur, now, domain.ResolutionMarketClosed)
		}
		return Transition{Action: ActionNone}
	case OutcomePairUnconfirmed:
		if isActive {
			return resolve(cur, now, domain.ResolutionPairUnconfirmed)
		}
		return Transition{Action: ActionNone}
	case OutcomeSpread:
		return t.applySpread(obs, cur, isActive, now)
	default:
		return Transition{Action: ActionNone}
	}
}

func (t *Tracker) applySpread(obs Observation, cur domain.ArbOpportunity, isActive bool, now time.Time) Transition {
	c := obs.Candidate

	if c.NetSpreadPct.GreaterThan(t.ceiling) {
		if isActive {
			return resolve(cur, now, domain.ResolutionInvalidSpread)
		}
		return Transition{Action: ActionNone}
	}
	if !c.NetSpreadPct.IsPositive() || !c.Quality.Surfaced() {
		if isActive {
			return resolve(cur, now, domain.ResolutionSpreadGone)
		}
		return Transition{Action: ActionNone}
	}

	if isActive {
		next := cur
		copySpread(&next, c)
		next.LastSeenAt = now
		next.SnapshotCount++
		next.DurationSeconds = int64(now.Sub(next.DetectedAt) / time.Second)
		return Transition{Action: ActionRefresh, Opportunity: next}
	}

	next := domain.ArbOpportunity{
		ID:            t.newID(),
		Type:          obs.Key.Type,
		SubjectID:     obs.Key.SubjectID,
		DetectedAt:    now,
		LastSeenAt:    now,
		SnapshotCount: 1,
	}
	copySpread(&next, c)
	return Transition{Action: ActionActivate, Opportunity: next}
}

// Commit records a persisted transition in the index. Pass the stored row
// in tr.Opportunity so the index matches the database.
func (t *Tracker) Commit(tr Transition) {
	key := tr.Opportunity.Key()

	t.mu.Lock()
	defer t.mu.Unlock()

	switch tr.Action {
	case ActionActivate, ActionRefresh:
		t.active[key] = tr.Opportunity
	case ActionResolve:
		if cur, ok := t.active[key]; ok && cur.ID == tr.Opportunity.ID {
			delete(t.active, key)
		}
	case ActionNone:
	}
}

// SanityCheck returns resolve transitions for every active record whose
// stored net spread is above the sanity ceiling. Such records come from
// earlier normalization bugs and must never stay visible.
func (t *Tracker) SanityCheck(now time.Time) []Transition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Transition
	for _, opp := range t.active {
		if opp.NetSpreadPct.GreaterThan(t.ceiling) {
			out = append(out, resolve(opp, now, domain.ResolutionInvalidSpread))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Opportunity.Key().String() < out[j].Opportunity.Key().String()
	})
	return out
}

// Get returns the active record for key.
func (t *Tracker) Get(key domain.OpportunityKey) (domain.ArbOpportunity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	opp, ok := t.active[key]
	return opp, ok
}

// Keys returns the keys of all active records, sorted.
func (t *Tracker) Keys() []domain.OpportunityKey {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.OpportunityKey, 0, len(t.active))
	for k := range t.active {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Len returns the number of active records.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}

func resolve(cur domain.ArbOpportunity, now time.Time, reason domain.ResolutionReason) Transition {
	at := now
	cur.ResolvedAt = &at
	cur.Resolution = reason
	return Transition{Action: ActionResolve, Opportunity: cur}
}

// copySpread takes the latest observation's values. Fields are replaced, not
// averaged.
func copySpread(dst *domain.ArbOpportunity, src domain.ArbOpportunity) {
	dst.Quality = src.Quality
	dst.GrossSpreadPct = src.GrossSpreadPct
	dst.TotalFeesPct = src.TotalFeesPct
	dst.NetSpreadPct = src.NetSpreadPct
	dst.MaxDeployableUSD = src.MaxDeployableUSD
	dst.CapitalWeightedSpread = src.CapitalWeightedSpread
	dst.Details = src.Details
}
