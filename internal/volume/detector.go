// Package volume flags abnormal trading volume per market against a trailing
// window baseline.
package volume

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

const (
	DefaultWindow          = 7 * 24 * time.Hour
	DefaultAlertMultiplier = 1.5
)

// Config tunes the detector.
type Config struct {
	Window          time.Duration
	AlertMultiplier float64
	// MinSamples is the number of trailing samples required before any
	// alert can fire.
	MinSamples int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.AlertMultiplier <= 0 {
		c.AlertMultiplier = DefaultAlertMultiplier
	}
	if c.MinSamples < 1 {
		c.MinSamples = 1
	}
	return c
}

// HistorySource seeds a market's window the first time it is observed.
// domain.SnapshotStore satisfies it.
type HistorySource interface {
	History(ctx context.Context, marketID string, since time.Time) ([]domain.PriceSnapshot, error)
}

type sample struct {
	at     time.Time
	volume float64
}

type window struct {
	samples []sample
}

func (w *window) last() (sample, bool) {
	if len(w.samples) == 0 {
		return sample{}, false
	}
	return w.samples[len(w.samples)-1], true
}

// prune drops samples older than cutoff. Samples are kept in time order.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.samples) && w.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}

// Detector keeps one trailing window per market in memory.
type Detector struct {
	cfg     Config
	history HistorySource

	mu      sync.Mutex
	windows map[string]*window
	newID   func() string
}

// NewDetector creates a Detector. history may be nil, in which case windows
// start empty.
func NewDetector(cfg Config, history HistorySource) *Detector {
	return &Detector{
		cfg:     cfg.withDefaults(),
		history: history,
		windows: make(map[string]*window),
		newID:   func() string { return uuid.New().String() },
	}
}

// Observe feeds one volume reading for a market. It returns an alert when
// the reading is at least AlertMultiplier times the trailing mean, and nil
// otherwise. Readings not newer than the last one seen for the market are
// ignored, so re-observing the same snapshot never double-counts.
func (d *Detector) Observe(ctx context.Context, marketID string, volumeUSD float64, at time.Time) (*domain.VolumeAlert, error) {
	w, err := d.window(ctx, marketID, at)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := w.last(); ok && !at.After(last.at) {
		return nil, nil
	}
	w.prune(at.Add(-d.cfg.Window))

	var st stats
	for _, s := range w.samples {
		st.add(s.volume)
	}
	w.samples = append(w.samples, sample{at: at, volume: volumeUSD})

	if st.n < d.cfg.MinSamples || st.mean <= 0 {
		return nil, nil
	}

	multiplier := volumeUSD / st.mean
	if multiplier < d.cfg.AlertMultiplier {
		return nil, nil
	}

	var z float64
	if sd := st.stddev(); sd > 0 {
		z = (volumeUSD - st.mean) / sd
	}
	return &domain.VolumeAlert{
		ID:           d.newID(),
		MarketID:     marketID,
		VolumeUSD:    volumeUSD,
		RollingAvg7d: st.mean,
		Multiplier:   multiplier,
		ZScore:       z,
		AlertAt:      at,
	}, nil
}

// Forget drops a market's window, e.g. once the market has closed.
func (d *Detector) Forget(marketID string) {
	d.mu.Lock()
	delete(d.windows, marketID)
	d.mu.Unlock()
}

// Tracked returns the number of markets with a window in memory.
func (d *Detector) Tracked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.windows)
}

// window returns the market's window, seeding it from history on first use.
// Only samples strictly before at are seeded.
func (d *Detector) window(ctx context.Context, marketID string, at time.Time) (*window, error) {
	d.mu.Lock()
	w, ok := d.windows[marketID]
	d.mu.Unlock()
	if ok {
		return w, nil
	}

	w = &window{}
	if d.history != nil {
		snaps, err := d.history.History(ctx, marketID, at.Add(-d.cfg.Window))
		if err != nil {
			return nil, fmt.Errorf("volume: seed window for %s: %w", marketID, err)
		}
		for _, s := range snaps {
			if !s.SnapshotAt.Before(at) {
				break
			}
			if last, ok := w.last(); ok && !s.SnapshotAt.After(last.at) {
				continue
			}
			w.samples = append(w.samples, sample{at: s.SnapshotAt, volume: s.Volume24h})
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.windows[marketID]; ok {
		return existing, nil
	}
	d.windows[marketID] = w
	return w, nil
}

// stats accumulates mean and variance with Welford's online algorithm.
type stats struct {
	n    int
	mean float64
	m2   float64
}

func (s *stats) add(x float64) {
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (x - s.mean)
}

// stddev is the sample standard deviation, or 0 with fewer than two values.
func (s *stats) stddev() float64 {
	if s.n < 2 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.n-1))
}
