package detection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the detection engine's Prometheus collectors.
type Metrics struct {
	// RunsTotal counts finished runs by status (completed, failed, rejected).
	RunsTotal *prometheus.CounterVec
	// RunDurationSeconds tracks wall time of completed runs.
	RunDurationSeconds prometheus.Histogram
	// TransitionsTotal counts lifecycle transitions by opportunity type and
	// action.
	TransitionsTotal *prometheus.CounterVec
	// SkippedTotal counts evaluations skipped for a cycle, by reason.
	SkippedTotal *prometheus.CounterVec
	// NetSpreadPct tracks net spreads of surfaced observations.
	NetSpreadPct prometheus.Histogram
	// VolumeAlertsTotal counts emitted volume alerts.
	VolumeAlertsTotal prometheus.Counter
	// ActiveOpportunities is the number of active records after the last run.
	ActiveOpportunities  prometheus.Gauge
	VolumeTrackedMarkets prometheus.Gauge
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arbwatch_detection_runs_total",
			Help: "Detection runs by final status",
		}, []string{"status"}),
		RunDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbwatch_detection_run_duration_seconds",
			Help:    "Duration of detection runs",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arbwatch_opportunity_transitions_total",
			Help: "Opportunity lifecycle transitions",
		}, []string{"type", "action"}),
		SkippedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arbwatch_detection_skipped_total",
			Help: "Evaluations skipped for one cycle",
		}, []string{"reason"}),
		NetSpreadPct: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbwatch_opportunity_net_spread_pct",
			Help:    "Net spread of surfaced opportunities, in percent",
			Buckets: []float64{0.5, 1, 2, 3, 5, 10, 20, 35, 50, 100},
		}),
		VolumeAlertsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "arbwatch_volume_alerts_total",
			Help: "Volume alerts emitted",
		}),
		ActiveOpportunities: f.NewGauge(prometheus.GaugeOpts{
			Name: "arbwatch_active_opportunities",
			Help: "Active opportunities after the last detection run",
		}),
		VolumeTrackedMarkets: f.NewGauge(prometheus.GaugeOpts{
			Name: "arbwatch_volume_tracked_markets",
			Help: "Markets with a rolling volume window in memory",
		}),
	}
}
