package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/lifecycle"
	"github.com/alanyoungcy/arbwatch/internal/volume"
)

// Signal bus channels.
const (
	ChannelOpportunities = "opportunities"
	ChannelVolumeAlerts  = "volume_alerts"
)

// Notification event types, matched against notify.events.
const (
	EventOpportunityExecutable = "opportunity_executable"
	EventVolumeAlert           = "volume_alert"
	EventRunFailed             = "run_failed"
)

// Notifier delivers operator notifications. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// OpportunityEvent is the payload published for each lifecycle transition.
type OpportunityEvent struct {
	Action      string                `json:"action"`
	Opportunity domain.ArbOpportunity `json:"opportunity"`
}

// Events publishes detection results. Both the bus and the notifier are
// optional. Delivery failures are logged and never fail a run.
type Events struct {
	bus      domain.SignalBus
	notifier Notifier
	logger   *slog.Logger
}

// NewEvents creates an Events publisher. bus and notifier may be nil.
func NewEvents(bus domain.SignalBus, notifier Notifier, logger *slog.Logger) *Events {
	return &Events{bus: bus, notifier: notifier, logger: logger}
}

// Opportunity publishes a transition and notifies on executable activations.
func (e *Events) Opportunity(ctx context.Context, tr lifecycle.Transition) {
	if tr.Action == lifecycle.ActionNone {
		return
	}
	e.publish(ctx, ChannelOpportunities, OpportunityEvent{
		Action:      tr.Action.String(),
		Opportunity: tr.Opportunity,
	})

	opp := tr.Opportunity
	if tr.Action != lifecycle.ActionActivate || opp.Quality != domain.QualityExecutable {
		return
	}
	title := fmt.Sprintf("Executable %s opportunity", opp.Type)
	msg := fmt.Sprintf("net %s%% (gross %s%%, fees %s%%), deployable $%s, %s",
		opp.NetSpreadPct.StringFixed(2),
		opp.GrossSpreadPct.StringFixed(2),
		opp.TotalFeesPct.StringFixed(2),
		opp.MaxDeployableUSD.StringFixed(0),
		opp.Details.Direction,
	)
	e.notify(ctx, EventOpportunityExecutable, title, msg)
}

// VolumeAlert publishes and notifies a volume spike.
func (e *Events) VolumeAlert(ctx context.Context, alert domain.VolumeAlert) {
	e.publish(ctx, ChannelVolumeAlerts, alert)
	msg := fmt.Sprintf("market %s traded %s, %.1fx its 7d average of %s (z=%.2f)",
		alert.MarketID,
		volume.FormatVolume(alert.VolumeUSD),
		alert.Multiplier,
		volume.FormatVolume(alert.RollingAvg7d),
		alert.ZScore,
	)
	e.notify(ctx, EventVolumeAlert, "Volume spike", msg)
}

// RunFailed notifies a failed detection run.
func (e *Events) RunFailed(ctx context.Context, runID string, cause error) {
	e.notify(ctx, EventRunFailed, "Detection run failed", fmt.Sprintf("run %s: %v", runID, cause))
}

func (e *Events) publish(ctx context.Context, channel string, v any) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		e.logger.ErrorContext(ctx, "marshal event", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	if err := e.bus.Publish(ctx, channel, payload); err != nil {
		e.logger.WarnContext(ctx, "publish event", slog.String("channel", channel), slog.String("error", err.Error()))
	}
	if err := e.bus.StreamAppend(ctx, channel, payload); err != nil {
		e.logger.WarnContext(ctx, "append event stream", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

func (e *Events) notify(ctx context.Context, event, title, msg string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, msg); err != nil {
		e.logger.WarnContext(ctx, "notify", slog.String("event", event), slog.String("error", err.Error()))
	}
}
