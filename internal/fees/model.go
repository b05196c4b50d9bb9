// Package fees nets gross arbitrage spreads against venue fee schedules.
//
// A FeeConfig is loaded once at the start of a detection run and passed to
// every evaluation in that run, so all opportunities of a cycle are netted
// against the same fee basis. There is no shared cache to invalidate.
package fees

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// SettlementMode selects how the settlement fee is deducted.
type SettlementMode string

const (
	// SettlementFlat charges the full settlement fee on every leg.
	SettlementFlat SettlementMode = "flat"
	// SettlementProbability charges price × settlement fee per leg, the
	// expected fee given the leg settles in the money with probability price.
	SettlementProbability SettlementMode = "probability"
)

// ParseSettlementMode validates a settlement mode name.
func ParseSettlementMode(s string) (SettlementMode, error) {
	switch m := SettlementMode(s); m {
	case SettlementFlat, SettlementProbability:
		return m, nil
	default:
		return "", fmt.Errorf("fees: unknown settlement mode %q", s)
	}
}

// Leg is one position an opportunity has to open.
type Leg struct {
	Platform domain.Platform
	// Price is the ask paid for the leg, as a probability.
	Price float64
}

// Result is the outcome of netting a gross spread.
type Result struct {
	TotalFeesPct decimal.Decimal
	NetSpreadPct decimal.Decimal
}

// FeeConfig is an immutable snapshot of every venue's fee schedule.
type FeeConfig struct {
	schedules  map[domain.Platform]domain.PlatformConfig
	settlement SettlementMode
}

// NewFeeConfig builds a FeeConfig from schedules. Later entries for the same
// platform replace earlier ones.
func NewFeeConfig(schedules []domain.PlatformConfig, mode SettlementMode) FeeConfig {
	m := make(map[domain.Platform]domain.PlatformConfig, len(schedules))
	for _, s := range schedules {
		m[s.Platform] = s
	}
	if mode == "" {
		mode = SettlementFlat
	}
	return FeeConfig{schedules: m, settlement: mode}
}

// Load reads the current schedules from store.
func Load(ctx context.Context, store domain.PlatformConfigStore, mode SettlementMode) (FeeConfig, error) {
	schedules, err := store.List(ctx)
	if err != nil {
		return FeeConfig{}, fmt.Errorf("fees: load platform configs: %w", err)
	}
	return NewFeeConfig(schedules, mode), nil
}

// Schedule returns the fee schedule for platform, or ErrFeeConfigMissing.
func (c FeeConfig) Schedule(platform domain.Platform) (domain.PlatformConfig, error) {
	s, ok := c.schedules[platform]
	if !ok {
		return domain.PlatformConfig{}, fmt.Errorf("fees: %w: %s", domain.ErrFeeConfigMissing, platform)
	}
	return s, nil
}

// Platforms lists the platforms that have a schedule, sorted.
func (c FeeConfig) Platforms() []domain.Platform {
	out := make([]domain.Platform, 0, len(c.schedules))
	for p := range c.schedules {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Net computes total fees for legs and subtracts them from grossPct.
//
// Each leg pays its venue's taker fee once and a settlement fee according to
// the configured mode. The withdrawal fee is paid once per venue involved.
// NetSpreadPct always equals grossPct minus TotalFeesPct exactly.
func (c FeeConfig) Net(grossPct decimal.Decimal, legs []Leg) (Result, error) {
	total := decimal.Zero
	withdrawn := make(map[domain.Platform]bool, len(legs))

	for _, leg := range legs {
		s, err := c.Schedule(leg.Platform)
		if err != nil {
			return Result{}, err
		}
		total = total.Add(s.TakerFeePct)

		switch c.settlement {
		case SettlementProbability:
			total = total.Add(s.SettlementFeePct.Mul(decimal.NewFromFloat(leg.Price)))
		default:
			total = total.Add(s.SettlementFeePct)
		}

		if !withdrawn[leg.Platform] {
			total = total.Add(s.WithdrawalFeePct)
			withdrawn[leg.Platform] = true
		}
	}

	return Result{
		TotalFeesPct: total,
		NetSpreadPct: grossPct.Sub(total),
	}, nil
}
