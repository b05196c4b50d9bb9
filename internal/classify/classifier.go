// Package classify assigns quality tiers to netted spreads.
package classify

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Thresholds are the tuning knobs for tier assignment. They come from
// configuration so they can change without a redeploy.
type Thresholds struct {
	MinExecutableSpreadPct decimal.Decimal
	MinExecutableSizeUSD   decimal.Decimal
}

// Validate rejects thresholds that would make tiers overlap.
func (t Thresholds) Validate() error {
	if !t.MinExecutableSpreadPct.IsPositive() {
		return fmt.Errorf("classify: min executable spread must be > 0, got %s", t.MinExecutableSpreadPct)
	}
	if t.MinExecutableSizeUSD.IsNegative() {
		return fmt.Errorf("classify: min executable size must be >= 0, got %s", t.MinExecutableSizeUSD)
	}
	return nil
}

// Classify maps (netPct, deployableUSD) to exactly one tier:
//
//	net >= minSpread and deployable >= minSize  executable
//	net >= minSpread                             thin
//	0 < net < minSpread                          theoretical
//	net <= 0                                     none
func (t Thresholds) Classify(netPct, deployableUSD decimal.Decimal) domain.Quality {
	switch {
	case !netPct.IsPositive():
		return domain.QualityNone
	case netPct.LessThan(t.MinExecutableSpreadPct):
		return domain.QualityTheoretical
	case deployableUSD.LessThan(t.MinExecutableSizeUSD):
		return domain.QualityThin
	default:
		return domain.QualityExecutable
	}
}
