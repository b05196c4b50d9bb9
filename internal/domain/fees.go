package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlatformConfig is a venue's fee schedule. All values are percentages of
// notional (1.5 means 1.5%). The schedule is maintained outside the engine
// and read once per detection run.
type PlatformConfig struct {
	Platform         Platform
	TakerFeePct      decimal.Decimal
	MakerFeePct      decimal.Decimal
	SettlementFeePct decimal.Decimal
	WithdrawalFeePct decimal.Decimal
	UpdatedAt        time.Time
}
