// Package normalize converts venue-native price representations into
// probabilities in [0,1].
//
// Prices are normalized once, when a snapshot is ingested. The same transform
// repairs historical rows during backfill; it is idempotent because every
// normalized value is at most 1.
package normalize

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// centsThreshold separates cent quotes from probabilities on cents-native
// venues. Every field is tested against it independently.
const centsThreshold = 1.0

// Price converts a raw venue price to a probability. Negative and NaN input
// becomes 0 and the result is clamped to [0,1]; it never fails for a known
// platform.
func Price(platform domain.Platform, raw float64) (float64, error) {
	switch platform {
	case domain.PlatformPolymarket:
		return clamp(raw), nil
	case domain.PlatformKalshi:
		if raw > centsThreshold {
			raw /= 100
		}
		return clamp(raw), nil
	default:
		return 0, fmt.Errorf("normalize: %w: %q", domain.ErrUnknownPlatform, platform)
	}
}

// Snapshot normalizes every price field of snap for the given platform. Each
// field is converted on its own; a cents YES price does not imply cents for
// the other fields.
func Snapshot(platform domain.Platform, snap domain.PriceSnapshot) (domain.PriceSnapshot, error) {
	var err error
	out := snap
	if out.YesPrice, err = Price(platform, snap.YesPrice); err != nil {
		return snap, err
	}
	if out.NoPrice, err = Price(platform, snap.NoPrice); err != nil {
		return snap, err
	}
	out.YesBid = optional(platform, snap.YesBid)
	out.YesAsk = optional(platform, snap.YesAsk)
	out.NoBid = optional(platform, snap.NoBid)
	out.NoAsk = optional(platform, snap.NoAsk)
	return out, nil
}

// NeedsRepair reports whether any price field of snap would change under
// Snapshot. Already-normalized rows never need repair.
func NeedsRepair(platform domain.Platform, snap domain.PriceSnapshot) bool {
	fixed, err := Snapshot(platform, snap)
	if err != nil {
		return false
	}
	return !samePrices(fixed, snap)
}

func optional(platform domain.Platform, v *float64) *float64 {
	if v == nil {
		return nil
	}
	// platform was already validated by the caller.
	p, _ := Price(platform, *v)
	return &p
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func samePrices(a, b domain.PriceSnapshot) bool {
	return a.YesPrice == b.YesPrice &&
		a.NoPrice == b.NoPrice &&
		sameOptional(a.YesBid, b.YesBid) &&
		sameOptional(a.YesAsk, b.YesAsk) &&
		sameOptional(a.NoBid, b.NoBid) &&
		sameOptional(a.NoAsk, b.NoAsk)
}

func sameOptional(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
