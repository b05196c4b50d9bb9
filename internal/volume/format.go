package volume

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Volumes is the pair of volume figures stored on every snapshot.
type Volumes struct {
	Volume24h     float64
	VolumeAllTime float64
}

// TransformPolymarketVolume derives snapshot volumes from Gamma's figures.
// Gamma reports a rolling one-week volume, so the daily figure is a seventh
// of it. Negative inputs clamp to 0.
func TransformPolymarketVolume(weekly, allTime float64) Volumes {
	return Volumes{
		Volume24h:     nonNegative(weekly) / 7,
		VolumeAllTime: nonNegative(allTime),
	}
}

// SumVolumes adds loosely typed volume values as venues return them:
// numbers, numeric strings and nils. Anything unparseable counts as 0.
func SumVolumes(values ...any) float64 {
	var total float64
	for _, v := range values {
		total += toFloat(v)
	}
	return total
}

var volumeTiers = []struct {
	scale  float64
	suffix string
}{
	{1e3, "K"},
	{1e6, "M"},
	{1e9, "B"},
}

// FormatVolume renders a dollar volume compactly: $1.2B, $3.4M, $5.6K, $999.
// The tier is chosen after rounding, so 999999 renders as $1.0M.
func FormatVolume(v float64) string {
	if math.Round(v) < 1e3 {
		return fmt.Sprintf("$%.0f", v)
	}
	last := len(volumeTiers) - 1
	for i, t := range volumeTiers {
		scaled := v / t.scale
		if i == last || math.Round(scaled*10)/10 < 1e3 {
			return fmt.Sprintf("$%.1f%s", scaled, t.suffix)
		}
	}
	return ""
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, _ := x.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func nonNegative(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	return v
}
