package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func TestPricePolymarket(t *testing.T) {
	cases := []struct {
		name string
		raw  float64
		want float64
	}{
		{"probability passes through", 0.42, 0.42},
		{"zero", 0, 0},
		{"one", 1, 1},
		{"negative becomes zero", -0.3, 0},
		{"nan becomes zero", math.NaN(), 0},
		{"above one clamps", 1.7, 1},
		{"positive infinity clamps", math.Inf(1), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Price(domain.PlatformPolymarket, tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPriceKalshi(t *testing.T) {
	cases := []struct {
		name string
		raw  float64
		want float64
	}{
		{"cents are divided", 65, 0.65},
		{"already normalized passes through", 0.65, 0.65},
		{"exactly one passes through", 1, 1},
		{"ninety nine cents", 99, 0.99},
		{"negative becomes zero", -12, 0},
		{"nan becomes zero", math.NaN(), 0},
		{"absurd cents clamp", 150, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Price(domain.PlatformKalshi, tc.raw)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestPriceUnknownPlatform(t *testing.T) {
	_, err := Price(domain.Platform("betfair"), 0.5)
	require.ErrorIs(t, err, domain.ErrUnknownPlatform)
}

func TestPriceIdempotentAndBounded(t *testing.T) {
	for _, platform := range []domain.Platform{domain.PlatformPolymarket, domain.PlatformKalshi} {
		for raw := -50.0; raw <= 250; raw += 0.25 {
			once, err := Price(platform, raw)
			require.NoError(t, err)
			twice, err := Price(platform, once)
			require.NoError(t, err)

			assert.GreaterOrEqual(t, once, 0.0)
			assert.LessOrEqual(t, once, 1.0)
			assert.Equal(t, once, twice, "platform=%s raw=%v", platform, raw)
		}
	}
}

func TestSnapshotNormalizesFieldsIndependently(t *testing.T) {
	// YES arrives in cents, the NO ask was already stored as a probability.
	snap := domain.PriceSnapshot{
		YesPrice: 65,
		NoPrice:  0.35,
		YesBid:   ptr(64),
		YesAsk:   ptr(66),
		NoBid:    nil,
		NoAsk:    ptr(0.36),
	}

	got, err := Snapshot(domain.PlatformKalshi, snap)
	require.NoError(t, err)

	assert.InDelta(t, 0.65, got.YesPrice, 1e-12)
	assert.InDelta(t, 0.35, got.NoPrice, 1e-12)
	assert.InDelta(t, 0.64, *got.YesBid, 1e-12)
	assert.InDelta(t, 0.66, *got.YesAsk, 1e-12)
	assert.Nil(t, got.NoBid)
	assert.InDelta(t, 0.36, *got.NoAsk, 1e-12)

	// Input is not mutated through shared pointers.
	assert.Equal(t, 66.0, *snap.YesAsk)
}

func TestNeedsRepair(t *testing.T) {
	stale := domain.PriceSnapshot{YesPrice: 65, NoPrice: 35}
	assert.True(t, NeedsRepair(domain.PlatformKalshi, stale))

	fixed, err := Snapshot(domain.PlatformKalshi, stale)
	require.NoError(t, err)
	assert.False(t, NeedsRepair(domain.PlatformKalshi, fixed))

	onlyAsk := domain.PriceSnapshot{YesPrice: 0.5, NoPrice: 0.5, NoAsk: ptr(52)}
	assert.True(t, NeedsRepair(domain.PlatformKalshi, onlyAsk))
}
