package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformPolymarketVolume(t *testing.T) {
	got := TransformPolymarketVolume(70000, 1000000)
	assert.Equal(t, Volumes{Volume24h: 10000, VolumeAllTime: 1000000}, got)

	got = TransformPolymarketVolume(-70, -1)
	assert.Equal(t, Volumes{}, got)
}

func TestSumVolumes(t *testing.T) {
	assert.InDelta(t, 6000.5, SumVolumes(1000, "2000.50", nil, nil, 3000), 1e-9)
	assert.InDelta(t, 0, SumVolumes(), 1e-9)
	assert.InDelta(t, 12.5, SumVolumes(" 10 ", "n/a", 2.5, struct{}{}), 1e-9)
}

func TestFormatVolume(t *testing.T) {
	cases := map[float64]string{
		1000000:    "$1.0M",
		999:        "$999",
		0:          "$0",
		1500:       "$1.5K",
		2500000000: "$2.5B",
		12345678:   "$12.3M",
		999.4:      "$999",
		999.6:      "$1.0K",
		999999:     "$1.0M",
		999960000:  "$1.0B",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatVolume(in), "FormatVolume(%v)", in)
	}
}
