package classify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var thresholds = Thresholds{
	MinExecutableSpreadPct: d("2"),
	MinExecutableSizeUSD:   d("100"),
}

func TestClassify(t *testing.T) {
	cases := []struct {
		net, size string
		want      domain.Quality
	}{
		{"32", "500", domain.QualityExecutable},
		{"2", "100", domain.QualityExecutable},
		{"2", "99.99", domain.QualityThin},
		{"50", "0", domain.QualityThin},
		{"1.99", "10000", domain.QualityTheoretical},
		{"0.0001", "0", domain.QualityTheoretical},
		{"0", "10000", domain.QualityNone},
		{"-4", "10000", domain.QualityNone},
	}
	for _, tc := range cases {
		got := thresholds.Classify(d(tc.net), d(tc.size))
		assert.Equal(t, tc.want, got, "net=%s size=%s", tc.net, tc.size)
	}
}

func TestClassifyIsTotal(t *testing.T) {
	for net := -300; net <= 300; net++ {
		for size := 0; size <= 300; size += 25 {
			q := thresholds.Classify(decimal.New(int64(net), -2), decimal.NewFromInt(int64(size)))
			switch q {
			case domain.QualityExecutable, domain.QualityThin, domain.QualityTheoretical:
				assert.True(t, q.Surfaced())
				assert.True(t, net > 0)
			case domain.QualityNone:
				assert.False(t, q.Surfaced())
				assert.LessOrEqual(t, net, 0)
			default:
				t.Fatalf("unexpected tier %q", q)
			}
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, thresholds.Validate())
	require.Error(t, Thresholds{MinExecutableSpreadPct: d("0"), MinExecutableSizeUSD: d("1")}.Validate())
	require.Error(t, Thresholds{MinExecutableSpreadPct: d("1"), MinExecutableSizeUSD: d("-1")}.Validate())
}
