package strategy

import (
	"math"
	"testing"

	"github.com/markcheno/go-talib"
	"github.com/stretchr/testify/assert"
)

func TestEMA(t *testing.T) {
	e := NewEMA(3) // alpha 0.5

	assert.Equal(t, 10.0, e.Update(10))
	assert.Equal(t, 15.0, e.Update(20))
	assert.Equal(t, 12.5, e.Update(10))
	assert.Equal(t, 12.5, e.Value())
}

func TestRollingMean(t *testing.T) {
	tests := []struct {
		name     string
		n, min   int
		inputs   []float64
		wantLast float64
	}{
		{"below min count reads zero", 4, 3, []float64{5, 7}, 0},
		{"at min count", 4, 3, []float64{3, 6, 9}, 6},
		{"window slides", 3, 1, []float64{100, 1, 2, 3}, 2},
		{"window one", 1, 1, []float64{4, 8}, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRollingMean(tt.n, tt.min)
			var got float64
			for _, x := range tt.inputs {
				got = r.Update(x)
			}
			assert.Equal(t, tt.wantLast, got)
		})
	}
}

func sineCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 22000 + 40*math.Sin(float64(i)/7) + float64(i%5)
	}
	return closes
}

// talib seeds its EMA with an SMA instead of the first input, so the two only
// agree once the seed has decayed.
func TestEMA_MatchesTalibAfterSeedDecays(t *testing.T) {
	closes := sineCloses(400)
	for _, period := range []int{5, 13} {
		e := NewEMA(period)
		for _, c := range closes {
			e.Update(c)
		}
		ref := talib.Ema(closes, period)
		assert.InDelta(t, ref[len(ref)-1], e.Value(), 1e-6, "period %d", period)
	}
}

func TestRollingMean_MatchesTalibSMA(t *testing.T) {
	vols := sineCloses(120)
	r := NewRollingMean(30, 5)
	ref := talib.Sma(vols, 30)
	for i, v := range vols {
		got := r.Update(v)
		if i >= 29 {
			assert.InDelta(t, ref[i], got, 1e-6, "bar %d", i)
		}
	}
}
