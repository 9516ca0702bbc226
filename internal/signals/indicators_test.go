package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlchn/tide/internal/models"
)

func TestTrailingReturn(t *testing.T) {
	closes := []float64{100, 102, 101, 103, 105}

	tests := []struct {
		name     string
		days     int
		expected float64
		valid    bool
	}{
		{"one day", 1, (105.0/103.0 - 1) * 100, true},
		{"four days", 4, 5.0, true},
		{"window too long", 5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := trailingReturn(closes, tt.days)
			assert.Equal(t, tt.valid, m.Valid)
			if tt.valid {
				assert.InDelta(t, tt.expected, m.Val, 1e-9)
			}
		})
	}
}

func TestHigherHigh(t *testing.T) {
	tests := []struct {
		name     string
		closes   []float64
		expected bool
	}{
		{"recent max above prior max", []float64{100, 101, 99, 100, 100, 102, 100, 100}, true},
		{"recent max below prior max", []float64{110, 101, 99, 100, 100, 102, 100, 100}, false},
		{"equal maxima", []float64{102, 101, 99, 100, 100, 102, 100, 100}, false},
		{"window covers whole series", []float64{100, 101, 102}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, higherHigh(tt.closes, 5))
		})
	}
}

func TestYTDReturn(t *testing.T) {
	// five December bars then ten January bars; the anchor is the first bar
	// of the final year
	var bars []models.Bar
	dec := time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		bars = append(bars, models.Bar{Date: dec.AddDate(0, 0, i), Close: 90})
	}
	jan := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		bars = append(bars, models.Bar{Date: jan.AddDate(0, 0, i), Close: 100 + float64(i)})
	}

	m := ytdReturn(bars)
	require.True(t, m.Valid)
	assert.InDelta(t, 9.0, m.Val, 1e-9)
}

func TestYTDReturnTooFewObservations(t *testing.T) {
	bars := []models.Bar{
		{Date: time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC), Close: 90},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 100},
	}

	m := ytdReturn(bars)
	require.True(t, m.Valid)
	assert.Equal(t, 0.0, m.Val)
}

func TestPctFrom(t *testing.T) {
	m := pctFrom(105, 106)
	require.True(t, m.Valid)
	assert.InDelta(t, -0.94, m.Val, 1e-9)

	m = pctFrom(105, 99)
	require.True(t, m.Valid)
	assert.InDelta(t, 6.06, m.Val, 1e-9)

	// non-positive reference collapses to zero
	m = pctFrom(105, 0)
	require.True(t, m.Valid)
	assert.Equal(t, 0.0, m.Val)
}

func TestVolumeChange(t *testing.T) {
	volumes := make([]float64, 21)
	for i := range volumes {
		volumes[i] = 1_000_000
	}
	volumes[20] = 2_000_000

	m, flag := volumeChange(volumes)
	require.True(t, m.Valid)
	assert.InDelta(t, 100.0, m.Val, 1e-9)
	assert.True(t, flag)
}

func TestVolumeChangeEdges(t *testing.T) {
	// 20 observations are one short of the trailing window plus current bar
	short := make([]float64, 20)
	for i := range short {
		short[i] = 1_000_000
	}
	m, flag := volumeChange(short)
	assert.False(t, m.Valid)
	assert.False(t, flag)

	// zero trailing mean
	zeros := make([]float64, 21)
	zeros[20] = 500
	m, flag = volumeChange(zeros)
	assert.False(t, m.Valid)
	assert.False(t, flag)

	// 30 percent exactly does not raise the flag
	exact := make([]float64, 21)
	for i := range exact {
		exact[i] = 1_000_000
	}
	exact[20] = 1_300_000
	m, flag = volumeChange(exact)
	require.True(t, m.Valid)
	assert.InDelta(t, 30.0, m.Val, 1e-9)
	assert.False(t, flag)
}

func TestDecline3Days(t *testing.T) {
	assert.InDelta(t, 10.0, decline3Days([]float64{100, 98, 95, 90}), 1e-9)
	assert.InDelta(t, -5.0, decline3Days([]float64{100, 101, 103, 105}), 1e-9)
	assert.Equal(t, 0.0, decline3Days([]float64{100, 90, 80}))
}

func TestAllTimeHigh(t *testing.T) {
	long := []float64{80, 90, 100, 95}

	assert.True(t, allTimeHigh(100, long))
	assert.True(t, allTimeHigh(99.995, long), "within rounding tolerance")
	assert.False(t, allTimeHigh(99.98, long))
	assert.False(t, allTimeHigh(100, nil), "long fetch unavailable")
}

func TestBullishHistCross(t *testing.T) {
	assert.True(t, bullishHistCross([]float64{0.2, -0.5, 0.3}, 2, 0))
	assert.False(t, bullishHistCross([]float64{-0.2, 0.1, 0.3}, 2, 0))
	assert.False(t, bullishHistCross([]float64{0.3, -0.5}, 1, 1), "prior value inside warmup")
}

func TestMetricAt(t *testing.T) {
	values := []float64{0, 0, 0, 1.5, 2.5}

	m := metricAt(values, 4, 3)
	require.True(t, m.Valid)
	assert.Equal(t, 2.5, m.Val)

	assert.False(t, metricAt(values, 2, 3).Valid, "inside warmup")
	assert.False(t, metricAt(values, 5, 3).Valid, "out of range")
	assert.False(t, metricAt(values, -1, 0).Valid)
}

func TestComputeCrossover(t *testing.T) {
	// flat, a small dip, then a surge: SMA5 sits below SMA20 on the
	// penultimate bar and above it on the last
	closes := make([]float64, 21)
	for i := range closes {
		closes[i] = 100
	}
	closes[19] = 99
	closes[20] = 200

	s, err := NewSeries(newBars(closes...), 21)
	require.NoError(t, err)
	ind := Compute(s, nil)
	assert.True(t, ind.Crossover)

	// one bar earlier there is no crossover yet
	prev, err := NewSeries(newBars(closes[:20]...), 20)
	require.NoError(t, err)
	assert.False(t, Compute(prev, nil).Crossover)

	// a flat series never crosses
	flat, err := NewSeries(flatBars(40, 100), 21)
	require.NoError(t, err)
	assert.False(t, Compute(flat, nil).Crossover)
}

func TestComputeBollingerFlags(t *testing.T) {
	// accelerating closes keep widening the band spread and lift the middle
	closes := make([]float64, 43)
	for i := range closes {
		closes[i] = 100
	}
	closes[40] = 101
	closes[41] = 103
	closes[42] = 106

	s, err := NewSeries(newBars(closes...), 40)
	require.NoError(t, err)
	ind := Compute(s, nil)

	assert.True(t, ind.BBWidening)
	assert.True(t, ind.BBMiddleRising)
	assert.False(t, ind.BBLowerCross)
}

func TestComputeBollingerLowerCross(t *testing.T) {
	// a crash bar through the lower band followed by a recovery above it
	closes := make([]float64, 32)
	for i := range closes {
		closes[i] = 100
	}
	closes[30] = 80
	closes[31] = 100

	s, err := NewSeries(newBars(closes...), 30)
	require.NoError(t, err)
	ind := Compute(s, nil)

	assert.True(t, ind.BBLowerCross)
}

func TestComputeAvailabilityShortSeries(t *testing.T) {
	// 20 bars against a lowered gate: long-window indicators must come back
	// unavailable rather than zero
	s, err := NewSeries(newBars(seq(100, 0.5, 20)...), 20)
	require.NoError(t, err)
	ind := Compute(s, nil)

	assert.True(t, ind.RSI5.Valid)
	assert.True(t, ind.RSI14.Valid)
	assert.True(t, ind.SMA5.Valid)
	assert.True(t, ind.SMA20.Valid)
	assert.False(t, ind.SMA60.Valid)
	assert.False(t, ind.MACD.Valid)
	assert.False(t, ind.MACDSignal.Valid)
	assert.False(t, ind.MACDHist.Valid)
	assert.False(t, ind.MACDHistCross)
	assert.False(t, ind.Return22D.Valid, "needs 23 bars of history")
	assert.True(t, ind.Return5D.Valid)
}

func TestComputeOscillatorBounds(t *testing.T) {
	s, err := NewSeries(newBars(seq(100, 1.5, 60)...), 60)
	require.NoError(t, err)
	ind := Compute(s, nil)

	require.True(t, ind.WillR.Valid)
	require.True(t, ind.WillRPrev.Valid)
	assert.GreaterOrEqual(t, ind.WillR.Val, -100.0)
	assert.LessOrEqual(t, ind.WillR.Val, 0.0)

	require.True(t, ind.StochK.Valid)
	require.True(t, ind.StochD.Valid)
	assert.GreaterOrEqual(t, ind.StochK.Val, 0.0)
	assert.LessOrEqual(t, ind.StochK.Val, 100.0)
}

func TestComputeVolumeMeans(t *testing.T) {
	bars := flatBars(60, 100)
	for i := range bars {
		bars[i].Volume = 1_000_000
	}
	bars[59].Volume = 2_000_000

	s, err := NewSeries(bars, 60)
	require.NoError(t, err)
	ind := Compute(s, nil)

	assert.Equal(t, int64(2_000_000), ind.Volume)
	require.True(t, ind.Volume5MA.Valid)
	assert.InDelta(t, 1_200_000, ind.Volume5MA.Val, 1e-6)
	assert.True(t, ind.VolumeAbove5MA)
	require.True(t, ind.Volume20MA.Valid)
	assert.InDelta(t, 1_050_000, ind.Volume20MA.Val, 1e-6)
	assert.False(t, ind.VolumeBelow20MA)
}

func TestComputeDeterminism(t *testing.T) {
	s, err := NewSeries(newBars(seq(50, 0.7, 80)...), 60)
	require.NoError(t, err)

	first := Compute(s, s.Closes())
	second := Compute(s, s.Closes())
	assert.Equal(t, first, second)
}

func TestBuildChartSeries(t *testing.T) {
	s, err := NewSeries(flatBars(60, 100), 60)
	require.NoError(t, err)

	cs := BuildChartSeries(s)
	require.NotNil(t, cs)
	assert.Len(t, cs.Dates, 60)
	assert.Len(t, cs.Closes, 60)
	assert.Len(t, cs.SMA5, 60)
	assert.Len(t, cs.SMA60, 60)
	assert.InDelta(t, 100.0, cs.SMA20[59], 1e-9)
	assert.Equal(t, 0.0, cs.SMA60[58], "warmup prefix stays zero-filled")
}

// seq builds n closes stepping from start
func seq(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}
