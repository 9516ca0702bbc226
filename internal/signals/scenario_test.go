package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlchn/tide/internal/models"
)

// spikeFixture builds 260 bars of flat price at 100 with a 5 percent rise
// spread over the last 3 bars and a doubled volume on the final bar
func spikeFixture() []models.Bar {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, 260)
	for i := range bars {
		close := 100.0
		switch i {
		case 257:
			close = 101.0
		case 258:
			close = 103.0
		case 259:
			close = 105.0
		}
		bars[i] = models.Bar{
			Date:     base.AddDate(0, 0, i),
			Open:     close,
			High:     close + 1,
			Low:      close - 1,
			Close:    close,
			AdjClose: close,
			Volume:   1_000_000,
		}
	}
	bars[259].Volume = 2_000_000
	return bars
}

func TestScenarioFlatSeriesWithSpike(t *testing.T) {
	s, err := NewSeries(spikeFixture(), 0)
	require.NoError(t, err)

	ind := Compute(s, s.Closes())

	assert.Equal(t, 105.0, ind.Close)

	require.True(t, ind.Return1D.Valid)
	assert.InDelta(t, (105.0/103.0-1)*100, ind.Return1D.Val, 1e-9)
	require.True(t, ind.Return5D.Valid)
	assert.InDelta(t, 5.0, ind.Return5D.Val, 1e-9)
	require.True(t, ind.Return22D.Valid)
	assert.InDelta(t, 5.0, ind.Return22D.Val, 1e-9)

	assert.True(t, ind.HigherHigh5D)
	require.True(t, ind.YTDReturn.Valid)
	assert.InDelta(t, 5.0, ind.YTDReturn.Val, 1e-9)

	require.True(t, ind.Week52High.Valid)
	assert.Equal(t, 106.0, ind.Week52High.Val)
	require.True(t, ind.Week52Low.Valid)
	assert.Equal(t, 99.0, ind.Week52Low.Val)
	assert.InDelta(t, -0.94, ind.PctFrom52High.Val, 1e-9)
	assert.InDelta(t, 6.06, ind.PctFrom52Low.Val, 1e-9)

	// the doubled final volume against a flat trailing mean
	require.True(t, ind.VolumeChange.Valid)
	assert.InDelta(t, 100.0, ind.VolumeChange.Val, 1e-9)
	assert.True(t, ind.VC30)

	// every price change in the series is a gain, so Wilder smoothing
	// carries zero average loss into the final bar
	require.True(t, ind.RSI14.Valid)
	assert.InDelta(t, 100.0, ind.RSI14.Val, 1e-6)
	require.True(t, ind.RSI5.Valid)
	assert.InDelta(t, 100.0, ind.RSI5.Val, 1e-6)

	require.True(t, ind.MACDHist.Valid)
	assert.Greater(t, ind.MACDHist.Val, 0.0)
	assert.False(t, ind.MACDHistCross, "histogram turned positive before the final bar")

	require.True(t, ind.SMA5.Valid)
	assert.InDelta(t, 101.8, ind.SMA5.Val, 1e-9)
	require.True(t, ind.SMA20.Valid)
	assert.InDelta(t, 100.45, ind.SMA20.Val, 1e-9)
	require.True(t, ind.SMA60.Valid)
	assert.InDelta(t, 100.15, ind.SMA60.Val, 1e-9)
	assert.False(t, ind.Crossover, "SMA5 was already above SMA20 a bar earlier")

	assert.True(t, ind.BBWidening)
	assert.True(t, ind.BBMiddleRising)
	assert.False(t, ind.BBLowerCross)

	assert.Equal(t, int64(2_000_000), ind.Volume)
	assert.True(t, ind.VolumeAbove5MA)
	assert.False(t, ind.VolumeBelow20MA)

	assert.InDelta(t, -5.0, ind.Decline3D, 1e-9)
	assert.True(t, ind.AllTimeHigh)

	sig := Compose(ind)
	assert.True(t, sig.ShortUptrendMomentum)
	assert.False(t, sig.ShortDowntrendSignal)
	assert.False(t, sig.InstitutionalSelling)
	require.True(t, sig.CompositeMomentumShort.Valid)
	assert.Greater(t, sig.CompositeMomentumShort.Val, 0.0)
}

func TestScenarioCrashSeries(t *testing.T) {
	// flat price with a sharp 3-day slide and heavy final volume
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, 120)
	for i := range bars {
		close := 100.0
		switch i {
		case 117:
			close = 97.0
		case 118:
			close = 94.0
		case 119:
			close = 91.0
		}
		bars[i] = models.Bar{
			Date:   base.AddDate(0, 0, i),
			Open:   close,
			High:   close + 1,
			Low:    close - 1,
			Close:  close,
			Volume: 1_000_000,
		}
	}
	bars[119].Volume = 3_000_000

	s, err := NewSeries(bars, 0)
	require.NoError(t, err)
	ind := Compute(s, nil)

	assert.InDelta(t, 9.0, ind.Decline3D, 1e-9)
	assert.False(t, ind.AllTimeHigh, "no long fetch supplied")

	sig := Compose(ind)
	assert.True(t, sig.InstitutionalSelling)
	assert.False(t, sig.ShortUptrendMomentum)
}
