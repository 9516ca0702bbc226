package signals

import (
	"time"

	talib "github.com/markcheno/go-talib"

	"github.com/jlchn/tide/internal/models"
)

// Indicator parameters. The warmup index of each talib output follows from
// these: an output slice is zero-filled until its lookback is satisfied, so
// availability is decided by index, never by testing a value against zero.
const (
	rsiShortPeriod   = 5
	rsiLongPeriod    = 14
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
	bbandPeriod      = 20
	bbandWidth       = 2.0
	willRPeriod      = 14
	stochFastK       = 5
	stochSlowK       = 3
	stochSlowD       = 3
	smaShortPeriod   = 5
	smaMidPeriod     = 20
	smaLongPeriod    = 60
	volumeShortMA    = 5
	volumeLongMA     = 20

	// all-time-high tolerance for float/rounding equality
	athTolerance = 0.9999
)

// Compute derives the full indicator set from a cleaned series. longCloses is
// the closing-price array of the separate long-window fetch used for the
// all-time-high check; pass nil when that fetch failed and the flag stays
// false. Compute is pure: identical inputs produce identical outputs.
func Compute(s *Series, longCloses []float64) models.IndicatorSet {
	closes := s.Closes()
	highs := s.Highs()
	lows := s.Lows()
	volumes := s.Volumes()
	last := s.Len() - 1

	ind := models.IndicatorSet{Close: closes[last]}

	ind.Return1D = trailingReturn(closes, 1)
	ind.Return5D = trailingReturn(closes, 5)
	ind.Return22D = trailingReturn(closes, 22)
	ind.HigherHigh5D = higherHigh(closes, 5)
	ind.YTDReturn = ytdReturn(s.Bars())

	hi, lo := rangeExtremes(highs, lows)
	ind.Week52High = models.MetricOf(hi)
	ind.Week52Low = models.MetricOf(lo)
	ind.PctFrom52High = pctFrom(ind.Close, hi)
	ind.PctFrom52Low = pctFrom(ind.Close, lo)

	ind.VolumeChange, ind.VC30 = volumeChange(volumes)

	ind.RSI5 = metricAt(talib.Rsi(closes, rsiShortPeriod), last, rsiShortPeriod)
	ind.RSI14 = metricAt(talib.Rsi(closes, rsiLongPeriod), last, rsiLongPeriod)

	macdLine, signalLine, histLine := talib.Macd(closes, macdFastPeriod, macdSlowPeriod, macdSignalPeriod)
	macdFirst := macdSlowPeriod + macdSignalPeriod - 2
	ind.MACD = metricAt(macdLine, last, macdFirst)
	ind.MACDSignal = metricAt(signalLine, last, macdFirst)
	ind.MACDHist = metricAt(histLine, last, macdFirst)
	ind.MACDHistCross = bullishHistCross(histLine, last, macdFirst)

	sma5 := talib.Sma(closes, smaShortPeriod)
	sma20 := talib.Sma(closes, smaMidPeriod)
	sma60 := talib.Sma(closes, smaLongPeriod)
	ind.SMA5 = metricAt(sma5, last, smaShortPeriod-1)
	ind.SMA20 = metricAt(sma20, last, smaMidPeriod-1)
	ind.SMA60 = metricAt(sma60, last, smaLongPeriod-1)
	if last >= smaMidPeriod {
		ind.Crossover = sma20[last-1]-sma5[last-1] > 0 && sma5[last]-sma20[last] > 0
	}

	upper, middle, lower := talib.BBands(closes, bbandPeriod, bbandWidth, bbandWidth, talib.SMA)
	bbFirst := bbandPeriod - 1
	if last >= bbFirst+2 {
		w0 := upper[last-2] - lower[last-2]
		w1 := upper[last-1] - lower[last-1]
		w2 := upper[last] - lower[last]
		ind.BBWidening = w2 > w1 && w1 > w0
	}
	if last >= bbFirst+1 {
		ind.BBMiddleRising = middle[last] > middle[last-1]
		ind.BBLowerCross = closes[last] > lower[last] && closes[last-1] < lower[last-1]
	}

	willR := talib.WillR(highs, lows, closes, willRPeriod)
	ind.WillR = metricAt(willR, last, willRPeriod-1)
	ind.WillRPrev = metricAt(willR, last-1, willRPeriod-1)

	slowK, slowD := talib.Stoch(highs, lows, closes, stochFastK, stochSlowK, talib.SMA, stochSlowD, talib.SMA)
	stochFirst := stochFastK + stochSlowK + stochSlowD - 3
	ind.StochK = metricAt(slowK, last, stochFirst)
	ind.StochD = metricAt(slowD, last, stochFirst)

	ind.Volume = s.LastBar().Volume
	ind.Volume5MA = metricAt(talib.Sma(volumes, volumeShortMA), last, volumeShortMA-1)
	ind.Volume20MA = metricAt(talib.Sma(volumes, volumeLongMA), last, volumeLongMA-1)
	ind.VolumeAbove5MA = ind.Volume5MA.Valid && volumes[last] > ind.Volume5MA.Val
	ind.VolumeBelow20MA = ind.Volume20MA.Valid && volumes[last] < ind.Volume20MA.Val

	ind.Decline3D = decline3Days(closes)
	ind.AllTimeHigh = allTimeHigh(ind.Close, longCloses)

	return ind
}

// BuildChartSeries extracts the plotting view consumed by the report charts.
// SMA arrays keep their zero-filled warmup prefix; the renderer clips each
// overlay at its first valid index.
func BuildChartSeries(s *Series) *models.ChartSeries {
	bars := s.Bars()
	closes := s.Closes()
	dates := make([]time.Time, len(bars))
	for i, b := range bars {
		dates[i] = b.Date
	}
	return &models.ChartSeries{
		Dates:  dates,
		Closes: closes,
		SMA5:   talib.Sma(closes, smaShortPeriod),
		SMA20:  talib.Sma(closes, smaMidPeriod),
		SMA60:  talib.Sma(closes, smaLongPeriod),
	}
}

// bullishHistCross reports a negative-to-positive histogram flip at idx.
// Both idx and idx-1 must sit past the warmup.
func bullishHistCross(hist []float64, idx, firstValid int) bool {
	if idx-1 < firstValid || idx >= len(hist) {
		return false
	}
	return hist[idx] > 0 && hist[idx-1] < 0
}

// metricAt lifts values[idx] into a Metric, invalid when idx precedes the
// output's first valid index or falls outside the slice
func metricAt(values []float64, idx, firstValid int) models.Metric {
	if idx < firstValid || idx < 0 || idx >= len(values) {
		return models.Metric{}
	}
	return models.MetricOf(values[idx])
}

// trailingReturn is the n-day percentage change of close, unavailable when
// fewer than n+1 bars exist
func trailingReturn(closes []float64, days int) models.Metric {
	n := len(closes)
	if n < days+1 {
		return models.Metric{}
	}
	ref := closes[n-1-days]
	if ref <= 0 {
		return models.Metric{}
	}
	return models.MetricOf((closes[n-1]/ref - 1) * 100)
}

// higherHigh reports whether the max close of the last window bars exceeds
// the max close of everything before them
func higherHigh(closes []float64, window int) bool {
	n := len(closes)
	if n <= window {
		return false
	}
	return maxOf(closes[n-window:]) > maxOf(closes[:n-window])
}

// ytdReturn is the percentage change from the first close on or after
// January 1 of the final bar's year to the final close. Zero when the YTD
// window holds fewer than 2 observations.
func ytdReturn(bars []models.Bar) models.Metric {
	lastDate := bars[len(bars)-1].Date
	jan1 := time.Date(lastDate.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	start := -1
	for i, b := range bars {
		if !b.Date.Before(jan1) {
			start = i
			break
		}
	}
	if start < 0 || len(bars)-start < 2 {
		return models.MetricOf(0)
	}
	first := bars[start].Close
	if first <= 0 {
		return models.MetricOf(0)
	}
	return models.MetricOf((bars[len(bars)-1].Close/first - 1) * 100)
}

// pctFrom is the percentage distance from reference to close, zero when the
// reference is non-positive
func pctFrom(close, reference float64) models.Metric {
	if reference <= 0 {
		return models.MetricOf(0)
	}
	return models.MetricOf((close - reference) / reference * 100).Round(2)
}

// volumeChange compares the last volume against the mean of the trailing 20
// bars excluding the last. Needs 21 observations. The flag is true when the
// change exceeds 30 percent.
func volumeChange(volumes []float64) (models.Metric, bool) {
	n := len(volumes)
	if n < volumeLongMA+1 {
		return models.Metric{}, false
	}
	sum := 0.0
	for _, v := range volumes[n-volumeLongMA-1 : n-1] {
		sum += v
	}
	mean := sum / volumeLongMA
	if mean <= 0 {
		return models.Metric{}, false
	}
	m := models.MetricOf((volumes[n-1]/mean - 1) * 100).Round(2)
	return m, m.Valid && m.Val > 30
}

// decline3Days is the percentage decline from three sessions ago to the last
// close, positive when the price fell. Zero when under 4 bars.
func decline3Days(closes []float64) float64 {
	n := len(closes)
	if n < 4 {
		return 0
	}
	ref := closes[n-4]
	if ref <= 0 {
		return 0
	}
	return (ref - closes[n-1]) / ref * 100
}

// allTimeHigh reports whether the close sits at the maximum of the long
// fetch window, with a small tolerance for rounding. False when the long
// fetch produced nothing.
func allTimeHigh(close float64, longCloses []float64) bool {
	if len(longCloses) == 0 {
		return false
	}
	max := maxOf(longCloses)
	return max > 0 && close >= athTolerance*max
}

func rangeExtremes(highs, lows []float64) (float64, float64) {
	hi, lo := highs[0], lows[0]
	for i := 1; i < len(highs); i++ {
		if highs[i] > hi {
			hi = highs[i]
		}
		if lows[i] < lo {
			lo = lows[i]
		}
	}
	return hi, lo
}

func maxOf(values []float64) float64 {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
