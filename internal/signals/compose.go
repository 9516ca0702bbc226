package signals

import (
	"github.com/jlchn/tide/internal/models"
)

// Compose builds the composite signals from an indicator set. Booleans are a
// strict AND of their sub-conditions; an unavailable input makes the whole
// signal false. The momentum scores are unnormalized sums intended for
// ranking across instruments, unavailable when any term is.
func Compose(ind models.IndicatorSet) models.Signals {
	stochBull := ind.StochK.Valid && ind.StochD.Valid && ind.StochK.Val > ind.StochD.Val
	stochBear := ind.StochK.Valid && ind.StochD.Valid && ind.StochK.Val < ind.StochD.Val
	histPositive := ind.MACDHist.Valid && ind.MACDHist.Val > 0
	histNegative := ind.MACDHist.Valid && ind.MACDHist.Val < 0

	var sig models.Signals

	sig.ShortUptrendMomentum = ind.SMA5.Valid && ind.Close > ind.SMA5.Val &&
		ind.VolumeAbove5MA &&
		stochBull &&
		ind.RSI14.Valid && ind.RSI14.Val > 50 &&
		histPositive

	sig.ShortDowntrendSignal = ind.SMA5.Valid && ind.Close < ind.SMA5.Val &&
		ind.VolumeBelow20MA &&
		stochBear &&
		histNegative

	sig.InstitutionalSelling = ind.SMA20.Valid && ind.Close < ind.SMA20.Val &&
		ind.VolumeAbove5MA &&
		ind.Decline3D > 5

	sig.CompositeMomentumShort = momentumScore(ind.RSI5, ind.MACDHist, ind.MACDHistCross, ind.SMA5, ind.SMA20)
	sig.CompositeMomentumLong = momentumScore(ind.RSI14, ind.MACDHist, ind.MACDHistCross, ind.SMA20, ind.SMA60)

	return sig
}

// momentumScore is (rsi - 50) + (hist - cross) + (fast - slow) / slow * 100
// with the histogram-cross flag cast to 1 or 0. Unavailable when any input
// is, or when the slow average is non-positive.
func momentumScore(rsi, hist models.Metric, histCross bool, fast, slow models.Metric) models.Metric {
	if !rsi.Valid || !hist.Valid || !fast.Valid || !slow.Valid || slow.Val <= 0 {
		return models.Metric{}
	}
	cross := 0.0
	if histCross {
		cross = 1.0
	}
	return models.MetricOf((rsi.Val - 50) + (hist.Val - cross) + (fast.Val-slow.Val)/slow.Val*100)
}
