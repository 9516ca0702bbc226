package models

import (
	"time"
)

// IndicatorSet holds every technical indicator derived from one instrument's
// bar series. Fields follow indicator-definition order. Numeric fields whose
// trailing window was not satisfied are invalid Metrics, never zeros; boolean
// fields default to false when any of their inputs were unavailable.
type IndicatorSet struct {
	Close        float64 `json:"close"`
	Return1D     Metric  `json:"daily_return"`
	Return5D     Metric  `json:"week_return"`
	Return22D    Metric  `json:"month_return"`
	HigherHigh5D bool    `json:"higher_high"`
	YTDReturn    Metric  `json:"ytd_return"`

	Week52High    Metric `json:"week_52_high"`
	Week52Low     Metric `json:"week_52_low"`
	PctFrom52High Metric `json:"pct_from_52_high"`
	PctFrom52Low  Metric `json:"pct_from_52_low"`

	VolumeChange Metric `json:"volume_change"`
	VC30         bool   `json:"vc_30"`

	RSI5  Metric `json:"rsi_5"`
	RSI14 Metric `json:"rsi_14"`

	MACD          Metric `json:"macd"`
	MACDSignal    Metric `json:"macd_signal"`
	MACDHist      Metric `json:"macd_hist"`
	MACDHistCross bool   `json:"macd_hist_cross"` // histogram crossed from negative to positive

	SMA5      Metric `json:"sma_5"`
	SMA20     Metric `json:"sma_20"`
	SMA60     Metric `json:"sma_60"`
	Crossover bool   `json:"crossover"` // SMA5 crossed from below to above SMA20

	BBWidening     bool `json:"bband_widening"`      // band spread widened on both of the last two comparisons
	BBMiddleRising bool `json:"bband_middle_rising"` // middle band rose versus the prior bar
	BBLowerCross   bool `json:"bband_lower_cross"`   // close crossed back above the lower band

	WillR     Metric `json:"willr"`
	WillRPrev Metric `json:"willr_prev"`

	StochK Metric `json:"stoch_k"`
	StochD Metric `json:"stoch_d"`

	Volume          int64  `json:"volume"` // last bar's volume
	Volume5MA       Metric `json:"volume_5ma"`
	VolumeAbove5MA  bool   `json:"volume_above_5ma"`
	Volume20MA      Metric `json:"volume_20ma"`
	VolumeBelow20MA bool   `json:"volume_below_20ma"`

	Decline3D   float64 `json:"decline_3_days"` // percent decline over the last 3 sessions, 0 when under 4 bars
	AllTimeHigh bool    `json:"all_time_high"`
}

// Signals holds the composite boolean signals and momentum scores built from
// an IndicatorSet. Composites use strict AND semantics: any unavailable input
// makes the whole signal false.
type Signals struct {
	ShortUptrendMomentum bool `json:"short_uptrend_momentum"`
	ShortDowntrendSignal bool `json:"short_downtrend_signal"`
	InstitutionalSelling bool `json:"institutional_selling"`

	CompositeMomentumShort Metric `json:"composite_momentum_short"`
	CompositeMomentumLong  Metric `json:"composite_momentum_long"`
}

// ChartSeries is the trailing slice of an instrument's series retained for
// chart rendering after the bar series itself has been discarded.
type ChartSeries struct {
	Dates  []time.Time `json:"dates"`
	Closes []float64   `json:"closes"`
	SMA5   []float64   `json:"sma_5"`
	SMA20  []float64   `json:"sma_20"`
	SMA60  []float64   `json:"sma_60"`
}

// OutputRecord is the flat per-instrument result: identity, indicators,
// composite signals, and the externally sourced blocks. Each external block
// is nil when its provider was unavailable; a missing block never blocks the
// rest of the record.
type OutputRecord struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Market string `json:"market"`

	Indicators IndicatorSet `json:"indicators"`
	Signals    Signals      `json:"signals"`

	Fundamentals  *Fundamentals       `json:"fundamentals,omitempty"`
	Revenue       *RevenueReport      `json:"revenue,omitempty"`
	Institutional *InstitutionalFlows `json:"institutional,omitempty"`

	Chart *ChartSeries `json:"-"`
}

// ScanState tracks an instrument through the batch pipeline.
type ScanState string

const (
	ScanStatePending   ScanState = "pending"
	ScanStateFetching  ScanState = "fetching"
	ScanStateComputing ScanState = "computing"
	ScanStateRecorded  ScanState = "recorded"
	ScanStateSkipped   ScanState = "skipped"
)

// SkipReason classifies why an instrument produced no record.
type SkipReason string

const (
	SkipFetchFailure        SkipReason = "fetch_failure"
	SkipNoData              SkipReason = "no_data"
	SkipInsufficientHistory SkipReason = "insufficient_history"
	SkipInternalError       SkipReason = "internal_error" // recovered defect in the pipeline itself
)

// ScanStatus records the terminal state of one instrument in a batch run.
type ScanStatus struct {
	Ticker string     `json:"ticker"`
	State  ScanState  `json:"state"`
	Reason SkipReason `json:"reason,omitempty"`
	Err    string     `json:"error,omitempty"`
}

// ScanResult is the outcome of one batch run: records for every instrument
// that completed, in watchlist order, plus per-instrument statuses.
type ScanResult struct {
	RunID     string         `json:"run_id"`
	Market    string         `json:"market"`
	Records   []OutputRecord `json:"records"`
	Statuses  []ScanStatus   `json:"statuses"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// Recorded returns the number of instruments that produced a record.
func (r *ScanResult) Recorded() int {
	return len(r.Records)
}

// Skipped returns the number of instruments that were skipped.
func (r *ScanResult) Skipped() int {
	n := 0
	for _, st := range r.Statuses {
		if st.State == ScanStateSkipped {
			n++
		}
	}
	return n
}
