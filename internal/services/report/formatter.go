package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jlchn/tide/internal/models"
)

// naMarker is the serialized form of an unavailable numeric field. Absence is
// never written as zero or an empty string.
const naMarker = "NaN"

type cellKind int

const (
	cellString cellKind = iota
	cellFloat
	cellInt
	cellBool
	cellNA
)

// Cell is one rendered table cell, typed so the spreadsheet sink can write
// native numbers while the text sinks share the same rendering rules.
type Cell struct {
	kind cellKind
	str  string
	f    float64
	n    int64
	b    bool
}

func stringCell(s string) Cell { return Cell{kind: cellString, str: s} }
func floatCell(f float64) Cell { return Cell{kind: cellFloat, f: f} }
func intCell(n int64) Cell     { return Cell{kind: cellInt, n: n} }
func boolCell(b bool) Cell     { return Cell{kind: cellBool, b: b} }
func naCell() Cell             { return Cell{kind: cellNA} }

func metricCell(m models.Metric) Cell {
	if !m.Valid {
		return naCell()
	}
	return floatCell(m.Val)
}

// String renders the cell for the CSV and text sinks.
func (c Cell) String() string {
	switch c.kind {
	case cellFloat:
		return strconv.FormatFloat(c.f, 'f', -1, 64)
	case cellInt:
		return strconv.FormatInt(c.n, 10)
	case cellBool:
		return strconv.FormatBool(c.b)
	case cellNA:
		return naMarker
	default:
		return c.str
	}
}

// Value returns the native value for the spreadsheet sink. Booleans serialize
// as strings; unavailable numerics keep the marker.
func (c Cell) Value() interface{} {
	switch c.kind {
	case cellFloat:
		return c.f
	case cellInt:
		return c.n
	case cellBool:
		return strconv.FormatBool(c.b)
	case cellNA:
		return naMarker
	default:
		return c.str
	}
}

// Column is one report column: a stable header key plus the cell extraction.
type Column struct {
	Key  string
	Cell func(r *models.OutputRecord) Cell
}

// Columns returns the full report column set in indicator-definition order:
// identity, indicators, composite signals, then the external blocks. Every
// sink renders exactly this table.
func Columns() []Column {
	return []Column{
		{"ticker", func(r *models.OutputRecord) Cell { return stringCell(r.Ticker) }},
		{"name", func(r *models.OutputRecord) Cell { return stringCell(r.Name) }},
		{"market", func(r *models.OutputRecord) Cell { return stringCell(r.Market) }},

		{"close", func(r *models.OutputRecord) Cell { return floatCell(r.Indicators.Close) }},
		{"daily_return", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.Return1D) }},
		{"week_return", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.Return5D) }},
		{"month_return", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.Return22D) }},
		{"higher_high", func(r *models.OutputRecord) Cell { return boolCell(r.Indicators.HigherHigh5D) }},
		{"ytd_return", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.YTDReturn) }},

		{"week_52_high", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.Week52High) }},
		{"week_52_low", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.Week52Low) }},
		{"pct_from_52_high", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.PctFrom52High) }},
		{"pct_from_52_low", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.PctFrom52Low) }},

		{"volume_change", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.VolumeChange) }},
		{"vc_30", func(r *models.OutputRecord) Cell { return boolCell(r.Indicators.VC30) }},

		{"rsi_5", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.RSI5) }},
		{"rsi_14", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.RSI14) }},

		{"macd", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.MACD) }},
		{"macd_signal", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.MACDSignal) }},
		{"macd_hist", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.MACDHist) }},
		{"macd_hist_cross", func(r *models.OutputRecord) Cell { return boolCell(r.Indicators.MACDHistCross) }},

		{"sma_5", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.SMA5) }},
		{"sma_20", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.SMA20) }},
		{"sma_60", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.SMA60) }},
		{"crossover", func(r *models.OutputRecord) Cell { return boolCell(r.Indicators.Crossover) }},

		{"bband_widening", func(r *models.OutputRecord) Cell { return boolCell(r.Indicators.BBWidening) }},
		{"bband_middle_rising", func(r *models.OutputRecord) Cell { return boolCell(r.Indicators.BBMiddleRising) }},
		{"bband_lower_cross", func(r *models.OutputRecord) Cell { return boolCell(r.Indicators.BBLowerCross) }},

		{"willr", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.WillR) }},
		{"willr_prev", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.WillRPrev) }},

		{"stoch_k", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.StochK) }},
		{"stoch_d", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.StochD) }},

		{"volume", func(r *models.OutputRecord) Cell { return intCell(r.Indicators.Volume) }},
		{"volume_5ma", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.Volume5MA) }},
		{"volume_above_5ma", func(r *models.OutputRecord) Cell { return boolCell(r.Indicators.VolumeAbove5MA) }},
		{"volume_20ma", func(r *models.OutputRecord) Cell { return metricCell(r.Indicators.Volume20MA) }},
		{"volume_below_20ma", func(r *models.OutputRecord) Cell { return boolCell(r.Indicators.VolumeBelow20MA) }},

		{"decline_3_days", func(r *models.OutputRecord) Cell { return floatCell(r.Indicators.Decline3D) }},
		{"all_time_high", func(r *models.OutputRecord) Cell { return boolCell(r.Indicators.AllTimeHigh) }},

		{"short_uptrend_momentum", func(r *models.OutputRecord) Cell { return boolCell(r.Signals.ShortUptrendMomentum) }},
		{"short_downtrend_signal", func(r *models.OutputRecord) Cell { return boolCell(r.Signals.ShortDowntrendSignal) }},
		{"institutional_selling", func(r *models.OutputRecord) Cell { return boolCell(r.Signals.InstitutionalSelling) }},
		{"composite_momentum_short", func(r *models.OutputRecord) Cell { return metricCell(r.Signals.CompositeMomentumShort) }},
		{"composite_momentum_long", func(r *models.OutputRecord) Cell { return metricCell(r.Signals.CompositeMomentumLong) }},

		{"eps", func(r *models.OutputRecord) Cell {
			if r.Fundamentals == nil {
				return naCell()
			}
			return metricCell(r.Fundamentals.EPS)
		}},
		{"pe", func(r *models.OutputRecord) Cell {
			if r.Fundamentals == nil {
				return naCell()
			}
			return metricCell(r.Fundamentals.PE)
		}},
		{"roe", func(r *models.OutputRecord) Cell {
			if r.Fundamentals == nil {
				return naCell()
			}
			return metricCell(r.Fundamentals.ROE)
		}},

		{"revenue_period", func(r *models.OutputRecord) Cell {
			if r.Revenue == nil {
				return stringCell("")
			}
			return stringCell(r.Revenue.Period)
		}},
		{"revenue_value", func(r *models.OutputRecord) Cell {
			if r.Revenue == nil {
				return naCell()
			}
			return metricCell(r.Revenue.Value)
		}},
		{"revenue_new_high", func(r *models.OutputRecord) Cell {
			if r.Revenue == nil {
				return boolCell(false)
			}
			return boolCell(r.Revenue.IsNewHigh)
		}},

		{"foreign_net", func(r *models.OutputRecord) Cell {
			if r.Institutional == nil {
				return naCell()
			}
			return intCell(r.Institutional.ForeignNet)
		}},
		{"trust_net", func(r *models.OutputRecord) Cell {
			if r.Institutional == nil {
				return naCell()
			}
			return intCell(r.Institutional.TrustNet)
		}},
		{"dealer_net", func(r *models.OutputRecord) Cell {
			if r.Institutional == nil {
				return naCell()
			}
			return intCell(r.Institutional.DealerNet)
		}},
		{"total_net", func(r *models.OutputRecord) Cell {
			if r.Institutional == nil {
				return naCell()
			}
			return intCell(r.Institutional.TotalNet)
		}},
	}
}

// FormatText renders the terminal summary: a run header, a table of the
// leading columns in watchlist order, and the skip list.
func (s *Service) FormatText(result *models.ScanResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Scan %s  market=%s  recorded=%d  skipped=%d  took=%s\n",
		result.RunID, result.Market, result.Recorded(), result.Skipped(),
		result.Duration.Round(time.Millisecond)))

	if len(result.Records) > 0 {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%-10s %-18s %10s %8s %8s %10s %10s %8s  %s\n",
			"TICKER", "NAME", "CLOSE", "1D%", "RSI14", "MACDHIST", "VOLCHG%", "SCORE", "SIGNALS"))
		for i := range result.Records {
			rec := &result.Records[i]
			sb.WriteString(fmt.Sprintf("%-10s %-18s %10.2f %8s %8s %10s %10s %8s  %s\n",
				rec.Ticker,
				truncate(rec.Name, 18),
				rec.Indicators.Close,
				fmtMetric(rec.Indicators.Return1D),
				fmtMetric(rec.Indicators.RSI14),
				fmtMetric(rec.Indicators.MACDHist),
				fmtMetric(rec.Indicators.VolumeChange),
				fmtMetric(rec.Signals.CompositeMomentumShort),
				signalFlags(rec.Signals),
			))
		}
	}

	if result.Skipped() > 0 {
		sb.WriteString("\nSkipped:\n")
		for _, st := range result.Statuses {
			if st.State != models.ScanStateSkipped {
				continue
			}
			line := fmt.Sprintf("  %-10s %s", st.Ticker, st.Reason)
			if st.Err != "" {
				line += ": " + st.Err
			}
			sb.WriteString(line + "\n")
		}
	}

	return sb.String()
}

func fmtMetric(m models.Metric) string {
	if !m.Valid {
		return naMarker
	}
	return strconv.FormatFloat(m.Val, 'f', 2, 64)
}

// signalFlags compresses the boolean signals into a short marker string: U
// for short uptrend momentum, D for short downtrend, S for institutional
// selling.
func signalFlags(sig models.Signals) string {
	var flags []string
	if sig.ShortUptrendMomentum {
		flags = append(flags, "U")
	}
	if sig.ShortDowntrendSignal {
		flags = append(flags, "D")
	}
	if sig.InstitutionalSelling {
		flags = append(flags, "S")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, "")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
