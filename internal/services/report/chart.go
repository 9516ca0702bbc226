package report

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/jlchn/tide/internal/models"
)

// chartTail caps how many trailing sessions a chart shows.
const chartTail = 120

// WriteCharts renders a price/SMA PNG per leading instrument into dir,
// ranked by the short momentum score. Instruments without a retained series
// are skipped; a single failed render is logged and does not fail the batch.
func (s *Service) WriteCharts(result *models.ScanResult, dir string) ([]string, error) {
	ranked := make([]*models.OutputRecord, 0, len(result.Records))
	for i := range result.Records {
		rec := &result.Records[i]
		if rec.Chart != nil && len(rec.Chart.Dates) >= 2 {
			ranked = append(ranked, rec)
		}
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return chartRank(ranked[i]) > chartRank(ranked[j])
	})

	top := s.cfg.Report.ChartTop
	if top <= 0 {
		top = 8
	}
	if len(ranked) > top {
		ranked = ranked[:top]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}

	var written []string
	for _, rec := range ranked {
		png, err := renderPriceChart(rec)
		if err != nil {
			s.logger.Warn().Str("ticker", rec.Ticker).Err(err).Msg("Chart render failed")
			continue
		}
		path := filepath.Join(dir, chartFileName(rec.Ticker))
		if err := os.WriteFile(path, png, 0o644); err != nil {
			s.logger.Warn().Str("ticker", rec.Ticker).Err(err).Msg("Chart write failed")
			continue
		}
		written = append(written, path)
	}

	s.logger.Info().
		Int("charts", len(written)).
		Str("dir", dir).
		Msg("Charts written")

	return written, nil
}

// chartRank orders records for chart selection. Records without a short
// momentum score sort last.
func chartRank(rec *models.OutputRecord) float64 {
	if !rec.Signals.CompositeMomentumShort.Valid {
		return math.Inf(-1)
	}
	return rec.Signals.CompositeMomentumShort.Val
}

// renderPriceChart renders the close series with its three moving averages
// over the trailing chart window. Returns raw PNG bytes.
func renderPriceChart(rec *models.OutputRecord) ([]byte, error) {
	cs := rec.Chart
	if cs == nil || len(cs.Dates) < 2 {
		return nil, fmt.Errorf("no chart series for %s", rec.Ticker)
	}

	start := 0
	if len(cs.Dates) > chartTail {
		start = len(cs.Dates) - chartTail
	}
	dates := cs.Dates[start:]
	closes := cs.Closes[start:]

	series := []chart.Series{
		chart.TimeSeries{
			Name: "Close",
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
				StrokeWidth: 2.5,
			},
			XValues: dates,
			YValues: closes,
		},
	}
	if sma := smaSeries("SMA5", "f59e0b", nil, dates, cs.SMA5[start:]); sma != nil {
		series = append(series, *sma)
	}
	if sma := smaSeries("SMA20", "10b981", nil, dates, cs.SMA20[start:]); sma != nil {
		series = append(series, *sma)
	}
	if sma := smaSeries("SMA60", "9ca3af", []float64{5.0, 3.0}, dates, cs.SMA60[start:]); sma != nil {
		series = append(series, *sma)
	}

	// Title sticks to the ticker; the default chart font has no CJK glyphs.
	graph := chart.Chart{
		Title:  rec.Ticker,
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 02")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: series,
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}

// smaSeries builds a moving-average overlay, dropping the leading warmup
// where the average has not formed yet. Returns nil when fewer than two
// formed points remain.
func smaSeries(name, hex string, dash []float64, dates []time.Time, values []float64) *chart.TimeSeries {
	first := 0
	for first < len(values) && values[first] == 0 {
		first++
	}
	if len(values)-first < 2 {
		return nil
	}
	return &chart.TimeSeries{
		Name: name,
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex(hex),
			StrokeWidth:     1.5,
			StrokeDashArray: dash,
		},
		XValues: dates[first:],
		YValues: values[first:],
	}
}

func chartFileName(ticker string) string {
	name := strings.TrimPrefix(ticker, "^")
	name = strings.ReplaceAll(name, "/", "-")
	return name + ".png"
}
