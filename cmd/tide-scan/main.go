package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jlchn/tide/internal/app"
	"github.com/jlchn/tide/internal/common"
	"github.com/jlchn/tide/internal/models"
)

func main() {
	var (
		configPath  = flag.String("config", "", "config file path (default: TIDE_CONFIG, then tide.toml next to the binary)")
		market      = flag.String("market", "", "market to scan: tw, us or all (default: config)")
		outputDir   = flag.String("out", "", "report output directory (default: config)")
		workers     = flag.Int("workers", 0, "concurrent instruments; 1 scans sequentially (default: config)")
		charts      = flag.Bool("charts", false, "render charts even when disabled in config")
		quiet       = flag.Bool("quiet", false, "suppress the banner and text table")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		common.LoadVersionFromFile()
		fmt.Println(common.GetFullVersion())
		return
	}

	a, err := app.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	if *workers > 0 {
		a.Config.Scan.Workers = *workers
	}
	if *outputDir != "" {
		a.Config.Scan.OutputDir = *outputDir
	}
	if *charts {
		a.Config.Report.Charts = true
	}

	markets := a.Config.Scan.Markets
	if m := strings.ToLower(strings.TrimSpace(*market)); m != "" {
		if m == "all" {
			markets = []string{models.MarketTW, models.MarketUS}
		} else {
			markets = []string{m}
		}
	}

	if !*quiet {
		common.PrintBanner(a.Config, a.Logger)
	}

	// Cancel in-flight fetches on interrupt; whatever completed still lands
	// in the reports.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	recorded, skipped, failures := 0, 0, 0

	for _, mkt := range markets {
		result, err := runMarket(ctx, a, mkt)
		if err != nil {
			a.Logger.Error().Str("market", mkt).Err(err).Msg("Market scan failed")
			failures++
			continue
		}
		recorded += result.Recorded()
		skipped += result.Skipped()

		if !*quiet {
			fmt.Println(a.ReportService.FormatText(result))
		}
	}

	if !*quiet {
		common.PrintSummaryBanner(a.Logger, recorded, skipped, time.Since(start))
	}

	if failures == len(markets) {
		os.Exit(1)
	}
}

// runMarket scans one market end to end: watchlist, scan, report files.
func runMarket(ctx context.Context, a *app.App, market string) (*models.ScanResult, error) {
	entries, err := a.WatchlistService.List(market)
	if err != nil {
		return nil, err
	}

	result, err := a.ScanService.Run(ctx, market, entries)
	if err != nil {
		return nil, err
	}

	if err := writeReports(a, result, market); err != nil {
		return nil, err
	}

	return result, nil
}

// writeReports writes the configured report files for one market's result
// into the output directory, named tide_<market>_<yyyymmdd>.
func writeReports(a *app.App, result *models.ScanResult, market string) error {
	outDir := a.Config.Scan.OutputDir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	base := fmt.Sprintf("tide_%s_%s", market, time.Now().Format("20060102"))

	for _, format := range a.Config.Report.Formats {
		switch strings.ToLower(strings.TrimSpace(format)) {
		case "csv":
			if err := a.ReportService.WriteCSV(result, filepath.Join(outDir, base+".csv")); err != nil {
				return err
			}
		case "xlsx":
			if err := a.ReportService.WriteXLSX(result, filepath.Join(outDir, base+".xlsx")); err != nil {
				return err
			}
		default:
			a.Logger.Warn().Str("format", format).Msg("Unknown report format")
		}
	}

	if a.Config.Report.Charts {
		if _, err := a.ReportService.WriteCharts(result, filepath.Join(outDir, base+"_charts")); err != nil {
			a.Logger.Warn().Err(err).Msg("Chart rendering failed")
		}
	}

	return nil
}
