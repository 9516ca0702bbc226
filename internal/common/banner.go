package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner to stderr.
func PrintBanner(config *Config, logger *Logger) {
	version := GetVersion()
	build := GetBuild()
	commit := GetGitCommit()
	markets := strings.Join(config.Scan.Markets, ", ")

	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 70
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	art := []string{
		` 88888888888 8888888 8888888b.  8888888888`,
		`     888       888   888  "Y88b 888`,
		`     888       888   888    888 888`,
		`     888       888   888    888 8888888`,
		`     888       888   888    888 888`,
		`     888       888   888    888 888`,
		`     888       888   888  .d88P 888`,
		`     888     8888888 8888888P"  8888888888`,
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "\n")
	for _, line := range art {
		fmt.Fprintf(os.Stderr, "%s%s%s\n", textColor, line, banner.ColorReset)
	}
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s  Watchlist Momentum & Signal Scanner%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "\n")

	kvPad := 16
	kvLines := [][2]string{
		{"Version", version},
		{"Build", build},
		{"Commit", commit},
		{"Environment", config.Environment},
		{"Markets", markets},
		{"Output", config.Scan.OutputDir},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(os.Stderr, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "\n")

	logger.Info().
		Str("version", version).
		Str("build", build).
		Str("commit", commit).
		Str("environment", config.Environment).
		Str("markets", markets).
		Str("output_dir", config.Scan.OutputDir).
		Msg("Application started")
}

// PrintSummaryBanner displays the end-of-run summary banner to stderr.
func PrintSummaryBanner(logger *Logger, recorded, skipped int, elapsed time.Duration) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 42
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "%s  TIDE — SCAN COMPLETE%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(os.Stderr, "%s  %d recorded, %d skipped in %s%s\n",
		textColor, recorded, skipped, elapsed.Round(time.Millisecond), banner.ColorReset)
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "\n")

	logger.Info().
		Int("recorded", recorded).
		Int("skipped", skipped).
		Dur("elapsed", elapsed).
		Msg("Scan complete")
}
