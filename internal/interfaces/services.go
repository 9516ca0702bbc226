// Package interfaces defines service contracts for Tide
package interfaces

import (
	"context"

	"github.com/jlchn/tide/internal/models"
)

// WatchlistService resolves the instrument lists to scan
type WatchlistService interface {
	// List returns the watchlist for a market ("tw", "us", or "all")
	List(market string) ([]models.WatchlistEntry, error)

	// Markets returns the market identifiers the service knows about
	Markets() []string
}

// ScanService runs the per-instrument indicator pipeline over a watchlist
type ScanService interface {
	// Run executes the batch: fetch, compute, compose and enrich one record
	// per instrument. Per-instrument failures are isolated; the result holds
	// whatever completed.
	Run(ctx context.Context, market string, entries []models.WatchlistEntry) (*models.ScanResult, error)
}

// ReportService renders a scan result to its output sinks
type ReportService interface {
	// FormatText renders an aligned text table of the leading columns plus a
	// skip summary
	FormatText(result *models.ScanResult) string

	// WriteCSV serializes the full result table to a CSV file
	WriteCSV(result *models.ScanResult, path string) error

	// WriteXLSX serializes the full result table to a spreadsheet
	WriteXLSX(result *models.ScanResult, path string) error

	// WriteCharts renders price/SMA charts for the top instruments by short
	// momentum into dir, returning the files written
	WriteCharts(result *models.ScanResult, dir string) ([]string, error)
}
