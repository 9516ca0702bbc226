// Package interfaces defines service contracts for Tide
package interfaces

import (
	"context"
	"time"

	"github.com/jlchn/tide/internal/models"
)

// MarketDataClient supplies daily OHLCV history for a provider symbol.
type MarketDataClient interface {
	// GetDailyBars retrieves daily bars for the date range, oldest first.
	// An empty slice with a nil error means the provider had no data for the
	// symbol in that range.
	GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
}

// FundamentalsClient supplies point-in-time fundamental scalars.
type FundamentalsClient interface {
	// GetFundamentals retrieves EPS, P/E and ROE for a symbol.
	GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
}

// RevenueClient supplies the latest reported revenue period for a symbol.
type RevenueClient interface {
	// GetRevenue retrieves the latest revenue period, scaled for the
	// instrument's market, with a new-high flag against the reported history.
	GetRevenue(ctx context.Context, symbol string) (*models.RevenueReport, error)
}

// InstitutionalClient supplies three-institution net-buy figures for Taiwan
// listings.
type InstitutionalClient interface {
	// LatestFlows retrieves the most recent trading day's flows on or before
	// asOf, keyed by stock code, along with the trading date used.
	LatestFlows(ctx context.Context, asOf time.Time) (map[string]models.InstitutionalFlows, time.Time, error)
}
