// Package models defines data structures for Tide
package models

import (
	"time"
)

// Bar represents a single day's price data
type Bar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
}

// Fundamentals holds point-in-time fundamental scalars for an instrument.
// Each field is independently optional; a provider that omits one leaves it invalid.
type Fundamentals struct {
	EPS Metric `json:"eps"`
	PE  Metric `json:"pe"`
	ROE Metric `json:"roe"` // percent, rounded to 2 decimals
}

// RevenueReport holds the latest reported revenue period for an instrument.
// Taiwan listings report monthly in 100-million units; US listings report
// quarterly in billions. Value is already scaled for the instrument's market.
type RevenueReport struct {
	Period    string `json:"period"` // e.g. "2025-07" or "2Q2025"
	Value     Metric `json:"value"`
	IsNewHigh bool   `json:"is_new_high"`
}

// InstitutionalFlows holds one trading day's three-institution net-buy figures
// for a Taiwan listing, in shares. Negative values are net selling.
type InstitutionalFlows struct {
	ForeignNet int64     `json:"foreign_net"` // foreign investors excluding foreign dealers
	TrustNet   int64     `json:"trust_net"`   // investment trusts
	DealerNet  int64     `json:"dealer_net"`  // dealer proprietary trading
	TotalNet   int64     `json:"total_net"`
	Date       time.Time `json:"date"`
}
