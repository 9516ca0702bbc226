package models

import "strings"

// Market identifiers for watchlist entries.
const (
	MarketTW = "tw"
	MarketUS = "us"
)

// WatchlistEntry identifies one instrument to scan. Taiwan codes are bare
// numeric strings ("2330"); US codes are plain tickers ("AAPL"); index
// symbols carry their caret prefix ("^TWII").
type WatchlistEntry struct {
	Code   string `json:"code" toml:"code"`
	Name   string `json:"name" toml:"name"`
	Market string `json:"market" toml:"-"`
}

// IsIndex reports whether the entry is a market index rather than a listed
// security. Index symbols are fetched as-is and carry no institutional,
// fundamental or revenue data.
func (e WatchlistEntry) IsIndex() bool {
	return strings.HasPrefix(e.Code, "^")
}

// CandidateSymbols returns provider symbols to try in order. Taiwan listings
// probe the TWSE suffix first and fall back to the OTC suffix when the primary
// fetch comes back empty. Codes that already carry a suffix are used as-is.
func (e WatchlistEntry) CandidateSymbols() []string {
	if e.Market == MarketTW && !e.IsIndex() && !strings.Contains(e.Code, ".") {
		return []string{e.Code + ".TW", e.Code + ".TWO"}
	}
	return []string{e.Code}
}
