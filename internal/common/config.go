// Package common provides shared utilities for Tide
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/jlchn/tide/internal/models"
)

// Config holds all configuration for Tide
type Config struct {
	Environment string          `toml:"environment"`
	Scan        ScanConfig      `toml:"scan"`
	Watchlist   WatchlistConfig `toml:"watchlist"`
	Clients     ClientsConfig   `toml:"clients"`
	Report      ReportConfig    `toml:"report"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ScanConfig holds batch-run configuration
type ScanConfig struct {
	Markets           []string `toml:"markets"` // markets to scan: "tw", "us"
	Workers           int      `toml:"workers"` // bounded worker pool size; 1 = strictly sequential
	LookbackDays      int      `toml:"lookback_days"`
	LongLookbackYears int      `toml:"long_lookback_years"` // all-time-high window
	MinBars           int      `toml:"min_bars"`            // minimum bars required for indicator computation
	OutputDir         string   `toml:"output_dir"`
}

// WatchlistConfig holds per-market instrument lists. Empty lists fall back to
// the built-in defaults.
type WatchlistConfig struct {
	TW []models.WatchlistEntry `toml:"tw"`
	US []models.WatchlistEntry `toml:"us"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Yahoo   YahooConfig   `toml:"yahoo"`
	TWSE    TWSEConfig    `toml:"twse"`
	FinMind FinMindConfig `toml:"finmind"`
}

// YahooConfig holds Yahoo Finance chart/quoteSummary API configuration
type YahooConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *YahooConfig) GetTimeout() time.Duration {
	return parseTimeout(c.Timeout, 20*time.Second)
}

// TWSEConfig holds Taiwan Stock Exchange open-data API configuration
type TWSEConfig struct {
	BaseURL     string `toml:"base_url"`
	RateLimit   int    `toml:"rate_limit"`
	Timeout     string `toml:"timeout"`
	MaxAttempts int    `toml:"max_attempts"` // trading days walked back when a date has no data
	Backoff     string `toml:"backoff"`
}

// GetTimeout parses and returns the timeout duration
func (c *TWSEConfig) GetTimeout() time.Duration {
	return parseTimeout(c.Timeout, 20*time.Second)
}

// GetBackoff parses and returns the retry backoff duration
func (c *TWSEConfig) GetBackoff() time.Duration {
	return parseTimeout(c.Backoff, 500*time.Millisecond)
}

// FinMindConfig holds FinMind data API configuration
type FinMindConfig struct {
	BaseURL   string `toml:"base_url"`
	Token     string `toml:"token"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *FinMindConfig) GetTimeout() time.Duration {
	return parseTimeout(c.Timeout, 20*time.Second)
}

// ReportConfig holds report sink configuration
type ReportConfig struct {
	Formats  []string `toml:"formats"` // "xlsx", "csv"
	Charts   bool     `toml:"charts"`
	ChartTop int      `toml:"chart_top"` // instruments charted, ranked by short momentum
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `toml:"level"`
	Format   string `toml:"format"` // "console" or "json"
	FilePath string `toml:"file_path"`
}

func parseTimeout(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Scan: ScanConfig{
			Markets:           []string{models.MarketTW, models.MarketUS},
			Workers:           4,
			LookbackDays:      400,
			LongLookbackYears: 10,
			MinBars:           60,
			OutputDir:         "reports",
		},
		Clients: ClientsConfig{
			Yahoo: YahooConfig{
				BaseURL:   "https://query1.finance.yahoo.com",
				RateLimit: 5,
				Timeout:   "20s",
			},
			TWSE: TWSEConfig{
				BaseURL:     "https://www.twse.com.tw",
				RateLimit:   3,
				Timeout:     "20s",
				MaxAttempts: 5,
				Backoff:     "500ms",
			},
			FinMind: FinMindConfig{
				BaseURL:   "https://api.finmindtrade.com",
				RateLimit: 3,
				Timeout:   "20s",
			},
		},
		Report: ReportConfig{
			Formats:  []string{"xlsx", "csv"},
			Charts:   true,
			ChartTop: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	validateMarkets(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TIDE_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("TIDE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if markets := os.Getenv("TIDE_MARKETS"); markets != "" {
		var parsed []string
		for _, m := range strings.Split(markets, ",") {
			if m = strings.TrimSpace(strings.ToLower(m)); m != "" {
				parsed = append(parsed, m)
			}
		}
		if len(parsed) > 0 {
			config.Scan.Markets = parsed
		}
	}

	if workers := os.Getenv("TIDE_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			config.Scan.Workers = w
		}
	}

	if dir := os.Getenv("TIDE_OUTPUT_DIR"); dir != "" {
		config.Scan.OutputDir = dir
	}

	if token := os.Getenv("TIDE_FINMIND_TOKEN"); token != "" {
		config.Clients.FinMind.Token = token
	}

	if token := os.Getenv("FINMIND_TOKEN"); token != "" && config.Clients.FinMind.Token == "" {
		config.Clients.FinMind.Token = token
	}
}

// validateMarkets drops unknown market identifiers, falling back to defaults
// when nothing valid remains.
func validateMarkets(config *Config) {
	var valid []string
	for _, m := range config.Scan.Markets {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == models.MarketTW || m == models.MarketUS {
			valid = append(valid, m)
		}
	}
	if len(valid) == 0 {
		valid = []string{models.MarketTW, models.MarketUS}
	}
	config.Scan.Markets = valid
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// Entries returns the configured watchlist for a market, or nil when the
// config carries none and the built-in default should apply.
func (c *WatchlistConfig) Entries(market string) []models.WatchlistEntry {
	var entries []models.WatchlistEntry
	switch market {
	case models.MarketTW:
		entries = c.TW
	case models.MarketUS:
		entries = c.US
	default:
		return nil
	}
	out := make([]models.WatchlistEntry, 0, len(entries))
	for _, e := range entries {
		e.Market = market
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
