// Package app wires configuration, clients and services into a runnable
// scanner. It is the shared core behind cmd/tide-scan.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jlchn/tide/internal/clients/finmind"
	"github.com/jlchn/tide/internal/clients/twse"
	"github.com/jlchn/tide/internal/clients/yahoo"
	"github.com/jlchn/tide/internal/common"
	"github.com/jlchn/tide/internal/interfaces"
	"github.com/jlchn/tide/internal/services/report"
	"github.com/jlchn/tide/internal/services/scan"
	"github.com/jlchn/tide/internal/services/watchlist"
)

// App holds all initialized clients and services.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	YahooClient      *yahoo.Client
	TWSEClient       *twse.Client
	FinMindClient    *finmind.Client
	WatchlistService interfaces.WatchlistService
	ScanService      interfaces.ScanService
	ReportService    interfaces.ReportService
	StartupTime      time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, logging, clients and services.
// configPath may be empty, in which case TIDE_CONFIG and then the binary
// directory are checked.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Resolve configuration: provided path, TIDE_CONFIG, binary dir, then
	// the development fallback
	if configPath == "" {
		configPath = os.Getenv("TIDE_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "tide.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tide.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative log file path to binary directory
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	if config.Clients.FinMind.Token == "" {
		logger.Warn().Msg("FinMind token not configured - monthly revenue requests may be throttled")
	}

	yahooClient := yahoo.NewClient(
		yahoo.WithBaseURL(config.Clients.Yahoo.BaseURL),
		yahoo.WithLogger(logger),
		yahoo.WithRateLimit(config.Clients.Yahoo.RateLimit),
		yahoo.WithTimeout(config.Clients.Yahoo.GetTimeout()),
	)

	twseClient := twse.NewClient(
		twse.WithBaseURL(config.Clients.TWSE.BaseURL),
		twse.WithLogger(logger),
		twse.WithRateLimit(config.Clients.TWSE.RateLimit),
		twse.WithTimeout(config.Clients.TWSE.GetTimeout()),
		twse.WithRetryPolicy(twse.RetryPolicy{
			MaxAttempts: config.Clients.TWSE.MaxAttempts,
			Backoff:     config.Clients.TWSE.GetBackoff(),
		}),
	)

	finmindClient := finmind.NewClient(config.Clients.FinMind.Token,
		finmind.WithBaseURL(config.Clients.FinMind.BaseURL),
		finmind.WithLogger(logger),
		finmind.WithRateLimit(config.Clients.FinMind.RateLimit),
		finmind.WithTimeout(config.Clients.FinMind.GetTimeout()),
	)

	// Yahoo serves bars, fundamentals and US quarterly revenue; FinMind
	// serves Taiwan monthly revenue; TWSE serves institutional flows.
	watchlistService := watchlist.NewService(config, logger)
	scanService := scan.NewService(yahooClient, yahooClient, twseClient, finmindClient, yahooClient, config, logger)
	reportService := report.NewService(config, logger)

	a := &App{
		Config:           config,
		Logger:           logger,
		YahooClient:      yahooClient,
		TWSEClient:       twseClient,
		FinMindClient:    finmindClient,
		WatchlistService: watchlistService,
		ScanService:      scanService,
		ReportService:    reportService,
		StartupTime:      startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}
