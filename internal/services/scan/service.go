// Package scan runs the per-instrument indicator pipeline over a watchlist
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jlchn/tide/internal/common"
	"github.com/jlchn/tide/internal/interfaces"
	"github.com/jlchn/tide/internal/models"
	"github.com/jlchn/tide/internal/signals"
)

// Compile-time interface check
var _ interfaces.ScanService = (*Service)(nil)

// Service implements ScanService. The enrichment clients are optional: a nil
// client simply leaves its block off every record.
type Service struct {
	market        interfaces.MarketDataClient
	fundamentals  interfaces.FundamentalsClient
	institutional interfaces.InstitutionalClient
	twRevenue     interfaces.RevenueClient
	usRevenue     interfaces.RevenueClient
	cfg           *common.Config
	logger        *common.Logger
}

// NewService creates a new scan service
func NewService(
	market interfaces.MarketDataClient,
	fundamentals interfaces.FundamentalsClient,
	institutional interfaces.InstitutionalClient,
	twRevenue interfaces.RevenueClient,
	usRevenue interfaces.RevenueClient,
	cfg *common.Config,
	logger *common.Logger,
) *Service {
	return &Service{
		market:        market,
		fundamentals:  fundamentals,
		institutional: institutional,
		twRevenue:     twRevenue,
		usRevenue:     usRevenue,
		cfg:           cfg,
		logger:        logger,
	}
}

// Run executes the batch over the given entries. Instruments are processed by
// a bounded worker pool; per-instrument failures are logged and recorded as
// skips, never propagated. Records come back in watchlist order regardless of
// scheduling.
func (s *Service) Run(ctx context.Context, market string, entries []models.WatchlistEntry) (*models.ScanResult, error) {
	start := time.Now()
	result := &models.ScanResult{
		RunID:     uuid.New().String(),
		Market:    market,
		StartedAt: start,
	}

	runLogger := &common.Logger{Logger: s.logger.With().
		Str("run_id", result.RunID).
		Str("market", market).
		Logger()}

	if len(entries) == 0 {
		runLogger.Warn().Msg("Watchlist is empty, nothing to scan")
		result.Duration = time.Since(start)
		return result, nil
	}

	runLogger.Info().Int("instruments", len(entries)).Msg("Starting scan")

	// One institutional snapshot shared by every Taiwan instrument in the run
	flows := s.fetchFlows(ctx, runLogger, entries, start)

	records := make([]*models.OutputRecord, len(entries))
	statuses := make([]models.ScanStatus, len(entries))

	workers := s.cfg.Scan.Workers
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			records[i], statuses[i] = s.scanOne(ctx, runLogger, entry, start, flows)
			return nil
		})
	}
	_ = g.Wait()

	for i := range entries {
		if records[i] != nil {
			result.Records = append(result.Records, *records[i])
		}
		result.Statuses = append(result.Statuses, statuses[i])
	}
	result.Duration = time.Since(start)

	runLogger.Info().
		Int("recorded", result.Recorded()).
		Int("skipped", result.Skipped()).
		Dur("duration", result.Duration).
		Msg("Scan complete")

	return result, nil
}

// fetchFlows loads the latest three-institution report once per run. Failure
// leaves every Taiwan record without an institutional block.
func (s *Service) fetchFlows(ctx context.Context, logger *common.Logger, entries []models.WatchlistEntry, asOf time.Time) map[string]models.InstitutionalFlows {
	if s.institutional == nil {
		return nil
	}
	listed := false
	for _, e := range entries {
		if e.Market == models.MarketTW && !e.IsIndex() {
			listed = true
			break
		}
	}
	if !listed {
		return nil
	}

	flows, reportDate, err := s.institutional.LatestFlows(ctx, asOf)
	if err != nil {
		logger.Warn().Err(err).Msg("Institutional flows unavailable for this run")
		return nil
	}
	logger.Info().
		Str("report_date", reportDate.Format("2006-01-02")).
		Int("stocks", len(flows)).
		Msg("Institutional flows loaded")
	return flows
}

// scanOne runs the full pipeline for a single instrument. Every exit path
// resolves to a terminal status; a panic inside the pipeline is recovered and
// recorded as a skip so one defective instrument cannot take down the batch.
func (s *Service) scanOne(ctx context.Context, logger *common.Logger, entry models.WatchlistEntry, asOf time.Time, flows map[string]models.InstitutionalFlows) (rec *models.OutputRecord, status models.ScanStatus) {
	status = models.ScanStatus{Ticker: entry.Code, State: models.ScanStatePending}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("ticker", entry.Code).
				Interface("panic", r).
				Msg("Instrument pipeline panicked")
			rec = nil
			status.State = models.ScanStateSkipped
			status.Reason = models.SkipInternalError
			status.Err = fmt.Sprintf("panic: %v", r)
		}
	}()

	from := asOf.AddDate(0, 0, -s.cfg.Scan.LookbackDays)

	status.State = models.ScanStateFetching
	bars, symbol, fetchStatus := s.fetchBars(ctx, logger, entry, from, asOf)
	if fetchStatus != nil {
		status = *fetchStatus
		return nil, status
	}

	status.State = models.ScanStateComputing
	series, err := signals.NewSeries(bars, s.cfg.Scan.MinBars)
	if err != nil {
		if errors.Is(err, signals.ErrInsufficientHistory) {
			logger.Warn().Str("ticker", entry.Code).Err(err).Msg("Insufficient history, instrument skipped")
			status.State = models.ScanStateSkipped
			status.Reason = models.SkipInsufficientHistory
		} else {
			logger.Warn().Str("ticker", entry.Code).Err(err).Msg("Series rejected, instrument skipped")
			status.State = models.ScanStateSkipped
			status.Reason = models.SkipFetchFailure
		}
		status.Err = err.Error()
		return nil, status
	}

	longCloses := s.fetchLongCloses(ctx, logger, entry, symbol, asOf)

	ind := signals.Compute(series, longCloses)
	sig := signals.Compose(ind)

	rec = &models.OutputRecord{
		Ticker:     symbol,
		Name:       entry.Name,
		Market:     entry.Market,
		Indicators: ind,
		Signals:    sig,
		Chart:      signals.BuildChartSeries(series),
	}

	s.enrich(ctx, logger, entry, symbol, flows, rec)

	logger.Debug().
		Str("ticker", entry.Code).
		Str("symbol", symbol).
		Int("bars", series.Len()).
		Bool("momentum", sig.ShortUptrendMomentum).
		Msg("Instrument recorded")

	status.State = models.ScanStateRecorded
	return rec, status
}

// fetchBars resolves the provider symbol and retrieves the lookback window.
// Candidates are tried in order; an error moves on to the next candidate, an
// empty response is remembered as a definitive no-data answer. The returned
// status is nil on success.
func (s *Service) fetchBars(ctx context.Context, logger *common.Logger, entry models.WatchlistEntry, from, to time.Time) ([]models.Bar, string, *models.ScanStatus) {
	var lastErr error
	noData := false

	for _, candidate := range entry.CandidateSymbols() {
		bars, err := s.market.GetDailyBars(ctx, candidate, from, to)
		if err != nil {
			lastErr = err
			continue
		}
		if len(bars) == 0 {
			noData = true
			continue
		}
		return bars, candidate, nil
	}

	status := models.ScanStatus{
		Ticker: entry.Code,
		State:  models.ScanStateSkipped,
	}
	if noData {
		logger.Warn().Str("ticker", entry.Code).Msg("No data for any candidate symbol, instrument skipped")
		status.Reason = models.SkipNoData
	} else {
		logger.Warn().Str("ticker", entry.Code).Err(lastErr).Msg("Fetch failed, instrument skipped")
		status.Reason = models.SkipFetchFailure
		if lastErr != nil {
			status.Err = lastErr.Error()
		}
	}
	return nil, "", &status
}

// fetchLongCloses retrieves the decade window used by the all-time-high test.
// The long fetch is best-effort: on failure the indicator resolves to false.
func (s *Service) fetchLongCloses(ctx context.Context, logger *common.Logger, entry models.WatchlistEntry, symbol string, asOf time.Time) []float64 {
	longFrom := asOf.AddDate(-s.cfg.Scan.LongLookbackYears, 0, 0)
	bars, err := s.market.GetDailyBars(ctx, symbol, longFrom, asOf)
	if err != nil {
		logger.Warn().Str("ticker", entry.Code).Err(err).Msg("Long history fetch failed, all-time-high unavailable")
		return nil
	}
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 {
			closes = append(closes, b.Close)
		}
	}
	return closes
}

// enrich attaches the optional external blocks. Each block fails
// independently; a missing provider or a lookup miss leaves that block nil
// and never touches the rest of the record. Index rows carry no enrichment.
func (s *Service) enrich(ctx context.Context, logger *common.Logger, entry models.WatchlistEntry, symbol string, flows map[string]models.InstitutionalFlows, rec *models.OutputRecord) {
	if entry.IsIndex() {
		return
	}

	if s.fundamentals != nil {
		f, err := s.fundamentals.GetFundamentals(ctx, symbol)
		if err != nil {
			logger.Warn().Str("ticker", entry.Code).Err(err).Msg("Fundamentals unavailable")
		} else {
			rec.Fundamentals = f
		}
	}

	switch entry.Market {
	case models.MarketTW:
		if s.twRevenue != nil {
			r, err := s.twRevenue.GetRevenue(ctx, entry.Code)
			if err != nil {
				logger.Warn().Str("ticker", entry.Code).Err(err).Msg("Monthly revenue unavailable")
			} else {
				rec.Revenue = r
			}
		}
		if f, ok := flows[entry.Code]; ok {
			flow := f
			rec.Institutional = &flow
		}
	case models.MarketUS:
		if s.usRevenue != nil {
			r, err := s.usRevenue.GetRevenue(ctx, symbol)
			if err != nil {
				logger.Warn().Str("ticker", entry.Code).Err(err).Msg("Quarterly revenue unavailable")
			} else {
				rec.Revenue = r
			}
		}
	}
}
