// Package watchlist holds the built-in instrument lists and config overrides
package watchlist

import (
	"fmt"
	"strings"

	"github.com/jlchn/tide/internal/common"
	"github.com/jlchn/tide/internal/interfaces"
	"github.com/jlchn/tide/internal/models"
)

// Compile-time interface check
var _ interfaces.WatchlistService = (*Service)(nil)

// defaultTW is the built-in Taiwan list: the reference large-cap names plus
// the weighted and OTC index rows. Codes are bare; the exchange suffix is
// resolved at fetch time.
var defaultTW = []models.WatchlistEntry{
	{Code: "8299", Name: "群聯電子"},
	{Code: "2408", Name: "南亞科技"},
	{Code: "2344", Name: "華邦電子"},
	{Code: "2454", Name: "聯發科技"},
	{Code: "6770", Name: "力積電"},
	{Code: "3260", Name: "威剛科技"},
	{Code: "2330", Name: "台灣積體電路製造"},
	{Code: "6239", Name: "力成科技"},
	{Code: "7769", Name: "宏矽科技"},
	{Code: "8996", Name: "高力熱處理"},
	{Code: "2308", Name: "台達電子工業"},
	{Code: "1519", Name: "華城電機"},
	{Code: "1504", Name: "東元電機"},
	{Code: "2313", Name: "華通電腦"},
	{Code: "3491", Name: "昇達科技"},
	{Code: "8046", Name: "南亞電路板"},
	{Code: "1303", Name: "南亞塑膠工業"},
	{Code: "1802", Name: "台灣玻璃工業"},
	{Code: "1717", Name: "長興材料"},
	{Code: "8422", Name: "可寧衛"},
	{Code: "6806", Name: "森崴能源"},
	{Code: "1319", Name: "東陽實業"},
	{Code: "6275", Name: "元山科技"},
	{Code: "5452", Name: "佶優科技"},
	{Code: "2241", Name: "艾姆勒車電"},
	{Code: "2317", Name: "鴻海精密工業"},
	{Code: "8431", Name: "匯鑽科技"},
	{Code: "^TWII", Name: "加權指數"},
	{Code: "^TWOII", Name: "櫃買指數"},
}

// defaultUS is the built-in US list. US records carry no separate display
// name, so Name echoes the ticker.
var defaultUS = usEntries(
	"SMH", "MU", "WDC", "STX", "SNDK", "LITE", "NVDA", "AVGO", "MRVL", "AMD",
	"INTC", "CRWV", "NBIS", "APLD", "NVTS", "ORCL", "MSFT", "GOOGL", "TSLA", "NFLX",
	"AAPL", "META", "AMZN", "IBM", "PLTR", "ZETA", "VSAT", "RBLX", "QUBT", "ONDS",
	"RKLB", "URA", "KTOS", "IREN", "UUUU", "QS", "SMR", "LEU", "VST", "XME",
	"XLP", "WMT", "COST", "BYND", "LIY", "NVO", "ISRG", "SDGR", "RXRX", "RGC",
	"MP", "CRML", "LAC", "UAMY",
)

func usEntries(codes ...string) []models.WatchlistEntry {
	entries := make([]models.WatchlistEntry, 0, len(codes))
	for _, code := range codes {
		entries = append(entries, models.WatchlistEntry{Code: code, Name: code})
	}
	return entries
}

// Service implements WatchlistService
type Service struct {
	cfg    *common.Config
	logger *common.Logger
}

// NewService creates a new watchlist service
func NewService(cfg *common.Config, logger *common.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

// List returns the watchlist for a market ("tw", "us", or "all"). Config
// entries replace the built-in defaults when present; "all" concatenates the
// Taiwan list followed by the US list.
func (s *Service) List(market string) ([]models.WatchlistEntry, error) {
	switch normalizeMarket(market) {
	case models.MarketTW:
		return s.forMarket(models.MarketTW), nil
	case models.MarketUS:
		return s.forMarket(models.MarketUS), nil
	case "all":
		entries := s.forMarket(models.MarketTW)
		return append(entries, s.forMarket(models.MarketUS)...), nil
	default:
		return nil, fmt.Errorf("unknown market %q", market)
	}
}

// Markets returns the market identifiers the service knows about
func (s *Service) Markets() []string {
	return []string{models.MarketTW, models.MarketUS}
}

func (s *Service) forMarket(market string) []models.WatchlistEntry {
	entries := s.cfg.Watchlist.Entries(market)
	if entries != nil {
		s.logger.Debug().
			Str("market", market).
			Int("count", len(entries)).
			Msg("Using configured watchlist")
	} else {
		switch market {
		case models.MarketTW:
			entries = defaultTW
		case models.MarketUS:
			entries = defaultUS
		}
	}

	out := make([]models.WatchlistEntry, 0, len(entries))
	for _, e := range entries {
		e.Code = strings.TrimSpace(e.Code)
		if e.Code == "" {
			continue
		}
		if market == models.MarketUS {
			e.Code = strings.ToUpper(e.Code)
		}
		if e.Name == "" {
			e.Name = e.Code
		}
		e.Market = market
		out = append(out, e)
	}
	return out
}

func normalizeMarket(market string) string {
	return strings.ToLower(strings.TrimSpace(market))
}
