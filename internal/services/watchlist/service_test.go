package watchlist

import (
	"testing"

	"github.com/jlchn/tide/internal/common"
	"github.com/jlchn/tide/internal/models"
)

func newTestService(cfg *common.Config) *Service {
	if cfg == nil {
		cfg = common.NewDefaultConfig()
	}
	return NewService(cfg, common.NewSilentLogger())
}

func TestListDefaultTW(t *testing.T) {
	svc := newTestService(nil)

	entries, err := svc.List("tw")
	if err != nil {
		t.Fatalf("List(tw) error: %v", err)
	}
	if len(entries) != 29 {
		t.Fatalf("List(tw) returned %d entries, want 29", len(entries))
	}

	for _, e := range entries {
		if e.Market != models.MarketTW {
			t.Errorf("entry %s market = %q, want %q", e.Code, e.Market, models.MarketTW)
		}
	}

	// Order preserved and names attached
	if entries[0].Code != "8299" || entries[0].Name != "群聯電子" {
		t.Errorf("first entry = %s/%s, want 8299/群聯電子", entries[0].Code, entries[0].Name)
	}

	// Index rows come last
	last := entries[len(entries)-1]
	if last.Code != "^TWOII" {
		t.Errorf("last entry = %s, want ^TWOII", last.Code)
	}
	if !last.IsIndex() {
		t.Error("^TWOII should report IsIndex")
	}
}

func TestListDefaultUS(t *testing.T) {
	svc := newTestService(nil)

	entries, err := svc.List("us")
	if err != nil {
		t.Fatalf("List(us) error: %v", err)
	}
	if len(entries) != 54 {
		t.Fatalf("List(us) returned %d entries, want 54", len(entries))
	}

	if entries[0].Code != "SMH" {
		t.Errorf("first entry = %s, want SMH", entries[0].Code)
	}
	for _, e := range entries {
		if e.Market != models.MarketUS {
			t.Errorf("entry %s market = %q, want %q", e.Code, e.Market, models.MarketUS)
		}
		if e.Name == "" {
			t.Errorf("entry %s has empty name", e.Code)
		}
	}
}

func TestListAll(t *testing.T) {
	svc := newTestService(nil)

	entries, err := svc.List("all")
	if err != nil {
		t.Fatalf("List(all) error: %v", err)
	}
	if len(entries) != 29+54 {
		t.Fatalf("List(all) returned %d entries, want %d", len(entries), 29+54)
	}
	if entries[0].Market != models.MarketTW {
		t.Errorf("first entry market = %q, want tw", entries[0].Market)
	}
	if entries[len(entries)-1].Market != models.MarketUS {
		t.Errorf("last entry market = %q, want us", entries[len(entries)-1].Market)
	}
}

func TestListUnknownMarket(t *testing.T) {
	svc := newTestService(nil)

	if _, err := svc.List("jp"); err == nil {
		t.Error("List(jp) should fail")
	}
	if _, err := svc.List(""); err == nil {
		t.Error("List(\"\") should fail")
	}
}

func TestListMarketNormalization(t *testing.T) {
	svc := newTestService(nil)

	entries, err := svc.List("  TW ")
	if err != nil {
		t.Fatalf("List(  TW ) error: %v", err)
	}
	if len(entries) != 29 {
		t.Errorf("normalized market returned %d entries, want 29", len(entries))
	}
}

func TestListConfigOverride(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Watchlist.TW = []models.WatchlistEntry{
		{Code: "2330", Name: "台積電"},
		{Code: "2317", Name: "鴻海"},
	}
	svc := newTestService(cfg)

	entries, err := svc.List("tw")
	if err != nil {
		t.Fatalf("List(tw) error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("configured watchlist returned %d entries, want 2", len(entries))
	}
	if entries[0].Code != "2330" || entries[0].Market != models.MarketTW {
		t.Errorf("entry 0 = %+v, want 2330/tw", entries[0])
	}

	// US still falls back to the built-in list
	usEntries, err := svc.List("us")
	if err != nil {
		t.Fatalf("List(us) error: %v", err)
	}
	if len(usEntries) != 54 {
		t.Errorf("US list returned %d entries, want default 54", len(usEntries))
	}
}

func TestListConfigNormalizesCodes(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Watchlist.US = []models.WatchlistEntry{
		{Code: " nvda "},
		{Code: ""},
		{Code: "aapl", Name: "Apple"},
	}
	svc := newTestService(cfg)

	entries, err := svc.List("us")
	if err != nil {
		t.Fatalf("List(us) error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (blank dropped)", len(entries))
	}
	if entries[0].Code != "NVDA" || entries[0].Name != "NVDA" {
		t.Errorf("entry 0 = %+v, want NVDA with echoed name", entries[0])
	}
	if entries[1].Code != "AAPL" || entries[1].Name != "Apple" {
		t.Errorf("entry 1 = %+v, want AAPL/Apple", entries[1])
	}
}

func TestMarkets(t *testing.T) {
	svc := newTestService(nil)

	markets := svc.Markets()
	if len(markets) != 2 || markets[0] != models.MarketTW || markets[1] != models.MarketUS {
		t.Errorf("Markets() = %v, want [tw us]", markets)
	}
}

func TestCandidateSymbols(t *testing.T) {
	cases := []struct {
		entry models.WatchlistEntry
		want  []string
	}{
		{models.WatchlistEntry{Code: "2330", Market: models.MarketTW}, []string{"2330.TW", "2330.TWO"}},
		{models.WatchlistEntry{Code: "^TWII", Market: models.MarketTW}, []string{"^TWII"}},
		{models.WatchlistEntry{Code: "2330.TW", Market: models.MarketTW}, []string{"2330.TW"}},
		{models.WatchlistEntry{Code: "NVDA", Market: models.MarketUS}, []string{"NVDA"}},
	}

	for _, tc := range cases {
		got := tc.entry.CandidateSymbols()
		if len(got) != len(tc.want) {
			t.Errorf("%s: CandidateSymbols = %v, want %v", tc.entry.Code, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%s: CandidateSymbols[%d] = %s, want %s", tc.entry.Code, i, got[i], tc.want[i])
			}
		}
	}
}
