package twse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var t86Fields = []string{
	"證券代號", "證券名稱",
	"外陸資買進股數(不含外資自營商)", "外陸資賣出股數(不含外資自營商)", "外陸資買賣超股數(不含外資自營商)",
	"外資自營商買進股數", "外資自營商賣出股數", "外資自營商買賣超股數",
	"投信買進股數", "投信賣出股數", "投信買賣超股數",
	"自營商買賣超股數",
	"自營商買進股數(自行買賣)", "自營商賣出股數(自行買賣)", "自營商買賣超股數(自行買賣)",
	"自營商買進股數(避險)", "自營商賣出股數(避險)", "自營商買賣超股數(避險)",
	"三大法人買賣超股數",
}

// t86Row places the dealer figure in the self-trade column; the aggregate
// dealer column carries a sentinel so a misresolved column shows up in the
// assertions.
func t86Row(code, name, foreign, trust, dealer, total string) []string {
	return []string{
		code, name,
		"0", "0", foreign,
		"0", "0", "0",
		"0", "0", trust,
		"1",
		"0", "0", dealer,
		"0", "0", "0",
		total,
	}
}

func TestGetDailyFlows_ParsesReport(t *testing.T) {
	resp := t86Response{
		Stat:   "OK",
		Date:   "20240301",
		Fields: t86Fields,
		Data: [][]string{
			t86Row("2330", "台積電", "32,000,000", "1,000,000", "-500,000", "32,500,000"),
			t86Row("2317", "鴻海", "-4,200,000", "300,000", "150,000", "-3,750,000"),
		},
	}

	var capturedDate string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedDate = r.URL.Query().Get("date")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	flows, err := client.GetDailyFlows(context.Background(), date)
	if err != nil {
		t.Fatalf("GetDailyFlows failed: %v", err)
	}

	if capturedDate != "20240301" {
		t.Errorf("expected date=20240301, got %s", capturedDate)
	}
	if len(flows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(flows))
	}

	tsmc, ok := flows["2330"]
	if !ok {
		t.Fatal("expected flows for 2330")
	}
	if tsmc.ForeignNet != 32000000 {
		t.Errorf("expected foreign net 32000000, got %d", tsmc.ForeignNet)
	}
	if tsmc.TrustNet != 1000000 {
		t.Errorf("expected trust net 1000000, got %d", tsmc.TrustNet)
	}
	if tsmc.DealerNet != -500000 {
		t.Errorf("expected dealer net -500000, got %d", tsmc.DealerNet)
	}
	if tsmc.TotalNet != 32500000 {
		t.Errorf("expected total net 32500000, got %d", tsmc.TotalNet)
	}
	if !tsmc.Date.Equal(date) {
		t.Errorf("expected report date %v, got %v", date, tsmc.Date)
	}

	if honhai := flows["2317"]; honhai.ForeignNet != -4200000 {
		t.Errorf("expected foreign net -4200000, got %d", honhai.ForeignNet)
	}
}

func TestGetDailyFlows_Holiday(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"stat": "很抱歉, 沒有符合條件的資料!"}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	flows, err := client.GetDailyFlows(context.Background(), time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("expected no error on holiday, got %v", err)
	}
	if len(flows) != 0 {
		t.Errorf("expected empty map, got %d rows", len(flows))
	}
}

func TestGetDailyFlows_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.GetDailyFlows(context.Background(), time.Now())
	if err == nil {
		t.Fatal("expected error on server error")
	}
}

func TestLatestFlows_WalksBackOverWeekend(t *testing.T) {
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		requested = append(requested, date)
		w.Header().Set("Content-Type", "application/json")
		if date == "20240301" {
			json.NewEncoder(w).Encode(t86Response{
				Stat:   "OK",
				Date:   date,
				Fields: t86Fields,
				Data:   [][]string{t86Row("2330", "台積電", "1,000", "0", "0", "1,000")},
			})
			return
		}
		w.Write([]byte(`{"stat": "很抱歉, 沒有符合條件的資料!"}`))
	}))
	defer srv.Close()

	client := NewClient(
		WithBaseURL(srv.URL),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 5, Backoff: time.Millisecond}),
	)

	// Monday with no report yet; Saturday and Sunday must be skipped without
	// consuming attempts, landing on Friday's report
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	flows, reportDate, err := client.LatestFlows(context.Background(), monday)
	if err != nil {
		t.Fatalf("LatestFlows failed: %v", err)
	}

	want := []string{"20240304", "20240301"}
	if len(requested) != len(want) {
		t.Fatalf("expected %d requests, got %d: %v", len(want), len(requested), requested)
	}
	for i, d := range want {
		if requested[i] != d {
			t.Errorf("request %d: expected %s, got %s", i, d, requested[i])
		}
	}

	if !reportDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected report date 2024-03-01, got %v", reportDate)
	}
	if flows["2330"].ForeignNet != 1000 {
		t.Errorf("expected foreign net 1000, got %d", flows["2330"].ForeignNet)
	}
}

func TestLatestFlows_ExhaustsAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"stat": "很抱歉, 沒有符合條件的資料!"}`))
	}))
	defer srv.Close()

	client := NewClient(
		WithBaseURL(srv.URL),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}),
	)

	// Wednesday walk-back touches Wed, Tue, Mon
	wednesday := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	_, _, err := client.LatestFlows(context.Background(), wednesday)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 requests, got %d", calls)
	}
}

func TestParseGroupedInt(t *testing.T) {
	tests := []struct {
		in       string
		expected int64
	}{
		{"1,234,567", 1234567},
		{"-12,345", -12345},
		{" 42 ", 42},
		{"0", 0},
		{"--", 0},
		{"", 0},
		{"n/a", 0},
	}

	for _, tt := range tests {
		if got := parseGroupedInt(tt.in); got != tt.expected {
			t.Errorf("parseGroupedInt(%q): expected %d, got %d", tt.in, tt.expected, got)
		}
	}
}

func TestResolveColumns_UnknownFormat(t *testing.T) {
	_, err := resolveColumns([]string{"證券代號", "證券名稱", "收盤價"})
	if err == nil {
		t.Fatal("expected error for unknown field layout")
	}
}

func TestResolveColumns_DealerFallsBackToAggregate(t *testing.T) {
	fields := []string{
		"證券代號", "證券名稱",
		"外陸資買賣超股數(不含外資自營商)",
		"投信買賣超股數",
		"自營商買賣超股數",
		"三大法人買賣超股數",
	}
	cols, err := resolveColumns(fields)
	if err != nil {
		t.Fatalf("resolveColumns failed: %v", err)
	}
	if cols.dealer != 4 {
		t.Errorf("expected dealer column 4, got %d", cols.dealer)
	}
}
