// Package yahoo provides a client for the Yahoo Finance API
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/jlchn/tide/internal/common"
	"github.com/jlchn/tide/internal/interfaces"
	"github.com/jlchn/tide/internal/models"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second

	// Yahoo rejects requests without a browser-like agent
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Client talks to the Yahoo Finance chart and quoteSummary endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Yahoo Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yahoo API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug().Str("url", c.baseURL+path).Msg("yahoo API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// wrappedNumber handles Yahoo's number fields, which arrive as a plain
// number, as {"raw": x, "fmt": "..."}, or as an empty object when the value
// is not reported.
type wrappedNumber struct {
	Raw   float64
	Valid bool
}

func (w *wrappedNumber) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		w.Raw = num
		w.Valid = true
		return nil
	}
	var obj struct {
		Raw *float64 `json:"raw"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.Raw != nil {
			w.Raw = *obj.Raw
			w.Valid = true
		}
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into number", string(data))
}

func (w wrappedNumber) metric() models.Metric {
	if !w.Valid {
		return models.Metric{}
	}
	return models.MetricOf(w.Raw)
}

type apiErrorBody struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiErrorBody `json:"error"`
	} `json:"chart"`
}

// GetDailyBars retrieves daily OHLCV bars for [from, to). Rows with a null
// close (halted sessions) are skipped. An empty bar list with a nil error
// means the symbol resolved but has no data in the window.
func (c *Client) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", from.Unix()))
	params.Set("period2", fmt.Sprintf("%d", to.Unix()))
	params.Set("interval", "1d")
	params.Set("events", "div,split")

	path := fmt.Sprintf("/v8/finance/chart/%s", url.PathEscape(symbol))

	var resp chartResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}

	if resp.Chart.Error != nil {
		return nil, &APIError{
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("%s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description),
			Endpoint:   path,
		}
	}
	if len(resp.Chart.Result) == 0 {
		return nil, &APIError{
			StatusCode: http.StatusOK,
			Message:    "empty chart result",
			Endpoint:   path,
		}
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return []models.Bar{}, nil
	}
	quote := result.Indicators.Quote[0]

	var adjclose []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjclose = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		close := at(quote.Close, i)
		if close == nil {
			continue
		}

		bar := models.Bar{
			Date:     dayOf(ts),
			Close:    *close,
			AdjClose: *close,
		}
		if v := at(quote.Open, i); v != nil {
			bar.Open = *v
		} else {
			bar.Open = *close
		}
		if v := at(quote.High, i); v != nil {
			bar.High = *v
		} else {
			bar.High = *close
		}
		if v := at(quote.Low, i); v != nil {
			bar.Low = *v
		} else {
			bar.Low = *close
		}
		if v := at(adjclose, i); v != nil {
			bar.AdjClose = *v
		}
		if len(quote.Volume) > i && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}

		bars = append(bars, bar)
	}

	c.logger.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("yahoo chart fetched")

	return bars, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

// dayOf converts an exchange timestamp to its UTC trading date
func dayOf(ts int64) time.Time {
	t := time.Unix(ts, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []quoteSummaryResult `json:"result"`
		Error  *apiErrorBody        `json:"error"`
	} `json:"quoteSummary"`
}

type quoteSummaryResult struct {
	DefaultKeyStatistics struct {
		TrailingEps wrappedNumber `json:"trailingEps"`
	} `json:"defaultKeyStatistics"`
	SummaryDetail struct {
		TrailingPE wrappedNumber `json:"trailingPE"`
	} `json:"summaryDetail"`
	FinancialData struct {
		ReturnOnEquity wrappedNumber `json:"returnOnEquity"`
	} `json:"financialData"`
	Earnings struct {
		FinancialsChart struct {
			Quarterly []struct {
				Date    string        `json:"date"`
				Revenue wrappedNumber `json:"revenue"`
			} `json:"quarterly"`
		} `json:"financialsChart"`
	} `json:"earnings"`
}

func (c *Client) quoteSummary(ctx context.Context, symbol, modules string) (*quoteSummaryResult, error) {
	params := url.Values{}
	params.Set("modules", modules)

	path := fmt.Sprintf("/v10/finance/quoteSummary/%s", url.PathEscape(symbol))

	var resp quoteSummaryResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}

	if resp.QuoteSummary.Error != nil {
		return nil, &APIError{
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("%s: %s", resp.QuoteSummary.Error.Code, resp.QuoteSummary.Error.Description),
			Endpoint:   path,
		}
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, nil
	}

	return &resp.QuoteSummary.Result[0], nil
}

// GetFundamentals retrieves trailing EPS, trailing PE and return on equity.
// Returns nil without error when Yahoo reports none of the three.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	result, err := c.quoteSummary(ctx, symbol, "defaultKeyStatistics,summaryDetail,financialData")
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	f := &models.Fundamentals{
		EPS: result.DefaultKeyStatistics.TrailingEps.metric(),
		PE:  result.SummaryDetail.TrailingPE.metric(),
	}
	if roe := result.FinancialData.ReturnOnEquity; roe.Valid {
		f.ROE = models.MetricOf(roe.Raw * 100).Round(2)
	}

	if !f.EPS.Valid && !f.PE.Valid && !f.ROE.Valid {
		return nil, nil
	}
	return f, nil
}

// GetRevenue retrieves the latest reported quarterly revenue in billions.
// IsNewHigh compares the latest quarter against every quarter Yahoo returns.
// Returns nil without error when the earnings module has no quarterly data.
func (c *Client) GetRevenue(ctx context.Context, symbol string) (*models.RevenueReport, error) {
	result, err := c.quoteSummary(ctx, symbol, "earnings")
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	quarters := result.Earnings.FinancialsChart.Quarterly
	if len(quarters) == 0 {
		return nil, nil
	}

	latest := quarters[len(quarters)-1]
	if !latest.Revenue.Valid {
		return nil, nil
	}

	isNewHigh := true
	for _, q := range quarters[:len(quarters)-1] {
		if q.Revenue.Valid && q.Revenue.Raw > latest.Revenue.Raw {
			isNewHigh = false
			break
		}
	}

	return &models.RevenueReport{
		Period:    latest.Date,
		Value:     models.MetricOf(latest.Revenue.Raw / 1e9).Round(2),
		IsNewHigh: isNewHigh,
	}, nil
}

// Ensure Client implements the client interfaces
var (
	_ interfaces.MarketDataClient   = (*Client)(nil)
	_ interfaces.FundamentalsClient = (*Client)(nil)
	_ interfaces.RevenueClient      = (*Client)(nil)
)
