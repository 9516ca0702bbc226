// Package finmind provides a client for the FinMind data API
package finmind

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/jlchn/tide/internal/common"
	"github.com/jlchn/tide/internal/interfaces"
	"github.com/jlchn/tide/internal/models"
)

const (
	DefaultBaseURL   = "https://api.finmindtrade.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 3 // requests per second

	monthRevenueDataset = "TaiwanStockMonthRevenue"

	// how far back GetRevenue looks when judging a revenue new high
	revenueWindowMonths = 13
)

// Client talks to the FinMind v4 data API
type Client struct {
	baseURL    string
	token      string
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

// NewClient creates a new FinMind client. The token is optional; anonymous
// requests run under FinMind's public quota.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
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
	return fmt.Sprintf("FinMind API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	if c.token != "" {
		params.Set("token", c.token)
	}

	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("FinMind API request")

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

// MonthRevenue is one month of reported revenue for a listed company
type MonthRevenue struct {
	StockID string
	Year    int
	Month   int
	Revenue float64
}

type dataResponse struct {
	Msg    string `json:"msg"`
	Status int    `json:"status"`
	Data   []struct {
		Date         string  `json:"date"`
		StockID      string  `json:"stock_id"`
		Revenue      float64 `json:"revenue"`
		RevenueMonth int     `json:"revenue_month"`
		RevenueYear  int     `json:"revenue_year"`
	} `json:"data"`
}

// GetMonthRevenue retrieves monthly revenue rows for a stock since the given
// date, sorted oldest first by reporting period
func (c *Client) GetMonthRevenue(ctx context.Context, stockID string, since time.Time) ([]MonthRevenue, error) {
	params := url.Values{}
	params.Set("dataset", monthRevenueDataset)
	params.Set("data_id", stockID)
	params.Set("start_date", since.Format("2006-01-02"))

	path := "/api/v4/data"

	var resp dataResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}

	if resp.Status != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.Status,
			Message:    resp.Msg,
			Endpoint:   path,
		}
	}

	rows := make([]MonthRevenue, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.RevenueYear == 0 || d.RevenueMonth == 0 {
			continue
		}
		rows = append(rows, MonthRevenue{
			StockID: d.StockID,
			Year:    d.RevenueYear,
			Month:   d.RevenueMonth,
			Revenue: d.Revenue,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		return rows[i].Month < rows[j].Month
	})

	c.logger.Debug().Str("stock_id", stockID).Int("months", len(rows)).Msg("FinMind month revenue fetched")

	return rows, nil
}

// GetRevenue derives the latest monthly revenue report in 億 (hundred
// million TWD). IsNewHigh compares the latest month against the trailing
// window. Returns nil without error when FinMind has no rows for the stock.
func (c *Client) GetRevenue(ctx context.Context, stockID string) (*models.RevenueReport, error) {
	since := time.Now().AddDate(0, -revenueWindowMonths, 0)
	rows, err := c.GetMonthRevenue(ctx, stockID, since)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	latest := rows[len(rows)-1]
	isNewHigh := true
	for _, r := range rows[:len(rows)-1] {
		if r.Revenue > latest.Revenue {
			isNewHigh = false
			break
		}
	}

	return &models.RevenueReport{
		Period:    fmt.Sprintf("%04d-%02d", latest.Year, latest.Month),
		Value:     models.MetricOf(latest.Revenue / 1e8).Round(2),
		IsNewHigh: isNewHigh,
	}, nil
}

// Ensure Client implements the revenue interface
var _ interfaces.RevenueClient = (*Client)(nil)
