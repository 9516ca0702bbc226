// Package twse provides a client for the Taiwan Stock Exchange open data API
package twse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jlchn/tide/internal/common"
	"github.com/jlchn/tide/internal/interfaces"
	"github.com/jlchn/tide/internal/models"
)

const (
	DefaultBaseURL     = "https://www.twse.com.tw"
	DefaultTimeout     = 30 * time.Second
	DefaultRateLimit   = 3 // requests per second
	DefaultMaxAttempts = 5
	DefaultBackoff     = 500 * time.Millisecond
)

// RetryPolicy controls the walk-back over non-trading days when resolving
// the latest institutional report
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Client talks to the TWSE T86 three-institution daily report
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	policy     RetryPolicy
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

// WithRetryPolicy sets the walk-back policy for LatestFlows
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(c *Client) {
		if policy.MaxAttempts > 0 {
			c.policy.MaxAttempts = policy.MaxAttempts
		}
		if policy.Backoff > 0 {
			c.policy.Backoff = policy.Backoff
		}
	}
}

// NewClient creates a new TWSE client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		policy: RetryPolicy{
			MaxAttempts: DefaultMaxAttempts,
			Backoff:     DefaultBackoff,
		},
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
	return fmt.Sprintf("TWSE API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
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

	c.logger.Debug().Str("url", c.baseURL+path).Msg("TWSE API request")

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

type t86Response struct {
	Stat   string     `json:"stat"`
	Date   string     `json:"date"`
	Fields []string   `json:"fields"`
	Data   [][]string `json:"data"`
}

type flowColumns struct {
	foreign int
	trust   int
	dealer  int
	total   int
}

// resolveColumns locates the four net-buy columns by header name so a
// reordered report does not silently misassign figures. Dealer net means the
// self-trade figure, not the aggregate that folds in hedging.
func resolveColumns(fields []string) (flowColumns, error) {
	cols := flowColumns{foreign: -1, trust: -1, dealer: -1, total: -1}
	dealerAggregate := -1
	for i, f := range fields {
		name := strings.TrimSpace(f)
		switch {
		case strings.HasPrefix(name, "外陸資買賣超股數") && cols.foreign < 0:
			cols.foreign = i
		case name == "投信買賣超股數":
			cols.trust = i
		case name == "自營商買賣超股數(自行買賣)":
			cols.dealer = i
		case name == "自營商買賣超股數":
			dealerAggregate = i
		case name == "三大法人買賣超股數":
			cols.total = i
		}
	}
	if cols.dealer < 0 {
		cols.dealer = dealerAggregate
	}
	if cols.foreign < 0 || cols.trust < 0 || cols.dealer < 0 || cols.total < 0 {
		return cols, fmt.Errorf("unexpected T86 fields: %v", fields)
	}
	return cols, nil
}

// parseGroupedInt parses TWSE's comma-grouped signed share counts
func parseGroupedInt(s string) int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "--" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// GetDailyFlows retrieves the T86 report for one trading date, keyed by
// stock code. A holiday or future date yields an empty map with no error.
func (c *Client) GetDailyFlows(ctx context.Context, date time.Time) (map[string]models.InstitutionalFlows, error) {
	params := url.Values{}
	params.Set("date", date.Format("20060102"))
	params.Set("selectType", "ALL")
	params.Set("response", "json")

	var resp t86Response
	if err := c.get(ctx, "/rwd/zh/fund/T86", params, &resp); err != nil {
		return nil, err
	}

	if resp.Stat != "OK" || len(resp.Data) == 0 {
		return map[string]models.InstitutionalFlows{}, nil
	}

	cols, err := resolveColumns(resp.Fields)
	if err != nil {
		return nil, err
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	flows := make(map[string]models.InstitutionalFlows, len(resp.Data))
	for _, row := range resp.Data {
		if len(row) <= cols.total {
			continue
		}
		code := strings.TrimSpace(row[0])
		if code == "" {
			continue
		}
		flows[code] = models.InstitutionalFlows{
			ForeignNet: parseGroupedInt(row[cols.foreign]),
			TrustNet:   parseGroupedInt(row[cols.trust]),
			DealerNet:  parseGroupedInt(row[cols.dealer]),
			TotalNet:   parseGroupedInt(row[cols.total]),
			Date:       day,
		}
	}

	c.logger.Debug().Str("date", resp.Date).Int("rows", len(flows)).Msg("T86 report fetched")

	return flows, nil
}

// LatestFlows walks back from asOf one calendar day at a time until a
// trading day with data is found, up to the policy's attempt budget.
// Weekend days are skipped without consuming an attempt. Returns the flows
// and the report date they belong to.
func (c *Client) LatestFlows(ctx context.Context, asOf time.Time) (map[string]models.InstitutionalFlows, time.Time, error) {
	date := asOf
	var lastErr error

	for attempt := 0; attempt < c.policy.MaxAttempts; {
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			date = date.AddDate(0, 0, -1)
			continue
		}

		flows, err := c.GetDailyFlows(ctx, date)
		if err != nil {
			lastErr = err
			c.logger.Warn().Str("date", date.Format("2006-01-02")).Err(err).Msg("T86 fetch failed, trying prior day")
		} else if len(flows) > 0 {
			return flows, time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC), nil
		} else {
			c.logger.Debug().Str("date", date.Format("2006-01-02")).Msg("no T86 data, trying prior day")
		}

		attempt++
		date = date.AddDate(0, 0, -1)

		if attempt < c.policy.MaxAttempts && c.policy.Backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, time.Time{}, ctx.Err()
			case <-time.After(c.policy.Backoff):
			}
		}
	}

	if lastErr != nil {
		return nil, time.Time{}, fmt.Errorf("no institutional data within %d trading days of %s: %w",
			c.policy.MaxAttempts, asOf.Format("2006-01-02"), lastErr)
	}
	return nil, time.Time{}, fmt.Errorf("no institutional data within %d trading days of %s",
		c.policy.MaxAttempts, asOf.Format("2006-01-02"))
}

// Ensure Client implements the institutional interface
var _ interfaces.InstitutionalClient = (*Client)(nil)
