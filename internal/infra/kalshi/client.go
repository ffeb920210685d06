package kalshi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kalshi_news/internal/domain"
	"kalshi_news/internal/infra"

	"github.com/shopspring/decimal"
)

// Kalshi API Constants
const (
	BaseURL = "https://api.elections.kalshi.com/trade-api/v2"

	accessKeyHeader = "KALSHI-ACCESS-KEY"
	maxBodyBytes    = 16 << 20
)

// Client is the Kalshi public market data REST client (Boundary Layer)
type Client struct {
	baseURL    string
	apiKey     string
	status     string
	pageSize   int
	maxMarkets int
	maxRetries int
	deadline   time.Duration // Bounds a whole FetchMarkets call
	backoff    time.Duration // First retry delay, doubled per attempt
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Kalshi API client.
func NewClient(cfg *infra.Config) *Client {
	baseURL := cfg.Kalshi.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.Kalshi.APIKey,
		status:     cfg.Kalshi.Status,
		pageSize:   cfg.Kalshi.PageSize,
		maxMarkets: cfg.Kalshi.MaxMarkets,
		maxRetries: max(cfg.Kalshi.MaxRetries, 1),
		deadline:   time.Duration(cfg.Kalshi.DeadlineSec) * time.Second,
		backoff:    time.Second,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Kalshi.TimeoutSec) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger: slog.Default().With("module", "kalshi_client"),
	}
}

// marketsResponse is the GET /markets payload
type marketsResponse struct {
	Markets []apiMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

// apiMarket carries the consumed subset of a Kalshi market.
// Prices arrive either as integer cents or as "_dollars" decimal strings.
type apiMarket struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	YesSubTitle  string `json:"yes_sub_title"`
	Category     string `json:"category"`
	Status       string `json:"status"`
	YesPrice     *int   `json:"yes_price"`
	LastPrice    *int   `json:"last_price"`
	YesBid       *int   `json:"yes_bid"`
	YesAsk       *int   `json:"yes_ask"`
	LastPriceUSD string `json:"last_price_dollars"`
	YesBidUSD    string `json:"yes_bid_dollars"`
	YesAskUSD    string `json:"yes_ask_dollars"`
	Volume       int64  `json:"volume"`
	OpenInterest int64  `json:"open_interest"`
	CloseTime    string `json:"close_time"`
}

// FetchMarkets pages through open markets up to the configured maximum.
func (c *Client) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	if c.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.deadline)
		defer cancel()
	}

	markets := make([]domain.Market, 0, c.maxMarkets)
	cursor := ""

	for len(markets) < c.maxMarkets {
		page, err := c.fetchPage(ctx, cursor)
		if err != nil {
			return nil, domain.NewUpstreamError("markets", err)
		}
		if len(page.Markets) == 0 {
			break
		}
		for _, m := range page.Markets {
			if m.Ticker == "" {
				continue
			}
			markets = append(markets, toDomain(m))
		}
		if page.Cursor == "" || page.Cursor == cursor {
			break
		}
		cursor = page.Cursor
	}

	if len(markets) > c.maxMarkets {
		markets = markets[:c.maxMarkets]
	}

	c.logger.Debug("Fetched markets", slog.Int("count", len(markets)))
	return markets, nil
}

// fetchPage fetches one page with retry logic
func (c *Client) fetchPage(ctx context.Context, cursor string) (*marketsResponse, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprint(c.pageSize))
	if c.status != "" {
		params.Set("status", c.status)
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s, 4s
			delay := c.backoff << uint(i-1)
			c.logger.Info("Retrying markets fetch", slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		page, err := c.doFetch(ctx, params)
		if err == nil {
			return page, nil
		}
		lastErr = err
		c.logger.Warn("Markets fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
		if !domain.IsRetriable(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) doFetch(ctx context.Context, params url.Values) (*marketsResponse, error) {
	endpoint := c.baseURL + "/markets?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewFatalNetworkError("build request", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", infra.DefaultUserAgent)
	if c.apiKey != "" {
		req.Header.Set(accessKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, domain.NewFatalNetworkError("fetch markets", err)
		}
		return nil, domain.NewNetworkError("fetch markets", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewNetworkError("read markets", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("unexpected status code: %d body=%s", resp.StatusCode, truncate(string(body), 200))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, domain.NewNetworkError("fetch markets", statusErr)
		}
		return nil, domain.NewFatalNetworkError("fetch markets", statusErr)
	}

	var page marketsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, domain.NewFatalNetworkError("decode markets", err)
	}
	return &page, nil
}

// toDomain converts the wire market into a domain.Market
func toDomain(m apiMarket) domain.Market {
	subtitle := m.Subtitle
	if subtitle == "" {
		subtitle = m.YesSubTitle
	}

	return domain.Market{
		Ticker:       m.Ticker,
		EventTicker:  m.EventTicker,
		Title:        m.Title,
		Subtitle:     subtitle,
		RawCategory:  m.Category,
		Category:     domain.Categorize(m.Category, m.Title),
		YesPrice:     yesPrice(m),
		Volume:       max(m.Volume, 0),
		OpenInterest: max(m.OpenInterest, 0),
		CloseTime:    parseTime(m.CloseTime),
	}
}

// defaultYesPrice is used when the market reports no usable price.
const defaultYesPrice = 50

// yesPrice picks the YES price in cents: explicit price, last trade, then bid/ask midpoint.
func yesPrice(m apiMarket) int {
	if m.YesPrice != nil && *m.YesPrice > 0 {
		return clampCents(*m.YesPrice)
	}
	if cents, ok := dollarsToCents(m.LastPriceUSD); ok && cents > 0 {
		return cents
	}
	if m.LastPrice != nil && *m.LastPrice > 0 {
		return clampCents(*m.LastPrice)
	}

	bid, bidOK := dollarsToCents(m.YesBidUSD)
	ask, askOK := dollarsToCents(m.YesAskUSD)
	if !bidOK && m.YesBid != nil {
		bid, bidOK = clampCents(*m.YesBid), true
	}
	if !askOK && m.YesAsk != nil {
		ask, askOK = clampCents(*m.YesAsk), true
	}
	if bidOK && askOK && ask > 0 {
		mid := decimal.NewFromInt(int64(bid + ask)).Div(decimal.NewFromInt(2)).Round(0)
		return clampCents(int(mid.IntPart()))
	}
	return defaultYesPrice
}

// dollarsToCents parses a "0.7800" style price into whole cents.
func dollarsToCents(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return clampCents(int(d.Shift(2).Round(0).IntPart())), true
}

func clampCents(c int) int {
	return min(max(c, 0), 100)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
