// Package market provides the Finnhub market-data client used by the tool
// registry and brief builder. Upstream outages degrade to demo data so the
// voice reply stays speakable; results carry a Fallback flag for that case.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"marketbrief/internal/domain"
	"marketbrief/internal/domain/models"
	"marketbrief/pkg/metrics"
)

const (
	// DefaultBaseURL is the Finnhub REST endpoint.
	DefaultBaseURL = "https://finnhub.io/api/v1"
	// DefaultTimeout bounds each upstream request.
	DefaultTimeout = 8 * time.Second
)

// DefaultUniverse is the symbol set scanned for movers. Finnhub's free tier
// has no market-wide screener, so movers are ranked within this fixed set.
var DefaultUniverse = []string{"AAPL", "MSFT", "NVDA", "AMZN", "META", "TSLA", "GOOGL", "AVGO"}

// QuoteResult is a single-ticker quote. Fallback is true when the provider
// failed and demo data was substituted; Err then carries the upstream error.
type QuoteResult struct {
	Quote    models.Quote
	Fallback bool
	Err      string
}

// MoversResult ranks the universe by percent change in one direction.
type MoversResult struct {
	Direction string
	Movers    []models.Mover
	Fallback  bool
	Err       string
}

// NewsResult holds recent headlines for a ticker, or "MARKET" for general news.
type NewsResult struct {
	Ticker    string
	Headlines []models.Headline
	Fallback  bool
	Err       string
}

// Source is the market-data surface tool handlers consume. The concrete
// client and the read-through cache both implement it.
type Source interface {
	Quote(ctx context.Context, symbol string) (*QuoteResult, error)
	Movers(ctx context.Context, direction string, limit int) (*MoversResult, error)
	News(ctx context.Context, ticker string, limit int) (*NewsResult, error)
}

// Client is the direct Finnhub client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Finnhub client with default endpoint and timeout.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(apiKey, DefaultBaseURL, DefaultTimeout)
}

// NewClientWithConfig creates a Finnhub client with custom configuration.
func NewClientWithConfig(apiKey, baseURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// get performs one Finnhub request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.apiKey == "" {
		return fmt.Errorf("missing Finnhub API key")
	}

	params.Set("token", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("finnhub %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

type finnhubQuote struct {
	Current       float64  `json:"c"`
	Change        float64  `json:"d"`
	ChangePercent *float64 `json:"dp"`
	PrevClose     float64  `json:"pc"`
}

type finnhubNewsItem struct {
	Headline string `json:"headline"`
	URL      string `json:"url"`
	Datetime int64  `json:"datetime"`
}

// Quote fetches a point-in-time price for one ticker. A zero or negative
// price means the symbol is unknown upstream and maps to ErrNotFound.
// Transport failures return demo data with Fallback set.
func (c *Client) Quote(ctx context.Context, symbol string) (*QuoteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var q finnhubQuote
	if err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}}, &q); err != nil {
		metrics.MarketUpstreamFallbacksTotal.WithLabelValues("quote").Inc()
		price := round2(120 + rand.Float64()*10)
		change := round2((rand.Float64() - 0.5) * 4)
		return &QuoteResult{
			Quote: models.Quote{
				Ticker:        symbol,
				Price:         price,
				Change:        change,
				ChangePercent: round2(change / price * 100),
			},
			Fallback: true,
			Err:      err.Error(),
		}, nil
	}

	if q.Current <= 0 {
		return nil, fmt.Errorf("%w: quote not found for %s", domain.ErrNotFound, symbol)
	}

	changePercent := 0.0
	if q.ChangePercent != nil {
		changePercent = *q.ChangePercent
	}
	return &QuoteResult{
		Quote: models.Quote{
			Ticker:        symbol,
			Price:         q.Current,
			Change:        q.Change,
			ChangePercent: changePercent,
		},
	}, nil
}

// Movers quotes the default universe concurrently and ranks by percent
// change. direction is "losers" or anything-else-means-gainers; limit is
// clamped to 1..20. Individual symbol failures are skipped; if every symbol
// fails the result is demo data with Fallback set.
func (c *Client) Movers(ctx context.Context, direction string, limit int) (*MoversResult, error) {
	if direction != "losers" {
		direction = "gainers"
	}
	limit = clamp(limit, 1, 20)

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	quotes := make([]*models.Mover, len(DefaultUniverse))
	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range DefaultUniverse {
		g.Go(func() error {
			var q finnhubQuote
			if err := c.get(gctx, "/quote", url.Values{"symbol": {symbol}}, &q); err != nil {
				return nil
			}
			changePercent := 0.0
			switch {
			case q.ChangePercent != nil:
				changePercent = *q.ChangePercent
			case q.PrevClose != 0:
				changePercent = (q.Current - q.PrevClose) / q.PrevClose * 100
			case q.Current != 0:
				changePercent = (q.Current - q.PrevClose) / q.Current * 100
			}
			quotes[i] = &models.Mover{Ticker: symbol, Price: q.Current, ChangePercent: changePercent}
			return nil
		})
	}
	_ = g.Wait()

	valid := make([]models.Mover, 0, len(quotes))
	for _, q := range quotes {
		if q != nil {
			valid = append(valid, *q)
		}
	}

	if len(valid) == 0 {
		return c.demoMovers(direction, limit, "no quotes returned"), nil
	}

	sort.Slice(valid, func(i, j int) bool {
		if direction == "gainers" {
			return valid[i].ChangePercent > valid[j].ChangePercent
		}
		return valid[i].ChangePercent < valid[j].ChangePercent
	})
	if len(valid) > limit {
		valid = valid[:limit]
	}
	return &MoversResult{Direction: direction, Movers: valid}, nil
}

func (c *Client) demoMovers(direction string, limit int, errText string) *MoversResult {
	metrics.MarketUpstreamFallbacksTotal.WithLabelValues("movers").Inc()
	base := 2.0
	if direction == "losers" {
		base = -2.0
	}
	symbols := DefaultUniverse
	if len(symbols) > limit {
		symbols = symbols[:limit]
	}
	movers := make([]models.Mover, 0, len(symbols))
	for _, symbol := range symbols {
		movers = append(movers, models.Mover{
			Ticker:        symbol,
			Price:         round2(100 + rand.Float64()*300),
			ChangePercent: round2(base + (rand.Float64()-0.5)*1.5),
		})
	}
	return &MoversResult{Direction: direction, Movers: movers, Fallback: true, Err: errText}
}

// News returns recent headlines. With a ticker it reads company news from
// the last seven days, otherwise general market news. limit is clamped to
// 1..10. Upstream failure yields demo headlines with Fallback set.
func (c *Client) News(ctx context.Context, ticker string, limit int) (*NewsResult, error) {
	limit = clamp(limit, 1, 10)
	target := ticker
	if target == "" {
		target = "MARKET"
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var items []finnhubNewsItem
	var err error
	if ticker != "" {
		now := time.Now().UTC()
		err = c.get(ctx, "/company-news", url.Values{
			"symbol": {ticker},
			"from":   {now.AddDate(0, 0, -7).Format("2006-01-02")},
			"to":     {now.Format("2006-01-02")},
		}, &items)
	} else {
		err = c.get(ctx, "/news", url.Values{"category": {"general"}}, &items)
	}
	if err != nil {
		metrics.MarketUpstreamFallbacksTotal.WithLabelValues("news").Inc()
		headlines := make([]models.Headline, 0, limit)
		for i := 0; i < limit; i++ {
			headlines = append(headlines, models.Headline{
				Title: fmt.Sprintf("Demo headline %d for %s", i+1, target),
				URL:   "#",
				Time:  time.Now().Add(-time.Duration(i) * time.Minute).UTC().Format(time.RFC3339),
			})
		}
		return &NewsResult{Ticker: target, Headlines: headlines, Fallback: true, Err: err.Error()}, nil
	}

	if len(items) > limit {
		items = items[:limit]
	}
	headlines := make([]models.Headline, 0, len(items))
	for _, n := range items {
		h := models.Headline{Title: n.Headline, URL: n.URL}
		if n.Datetime > 0 {
			h.Time = time.Unix(n.Datetime, 0).UTC().Format(time.RFC3339)
		}
		headlines = append(headlines, h)
	}
	return &NewsResult{Ticker: target, Headlines: headlines}, nil
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
