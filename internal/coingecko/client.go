package coingecko

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"hyperliquid-trade-bot-go/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrUpstreamUnavailable marks a failed price-history fetch for a token the
// provider does know about. Callers skip the token for the current cycle.
var ErrUpstreamUnavailable = errors.New("coingecko: upstream unavailable")

// tokenIDMap translates venue token names to CoinGecko coin ids. Tokens
// without a mapping get a simulated series instead of an error.
var tokenIDMap = map[string]string{
	"USDC": "usd-coin",
	"HYPE": "hyperliquid",
}

// PricePoint is one (timestamp, price) observation. Timestamps are epoch
// millis, series are ordered oldest first.
type PricePoint struct {
	Timestamp int64
	Price     float64
}

// PriceSeries is a token's price history. Simulated series are synthetic
// stand-ins for tokens the provider cannot chart; downstream logic must not
// trade on them.
type PriceSeries struct {
	Points    []PricePoint
	Simulated bool
}

// Latest returns the newest observation in the series.
func (s PriceSeries) Latest() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// ClientInterface defines the price-history operations the engine depends on.
type ClientInterface interface {
	GetPriceHistory(ctx context.Context, tokenName string, days int) (PriceSeries, error)
}

// Client fetches market charts from CoinGecko. Responses are never cached;
// every call reflects the current market.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates a CoinGecko client.
func NewClient(cfg *config.CoinGecko, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(15 * time.Second)

	// CoinGecko's public tier allows roughly 30 calls/minute.
	limiter := rate.NewLimiter(rate.Limit(0.5), 2)

	return &Client{
		client:  client,
		logger:  logger,
		limiter: limiter,
	}
}

// marketChartResponse mirrors the /coins/{id}/market_chart reply.
type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

// GetPriceHistory returns the token's recent price series, oldest first.
// Tokens without a provider mapping get a synthetic series flagged Simulated
// so callers can discount it.
func (c *Client) GetPriceHistory(ctx context.Context, tokenName string, days int) (PriceSeries, error) {
	tokenID, ok := tokenIDMap[tokenName]
	if !ok {
		c.logger.Warn("No provider mapping for token, using simulated price data",
			zap.String("token", tokenName))
		return SimulatedSeries(tokenName, days), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return PriceSeries{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var chart marketChartResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"vs_currency": "usd",
			"days":        fmt.Sprintf("%d", days),
		}).
		SetResult(&chart).
		Get(fmt.Sprintf("/coins/%s/market_chart", tokenID))
	if err != nil {
		return PriceSeries{}, fmt.Errorf("%w: fetch history for %s: %v", ErrUpstreamUnavailable, tokenName, err)
	}
	if resp.IsError() {
		return PriceSeries{}, fmt.Errorf("%w: history for %s returned status %s", ErrUpstreamUnavailable, tokenName, resp.Status())
	}

	result := resp.Result().(*marketChartResponse)
	points := make([]PricePoint, 0, len(result.Prices))
	for _, p := range result.Prices {
		points = append(points, PricePoint{Timestamp: int64(p[0]), Price: p[1]})
	}

	c.logger.Debug("Price history fetched",
		zap.String("token", tokenName),
		zap.Int("points", len(points)))

	return PriceSeries{Points: points}, nil
}

// SimulatedSeries builds an hourly series of small random perturbations
// around 1.0, one point per hour over the lookback window, oldest first.
func SimulatedSeries(tokenName string, days int) PriceSeries {
	n := days * 24
	if n <= 0 {
		n = 24
	}
	now := time.Now()
	points := make([]PricePoint, n)
	for i := 0; i < n; i++ {
		ts := now.Add(-time.Duration(n-i-1) * time.Hour)
		points[i] = PricePoint{
			Timestamp: ts.UnixMilli(),
			Price:     1 + (rand.Float64()-0.5)*0.1,
		}
	}
	return PriceSeries{Points: points, Simulated: true}
}
