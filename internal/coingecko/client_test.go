package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hyperliquid-trade-bot-go/internal/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestClient creates a client pointed at a test server with the rate
// limiter opened up.
func setupTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	c := NewClient(&config.CoinGecko{BaseURL: server.URL}, zap.NewNop())
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c, server
}

func TestGetPriceHistory(t *testing.T) {
	t.Run("MappedToken", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/coins/hyperliquid/market_chart", r.URL.Path)
			assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
			assert.Equal(t, "7", r.URL.Query().Get("days"))
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"prices":[[1700000000000,4.8],[1700003600000,5.0]]}`)
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		series, err := c.GetPriceHistory(context.Background(), "HYPE", 7)
		assert.NoError(t, err)
		assert.False(t, series.Simulated)
		assert.Len(t, series.Points, 2)
		assert.Equal(t, int64(1700000000000), series.Points[0].Timestamp)

		latest, ok := series.Latest()
		assert.True(t, ok)
		assert.Equal(t, 5.0, latest.Price)
	})

	t.Run("UnmappedTokenIsSimulated", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("provider must not be queried for unmapped tokens")
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		series, err := c.GetPriceHistory(context.Background(), "PURR", 2)
		assert.NoError(t, err)
		assert.True(t, series.Simulated)
		assert.Len(t, series.Points, 48) // hourly over the lookback window
		for _, p := range series.Points {
			assert.InDelta(t, 1.0, p.Price, 0.05)
		}
	})

	t.Run("ProviderError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		_, err := c.GetPriceHistory(context.Background(), "HYPE", 7)
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})
}

func TestSimulatedSeries(t *testing.T) {
	series := SimulatedSeries("PURR", 1)
	assert.True(t, series.Simulated)
	assert.Len(t, series.Points, 24)

	// Oldest first, one point per hour.
	for i := 1; i < len(series.Points); i++ {
		delta := series.Points[i].Timestamp - series.Points[i-1].Timestamp
		assert.Equal(t, time.Hour.Milliseconds(), delta)
	}
}
