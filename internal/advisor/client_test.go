package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"hyperliquid-trade-bot-go/internal/coingecko"
	"hyperliquid-trade-bot-go/internal/config"
	"hyperliquid-trade-bot-go/internal/hyperliquid"
	"hyperliquid-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// setupTestClient creates an advisory client pointed at a test server.
func setupTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	cfg := &config.Advisor{
		ApiKey:         "test_api_key",
		BaseURL:        server.URL,
		Model:          "grok-3",
		TimeoutSeconds: 5,
	}
	return NewClient(cfg, zap.NewNop()), server
}

func chatReply(content string) string {
	body := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

func testSeries() coingecko.PriceSeries {
	return coingecko.PriceSeries{
		Points: []coingecko.PricePoint{
			{Timestamp: 1700000000000, Price: 4.8},
			{Timestamp: 1700003600000, Price: 5.0},
		},
	}
}

func TestEvaluateBuy(t *testing.T) {
	token := hyperliquid.Token{Name: "HYPE", FullName: "Hyperliquid", IsCanonical: true}

	t.Run("BuySignal", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test_api_key", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, chatReply("**Token: HYPE**\n- Buy Signal: Yes\n- Reason: uptrend"))
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		decision, err := c.EvaluateBuy(context.Background(), token, testSeries())
		assert.NoError(t, err)
		assert.True(t, decision.Buy)
		assert.Contains(t, decision.Rationale, "uptrend")
	})

	t.Run("NoSignal", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, chatReply("- Buy Signal: No\n- Reason: overbought"))
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		decision, err := c.EvaluateBuy(context.Background(), token, testSeries())
		assert.NoError(t, err)
		assert.False(t, decision.Buy)
	})

	t.Run("MissingMarkerIsFailureNotAction", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, chatReply("this token looks amazing, go all in"))
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		decision, err := c.EvaluateBuy(context.Background(), token, testSeries())
		assert.ErrorIs(t, err, ErrAdvisoryFailure)
		assert.False(t, decision.Buy)
	})

	t.Run("TransportFailure", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		_, err := c.EvaluateBuy(context.Background(), token, testSeries())
		assert.ErrorIs(t, err, ErrAdvisoryFailure)
	})
}

func TestEvaluateSell(t *testing.T) {
	trade := &models.Trade{ID: 7, TokenName: "ETH", Amount: 1, BuyPrice: 100, Status: models.StatusOpen}

	t.Run("Sell", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, chatReply("**Recommendation: SELL**\n- Reason: reversal"))
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		decision, err := c.EvaluateSell(context.Background(), trade, testSeries(), -10)
		assert.NoError(t, err)
		assert.True(t, decision.Sell)
	})

	t.Run("Hold", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, chatReply("**Recommendation: HOLD**\n- Reason: momentum intact"))
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		decision, err := c.EvaluateSell(context.Background(), trade, testSeries(), 12)
		assert.NoError(t, err)
		assert.False(t, decision.Sell)
	})

	t.Run("MissingMarkerDefaultsToHold", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, chatReply("hard to say, markets are wild"))
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		decision, err := c.EvaluateSell(context.Background(), trade, testSeries(), 0)
		assert.ErrorIs(t, err, ErrAdvisoryFailure)
		assert.False(t, decision.Sell)
	})

	t.Run("EmptyChoices", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"choices":[]}`)
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		_, err := c.EvaluateSell(context.Background(), trade, testSeries(), 0)
		assert.ErrorIs(t, err, ErrAdvisoryFailure)
	})
}
