package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hyperliquid-trade-bot-go/internal/coingecko"
	"hyperliquid-trade-bot-go/internal/config"
	"hyperliquid-trade-bot-go/internal/hyperliquid"
	"hyperliquid-trade-bot-go/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrAdvisoryFailure marks a transport failure or an unparseable reply from
// the reasoning service. The caller treats it as "no action" for that token
// in that cycle; it is never fatal to the loop.
var ErrAdvisoryFailure = errors.New("advisor: advisory failure")

// Keep the prompt payload bounded; the reasoning call is the dominant
// latency source per token already.
const maxSeriesPoints = 168

// Decision is the parsed outcome of one advisory call.
type Decision struct {
	Buy       bool
	Sell      bool
	Rationale string
}

// ClientInterface defines the advisory operations the engine depends on.
type ClientInterface interface {
	EvaluateBuy(ctx context.Context, token hyperliquid.Token, series coingecko.PriceSeries) (Decision, error)
	EvaluateSell(ctx context.Context, trade *models.Trade, series coingecko.PriceSeries, profitLoss float64) (Decision, error)
}

// Client submits structured market data to an OpenAI-compatible chat
// completions endpoint and parses the constrained textual reply. One attempt
// per call; failures are counted by the caller, not retried here.
type Client struct {
	client *resty.Client
	model  string
	logger *zap.Logger
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates an advisory client.
func NewClient(cfg *config.Advisor, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.ApiKey).
		SetTimeout(timeout)

	return &Client{
		client: client,
		model:  cfg.Model,
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete performs one chat-completions call and returns the reply text.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	var result chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&chatRequest{
			Model:     c.model,
			Messages:  []chatMessage{{Role: "user", Content: prompt}},
			MaxTokens: 1500,
		}).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAdvisoryFailure, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: status %s", ErrAdvisoryFailure, resp.Status())
	}

	reply := resp.Result().(*chatResponse)
	if len(reply.Choices) == 0 {
		return "", fmt.Errorf("%w: reply carried no choices", ErrAdvisoryFailure)
	}
	return reply.Choices[0].Message.Content, nil
}

// formatSeries renders the tail of a price series as prompt text.
func formatSeries(series coingecko.PriceSeries) string {
	points := series.Points
	if len(points) > maxSeriesPoints {
		points = points[len(points)-maxSeriesPoints:]
	}

	var b strings.Builder
	if series.Simulated {
		b.WriteString("NOTE: this price data is SIMULATED and unreliable.\n")
	}
	for _, p := range points {
		fmt.Fprintf(&b, "%s %.6f\n", time.UnixMilli(p.Timestamp).UTC().Format("2006-01-02 15:04"), p.Price)
	}
	return b.String()
}

// EvaluateBuy asks the reasoning service whether the token is worth opening a
// position on. An unreadable reply defaults to no buy.
func (c *Client) EvaluateBuy(ctx context.Context, token hyperliquid.Token, series coingecko.PriceSeries) (Decision, error) {
	prompt := fmt.Sprintf(`You are a cryptocurrency trading expert. Analyze the following spot token and its recent price history and decide whether it is a good buy opportunity.

Focus on:
- Canonical status (well-established and trusted).
- EVM compatibility.
- Price trend (consistent uptrend, stability, or undervaluation).

Answer using exactly this format:
**Token: %s**
- Buy Signal: [Yes or No]
- Reason: [Brief explanation]
- Price Trend: [Uptrend / Downtrend / Stable / Simulated]

Be honest: if it is not a good time to buy, say "No" with the reason.

Token metadata: name=%s fullName=%q canonical=%t evmContract=%q

Price history (oldest first):
%s`, token.Name, token.Name, token.FullName, token.IsCanonical, token.EvmContract, formatSeries(series))

	reply, err := c.complete(ctx, prompt)
	if err != nil {
		return Decision{}, err
	}

	switch ParseBuySignal(reply) {
	case BuyYes:
		return Decision{Buy: true, Rationale: reply}, nil
	case BuyNo:
		return Decision{Rationale: reply}, nil
	default:
		c.logger.Warn("Buy reply missing signal marker, defaulting to no buy",
			zap.String("token", token.Name))
		return Decision{Rationale: reply}, fmt.Errorf("%w: reply missing buy signal marker", ErrAdvisoryFailure)
	}
}

// EvaluateSell asks the reasoning service whether to close an open position.
// An unreadable reply defaults to hold.
func (c *Client) EvaluateSell(ctx context.Context, trade *models.Trade, series coingecko.PriceSeries, profitLoss float64) (Decision, error) {
	prompt := fmt.Sprintf(`You are a cryptocurrency trading expert. Decide whether to sell or hold the open %s position described below.

Consider:
- Current profit/loss: %.2f USD
- Price trend over the recent history (uptrends, downtrends, volatility).

Answer using exactly this format:
**Recommendation: [SELL/HOLD]**
- Reason: [Explanation]
- Price Trend: [Trend or "Simulated"]
- Profit/Loss: %.2f USD

Position: bought %.6f %s at %.6f USD.

Price history (oldest first):
%s`, trade.TokenName, profitLoss, profitLoss, trade.Amount, trade.TokenName, trade.BuyPrice, formatSeries(series))

	reply, err := c.complete(ctx, prompt)
	if err != nil {
		return Decision{}, err
	}

	switch ParseSellRecommendation(reply) {
	case SellSell:
		return Decision{Sell: true, Rationale: reply}, nil
	case SellHold:
		return Decision{Rationale: reply}, nil
	default:
		c.logger.Warn("Sell reply missing recommendation marker, defaulting to hold",
			zap.String("token", trade.TokenName))
		return Decision{Rationale: reply}, fmt.Errorf("%w: reply missing recommendation marker", ErrAdvisoryFailure)
	}
}
