package hyperliquid

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"hyperliquid-trade-bot-go/internal/config"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	OrderTypeLimit = "limitOrder"
	OrderSideBuy   = "buy"
	OrderSideSell  = "sell"

	// Spot metadata barely changes; price-sensitive endpoints are never cached.
	metaCacheTTL = 5 * time.Minute
)

// Error taxonomy for the venue boundary. SubmitBuy/SubmitSell never retry on
// their own: a failed submission needs a fresh decision cycle.
var (
	// ErrVenueUnavailable marks a transport-level failure talking to the venue.
	ErrVenueUnavailable = errors.New("hyperliquid: venue unavailable")
	// ErrVenueRejected marks an order the venue refused. The caller must not
	// record a trade for a rejected order.
	ErrVenueRejected = errors.New("hyperliquid: order rejected")
	// ErrSigning marks a missing or invalid signing key. Nothing can ever be
	// safely submitted without one, so constructors fail fast on it.
	ErrSigning = errors.New("hyperliquid: signing failed")
)

// Token describes one tradable token from the venue's spot metadata.
type Token struct {
	Name        string `json:"name"`
	TokenID     string `json:"tokenId"`
	FullName    string `json:"fullName"`
	EvmContract string `json:"evmContract"`
	IsCanonical bool   `json:"isCanonical"`
	Index       int    `json:"index"`
}

// SpotMetaResponse is the venue's reply to a spotMeta info query.
type SpotMetaResponse struct {
	Tokens []Token `json:"tokens"`
}

// ClientInterface defines the venue operations the trading engine depends on.
type ClientInterface interface {
	GetSpotMeta(ctx context.Context) (*SpotMetaResponse, error)
	SubmitBuy(ctx context.Context, token string, amount, price float64) (string, error)
	SubmitSell(ctx context.Context, token string, amount, price float64) (string, error)
}

// Client talks to the Hyperliquid REST API. Info queries go through a
// rate-limited retrying request path; order submissions are signed with the
// account key and sent exactly once.
type Client struct {
	client     *resty.Client
	privateKey *ecdsa.PrivateKey
	address    string
	logger     *zap.Logger
	limiter    *rate.Limiter

	metaMu     sync.Mutex
	cachedMeta *SpotMetaResponse
	metaAt     time.Time

	nonceMu   sync.Mutex
	lastNonce int64
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates a venue client. The private key is parsed eagerly so a
// bad credential kills the process before any network call.
func NewClient(cfg *config.Hyperliquid, logger *zap.Logger) (*Client, error) {
	pkHex := strings.TrimPrefix(cfg.PrivateKey, "0x")
	pk, err := crypto.HexToECDSA(pkHex)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", ErrSigning, err)
	}
	addr := crypto.PubkeyToAddress(pk.PublicKey)

	client := resty.New().SetBaseURL(cfg.BaseURL)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	logger.Info("Wallet connected", zap.String("address", addr.Hex()))

	return &Client{
		client:     client,
		privateKey: pk,
		address:    addr.Hex(),
		logger:     logger,
		limiter:    limiter,
	}, nil
}

// Address returns the venue account address derived from the signing key.
func (c *Client) Address() string {
	return c.address
}

// doRequest executes a request with rate limiting and bounded retries.
// maxAttempts is 1 for order submissions: retrying those is the caller's
// next decision cycle, never the transport layer.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request, maxAttempts int) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < maxAttempts; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		shouldRetry := false
		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
				shouldRetry = true
			}
		} else {
			// Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry || i == maxAttempts-1 {
			break
		}

		// Exponential backoff: 1s, 2s, 4s
		retryAfter := time.Duration(math.Pow(2, float64(i))) * time.Second
		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVenueUnavailable, err)
	}
	return resp, nil
}

// GetSpotMeta fetches the tradable token universe, serving a cached copy for
// up to five minutes. The caller bounds the call through ctx.
func (c *Client) GetSpotMeta(ctx context.Context) (*SpotMetaResponse, error) {
	c.metaMu.Lock()
	if c.cachedMeta != nil && time.Since(c.metaAt) < metaCacheTTL {
		meta := c.cachedMeta
		c.metaMu.Unlock()
		c.logger.Debug("Using cached spot metadata")
		return meta, nil
	}
	c.metaMu.Unlock()

	var meta SpotMetaResponse
	req := c.client.R().
		SetBody(map[string]string{"type": "spotMeta"}).
		SetHeader("Content-Type", "application/json").
		SetResult(&meta)

	resp, err := c.doRequest(ctx, "POST", "/info", req, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to get spot meta: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: spot meta query returned status %s", ErrVenueUnavailable, resp.Status())
	}

	result := resp.Result().(*SpotMetaResponse)

	c.metaMu.Lock()
	c.cachedMeta = result
	c.metaAt = time.Now()
	c.metaMu.Unlock()

	c.logger.Info("Spot metadata fetched", zap.Int("tokens", len(result.Tokens)))
	return result, nil
}

// orderPayload is the canonical order form. Field order is fixed by the
// struct so its JSON serialization is stable for signing.
type orderPayload struct {
	Type          string `json:"type"`
	Token         string `json:"token"`
	Side          string `json:"side"`
	Amount        string `json:"amount"`
	Price         string `json:"price"`
	Timestamp     int64  `json:"timestamp"`
	ClientOrderID string `json:"clientOrderId"`
}

type signedOrder struct {
	orderPayload
	Signature string `json:"signature"`
}

// orderResponse is the venue's reply to a successful submission.
type orderResponse struct {
	OrderID string `json:"orderId"`
	Error   string `json:"error,omitempty"`
}

// nextNonce returns a strictly increasing millisecond nonce. The client order
// id derived from it makes every submission unique, so a caller-level retry
// can never double-execute.
func (c *Client) nextNonce() int64 {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	nonce := time.Now().UnixMilli()
	if nonce <= c.lastNonce {
		nonce = c.lastNonce + 1
	}
	c.lastNonce = nonce
	return nonce
}

// signPayload signs the canonical JSON serialization of the order with the
// account key (EIP-191 personal-message scheme, matching the venue wallet
// contract).
func (c *Client) signPayload(payload *orderPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal payload: %v", ErrSigning, err)
	}

	hash := accounts.TextHash(raw)
	sig, err := crypto.Sign(hash, c.privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	// Shift recovery id to the Ethereum convention.
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// SubmitBuy submits a signed buy order and returns the venue order id.
func (c *Client) SubmitBuy(ctx context.Context, token string, amount, price float64) (string, error) {
	return c.submitOrder(ctx, token, OrderSideBuy, amount, price)
}

// SubmitSell submits a signed sell order and returns the venue order id.
func (c *Client) SubmitSell(ctx context.Context, token string, amount, price float64) (string, error) {
	return c.submitOrder(ctx, token, OrderSideSell, amount, price)
}

func (c *Client) submitOrder(ctx context.Context, token, side string, amount, price float64) (string, error) {
	nonce := c.nextNonce()
	payload := &orderPayload{
		Type:          OrderTypeLimit,
		Token:         token,
		Side:          side,
		Amount:        strconv.FormatFloat(amount, 'f', -1, 64),
		Price:         strconv.FormatFloat(price, 'f', -1, 64),
		Timestamp:     nonce,
		ClientOrderID: fmt.Sprintf("hlbot-%d", nonce),
	}

	signature, err := c.signPayload(payload)
	if err != nil {
		return "", err
	}

	l := c.logger.With(
		zap.String("token", token),
		zap.String("side", side),
		zap.Float64("amount", amount),
		zap.Float64("price", price),
		zap.String("client_order_id", payload.ClientOrderID),
	)
	l.Info("Submitting order...")

	var result orderResponse
	req := c.client.R().
		SetBody(&signedOrder{orderPayload: *payload, Signature: signature}).
		SetHeader("Content-Type", "application/json").
		SetResult(&result)

	// Single attempt. A rejected or lost order must surface to the caller,
	// never be silently resubmitted.
	resp, err := c.doRequest(ctx, "POST", "/exchange", req, 1)
	if err != nil {
		l.Error("Order submission failed", zap.Error(err))
		return "", err
	}
	if resp.IsError() {
		l.Error("Order rejected by venue", zap.String("status", resp.Status()), zap.String("body", resp.String()))
		return "", fmt.Errorf("%w: status %s: %s", ErrVenueRejected, resp.Status(), resp.String())
	}

	order := resp.Result().(*orderResponse)
	if order.Error != "" {
		l.Error("Order rejected by venue", zap.String("error", order.Error))
		return "", fmt.Errorf("%w: %s", ErrVenueRejected, order.Error)
	}
	if order.OrderID == "" {
		return "", fmt.Errorf("%w: response carried no order id", ErrVenueRejected)
	}

	l.Info("Order placed", zap.String("order_id", order.OrderID))
	return order.OrderID, nil
}
