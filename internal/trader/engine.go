package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"hyperliquid-trade-bot-go/internal/advisor"
	"hyperliquid-trade-bot-go/internal/coingecko"
	"hyperliquid-trade-bot-go/internal/config"
	"hyperliquid-trade-bot-go/internal/hyperliquid"
	"hyperliquid-trade-bot-go/internal/ledger"
	"hyperliquid-trade-bot-go/internal/models"
	"hyperliquid-trade-bot-go/internal/notify"
	"hyperliquid-trade-bot-go/internal/positions"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bounded per-call timeouts keep one stalled upstream from starving the
// cycle and make Stop eventually effective. The advisory client carries its
// own (configurable, much larger) timeout.
const (
	metaTimeout    = 30 * time.Second
	historyTimeout = 30 * time.Second
	orderTimeout   = 30 * time.Second
)

// Engine drives the trading cycle: universe scan, advisory evaluation, order
// execution, ledger update, observer notification. All collaborators are
// injected; there is no ambient global state.
type Engine struct {
	UUID      string
	StartTime time.Time

	logger   *zap.Logger
	cfg      *config.Config
	venue    hyperliquid.ClientInterface
	market   coingecko.ClientInterface
	advisor  advisor.ClientInterface
	ledger   *ledger.Ledger
	tracker  *positions.Tracker
	notifier notify.Notifier

	// capital is read by the sizing function. It is deliberately not
	// decremented on opens; exposure-net tracking is a policy decision left
	// to configuration of the fraction.
	capital float64

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// cycleMu is the re-entrancy guard: a tick that fires while the previous
	// cycle is still running is skipped, not queued.
	cycleMu chan struct{}

	// busy serializes work per token. Overlap across different tokens is
	// fine and parallelized; overlap on the same token is not.
	busyMu sync.Mutex
	busy   map[string]bool

	advisoryFailures atomic.Int64
}

// NewEngine creates a trading engine.
func NewEngine(
	logger *zap.Logger,
	cfg *config.Config,
	venue hyperliquid.ClientInterface,
	market coingecko.ClientInterface,
	adv advisor.ClientInterface,
	led *ledger.Ledger,
	tracker *positions.Tracker,
	notifier notify.Notifier,
) *Engine {
	return &Engine{
		UUID:      uuid.NewString(),
		StartTime: time.Now(),
		logger:    logger,
		cfg:       cfg,
		venue:     venue,
		market:    market,
		advisor:   adv,
		ledger:    led,
		tracker:   tracker,
		notifier:  notifier,
		capital:   cfg.Trading.Capital,
		cycleMu:   make(chan struct{}, 1),
		busy:      make(map[string]bool),
	}
}

// Initialize rebuilds the in-memory position index from the ledger. The
// ledger is authoritative across restarts; the tracker is never trusted
// standalone.
func (e *Engine) Initialize() error {
	openTrades, err := e.ledger.SelectOpen()
	if err != nil {
		return fmt.Errorf("could not load open trades: %w", err)
	}
	e.tracker.Rebuild(openTrades)
	return nil
}

// Start begins the periodic trading loop. Starting an already-running engine
// is a no-op; the return value reports whether this call started it.
func (e *Engine) Start() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.running {
		e.logger.Info("Start requested but loop already running")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.running = true
	e.done = make(chan struct{})
	go e.run(ctx, e.done)

	e.logger.Info("Trading loop started")
	return true
}

// Stop prevents further ticks from being scheduled. It does not abort an
// in-flight cycle; bounded per-call timeouts let that cycle drain on its
// own. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if !e.running {
		e.logger.Info("Stop requested but loop not running")
		return false
	}

	e.cancel()
	e.running = false
	e.logger.Info("Trading loop stopped")
	return true
}

// Running reports whether the periodic loop is active.
func (e *Engine) Running() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.running
}

// run is the scheduler: one fixed-interval timer driving both phases. A
// failed cycle shortens the delay before the next attempt instead of
// terminating the loop.
func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := time.Duration(e.cfg.Trading.TickInterval) * time.Second
	retry := time.Duration(e.cfg.Trading.ErrorRetryInterval) * time.Second
	e.logger.Info("Starting trading loop", zap.Duration("interval", interval))

	// The first pass runs immediately on start; subsequent passes follow the
	// configured interval.
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			// The cycle runs on its own context so Stop only suppresses the
			// next tick rather than cutting calls mid-flight.
			if err := e.RunCycle(context.Background()); err != nil {
				e.logger.Error("Trading cycle failed", zap.Error(err))
				timer.Reset(retry)
			} else {
				timer.Reset(interval)
			}
		}
	}
}

// RunCycle performs one buy-phase and sell-phase pass. If a previous cycle
// is still in flight the call is skipped: re-entrancy is an explicit guard,
// not an accident of timer spacing.
func (e *Engine) RunCycle(ctx context.Context) error {
	select {
	case e.cycleMu <- struct{}{}:
	default:
		e.logger.Warn("Previous cycle still running, skipping this tick")
		return nil
	}
	defer func() { <-e.cycleMu }()

	e.logger.Info("Starting trading cycle")

	var firstErr error
	if err := e.buyPhase(ctx); err != nil {
		e.logger.Error("Buy phase failed", zap.Error(err))
		firstErr = err
	}
	if err := e.sellPhase(ctx); err != nil {
		e.logger.Error("Sell phase failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	e.logger.Info("Trading cycle complete")
	return firstErr
}

// acquireToken marks a token as in flight. A token whose previous cycle has
// not finished is skipped this tick.
func (e *Engine) acquireToken(name string) bool {
	e.busyMu.Lock()
	defer e.busyMu.Unlock()
	if e.busy[name] {
		return false
	}
	e.busy[name] = true
	return true
}

func (e *Engine) releaseToken(name string) {
	e.busyMu.Lock()
	delete(e.busy, name)
	e.busyMu.Unlock()
}

// buyPhase scans the token universe for new positions to open. Tokens are
// evaluated concurrently; any single-token failure is logged at this
// boundary and never aborts the cycle.
func (e *Engine) buyPhase(ctx context.Context) error {
	mctx, cancel := context.WithTimeout(ctx, metaTimeout)
	meta, err := e.venue.GetSpotMeta(mctx)
	cancel()
	if err != nil {
		return fmt.Errorf("could not get token universe: %w", err)
	}

	var wg sync.WaitGroup
	for _, token := range meta.Tokens {
		if e.tracker.Has(token.Name) {
			e.logger.Debug("Already holding token, skipping buy", zap.String("token", token.Name))
			continue
		}
		if !e.acquireToken(token.Name) {
			e.logger.Warn("Token still busy from previous cycle, skipping", zap.String("token", token.Name))
			continue
		}

		wg.Add(1)
		go func(tok hyperliquid.Token) {
			defer wg.Done()
			defer e.releaseToken(tok.Name)
			if err := e.evaluateBuy(ctx, tok); err != nil {
				e.logger.Warn("Buy evaluation failed",
					zap.String("token", tok.Name),
					zap.String("phase", "buy"),
					zap.Error(err))
			}
		}(token)
	}
	wg.Wait()

	return nil
}

// evaluateBuy runs the full buy path for one token: history, advisory,
// sizing, submission, ledger insert, tracker add, notification, strictly in
// that order.
func (e *Engine) evaluateBuy(ctx context.Context, token hyperliquid.Token) error {
	hctx, cancel := context.WithTimeout(ctx, historyTimeout)
	series, err := e.market.GetPriceHistory(hctx, token.Name, e.cfg.Trading.LookbackDays)
	cancel()
	if err != nil {
		return err
	}

	decision, err := e.advisor.EvaluateBuy(ctx, token, series)
	if err != nil {
		e.advisoryFailures.Add(1)
		return err
	}
	if !decision.Buy {
		e.logger.Debug("No buy signal", zap.String("token", token.Name))
		return nil
	}

	if series.Simulated {
		e.logger.Warn("Buy signal on simulated price data, skipping",
			zap.String("token", token.Name))
		return nil
	}

	latest, ok := series.Latest()
	if !ok || latest.Price <= 0 {
		return fmt.Errorf("no resolvable current price for %s", token.Name)
	}

	amount := (e.capital * e.cfg.Trading.TradeFraction) / latest.Price

	l := e.logger.With(
		zap.String("token", token.Name),
		zap.Float64("amount", amount),
		zap.Float64("price", latest.Price),
	)
	l.Info("Buy signal confirmed, submitting order")

	var orderID string
	if e.cfg.Trading.DryRun {
		orderID = fmt.Sprintf("dry-%d", time.Now().UnixMilli())
		l.Warn("Dry run enabled, order not sent to venue", zap.String("order_id", orderID))
	} else {
		octx, cancel := context.WithTimeout(ctx, orderTimeout)
		orderID, err = e.venue.SubmitBuy(octx, token.Name, amount, latest.Price)
		cancel()
		if err != nil {
			// Rejected or unreachable venue: nothing executed, nothing recorded.
			return err
		}
	}

	trade := &models.Trade{
		TokenName:    token.Name,
		TokenAddress: token.EvmContract,
		Amount:       amount,
		BuyPrice:     latest.Price,
		BuyTime:      time.Now().UnixMilli(),
		OrderID:      orderID,
	}
	if _, err := e.ledger.InsertOpen(trade); err != nil {
		// Money moved but the record did not. This must be reconciled by
		// hand, so it gets the loudest log line in the codebase.
		l.Error("RECONCILIATION REQUIRED: order executed but ledger insert failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		return err
	}

	if err := e.tracker.Add(token.Name, models.PositionFromTrade(trade)); err != nil {
		l.Error("Position already tracked after insert, skipping add", zap.Error(err))
	}

	e.notifier.EmitNewTrade(trade)
	l.Info("Position opened", zap.Uint("trade_id", trade.ID), zap.String("order_id", orderID))
	return nil
}

// sellPhase re-evaluates every open ledger row. Rows are processed
// concurrently across tokens with the same per-token serialization as the
// buy phase.
func (e *Engine) sellPhase(ctx context.Context) error {
	openTrades, err := e.ledger.SelectOpen()
	if err != nil {
		return fmt.Errorf("could not select open trades: %w", err)
	}

	var wg sync.WaitGroup
	for i := range openTrades {
		trade := openTrades[i]
		if !e.acquireToken(trade.TokenName) {
			e.logger.Warn("Token still busy from previous cycle, skipping sell check",
				zap.String("token", trade.TokenName))
			continue
		}

		wg.Add(1)
		go func(tr models.Trade) {
			defer wg.Done()
			defer e.releaseToken(tr.TokenName)
			if err := e.evaluateSell(ctx, &tr); err != nil {
				e.logger.Warn("Sell evaluation failed",
					zap.String("token", tr.TokenName),
					zap.String("phase", "sell"),
					zap.Uint("trade_id", tr.ID),
					zap.Error(err))
			}
		}(trade)
	}
	wg.Wait()

	return nil
}

// evaluateSell runs the full sell path for one open trade. The sell order
// must be confirmed before the ledger row is closed: a position is never
// closed without an execution behind it.
func (e *Engine) evaluateSell(ctx context.Context, trade *models.Trade) error {
	hctx, cancel := context.WithTimeout(ctx, historyTimeout)
	series, err := e.market.GetPriceHistory(hctx, trade.TokenName, e.cfg.Trading.LookbackDays)
	cancel()
	if err != nil {
		return err
	}

	latest, ok := series.Latest()
	if !ok || latest.Price <= 0 {
		return fmt.Errorf("no resolvable current price for %s", trade.TokenName)
	}

	profitLoss := (latest.Price - trade.BuyPrice) * trade.Amount

	decision, err := e.advisor.EvaluateSell(ctx, trade, series, profitLoss)
	if err != nil {
		e.advisoryFailures.Add(1)
		return err
	}
	if !decision.Sell {
		e.logger.Info("Holding position",
			zap.String("token", trade.TokenName),
			zap.Float64("current_price", latest.Price),
			zap.Float64("profit_loss", profitLoss))
		return nil
	}

	l := e.logger.With(
		zap.String("token", trade.TokenName),
		zap.Uint("trade_id", trade.ID),
		zap.Float64("price", latest.Price),
		zap.Float64("profit_loss", profitLoss),
	)
	l.Info("Sell recommendation confirmed, submitting order")

	var sellOrderID string
	if e.cfg.Trading.DryRun {
		sellOrderID = fmt.Sprintf("dry-%d", time.Now().UnixMilli())
		l.Warn("Dry run enabled, order not sent to venue", zap.String("order_id", sellOrderID))
	} else {
		octx, cancel := context.WithTimeout(ctx, orderTimeout)
		sellOrderID, err = e.venue.SubmitSell(octx, trade.TokenName, trade.Amount, latest.Price)
		cancel()
		if err != nil {
			return err
		}
	}

	sellTime := time.Now().UnixMilli()
	if err := e.ledger.CloseTrade(trade.ID, latest.Price, sellTime, sellOrderID, profitLoss); err != nil {
		if errors.Is(err, ledger.ErrAlreadyClosed) {
			// Lost a close race; the winner already recorded and announced it.
			l.Info("Trade was already closed by a concurrent cycle")
			e.tracker.Remove(trade.TokenName)
			return nil
		}
		l.Error("RECONCILIATION REQUIRED: sell executed but ledger close failed",
			zap.String("order_id", sellOrderID),
			zap.Error(err))
		return err
	}

	e.tracker.Remove(trade.TokenName)

	trade.Status = models.StatusClosed
	trade.SellPrice = &latest.Price
	trade.SellTime = &sellTime
	trade.SellOrderID = &sellOrderID
	trade.ProfitLoss = &profitLoss
	e.notifier.EmitTradeUpdated(trade)

	l.Info("Position closed", zap.String("order_id", sellOrderID))
	return nil
}

// Status is the administrative view of the engine.
type Status struct {
	UUID             string `json:"uuid"`
	Running          bool   `json:"running"`
	StartTime        string `json:"start_time"`
	Uptime           string `json:"uptime"`
	OpenPositions    int    `json:"open_positions"`
	AdvisoryFailures int64  `json:"advisory_failures"`
	TickInterval     int    `json:"tick_interval"`
}

// CurrentStatus snapshots the engine state for the admin API.
func (e *Engine) CurrentStatus() Status {
	return Status{
		UUID:             e.UUID,
		Running:          e.Running(),
		StartTime:        e.StartTime.Format(time.RFC3339),
		Uptime:           time.Since(e.StartTime).String(),
		OpenPositions:    e.tracker.Len(),
		AdvisoryFailures: e.advisoryFailures.Load(),
		TickInterval:     e.cfg.Trading.TickInterval,
	}
}
