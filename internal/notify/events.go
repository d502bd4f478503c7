package notify

import "hyperliquid-trade-bot-go/internal/models"

// Event types pushed to observers. On connect a client receives one
// all_trades snapshot, then incremental ledger mutations.
const (
	EventNewTrade     = "new_trade"
	EventTradeUpdated = "trade_updated"
	EventAllTrades    = "all_trades"
)

// Event is the envelope written to observers.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewTradePayload announces a freshly opened trade.
type NewTradePayload struct {
	ID           uint    `json:"id"`
	TokenName    string  `json:"tokenName"`
	TokenAddress string  `json:"tokenAddress"`
	Amount       float64 `json:"amount"`
	BuyPrice     float64 `json:"buyPrice"`
	BuyTime      int64   `json:"buyTime"`
	OrderID      string  `json:"orderId"`
	Status       string  `json:"status"`
}

// TradeUpdatedPayload announces a closed trade.
type TradeUpdatedPayload struct {
	ID         uint     `json:"id"`
	TokenName  string   `json:"tokenName"`
	SellPrice  *float64 `json:"sellPrice"`
	SellTime   *int64   `json:"sellTime"`
	ProfitLoss *float64 `json:"profitLoss"`
	Status     string   `json:"status"`
}

// Notifier is the engine's view of the notification sink. The engine gets it
// injected; there is no ambient process-wide emitter.
type Notifier interface {
	EmitNewTrade(trade *models.Trade)
	EmitTradeUpdated(trade *models.Trade)
}

// NopNotifier discards all events. Useful for tests and the dry CLI paths.
type NopNotifier struct{}

func (NopNotifier) EmitNewTrade(*models.Trade)     {}
func (NopNotifier) EmitTradeUpdated(*models.Trade) {}

func newTradeEvent(t *models.Trade) Event {
	return Event{
		Type: EventNewTrade,
		Payload: NewTradePayload{
			ID:           t.ID,
			TokenName:    t.TokenName,
			TokenAddress: t.TokenAddress,
			Amount:       t.Amount,
			BuyPrice:     t.BuyPrice,
			BuyTime:      t.BuyTime,
			OrderID:      t.OrderID,
			Status:       t.Status,
		},
	}
}

func tradeUpdatedEvent(t *models.Trade) Event {
	return Event{
		Type: EventTradeUpdated,
		Payload: TradeUpdatedPayload{
			ID:         t.ID,
			TokenName:  t.TokenName,
			SellPrice:  t.SellPrice,
			SellTime:   t.SellTime,
			ProfitLoss: t.ProfitLoss,
			Status:     t.Status,
		},
	}
}
