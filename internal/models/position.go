package models

// Position is the in-memory view of an open trade, keyed by token name.
// It is advisory only and rebuilt from the ledger at startup; the trades
// table stays authoritative.
type Position struct {
	TradeID  uint
	Amount   float64
	BuyPrice float64
	BuyTime  int64 // epoch millis
	OrderID  string
}

// PositionFromTrade derives the tracker entry for an open ledger row.
func PositionFromTrade(t *Trade) Position {
	return Position{
		TradeID:  t.ID,
		Amount:   t.Amount,
		BuyPrice: t.BuyPrice,
		BuyTime:  t.BuyTime,
		OrderID:  t.OrderID,
	}
}
