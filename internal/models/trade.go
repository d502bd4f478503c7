package models

// TradeStatus values for the trades table. A row is created open and is
// closed exactly once; closed rows are never mutated again.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Trade represents one position lifecycle in the trade ledger: created when a
// buy order is confirmed by the venue, closed when the matching sell order is
// confirmed. The ledger is the sole source of truth for open/closed state
// across restarts.
type Trade struct {
	ID           uint     `gorm:"primaryKey" json:"id"`
	TokenName    string   `gorm:"column:token_name;not null;index" json:"token_name"`
	TokenAddress string   `gorm:"column:token_address" json:"token_address"`
	Amount       float64  `gorm:"column:amount;not null" json:"amount"`
	BuyPrice     float64  `gorm:"column:buy_price;not null" json:"buy_price"`
	BuyTime      int64    `gorm:"column:buy_time;not null" json:"buy_time"` // epoch millis
	OrderID      string   `gorm:"column:order_id;not null" json:"order_id"`
	Status       string   `gorm:"column:status;not null;index" json:"status"`
	SellPrice    *float64 `gorm:"column:sell_price" json:"sell_price,omitempty"`
	SellTime     *int64   `gorm:"column:sell_time" json:"sell_time,omitempty"`
	SellOrderID  *string  `gorm:"column:sell_order_id" json:"sell_order_id,omitempty"`
	ProfitLoss   *float64 `gorm:"column:profit_loss" json:"profit_loss,omitempty"`
}

// TableName pins the gorm table name to the ledger schema.
func (Trade) TableName() string {
	return "trades"
}

// IsOpen reports whether the trade still represents a held position.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}
