package ledger

import (
	"errors"
	"fmt"

	"hyperliquid-trade-bot-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrAlreadyClosed signals that a close raced with another writer and lost.
// The row was closed exactly once; the loser treats this as success and must
// not emit a duplicate notification.
var ErrAlreadyClosed = errors.New("ledger: trade already closed")

// Ledger is the durable store of trade records and the sole source of truth
// for open/closed position state across restarts.
type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a ledger over an already-migrated database.
func New(db *gorm.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

// InsertOpen atomically records a newly opened trade and assigns its id.
// Callers invoke this only after the venue confirmed the order; a failure
// here therefore means money moved without a record and must be surfaced
// loudly, never dropped.
func (l *Ledger) InsertOpen(trade *models.Trade) (uint, error) {
	trade.Status = models.StatusOpen
	trade.SellPrice = nil
	trade.SellTime = nil
	trade.SellOrderID = nil
	trade.ProfitLoss = nil

	if trade.Amount <= 0 {
		return 0, fmt.Errorf("refusing to insert trade with non-positive amount %f", trade.Amount)
	}

	if err := l.db.Create(trade).Error; err != nil {
		return 0, fmt.Errorf("failed to insert open trade for %s: %w", trade.TokenName, err)
	}
	return trade.ID, nil
}

// SelectOpen returns all trades still representing held positions.
func (l *Ledger) SelectOpen() ([]models.Trade, error) {
	var trades []models.Trade
	if err := l.db.Where("status = ?", models.StatusOpen).Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to select open trades: %w", err)
	}
	return trades, nil
}

// SelectAll returns every trade, newest first. Used for the snapshot pushed
// to new observers.
func (l *Ledger) SelectAll() ([]models.Trade, error) {
	var trades []models.Trade
	if err := l.db.Order("id desc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to select trades: %w", err)
	}
	return trades, nil
}

// CloseTrade transitions an open trade to closed. The update is conditional
// on the row still being open, so two racing sell paths cannot both close it:
// the loser gets ErrAlreadyClosed and the row is mutated exactly once.
func (l *Ledger) CloseTrade(id uint, sellPrice float64, sellTime int64, sellOrderID string, profitLoss float64) error {
	res := l.db.Model(&models.Trade{}).
		Where("id = ? AND status = ?", id, models.StatusOpen).
		Updates(map[string]interface{}{
			"status":        models.StatusClosed,
			"sell_price":    sellPrice,
			"sell_time":     sellTime,
			"sell_order_id": sellOrderID,
			"profit_loss":   profitLoss,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to close trade %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyClosed
	}

	l.logger.Info("Trade closed",
		zap.Uint("trade_id", id),
		zap.Float64("sell_price", sellPrice),
		zap.Float64("profit_loss", profitLoss))
	return nil
}
