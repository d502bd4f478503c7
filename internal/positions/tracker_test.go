package positions

import (
	"testing"

	"hyperliquid-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAddAndRemove(t *testing.T) {
	tr := NewTracker(zap.NewNop())

	pos := models.Position{TradeID: 1, Amount: 2.0, BuyPrice: 5.0, OrderID: "ord-1"}
	assert.NoError(t, tr.Add("HYPE", pos))
	assert.True(t, tr.Has("HYPE"))
	assert.Equal(t, 1, tr.Len())

	got, ok := tr.Get("HYPE")
	assert.True(t, ok)
	assert.Equal(t, pos, got)

	tr.Remove("HYPE")
	assert.False(t, tr.Has("HYPE"))

	// Removing an absent token is a no-op.
	tr.Remove("HYPE")
	assert.Equal(t, 0, tr.Len())
}

func TestAddIsDuplicateBuyGuard(t *testing.T) {
	tr := NewTracker(zap.NewNop())

	assert.NoError(t, tr.Add("HYPE", models.Position{TradeID: 1}))
	err := tr.Add("HYPE", models.Position{TradeID: 2})
	assert.ErrorIs(t, err, ErrPositionExists)

	// The original entry survives.
	got, _ := tr.Get("HYPE")
	assert.Equal(t, uint(1), got.TradeID)
}

func TestRebuild(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	assert.NoError(t, tr.Add("STALE", models.Position{TradeID: 99}))

	openTrades := []models.Trade{
		{ID: 1, TokenName: "HYPE", Amount: 2, BuyPrice: 5, BuyTime: 1, OrderID: "a", Status: models.StatusOpen},
		{ID: 2, TokenName: "ETH", Amount: 1, BuyPrice: 100, BuyTime: 2, OrderID: "b", Status: models.StatusOpen},
	}
	tr.Rebuild(openTrades)

	// The ledger is authoritative: stale in-memory state is discarded and the
	// index matches the open rows exactly.
	assert.Equal(t, 2, tr.Len())
	assert.False(t, tr.Has("STALE"))
	assert.True(t, tr.Has("HYPE"))
	assert.True(t, tr.Has("ETH"))

	pos, _ := tr.Get("HYPE")
	assert.Equal(t, uint(1), pos.TradeID)
	assert.Equal(t, 2.0, pos.Amount)
}

func TestRebuildDuplicateRowsKeepFirst(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	tr.Rebuild([]models.Trade{
		{ID: 1, TokenName: "HYPE", Amount: 2, Status: models.StatusOpen},
		{ID: 2, TokenName: "HYPE", Amount: 3, Status: models.StatusOpen},
	})

	assert.Equal(t, 1, tr.Len())
	pos, _ := tr.Get("HYPE")
	assert.Equal(t, uint(1), pos.TradeID)
}
