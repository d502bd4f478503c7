package positions

import (
	"errors"
	"sync"

	"hyperliquid-trade-bot-go/internal/models"

	"go.uber.org/zap"
)

// ErrPositionExists is the duplicate-buy guard: at most one open position per
// token at any time.
var ErrPositionExists = errors.New("positions: position already exists for token")

// Tracker is a pure in-memory index of currently open positions, keyed by
// token name. It is advisory only: the trade ledger stays authoritative, and
// the tracker is rebuilt from it at process start.
type Tracker struct {
	mu        sync.Mutex
	positions map[string]models.Position
	logger    *zap.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{
		positions: make(map[string]models.Position),
		logger:    logger,
	}
}

// Rebuild replaces the index with the given open ledger rows.
func (t *Tracker) Rebuild(openTrades []models.Trade) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.positions = make(map[string]models.Position, len(openTrades))
	for i := range openTrades {
		tr := &openTrades[i]
		if _, ok := t.positions[tr.TokenName]; ok {
			// Should never happen; the buy path guards it. Keep the first row
			// and flag the rest for manual reconciliation.
			t.logger.Error("Multiple open ledger rows for token",
				zap.String("token", tr.TokenName),
				zap.Uint("trade_id", tr.ID))
			continue
		}
		t.positions[tr.TokenName] = models.PositionFromTrade(tr)
	}

	t.logger.Info("Position tracker rebuilt", zap.Int("open_positions", len(t.positions)))
}

// Add registers an open position for a token. It fails if one already
// exists; this add-if-absent check is the per-token serialization point that
// keeps concurrent buys from double-spending.
func (t *Tracker) Add(tokenName string, pos models.Position) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.positions[tokenName]; ok {
		return ErrPositionExists
	}
	t.positions[tokenName] = pos
	return nil
}

// Remove drops the position for a token. Removing an absent token is a no-op.
func (t *Tracker) Remove(tokenName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.positions, tokenName)
}

// Has reports whether a position is currently held for the token.
func (t *Tracker) Has(tokenName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.positions[tokenName]
	return ok
}

// Get returns the position held for a token, if any.
func (t *Tracker) Get(tokenName string) (models.Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.positions[tokenName]
	return pos, ok
}

// Len returns the number of open positions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.positions)
}
