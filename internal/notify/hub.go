package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"hyperliquid-trade-bot-go/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const clientBuffer = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SnapshotFunc supplies the full trade list pushed once to each new observer.
type SnapshotFunc func() ([]models.Trade, error)

// Hub broadcasts ledger mutations to connected websocket observers. Fan-out
// is non-blocking: a client that cannot keep up is disconnected rather than
// stalling the trading loop.
type Hub struct {
	logger   *zap.Logger
	snapshot SnapshotFunc

	mu      sync.Mutex
	clients map[*client]bool
}

var _ Notifier = (*Hub)(nil)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. snapshot may be nil, in which case new observers get
// no initial state.
func NewHub(logger *zap.Logger, snapshot SnapshotFunc) *Hub {
	return &Hub{
		logger:   logger,
		snapshot: snapshot,
		clients:  make(map[*client]bool),
	}
}

// ServeWS upgrades an HTTP request to a websocket observer connection and
// pushes the all_trades snapshot before any incremental event.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	if h.snapshot != nil {
		trades, err := h.snapshot()
		if err != nil {
			h.logger.Error("Failed to load snapshot for new observer", zap.Error(err))
		} else if raw, err := json.Marshal(Event{Type: EventAllTrades, Payload: trades}); err == nil {
			c.send <- raw
		}
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.logger.Info("Observer connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writePump(c)
	go h.readPump(c)
}

// writePump drains the client's send buffer onto the wire.
func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("Observer write failed", zap.Error(err))
			h.drop(c)
			return
		}
	}
}

// readPump discards inbound frames and detects disconnects.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast fans an event out to all observers without blocking; clients
// with a full buffer are dropped.
func (h *Hub) broadcast(ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- raw:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if len(slow) > 0 {
		h.logger.Warn("Dropped slow observers", zap.Int("count", len(slow)))
	}
}

// EmitNewTrade broadcasts a new_trade event.
func (h *Hub) EmitNewTrade(t *models.Trade) {
	h.broadcast(newTradeEvent(t))
}

// EmitTradeUpdated broadcasts a trade_updated event.
func (h *Hub) EmitTradeUpdated(t *models.Trade) {
	h.broadcast(tradeUpdatedEvent(t))
}

// Close disconnects all observers; used on shutdown.
func (h *Hub) Close(ctx context.Context) {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
	h.mu.Unlock()
}
