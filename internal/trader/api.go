package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"hyperliquid-trade-bot-go/internal/notify"

	"go.uber.org/zap"
)

// APIServer provides the administrative HTTP interface for the trading
// engine: start/stop, a manual one-shot trigger, status, and the websocket
// observer feed.
type APIServer struct {
	server *http.Server
	engine *Engine
	hub    *notify.Hub
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer.
func NewAPIServer(engine *Engine, hub *notify.Hub, logger *zap.Logger) *APIServer {
	addr := fmt.Sprintf(":%d", engine.cfg.Trading.ApiPort)

	s := &APIServer{
		engine: engine,
		hub:    hub,
		logger: logger.Named("api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/start", s.startHandler)
	mux.HandleFunc("/stop", s.stopHandler)
	mux.HandleFunc("/trade", s.tradeHandler)
	mux.HandleFunc("/ws", s.hub.ServeWS)

	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	s.hub.Close(ctx)
	return s.server.Shutdown(ctx)
}

// authorized enforces the optional x-api-key guard on mutating endpoints.
func (s *APIServer) authorized(w http.ResponseWriter, r *http.Request) bool {
	apiKey := s.engine.cfg.Trading.ApiKey
	if apiKey != "" && r.Header.Get("x-api-key") != apiKey {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *APIServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.CurrentStatus())
}

// startHandler starts the loop. Responds immediately with best-effort
// status; it never blocks on the first cycle completing.
func (s *APIServer) startHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	started := s.engine.Start()
	s.writeJSON(w, map[string]interface{}{
		"started": started,
		"status":  s.engine.CurrentStatus(),
	})
}

func (s *APIServer) stopHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	stopped := s.engine.Stop()
	s.writeJSON(w, map[string]interface{}{
		"stopped": stopped,
		"status":  s.engine.CurrentStatus(),
	})
}

// tradeHandler triggers one evaluate-and-trade cycle outside the schedule.
// The cycle runs in the background; an in-flight cycle makes this a no-op.
func (s *APIServer) tradeHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	go func() {
		if err := s.engine.RunCycle(context.Background()); err != nil {
			s.logger.Error("Manual trading cycle failed", zap.Error(err))
		}
	}()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "cycle triggered"}); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}
