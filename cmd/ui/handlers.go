package main

import (
	"encoding/json"
	"net/http"
	"time"

	"hyperliquid-trade-bot-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log *zap.Logger
	db  *gorm.DB
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB) *APIHandler {
	return &APIHandler{log: log, db: db}
}

// TradesHandler returns all historical trades, newest first.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	var trades []models.Trade
	if err := h.db.Order("buy_time desc").Find(&trades).Error; err != nil {
		h.log.Error("Failed to get trades from database", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// OpenPositionsHandler returns only the trades still held open.
func (h *APIHandler) OpenPositionsHandler(w http.ResponseWriter, r *http.Request) {
	var trades []models.Trade
	if err := h.db.Where("status = ?", models.StatusOpen).Order("buy_time desc").Find(&trades).Error; err != nil {
		h.log.Error("Failed to get open trades from database", zap.Error(err))
		http.Error(w, "Failed to get open trades", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	ClosedTrades     int64   `json:"closed_trades"`
	ProfitableTrades int64   `json:"profitable_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalProfitLoss  float64 `json:"total_profit_loss"`
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	OpenPositions int         `json:"open_positions"`
	Since24h      StatsDetail `json:"since_24h"`
	AllTime       StatsDetail `json:"all_time"`
}

// StatisticsHandler calculates and returns trading statistics over closed
// trades. Open rows have no profit_loss yet and are only counted.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	var trades []models.Trade
	if err := h.db.Find(&trades).Error; err != nil {
		h.log.Error("Failed to get trades for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	since24h := time.Now().Add(-24 * time.Hour).UnixMilli()

	response := StatisticsResponse{}
	for i := range trades {
		trade := &trades[i]
		if trade.Status == models.StatusOpen {
			response.OpenPositions++
			continue
		}
		if trade.ProfitLoss == nil || trade.SellTime == nil {
			continue
		}

		response.AllTime.ClosedTrades++
		response.AllTime.TotalProfitLoss += *trade.ProfitLoss
		if *trade.ProfitLoss > 0 {
			response.AllTime.ProfitableTrades++
		}

		if *trade.SellTime >= since24h {
			response.Since24h.ClosedTrades++
			response.Since24h.TotalProfitLoss += *trade.ProfitLoss
			if *trade.ProfitLoss > 0 {
				response.Since24h.ProfitableTrades++
			}
		}
	}

	if response.AllTime.ClosedTrades > 0 {
		response.AllTime.WinRate = float64(response.AllTime.ProfitableTrades) / float64(response.AllTime.ClosedTrades)
	}
	if response.Since24h.ClosedTrades > 0 {
		response.Since24h.WinRate = float64(response.Since24h.ProfitableTrades) / float64(response.Since24h.ClosedTrades)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
