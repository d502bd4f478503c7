package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hyperliquid-trade-bot-go/internal/advisor"
	"hyperliquid-trade-bot-go/internal/coingecko"
	"hyperliquid-trade-bot-go/internal/config"
	"hyperliquid-trade-bot-go/internal/database"
	"hyperliquid-trade-bot-go/internal/hyperliquid"
	"hyperliquid-trade-bot-go/internal/ledger"
	"hyperliquid-trade-bot-go/internal/logger"
	"hyperliquid-trade-bot-go/internal/models"
	"hyperliquid-trade-bot-go/internal/notify"
	"hyperliquid-trade-bot-go/internal/positions"
	"hyperliquid-trade-bot-go/internal/trader"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration. Credential validation happens here,
	// before any network call.
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Initialize the venue client; a bad signing key is fatal.
	venue, err := hyperliquid.NewClient(&cfg.Hyperliquid, log)
	if err != nil {
		log.Fatal("Failed to initialize venue client", zap.Error(err))
	}

	market := coingecko.NewClient(&cfg.CoinGecko, log)
	adv := advisor.NewClient(&cfg.Advisor, log)
	led := ledger.New(db, log)
	tracker := positions.NewTracker(log)

	hub := notify.NewHub(log, func() ([]models.Trade, error) {
		return led.SelectAll()
	})

	engine := trader.NewEngine(log, &cfg, venue, market, adv, led, tracker, hub)
	if err := engine.Initialize(); err != nil {
		log.Fatal("Failed to initialize engine", zap.Error(err))
	}

	apiServer := trader.NewAPIServer(engine, hub, log)
	apiServer.Start()

	engine.Start()

	// Wait for shutdown signal
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}

	log.Info("Bot has been shut down.")
}
