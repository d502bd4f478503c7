package database

import (
	"fmt"

	"hyperliquid-trade-bot-go/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the trades table. The ledger is append-plus-
// one-update only, so existing rows are never dropped here.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Trade{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}
