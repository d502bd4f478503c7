package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Hyperliquid Hyperliquid `mapstructure:"hyperliquid"`
	CoinGecko   CoinGecko   `mapstructure:"coingecko"`
	Advisor     Advisor     `mapstructure:"advisor"`
	Trading     Trading     `mapstructure:"trading"`
	Logger      Logger      `mapstructure:"logger"`
	Server      Server      `mapstructure:"server"`
	Database    Database    `mapstructure:"database"`
}

// Hyperliquid holds the configuration for the execution venue.
type Hyperliquid struct {
	BaseURL        string  `mapstructure:"base_url"`
	PrivateKey     string  `mapstructure:"private_key"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// CoinGecko holds the configuration for the price-history provider.
type CoinGecko struct {
	BaseURL string `mapstructure:"base_url"`
}

// Advisor holds the configuration for the external reasoning service.
type Advisor struct {
	ApiKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Server holds the configuration for the dashboard web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Trading holds the configuration for the trading logic.
type Trading struct {
	Capital            float64 `mapstructure:"capital"`
	TradeFraction      float64 `mapstructure:"trade_fraction"`
	TickInterval       int     `mapstructure:"tick_interval"`
	ErrorRetryInterval int     `mapstructure:"error_retry_interval"`
	LookbackDays       int     `mapstructure:"lookback_days"`
	ApiPort            int     `mapstructure:"api_port"`
	ApiKey             string  `mapstructure:"api_key"`
	DryRun             bool    `mapstructure:"dry_run"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("hyperliquid.base_url", "https://api.hyperliquid.xyz")
	viper.SetDefault("hyperliquid.rate_limit", 10) // requests per second
	viper.SetDefault("hyperliquid.rate_limit_burst", 5)
	viper.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	viper.SetDefault("advisor.base_url", "https://api.x.ai/v1")
	viper.SetDefault("advisor.model", "grok-3")
	viper.SetDefault("advisor.timeout_seconds", 90)
	viper.SetDefault("trading.capital", 1000)
	viper.SetDefault("trading.trade_fraction", 0.01)
	viper.SetDefault("trading.tick_interval", 60)
	viper.SetDefault("trading.error_retry_interval", 10)
	viper.SetDefault("trading.lookback_days", 7)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}

// Validate checks that credentials required before any network call are present.
// A missing signing key or advisor key is fatal at startup: no trade can ever
// be safely placed without them.
func (c *Config) Validate() error {
	if c.Hyperliquid.PrivateKey == "" {
		return errors.New("hyperliquid.private_key is not set")
	}
	if c.Advisor.ApiKey == "" {
		return errors.New("advisor.api_key is not set")
	}
	if c.Trading.TradeFraction <= 0 || c.Trading.TradeFraction > 1 {
		return errors.New("trading.trade_fraction must be in (0, 1]")
	}
	return nil
}
