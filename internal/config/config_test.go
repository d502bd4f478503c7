package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		Hyperliquid: Hyperliquid{PrivateKey: "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"},
		Advisor:     Advisor{ApiKey: "key"},
		Trading:     Trading{TradeFraction: 0.01},
	}
}

func TestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		cfg := validConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("MissingPrivateKey", func(t *testing.T) {
		cfg := validConfig()
		cfg.Hyperliquid.PrivateKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("MissingAdvisorKey", func(t *testing.T) {
		cfg := validConfig()
		cfg.Advisor.ApiKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("BadTradeFraction", func(t *testing.T) {
		cfg := validConfig()
		cfg.Trading.TradeFraction = 0
		assert.Error(t, cfg.Validate())

		cfg.Trading.TradeFraction = 1.5
		assert.Error(t, cfg.Validate())
	})
}
