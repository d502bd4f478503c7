package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap.Logger instance based on the provided configuration.
func NewLogger(level string, format string) (*zap.Logger, error) {
	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
		// Sampling drops repeated per-token errors; we want every one for
		// manual reconciliation.
		cfg.Sampling = nil
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(logLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
