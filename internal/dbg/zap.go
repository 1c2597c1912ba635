package dbg

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewDevLogger builds a console logger at level. An empty level means debug.
func NewDevLogger(level string) (*zap.Logger, error) {
	return build(zap.NewDevelopmentConfig(), level)
}

// NewProdLogger builds a json logger at level. An empty level means info.
func NewProdLogger(level string) (*zap.Logger, error) {
	return build(zap.NewProductionConfig(), level)
}

func build(cfg zap.Config, level string) (*zap.Logger, error) {
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableCaller = true

	return cfg.Build()
}
