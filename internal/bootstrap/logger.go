package bootstrap

import (
	"hyperliquidity-mm/internal/core"
	"hyperliquidity-mm/pkg/logging"
)

// InitLogger builds the process-wide core.Logger from configuration.
func InitLogger(cfg *Config) core.Logger {
	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		// NewZapLogger only fails to construct the zap core, never on an
		// unrecognized level string (it falls back to INFO), so this path
		// is unreachable in practice.
		panic(err)
	}
	return logger.With("coin", cfg.Market.Coin)
}
