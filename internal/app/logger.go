package app

import (
	"github.com/guttosm/resilience-layer/config"
	"github.com/guttosm/resilience-layer/internal/logger"
)

// InitializeLogger initializes the global zerolog logger.
func InitializeLogger(cfg config.LogConfig) {
	logger.Init(cfg.Level, cfg.Pretty)
}
