package main

import (
	"go.uber.org/zap"

	"testrig/internal/catalog"
	"testrig/internal/config"
	"testrig/internal/logging"
	"testrig/pkg/domain"
)

// loadConfig resolves configuration and the logger for a command.
func loadConfig(flags *rootFlags) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Logging.Level
	if flags.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Logging.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// loadCatalog reads the configured catalog, falling back to the built-in one.
func loadCatalog(path string) (*domain.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}
