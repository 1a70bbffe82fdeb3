package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/dbsmedya/keysync/internal/config"
	"github.com/dbsmedya/keysync/internal/logger"
	"github.com/dbsmedya/keysync/internal/normalizer"
)

// loadConfig loads the configuration file and applies CLI overrides. When the
// default config file is absent the built-in defaults are used, so the tool
// works out of the box against ./input/.
func loadConfig() (*config.Config, error) {
	configFile := GetConfigFile()

	var cfg *config.Config
	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
		cfg = config.DefaultConfig()
	} else {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.BatchSize, overrides.MaxWorkers,
		overrides.DBPath, overrides.OutputDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildNormalizer picks the normalization behavior: config files configure
// each step explicitly, while the built-in defaults enable the full pipeline
// including numeric padding.
func buildNormalizer(cfg *config.Config) *normalizer.Normalizer {
	if cfg.NormalizeExplicit {
		return normalizer.NewWithConfig(&cfg.Normalize)
	}
	return normalizer.New()
}

// buildLogger initializes the structured logger from config.
func buildLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
