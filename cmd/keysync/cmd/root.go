package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile    string
	logLevel   string
	logFormat  string
	batchSize  int
	maxWorkers int
	dbPath     string
	outputDir  string
)

var rootCmd = &cobra.Command{
	Use:   "keysync",
	Short: "Cross-System Key Reconciliation",
	Long: `A CLI tool for reconciling business keys across source systems against
a single authority, detecting drift and provisioning master keys.

Features:
  - Configurable key normalization pipeline
  - Set-based comparison against the authority system
  - Discrepancy classification (missing keys, propagation gaps, duplicates)
  - Master key provisioning with mirror and namespaced strategies
  - Full audit trail and run history in SQLite`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "keysync.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Processing overrides
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0,
		"Override batch size (keys per normalization batch)")
	rootCmd.PersistentFlags().IntVar(&maxWorkers, "max-workers", 0,
		"Override maximum parallel source loaders")

	// Path overrides
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "",
		"Override SQLite database path")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "",
		"Override report output directory")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel   string
	LogFormat  string
	BatchSize  int
	MaxWorkers int
	DBPath     string
	OutputDir  string
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		BatchSize:  batchSize,
		MaxWorkers: maxWorkers,
		DBPath:     dbPath,
		OutputDir:  outputDir,
	}
}
