// Package config provides configuration structures and loading for KeySync.
package config

// Config represents the complete application configuration.
type Config struct {
	Sources       map[string]SourceConfig `yaml:"sources" mapstructure:"sources"`
	Normalize     NormalizeConfig         `yaml:"normalize" mapstructure:"normalize"`
	Provisioning  ProvisioningConfig      `yaml:"provisioning" mapstructure:"provisioning"`
	Processing    ProcessingConfig        `yaml:"processing" mapstructure:"processing"`
	ErrorHandling ErrorHandlingConfig     `yaml:"error_handling" mapstructure:"error_handling"`
	Database      DatabaseConfig          `yaml:"database" mapstructure:"database"`
	Output        OutputConfig            `yaml:"output" mapstructure:"output"`
	Simulation    SimulationConfig        `yaml:"simulation" mapstructure:"simulation"`
	Logging       LoggingConfig           `yaml:"logging" mapstructure:"logging"`

	// NormalizeExplicit records whether the loaded file carried a normalize
	// section at all. The normalizer enables numeric padding by default only
	// when no explicit section was supplied.
	NormalizeExplicit bool `yaml:"-" mapstructure:"-"`
}

// SourceConfig describes one per-system key file.
type SourceConfig struct {
	Type string `yaml:"type" mapstructure:"type"` // currently only "csv"
	Path string `yaml:"path" mapstructure:"path"`
}

// NormalizeConfig controls the key normalization transform chain.
// Each step is independently toggleable; the application order is fixed.
type NormalizeConfig struct {
	TrimWhitespace bool   `yaml:"trim_whitespace" mapstructure:"trim_whitespace"`
	Uppercase      bool   `yaml:"uppercase" mapstructure:"uppercase"`
	CollapseDelims string `yaml:"collapse_delims" mapstructure:"collapse_delims"` // single delimiter char, "" disables
	StripNonAlnum  bool   `yaml:"strip_non_alnum" mapstructure:"strip_non_alnum"`

	// LeftPadNumbers is a pointer so "not set" is distinguishable from an
	// explicit false. Under a partially specified configuration the padding
	// step activates only when the caller set it explicitly.
	LeftPadNumbers *bool `yaml:"left_pad_numbers" mapstructure:"left_pad_numbers"`
	PadLength      int   `yaml:"pad_length" mapstructure:"pad_length"`
}

// ProvisioningConfig controls master key provisioning.
type ProvisioningConfig struct {
	Strategy        string `yaml:"strategy" mapstructure:"strategy"` // mirror or namespaced
	AutoApprove     bool   `yaml:"auto_approve" mapstructure:"auto_approve"`
	NamespacePrefix string `yaml:"namespace_prefix" mapstructure:"namespace_prefix"`
}

// ProcessingConfig represents batch processing settings.
type ProcessingConfig struct {
	Mode       string `yaml:"mode" mapstructure:"mode"` // full or incremental
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
	Parallel   bool   `yaml:"parallel" mapstructure:"parallel"`
	MaxWorkers int    `yaml:"max_workers" mapstructure:"max_workers"`
}

// ErrorHandlingConfig controls per-file and per-row failure policies.
type ErrorHandlingConfig struct {
	OnMissingFile     string `yaml:"on_missing_file" mapstructure:"on_missing_file"` // skip or fail
	OnCorruptData     string `yaml:"on_corrupt_data" mapstructure:"on_corrupt_data"` // log, skip or fail
	RetryAttempts     int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds" mapstructure:"retry_delay_seconds"`
	MaxErrors         int    `yaml:"max_errors" mapstructure:"max_errors"`
	PartialProcessing bool   `yaml:"partial_processing" mapstructure:"partial_processing"`
}

// DatabaseConfig locates the state database.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Directory         string `yaml:"directory" mapstructure:"directory"`
	Format            string `yaml:"format" mapstructure:"format"` // csv or json
	IncludeTimestamps bool   `yaml:"include_timestamps" mapstructure:"include_timestamps"`
}

// SimulationConfig controls the synthetic data generator.
type SimulationConfig struct {
	Seed           int64   `yaml:"seed" mapstructure:"seed"`
	Scenario       string  `yaml:"scenario" mapstructure:"scenario"` // normal, drift, failure, recovery
	KeysPerSystem  int     `yaml:"keys_per_system" mapstructure:"keys_per_system"`
	DuplicateRate  float64 `yaml:"duplicate_rate" mapstructure:"duplicate_rate"`
	CorruptionRate float64 `yaml:"corruption_rate" mapstructure:"corruption_rate"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// AuthoritySystem is the name of the single authoritative key source.
const AuthoritySystem = "A"

// DefaultSystems are the systems generated and reconciled by default.
var DefaultSystems = []string{"A", "B", "C", "D", "E"}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	sources := make(map[string]SourceConfig, len(DefaultSystems))
	for _, system := range DefaultSystems {
		sources[system] = SourceConfig{Type: "csv", Path: "./input/" + system + ".csv"}
	}

	return &Config{
		Sources: sources,
		Normalize: NormalizeConfig{
			TrimWhitespace: true,
			Uppercase:      true,
			CollapseDelims: "-",
			StripNonAlnum:  true,
			PadLength:      6,
		},
		Provisioning: ProvisioningConfig{
			Strategy:        "mirror",
			AutoApprove:     false,
			NamespacePrefix: "MASTER",
		},
		Processing: ProcessingConfig{
			Mode:       "full",
			BatchSize:  1000,
			Parallel:   true,
			MaxWorkers: 5,
		},
		ErrorHandling: ErrorHandlingConfig{
			OnMissingFile:     "skip",
			OnCorruptData:     "log",
			RetryAttempts:     3,
			RetryDelaySeconds: 5,
			MaxErrors:         100,
			PartialProcessing: true,
		},
		Database: DatabaseConfig{
			Path: "./data/keysync.db",
		},
		Output: OutputConfig{
			Directory:         "./output",
			Format:            "csv",
			IncludeTimestamps: true,
		},
		Simulation: SimulationConfig{
			Seed:           42,
			Scenario:       "normal",
			KeysPerSystem:  1000,
			DuplicateRate:  0.01,
			CorruptionRate: 0.01,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// SystemFiles returns the system name to file path mapping for CSV sources.
func (c *Config) SystemFiles() map[string]string {
	files := make(map[string]string, len(c.Sources))
	for system, source := range c.Sources {
		if source.Type == "" || source.Type == "csv" {
			files[system] = source.Path
		}
	}
	return files
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, batchSize, maxWorkers int, dbPath, outputDir string) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if batchSize > 0 {
		c.Processing.BatchSize = batchSize
	}
	if maxWorkers > 0 {
		c.Processing.MaxWorkers = maxWorkers
	}
	if dbPath != "" {
		c.Database.Path = dbPath
	}
	if outputDir != "" {
		c.Output.Directory = outputDir
	}
}
