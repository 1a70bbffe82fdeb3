package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified YAML file path.
// Missing sections fall back to defaults; string fields support
// ${VAR} environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	setNormalizeDefaults(v)

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.NormalizeExplicit = v.IsSet("normalize")

	if err := substituteEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	return cfg, nil
}

// setNormalizeDefaults registers per-key defaults for the normalize section so
// a partial section keeps the documented toggles. left_pad_numbers gets no
// default on purpose: only an explicit value enables padding when the section
// was supplied.
func setNormalizeDefaults(v *viper.Viper) {
	v.SetDefault("normalize.trim_whitespace", true)
	v.SetDefault("normalize.uppercase", true)
	v.SetDefault("normalize.collapse_delims", "-")
	v.SetDefault("normalize.strip_non_alnum", true)
	v.SetDefault("normalize.pad_length", 6)
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable
// values in the path-like configuration fields.
func substituteEnvVars(cfg *Config) error {
	cfg.Database.Path = expandEnvVar(cfg.Database.Path)
	cfg.Output.Directory = expandEnvVar(cfg.Output.Directory)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)

	for system, source := range cfg.Sources {
		source.Path = expandEnvVar(source.Path)
		cfg.Sources[system] = source
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}
