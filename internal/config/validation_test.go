package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return DefaultConfig()
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "no sources",
			mutate:  func(c *Config) { c.Sources = nil },
			wantMsg: "at least one source system",
		},
		{
			name:    "missing authority",
			mutate:  func(c *Config) { delete(c.Sources, AuthoritySystem) },
			wantMsg: `authoritative system "A"`,
		},
		{
			name:    "unsupported source type",
			mutate:  func(c *Config) { c.Sources["B"] = SourceConfig{Type: "api", Path: "x"} },
			wantMsg: "unsupported source type",
		},
		{
			name:    "empty source path",
			mutate:  func(c *Config) { c.Sources["B"] = SourceConfig{Type: "csv"} },
			wantMsg: "source path must not be empty",
		},
		{
			name:    "multi-char delimiter",
			mutate:  func(c *Config) { c.Normalize.CollapseDelims = "--" },
			wantMsg: "single delimiter character",
		},
		{
			name:    "pad length too small",
			mutate:  func(c *Config) { c.Normalize.PadLength = 0 },
			wantMsg: "between 1 and 32",
		},
		{
			name:    "pad length too large",
			mutate:  func(c *Config) { c.Normalize.PadLength = 64 },
			wantMsg: "between 1 and 32",
		},
		{
			name:    "invalid strategy",
			mutate:  func(c *Config) { c.Provisioning.Strategy = "union" },
			wantMsg: "invalid strategy",
		},
		{
			name: "namespaced without prefix",
			mutate: func(c *Config) {
				c.Provisioning.Strategy = "namespaced"
				c.Provisioning.NamespacePrefix = ""
			},
			wantMsg: "required when strategy is namespaced",
		},
		{
			name:    "invalid mode",
			mutate:  func(c *Config) { c.Processing.Mode = "delta" },
			wantMsg: "invalid mode",
		},
		{
			name:    "batch size zero",
			mutate:  func(c *Config) { c.Processing.BatchSize = 0 },
			wantMsg: "must be at least 1",
		},
		{
			name:    "invalid missing file policy",
			mutate:  func(c *Config) { c.ErrorHandling.OnMissingFile = "panic" },
			wantMsg: "invalid policy",
		},
		{
			name:    "invalid corrupt data policy",
			mutate:  func(c *Config) { c.ErrorHandling.OnCorruptData = "panic" },
			wantMsg: "invalid policy",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantMsg: "invalid level",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantMsg: "database path must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Processing.Mode = "delta"
	cfg.Provisioning.Strategy = "union"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	msg := err.Error()
	if !strings.Contains(msg, "invalid mode") || !strings.Contains(msg, "invalid strategy") {
		t.Errorf("expected both errors reported, got %v", err)
	}
}
