package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateSources()...)
	errors = append(errors, c.validateNormalize()...)
	errors = append(errors, c.validateProvisioning()...)
	errors = append(errors, c.validateProcessing()...)
	errors = append(errors, c.validateErrorHandling()...)
	errors = append(errors, c.validateLogging()...)

	if c.Database.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "database.path",
			Message: "database path must not be empty",
		})
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateSources() ValidationErrors {
	var errors ValidationErrors

	if len(c.Sources) == 0 {
		errors = append(errors, ValidationError{
			Field:   "sources",
			Message: "at least one source system must be defined",
		})
		return errors
	}

	if _, ok := c.Sources[AuthoritySystem]; !ok {
		errors = append(errors, ValidationError{
			Field:   "sources",
			Message: fmt.Sprintf("authoritative system %q must be defined", AuthoritySystem),
		})
	}

	for system, source := range c.Sources {
		if source.Type != "" && source.Type != "csv" {
			errors = append(errors, ValidationError{
				Field:   "sources." + system + ".type",
				Message: fmt.Sprintf("unsupported source type %q (only csv)", source.Type),
			})
		}
		if source.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "sources." + system + ".path",
				Message: "source path must not be empty",
			})
		}
	}

	return errors
}

func (c *Config) validateNormalize() ValidationErrors {
	var errors ValidationErrors

	if len(c.Normalize.CollapseDelims) > 1 {
		errors = append(errors, ValidationError{
			Field:   "normalize.collapse_delims",
			Message: "must be a single delimiter character or empty to disable",
		})
	}
	if c.Normalize.PadLength < 1 || c.Normalize.PadLength > 32 {
		errors = append(errors, ValidationError{
			Field:   "normalize.pad_length",
			Message: "must be between 1 and 32",
		})
	}

	return errors
}

func (c *Config) validateProvisioning() ValidationErrors {
	var errors ValidationErrors

	switch c.Provisioning.Strategy {
	case "mirror", "namespaced":
	default:
		errors = append(errors, ValidationError{
			Field:   "provisioning.strategy",
			Message: fmt.Sprintf("invalid strategy %q (must be mirror or namespaced)", c.Provisioning.Strategy),
		})
	}

	if c.Provisioning.Strategy == "namespaced" && c.Provisioning.NamespacePrefix == "" {
		errors = append(errors, ValidationError{
			Field:   "provisioning.namespace_prefix",
			Message: "required when strategy is namespaced",
		})
	}

	return errors
}

func (c *Config) validateProcessing() ValidationErrors {
	var errors ValidationErrors

	switch c.Processing.Mode {
	case "full", "incremental":
	default:
		errors = append(errors, ValidationError{
			Field:   "processing.mode",
			Message: fmt.Sprintf("invalid mode %q (must be full or incremental)", c.Processing.Mode),
		})
	}

	if c.Processing.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processing.batch_size",
			Message: "must be at least 1",
		})
	}
	if c.Processing.MaxWorkers < 1 {
		errors = append(errors, ValidationError{
			Field:   "processing.max_workers",
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateErrorHandling() ValidationErrors {
	var errors ValidationErrors

	switch c.ErrorHandling.OnMissingFile {
	case "skip", "fail":
	default:
		errors = append(errors, ValidationError{
			Field:   "error_handling.on_missing_file",
			Message: fmt.Sprintf("invalid policy %q (must be skip or fail)", c.ErrorHandling.OnMissingFile),
		})
	}

	switch c.ErrorHandling.OnCorruptData {
	case "log", "skip", "fail":
	default:
		errors = append(errors, ValidationError{
			Field:   "error_handling.on_corrupt_data",
			Message: fmt.Sprintf("invalid policy %q (must be log, skip or fail)", c.ErrorHandling.OnCorruptData),
		})
	}

	if c.ErrorHandling.RetryAttempts < 0 {
		errors = append(errors, ValidationError{
			Field:   "error_handling.retry_attempts",
			Message: "must not be negative",
		})
	}
	if c.ErrorHandling.RetryDelaySeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "error_handling.retry_delay_seconds",
			Message: "must not be negative",
		})
	}
	if c.ErrorHandling.MaxErrors < 1 {
		errors = append(errors, ValidationError{
			Field:   "error_handling.max_errors",
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level %q (must be debug, info, warn or error)", c.Logging.Level),
		})
	}

	switch c.Logging.Format {
	case "", "json", "text":
	default:
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format %q (must be json or text)", c.Logging.Format),
		})
	}

	return errors
}
