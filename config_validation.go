// config_validation.go - configuration validation for editor sessions
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// Validation errors
var (
	ErrInvalidMaxSources      = errors.New(ErrCodeInvalidMaxSources, "max sources must be positive")
	ErrInvalidMaxRecords      = errors.New(ErrCodeInvalidMaxRecords, "max records per source must be positive")
	ErrInvalidPollInterval    = errors.New(ErrCodeInvalidPollInterval, "poll interval must be at least 10ms")
	ErrInvalidCacheTTL        = errors.New(ErrCodeInvalidCacheTTL, "cache TTL must not be negative")
	ErrInvalidMaxWatchedFiles = errors.New(ErrCodeInvalidConfig, "max watched files must be positive")
	ErrInvalidAuditConfig     = errors.New(ErrCodeInvalidAuditConfig, "audit configuration is invalid")
	ErrInvalidBufferSize      = errors.New(ErrCodeInvalidBufferSize, "buffer size must be positive")
	ErrInvalidFlushInterval   = errors.New(ErrCodeInvalidFlushInterval, "flush interval must be positive")
	ErrInvalidOutputFile      = errors.New(ErrCodeInvalidOutputFile, "audit output file path is invalid")
)

// ValidationResult contains the result of configuration validation
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// String returns a human-readable representation of validation results
func (vr ValidationResult) String() string {
	if vr.Valid {
		if len(vr.Warnings) == 0 {
			return "Configuration is valid"
		}
		return fmt.Sprintf("Configuration is valid with %d warning(s)", len(vr.Warnings))
	}
	return fmt.Sprintf("Configuration is invalid: %d error(s), %d warning(s)",
		len(vr.Errors), len(vr.Warnings))
}

// Validate returns the first validation error, or nil
func (c *Config) Validate() error {
	result := c.ValidateDetailed()
	if result.Valid || len(result.Errors) == 0 {
		return nil
	}

	first := result.Errors[0]
	for _, known := range []error{
		ErrInvalidMaxSources,
		ErrInvalidMaxRecords,
		ErrInvalidPollInterval,
		ErrInvalidCacheTTL,
		ErrInvalidMaxWatchedFiles,
		ErrInvalidBufferSize,
		ErrInvalidFlushInterval,
		ErrInvalidOutputFile,
	} {
		if first == known.Error() {
			return known
		}
	}
	return errors.New(ErrCodeInvalidConfig, first)
}

// ValidateDetailed performs all checks and returns errors and warnings
func (c *Config) ValidateDetailed() ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	c.validateLimits(&result)
	c.validatePolling(&result)
	c.validateAuditConfig(&result)

	result.Valid = len(result.Errors) == 0
	return result
}

// validateLimits validates registry size limits
func (c *Config) validateLimits(result *ValidationResult) {
	if c.MaxSources <= 0 {
		result.Errors = append(result.Errors, ErrInvalidMaxSources.Error())
	} else if c.MaxSources > 100000 {
		result.Warnings = append(result.Warnings, "max sources exceeds recommended limit (100000)")
	}

	if c.MaxRecordsPerSource <= 0 {
		result.Errors = append(result.Errors, ErrInvalidMaxRecords.Error())
	} else if c.MaxRecordsPerSource > 1000000 {
		result.Warnings = append(result.Warnings, "max records per source exceeds recommended limit (1000000)")
	}

	recordsEst := int64(c.MaxSources) * int64(c.MaxRecordsPerSource)
	if recordsEst > 100000000 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("limits allow up to %d records, consider reducing them", recordsEst))
	}
}

// validatePolling validates the feed polling settings
func (c *Config) validatePolling(result *ValidationResult) {
	pollIntervalValid := true
	if c.PollInterval < 10*time.Millisecond {
		result.Errors = append(result.Errors, ErrInvalidPollInterval.Error())
		pollIntervalValid = false
	}

	if c.CacheTTL < 0 {
		result.Errors = append(result.Errors, ErrInvalidCacheTTL.Error())
	} else if pollIntervalValid && c.CacheTTL > c.PollInterval {
		result.Warnings = append(result.Warnings, "cache TTL should not exceed poll interval")
	}

	if c.MaxWatchedFiles <= 0 {
		result.Errors = append(result.Errors, ErrInvalidMaxWatchedFiles.Error())
	} else if c.MaxWatchedFiles > 10000 {
		result.Warnings = append(result.Warnings, "max watched files exceeds recommended limit (10000)")
	}
}

// validateAuditConfig validates audit configuration if enabled
func (c *Config) validateAuditConfig(result *ValidationResult) {
	if !c.Audit.Enabled {
		return
	}

	if c.Audit.BufferSize < 0 {
		result.Errors = append(result.Errors, ErrInvalidBufferSize.Error())
	} else if c.Audit.BufferSize == 0 {
		result.Warnings = append(result.Warnings, "Audit buffer size is 0, consider setting to 100-1000 for better performance")
	} else if c.Audit.BufferSize > 10000 {
		result.Warnings = append(result.Warnings, "Large audit buffer size may consume significant memory")
	}

	if c.Audit.FlushInterval < 0 {
		result.Errors = append(result.Errors, ErrInvalidFlushInterval.Error())
	} else if c.Audit.FlushInterval == 0 {
		result.Warnings = append(result.Warnings, "Audit flush interval is 0, events are written when the buffer fills")
	}

	if c.Audit.OutputFile == "" {
		result.Warnings = append(result.Warnings,
			"Audit output file not set, using unified database "+getUnifiedAuditPath())
		return
	}
	if err := validateOutputFile(c.Audit.OutputFile); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
}

// validateOutputFile checks that the audit output file can be created
func validateOutputFile(outputFile string) error {
	if err := validateSecurePath(outputFile); err != nil {
		return errors.Wrap(err, ErrCodeInvalidOutputFile, "unsafe audit output path")
	}

	cleanPath := filepath.Clean(outputFile)
	if cleanPath == "." || cleanPath == "/" {
		return errors.New(ErrCodeInvalidOutputFile,
			fmt.Sprintf("path '%s' is not a valid file path", outputFile))
	}

	dir := filepath.Dir(cleanPath)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(ErrCodeInvalidOutputFile,
				fmt.Sprintf("directory '%s' does not exist", dir))
		}
		return errors.Wrap(err, ErrCodeInvalidOutputFile,
			fmt.Sprintf("cannot access directory '%s'", dir))
	}
	if !info.IsDir() {
		return errors.New(ErrCodeInvalidOutputFile,
			fmt.Sprintf("'%s' is not a directory", dir))
	}

	return nil
}

// ValidateEnvironmentConfig validates the configuration the environment would produce
func ValidateEnvironmentConfig() error {
	config, err := LoadConfigFromEnv()
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to load config from environment")
	}

	return config.Validate()
}

// loadConfigFromJSON loads a JSON configuration file on top of the defaults
func loadConfigFromJSON(configPath string) (*Config, error) {
	if err := validateSecurePath(configPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- path validated above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, ErrCodeFileNotFound, "config file '"+configPath+"' not found")
		}
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to read config file '"+configPath+"'")
	}

	config := &Config{}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse JSON config")
	}

	return config.WithDefaults(), nil
}

// ValidateConfigFile validates a JSON configuration file without using it
func ValidateConfigFile(configPath string) error {
	if strings.TrimSpace(configPath) == "" {
		return errors.New(ErrCodeInvalidConfig, "configuration file path cannot be empty")
	}

	config, err := loadConfigFromJSON(configPath)
	if err != nil {
		return err
	}

	return config.Validate()
}
