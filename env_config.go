// env_config.go: Environment variables support for editor sessions
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// EnvConfig represents configuration loaded from environment variables
type EnvConfig struct {
	// Registry limits
	MaxSources          int `env:"DATASOURCES_MAX_SOURCES"`
	MaxRecordsPerSource int `env:"DATASOURCES_MAX_RECORDS"`

	// Feed polling
	PollInterval    time.Duration `env:"DATASOURCES_POLL_INTERVAL"`
	CacheTTL        time.Duration `env:"DATASOURCES_CACHE_TTL"`
	MaxWatchedFiles int           `env:"DATASOURCES_MAX_WATCHED_FILES"`

	// Audit
	AuditEnabled       bool          `env:"DATASOURCES_AUDIT_ENABLED"`
	AuditOutputFile    string        `env:"DATASOURCES_AUDIT_OUTPUT_FILE"`
	AuditMinLevel      string        `env:"DATASOURCES_AUDIT_MIN_LEVEL"`
	AuditBufferSize    int           `env:"DATASOURCES_AUDIT_BUFFER_SIZE"`
	AuditFlushInterval time.Duration `env:"DATASOURCES_AUDIT_FLUSH_INTERVAL"`
}

// LoadConfigFromEnv loads configuration from environment variables
func LoadConfigFromEnv() (*Config, error) {
	config := &Config{}
	envConfig := &EnvConfig{}

	if err := loadEnvVars(envConfig); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to load environment configuration")
	}

	if err := convertEnvToConfig(envConfig, config); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to convert environment configuration")
	}

	return config.WithDefaults(), nil
}

// LoadConfigMultiSource loads configuration with precedence:
// 1. Environment variables (highest priority)
// 2. JSON configuration file
// 3. Default values (lowest priority)
func LoadConfigMultiSource(configFile string) (*Config, error) {
	config := (&Config{}).WithDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileConfig, err := loadConfigFromJSON(configFile)
			if err != nil {
				return config, err
			}
			config = fileConfig
		}
	}

	envConfig := &EnvConfig{}
	if err := loadEnvVars(envConfig); err != nil {
		return config, errors.Wrap(err, ErrCodeInvalidConfig, "failed to load environment configuration")
	}

	if err := convertEnvToConfig(envConfig, config); err != nil {
		return config, errors.Wrap(err, ErrCodeInvalidConfig, "failed to merge configurations")
	}

	return config.WithDefaults(), nil
}

// loadEnvVars loads environment variables into the EnvConfig struct
func loadEnvVars(envConfig *EnvConfig) error {
	if err := loadLimitsConfig(envConfig); err != nil {
		return err
	}
	if err := loadPollingConfig(envConfig); err != nil {
		return err
	}
	return loadAuditConfig(envConfig)
}

// loadLimitsConfig loads registry limits from environment variables
func loadLimitsConfig(envConfig *EnvConfig) error {
	if maxStr := os.Getenv("DATASOURCES_MAX_SOURCES"); maxStr != "" {
		maxSources, err := strconv.Atoi(maxStr)
		if err != nil {
			return errors.New(ErrCodeInvalidConfig, "invalid DATASOURCES_MAX_SOURCES value")
		}
		envConfig.MaxSources = maxSources
	}

	if maxStr := os.Getenv("DATASOURCES_MAX_RECORDS"); maxStr != "" {
		maxRecords, err := strconv.Atoi(maxStr)
		if err != nil {
			return errors.New(ErrCodeInvalidConfig, "invalid DATASOURCES_MAX_RECORDS value")
		}
		envConfig.MaxRecordsPerSource = maxRecords
	}
	return nil
}

// loadPollingConfig loads feed polling settings from environment variables
func loadPollingConfig(envConfig *EnvConfig) error {
	if pollStr := os.Getenv("DATASOURCES_POLL_INTERVAL"); pollStr != "" {
		duration, err := time.ParseDuration(pollStr)
		if err != nil {
			return errors.New(ErrCodeInvalidConfig, "invalid DATASOURCES_POLL_INTERVAL format")
		}
		envConfig.PollInterval = duration
	}

	if cacheStr := os.Getenv("DATASOURCES_CACHE_TTL"); cacheStr != "" {
		duration, err := time.ParseDuration(cacheStr)
		if err != nil {
			return errors.New(ErrCodeInvalidConfig, "invalid DATASOURCES_CACHE_TTL format")
		}
		envConfig.CacheTTL = duration
	}

	if maxStr := os.Getenv("DATASOURCES_MAX_WATCHED_FILES"); maxStr != "" {
		maxFiles, err := strconv.Atoi(maxStr)
		if err != nil {
			return errors.New(ErrCodeInvalidConfig, "invalid DATASOURCES_MAX_WATCHED_FILES value")
		}
		envConfig.MaxWatchedFiles = maxFiles
	}
	return nil
}

// loadAuditConfig loads audit configuration from environment variables
func loadAuditConfig(envConfig *EnvConfig) error {
	if auditStr := os.Getenv("DATASOURCES_AUDIT_ENABLED"); auditStr != "" {
		envConfig.AuditEnabled = parseBool(auditStr)
	}

	envConfig.AuditOutputFile = os.Getenv("DATASOURCES_AUDIT_OUTPUT_FILE")
	envConfig.AuditMinLevel = os.Getenv("DATASOURCES_AUDIT_MIN_LEVEL")

	if bufferStr := os.Getenv("DATASOURCES_AUDIT_BUFFER_SIZE"); bufferStr != "" {
		if buffer, err := strconv.Atoi(bufferStr); err == nil && buffer > 0 {
			envConfig.AuditBufferSize = buffer
		}
	}

	if flushStr := os.Getenv("DATASOURCES_AUDIT_FLUSH_INTERVAL"); flushStr != "" {
		if duration, err := time.ParseDuration(flushStr); err == nil {
			envConfig.AuditFlushInterval = duration
		}
	}
	return nil
}

// convertEnvToConfig applies every non-zero EnvConfig value onto config
func convertEnvToConfig(envConfig *EnvConfig, config *Config) error {
	if envConfig.MaxSources != 0 {
		config.MaxSources = envConfig.MaxSources
	}
	if envConfig.MaxRecordsPerSource != 0 {
		config.MaxRecordsPerSource = envConfig.MaxRecordsPerSource
	}
	if envConfig.PollInterval != 0 {
		config.PollInterval = envConfig.PollInterval
	}
	if envConfig.CacheTTL != 0 {
		config.CacheTTL = envConfig.CacheTTL
	}
	if envConfig.MaxWatchedFiles != 0 {
		config.MaxWatchedFiles = envConfig.MaxWatchedFiles
	}
	return convertAuditConfig(envConfig, config)
}

// convertAuditConfig converts audit configuration from EnvConfig to Config
func convertAuditConfig(envConfig *EnvConfig, config *Config) error {
	if !envConfig.AuditEnabled && envConfig.AuditOutputFile == "" {
		return nil
	}

	config.Audit.Enabled = envConfig.AuditEnabled

	if envConfig.AuditOutputFile != "" {
		config.Audit.OutputFile = envConfig.AuditOutputFile
	}

	if envConfig.AuditMinLevel != "" {
		level, err := parseAuditLevel(envConfig.AuditMinLevel)
		if err != nil {
			return err
		}
		config.Audit.MinLevel = level
	}

	if envConfig.AuditBufferSize > 0 {
		config.Audit.BufferSize = envConfig.AuditBufferSize
	}

	if envConfig.AuditFlushInterval > 0 {
		config.Audit.FlushInterval = envConfig.AuditFlushInterval
	}
	return nil
}

// parseAuditLevel parses audit level string to AuditLevel type
func parseAuditLevel(levelStr string) (AuditLevel, error) {
	switch strings.ToLower(levelStr) {
	case "info":
		return AuditInfo, nil
	case "warn", "warning":
		return AuditWarn, nil
	case "critical", "error":
		return AuditCritical, nil
	case "security":
		return AuditSecurity, nil
	default:
		return AuditInfo, errors.New(ErrCodeInvalidConfig, "invalid audit level")
	}
}

// parseBool parses boolean values from environment variables
// Supports: true/false, 1/0, yes/no, on/off, enabled/disabled
func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on", "enabled":
		return true
	default:
		return false
	}
}
