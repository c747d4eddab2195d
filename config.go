// config.go: Configuration for data source editor sessions
//
// Copyright (c) 2025 AGILira
// Series: AGILira System Libraries
// SPDX-License-Identifier: MPL-2.0

package datasources

import "time"

// Config configures an Editor session
type Config struct {
	// MaxSources limits the number of registered data sources
	// Default: 1000
	MaxSources int `json:"max_sources"`

	// MaxRecordsPerSource limits the records held by one source
	// Default: 100000
	MaxRecordsPerSource int `json:"max_records_per_source"`

	// PollInterval is how often a Feed checks its files for changes
	// Default: 5 seconds
	PollInterval time.Duration `json:"poll_interval"`

	// CacheTTL is how long a Feed caches os.Stat() results
	// Should be <= PollInterval for effectiveness
	// Default: PollInterval / 2
	CacheTTL time.Duration `json:"cache_ttl"`

	// MaxWatchedFiles limits the files a Feed follows
	// Default: 100
	MaxWatchedFiles int `json:"max_watched_files"`

	// Audit configures the audit trail of registry mutations
	// Default: disabled
	Audit AuditConfig `json:"audit"`

	// ErrorHandler receives errors that have no caller to return to
	// If nil, errors are written to stderr
	ErrorHandler ErrorHandler `json:"-"`

	// IDGenerator names sources and records added without an id
	// Default: NewID (lowercase ULID)
	IDGenerator IDGenerator `json:"-"`

	// Hub replaces the default synchronous hub
	Hub Hub `json:"-"`
}

// WithDefaults applies sensible defaults to the configuration
func (c *Config) WithDefaults() *Config {
	config := *c

	if config.MaxSources <= 0 {
		config.MaxSources = 1000
	}

	if config.MaxRecordsPerSource <= 0 {
		config.MaxRecordsPerSource = 100000
	}

	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}

	if config.CacheTTL <= 0 {
		config.CacheTTL = config.PollInterval / 2
	}

	// GUARD RAIL: Ensure CacheTTL <= PollInterval for effectiveness
	if config.CacheTTL > config.PollInterval {
		config.CacheTTL = config.PollInterval / 2
	}

	if config.MaxWatchedFiles <= 0 {
		config.MaxWatchedFiles = 100
	}

	if config.Audit.Enabled {
		defaults := DefaultAuditConfig()
		if config.Audit.BufferSize <= 0 {
			config.Audit.BufferSize = defaults.BufferSize
		}
		if config.Audit.FlushInterval <= 0 {
			config.Audit.FlushInterval = defaults.FlushInterval
		}
	}

	return &config
}
