// integration.go: Command-line configuration for editor sessions
//
// ConfigManager combines command-line flags, environment variables and an
// optional JSON configuration file into a validated Config:
//
//	cm := datasources.NewConfigManager("datasources").
//		SetDescription("Data source tooling").
//		SetVersion("1.0.0")
//	if err := cm.Parse(os.Args[1:]); err != nil { ... }
//	config, err := cm.Config()
//	editor := datasources.New(*config)
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"os"
	"strings"
	"time"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/go-errors"
)

// ErrHelpRequested is returned by Parse when -h or --help is present
var ErrHelpRequested = errors.New(ErrCodeInvalidConfig, "help requested")

// Session flag names
const (
	FlagConfig          = "config"
	FlagMaxSources      = "max-sources"
	FlagMaxRecords      = "max-records"
	FlagPollInterval    = "poll-interval"
	FlagCacheTTL        = "cache-ttl"
	FlagMaxWatchedFiles = "max-watched-files"
	FlagAuditEnabled    = "audit-enabled"
	FlagAuditOutput     = "audit-output"
	FlagAuditLevel      = "audit-level"
	FlagAuditBuffer     = "audit-buffer"
	FlagAuditFlush      = "audit-flush"
)

// ConfigManager wraps a flash-flags set preloaded with the session flags.
// Applications may register their own flags next to them.
type ConfigManager struct {
	flags   *flashflags.FlagSet
	appName string
	values  map[string]interface{}
}

// NewConfigManager creates a manager with the session flags registered.
// Zero flag values mean "not set" and leave the file or environment value
// in place.
func NewConfigManager(appName string) *ConfigManager {
	cm := &ConfigManager{
		flags:   flashflags.New(appName),
		appName: appName,
		values:  make(map[string]interface{}),
	}

	cm.flags.String(FlagConfig, "", "JSON configuration file")
	cm.flags.Int(FlagMaxSources, 0, "maximum number of data sources")
	cm.flags.Int(FlagMaxRecords, 0, "maximum records per data source")
	cm.flags.Duration(FlagPollInterval, 0, "feed poll interval")
	cm.flags.Duration(FlagCacheTTL, 0, "feed stat cache TTL")
	cm.flags.Int(FlagMaxWatchedFiles, 0, "maximum files followed by a feed")
	cm.flags.Bool(FlagAuditEnabled, false, "record an audit trail")
	cm.flags.String(FlagAuditOutput, "", "audit output file (.db or .jsonl)")
	cm.flags.String(FlagAuditLevel, "", "minimum audit level (info, warn, critical, security)")
	cm.flags.Int(FlagAuditBuffer, 0, "audit buffer size")
	cm.flags.Duration(FlagAuditFlush, 0, "audit flush interval")

	return cm
}

// SetDescription sets the application description shown in help
func (cm *ConfigManager) SetDescription(description string) *ConfigManager {
	cm.flags.SetDescription(description)
	return cm
}

// SetVersion sets the application version shown in help
func (cm *ConfigManager) SetVersion(version string) *ConfigManager {
	cm.flags.SetVersion(version)
	return cm
}

// StringFlag registers an application flag
func (cm *ConfigManager) StringFlag(name, defaultValue, usage string) *ConfigManager {
	cm.flags.String(name, defaultValue, usage)
	return cm
}

// IntFlag registers an application flag
func (cm *ConfigManager) IntFlag(name string, defaultValue int, usage string) *ConfigManager {
	cm.flags.Int(name, defaultValue, usage)
	return cm
}

// BoolFlag registers an application flag
func (cm *ConfigManager) BoolFlag(name string, defaultValue bool, usage string) *ConfigManager {
	cm.flags.Bool(name, defaultValue, usage)
	return cm
}

// DurationFlag registers an application flag
func (cm *ConfigManager) DurationFlag(name string, defaultValue time.Duration, usage string) *ConfigManager {
	cm.flags.Duration(name, defaultValue, usage)
	return cm
}

// StringSliceFlag registers an application flag
func (cm *ConfigManager) StringSliceFlag(name string, defaultValue []string, usage string) *ConfigManager {
	cm.flags.StringSlice(name, defaultValue, usage)
	return cm
}

// Parse parses args. Environment variables named <APPNAME>_<FLAG_NAME>
// fill flags missing from args.
func (cm *ConfigManager) Parse(args []string) error {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return ErrHelpRequested
		}
	}

	cm.flags.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(cm.appName, "-", "_")))
	if err := cm.flags.Parse(args); err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse command-line flags")
	}
	return nil
}

// ParseArgs parses os.Args[1:]
func (cm *ConfigManager) ParseArgs() error {
	return cm.Parse(os.Args[1:])
}

// GetString returns an overridden or parsed flag value
func (cm *ConfigManager) GetString(key string) string {
	if val, ok := cm.values[key].(string); ok {
		return val
	}
	return cm.flags.GetString(key)
}

// GetInt returns an overridden or parsed flag value
func (cm *ConfigManager) GetInt(key string) int {
	if val, ok := cm.values[key].(int); ok {
		return val
	}
	return cm.flags.GetInt(key)
}

// GetBool returns an overridden or parsed flag value
func (cm *ConfigManager) GetBool(key string) bool {
	if val, ok := cm.values[key].(bool); ok {
		return val
	}
	return cm.flags.GetBool(key)
}

// GetDuration returns an overridden or parsed flag value
func (cm *ConfigManager) GetDuration(key string) time.Duration {
	if val, ok := cm.values[key].(time.Duration); ok {
		return val
	}
	return cm.flags.GetDuration(key)
}

// GetStringSlice returns an overridden or parsed flag value
func (cm *ConfigManager) GetStringSlice(key string) []string {
	if val, ok := cm.values[key].([]string); ok {
		return val
	}
	return cm.flags.GetStringSlice(key)
}

// Set overrides a flag value
func (cm *ConfigManager) Set(key string, value interface{}) {
	cm.values[key] = value
}

// Config builds the session configuration: defaults, then the JSON file
// named by --config, then DATASOURCES_* environment variables, then flags.
// The result is validated.
func (cm *ConfigManager) Config() (*Config, error) {
	config, err := LoadConfigMultiSource(cm.GetString(FlagConfig))
	if err != nil {
		return nil, err
	}

	if v := cm.GetInt(FlagMaxSources); v != 0 {
		config.MaxSources = v
	}
	if v := cm.GetInt(FlagMaxRecords); v != 0 {
		config.MaxRecordsPerSource = v
	}
	if v := cm.GetDuration(FlagPollInterval); v != 0 {
		config.PollInterval = v
	}
	if v := cm.GetDuration(FlagCacheTTL); v != 0 {
		config.CacheTTL = v
	}
	if v := cm.GetInt(FlagMaxWatchedFiles); v != 0 {
		config.MaxWatchedFiles = v
	}

	if cm.GetBool(FlagAuditEnabled) {
		config.Audit.Enabled = true
	}
	if v := cm.GetString(FlagAuditOutput); v != "" {
		config.Audit.OutputFile = v
	}
	if v := cm.GetString(FlagAuditLevel); v != "" {
		level, err := parseAuditLevel(v)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeInvalidConfig, "invalid --"+FlagAuditLevel).
				WithContext("value", v)
		}
		config.Audit.MinLevel = level
	}
	if v := cm.GetInt(FlagAuditBuffer); v != 0 {
		config.Audit.BufferSize = v
	}
	if v := cm.GetDuration(FlagAuditFlush); v != 0 {
		config.Audit.FlushInterval = v
	}

	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// PrintUsage prints the flag help
func (cm *ConfigManager) PrintUsage() {
	cm.flags.PrintHelp()
}

// FlagNames returns every registered flag name
func (cm *ConfigManager) FlagNames() []string {
	var names []string
	cm.flags.VisitAll(func(flag *flashflags.Flag) {
		names = append(names, flag.Name())
	})
	return names
}

// FlagToEnvKey returns the environment variable that feeds a flag
func (cm *ConfigManager) FlagToEnvKey(flagName string) string {
	return strings.ToUpper(strings.ReplaceAll(cm.appName+"_"+flagName, "-", "_"))
}
