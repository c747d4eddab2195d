// Package cli provides the command-line interface for data source documents.
//
// The CLI is built on the Orpheus framework with git-style subcommands:
//
//	datasources sources list <file>
//	datasources sources get <file> <path>
//	datasources sources set <file> <path> <value>
//	datasources sources validate <file>
//	datasources sources convert <input> <output>
//	datasources sources init <file>
//	datasources watch <file> <path>
//	datasources audit query|stats|cleanup
//	datasources info
//	datasources completion <shell>
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"io"
	"os"

	"github.com/agilira/datasources"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// Version is the CLI version reported by info and --version
const Version = "1.0.0"

const formatUsage = "Document format (auto|json|yaml)"

// Manager wires the commands to an editor configuration and an optional
// audit logger
type Manager struct {
	app         *orpheus.App
	config      datasources.Config
	auditLogger *datasources.AuditLogger
	out         io.Writer
}

// NewManager creates a CLI manager writing to stdout
func NewManager() *Manager {
	app := orpheus.New("datasources").
		SetDescription("Inspect, edit and follow data source documents").
		SetVersion(Version)

	manager := &Manager{
		app: app,
		out: os.Stdout,
	}

	manager.setupSourceCommands()
	manager.setupWatchCommands()
	manager.setupUtilityCommands()

	return manager
}

// WithAudit enables the audit commands and records every CLI operation
func (m *Manager) WithAudit(auditLogger *datasources.AuditLogger) *Manager {
	m.auditLogger = auditLogger
	return m
}

// WithConfig sets the configuration of the editor sessions the commands open
func (m *Manager) WithConfig(config datasources.Config) *Manager {
	m.config = config
	return m
}

// WithOutput redirects command output
func (m *Manager) WithOutput(out io.Writer) *Manager {
	m.out = out
	return m
}

// Run executes the command line args (without the program name)
func (m *Manager) Run(args []string) error {
	return m.app.Run(args)
}

// setupSourceCommands configures the 'sources' command group
func (m *Manager) setupSourceCommands() {
	sourcesCmd := orpheus.NewCommand("sources", "Source document operations")

	// sources list <file>
	listCmd := sourcesCmd.Subcommand("list", "List sources and record counts", m.handleSourcesList)
	listCmd.AddFlag("format", "f", "auto", formatUsage)
	listCmd.AddBoolFlag("records", "r", false, "List record ids too")

	// sources get <file> <path>
	getCmd := sourcesCmd.Subcommand("get", "Resolve a source.record.field path", m.handleSourcesGet)
	getCmd.AddFlag("format", "f", "auto", formatUsage)
	getCmd.AddFlag("default", "d", "", "Value shown when the path does not resolve")

	// sources set <file> <path> <value>
	setCmd := sourcesCmd.Subcommand("set", "Set a field, creating source and record if needed", m.handleSourcesSet)
	setCmd.AddFlag("format", "f", "auto", formatUsage)

	// sources validate <file>
	validateCmd := sourcesCmd.Subcommand("validate", "Validate a source document", m.handleSourcesValidate)
	validateCmd.AddFlag("format", "f", "auto", formatUsage)

	// sources convert <input> <output>
	convertCmd := sourcesCmd.Subcommand("convert", "Convert a source document between formats", m.handleSourcesConvert)
	convertCmd.AddFlag("from", "", "auto", "Input format (auto|json|yaml)")
	convertCmd.AddFlag("to", "", "auto", "Output format (auto|json|yaml)")

	// sources init <file> [--template=default]
	initCmd := orpheus.NewCommand("init", "Create a source document from a template").
		AddFlag("format", "f", "", "Document format (json|yaml)").
		AddFlag("template", "t", "default", "Template (default|catalog|minimal)").
		SetHandler(m.handleSourcesInit)
	sourcesCmd.AddSubcommand(initCmd)

	m.app.AddCommand(sourcesCmd)
}

// setupWatchCommands configures 'watch', which follows a record document
// and prints a bound value whenever it changes
func (m *Manager) setupWatchCommands() {
	watchCmd := orpheus.NewCommand("watch", "Follow a record document and print a bound value")
	watchCmd.SetHandler(m.handleWatch)
	watchCmd.AddFlag("source", "s", "", "Source id fed by the file (default: file name)")
	watchCmd.AddFlag("default", "d", "", "Value shown when the path does not resolve")
	watchCmd.AddFlag("interval", "i", "1s", "Polling interval")
	watchCmd.AddFlag("for", "", "0", "Stop after this long (0 runs until interrupted)")
	watchCmd.AddBoolFlag("verbose", "v", false, "Print every file event")

	m.app.AddCommand(watchCmd)
}

// setupUtilityCommands configures audit, info and completion
func (m *Manager) setupUtilityCommands() {
	auditCmd := orpheus.NewCommand("audit", "Audit trail management")

	queryCmd := auditCmd.Subcommand("query", "Query the audit trail", m.handleAuditQuery)
	queryCmd.AddFlag("since", "s", "24h", "Time range (e.g., 24h, 7d, 2w)")
	queryCmd.AddFlag("event", "e", "", "Event type filter")
	queryCmd.AddFlag("path", "p", "", "Path prefix filter")
	queryCmd.AddIntFlag("limit", "l", 100, "Maximum results")

	auditCmd.Subcommand("stats", "Audit trail statistics", m.handleAuditStats)

	cleanupCmd := auditCmd.Subcommand("cleanup", "Delete old audit events", m.handleAuditCleanup)
	cleanupCmd.AddFlag("older-than", "o", "30d", "Delete entries older than")
	cleanupCmd.AddBoolFlag("dry-run", "d", false, "Show what would be deleted")

	m.app.AddCommand(auditCmd)

	infoCmd := orpheus.NewCommand("info", "System information and diagnostics")
	infoCmd.SetHandler(m.handleInfo)
	infoCmd.AddBoolFlag("verbose", "v", false, "Verbose system information")
	m.app.AddCommand(infoCmd)

	completionCmd := orpheus.NewCommand("completion", "Generate shell completion scripts")
	completionCmd.SetHandler(m.handleCompletion)
	m.app.AddCommand(completionCmd)
}
