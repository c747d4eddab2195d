// Command handlers for the datasources CLI
//
// Every handler opens its own editor session: the document is parsed and
// loaded into a fresh registry, so the CLI enforces the same id and limit
// rules as an embedding application.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/agilira/datasources"
	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// openSession loads file into a new editor. A missing file yields an empty
// registry when allowMissing is set.
func (m *Manager) openSession(file string, format datasources.DocumentFormat, allowMissing bool) (*datasources.Editor, error) {
	props, err := datasources.ReadSources(file, format)
	if err != nil {
		if !allowMissing || datasources.ErrorCode(err) != datasources.ErrCodeFileNotFound {
			return nil, err
		}
		props = nil
	}

	editor := datasources.New(m.config)
	if err := editor.LoadSources(props); err != nil {
		_ = editor.Close()
		return nil, err
	}
	return editor, nil
}

func requireArgs(ctx *orpheus.Context, names ...string) error {
	for i, name := range names {
		if ctx.GetArg(i) == "" {
			return errors.New(datasources.ErrCodeInvalidConfig, "missing argument: "+name)
		}
	}
	return nil
}

// handleSourcesList prints every source with its record count
func (m *Manager) handleSourcesList(ctx *orpheus.Context) error {
	if err := requireArgs(ctx, "file"); err != nil {
		return err
	}
	file := ctx.GetArg(0)
	m.auditLogger.LogCommand("cli_sources_list", file)

	editor, err := m.openSession(file, m.detectFormat(file, ctx.GetFlagString("format")), false)
	if err != nil {
		return errors.Wrap(err, datasources.ErrCodeIOError, "failed to load source document")
	}
	defer func() { _ = editor.Close() }()

	sources := editor.DataSources().All()
	if len(sources) == 0 {
		fmt.Fprintf(m.out, "No data sources in %s\n", file)
		return nil
	}

	showRecords := ctx.GetFlagBool("records")
	fmt.Fprintf(m.out, "Data sources in %s:\n", file)
	for _, source := range sources {
		fmt.Fprintf(m.out, "  %s (%d records)\n", source.ID(), source.Len())
		if !showRecords {
			continue
		}
		for _, record := range source.Records() {
			fmt.Fprintf(m.out, "    - %s\n", record.ID())
		}
	}
	return nil
}

// handleSourcesGet resolves a path the way a binding would
func (m *Manager) handleSourcesGet(ctx *orpheus.Context) error {
	if err := requireArgs(ctx, "file", "path"); err != nil {
		return err
	}
	file, path := ctx.GetArg(0), ctx.GetArg(1)
	m.auditLogger.LogCommand("cli_sources_get", file)

	editor, err := m.openSession(file, m.detectFormat(file, ctx.GetFlagString("format")), false)
	if err != nil {
		return errors.Wrap(err, datasources.ErrCodeIOError, "failed to load source document")
	}
	defer func() { _ = editor.Close() }()

	fallback := ctx.GetFlagString("default")
	binding := editor.Bind(path, parseValue(fallback))
	defer binding.Dispose()

	if binding.State() != datasources.BindingResolved && fallback == "" {
		return errors.New(datasources.ErrCodeRecordNotFound, fmt.Sprintf("path '%s' does not resolve", path))
	}

	fmt.Fprintln(m.out, formatValue(binding.Value()))
	return nil
}

// handleSourcesSet sets one field and saves the document atomically
func (m *Manager) handleSourcesSet(ctx *orpheus.Context) error {
	if err := requireArgs(ctx, "file", "path", "value"); err != nil {
		return err
	}
	file, rawPath, rawValue := ctx.GetArg(0), ctx.GetArg(1), ctx.GetArg(2)
	m.auditLogger.LogCommand("cli_sources_set", file)

	path := datasources.ResolvePath(rawPath)
	if !path.Resolved() {
		return errors.New(datasources.ErrCodeInvalidPath,
			fmt.Sprintf("'%s' is not a source.record.field path", rawPath))
	}
	if path.Address.Field == "id" {
		return errors.New(datasources.ErrCodeInvalidPath, "record ids cannot be changed")
	}

	format := m.detectFormat(file, ctx.GetFlagString("format"))
	editor, err := m.openSession(file, format, true)
	if err != nil {
		return errors.Wrap(err, datasources.ErrCodeIOError, "failed to load source document")
	}
	defer func() { _ = editor.Close() }()

	registry := editor.DataSources()
	source := registry.Get(path.Address.Source)
	if source == nil {
		if source, err = registry.Add(datasources.SourceProps{ID: path.Address.Source}); err != nil {
			return err
		}
	}
	record := source.GetRecord(path.Address.Record)
	if record == nil {
		if record, err = source.AddRecord(datasources.RecordProps{"id": path.Address.Record}); err != nil {
			return err
		}
	}

	value := parseValue(rawValue)
	record.Set(map[string]interface{}{path.Address.Field: value})

	if err := checkFileWriteable(file); err != nil {
		return errors.Wrap(err, datasources.ErrCodeIOError, "cannot write source document")
	}
	writer, err := datasources.NewDocumentWriter(file, format, m.auditLogger)
	if err != nil {
		return err
	}
	if _, err := writer.Write(registry.Export()); err != nil {
		return errors.Wrap(err, datasources.ErrCodeIOError, "failed to write source document")
	}

	fmt.Fprintf(m.out, "Set %s = %s in %s\n", rawPath, formatValue(value), file)
	return nil
}

// handleSourcesValidate parses a document and loads it into a session
func (m *Manager) handleSourcesValidate(ctx *orpheus.Context) error {
	if err := requireArgs(ctx, "file"); err != nil {
		return err
	}
	file := ctx.GetArg(0)
	format := m.detectFormat(file, ctx.GetFlagString("format"))

	editor, err := m.openSession(file, format, false)
	if err != nil {
		fmt.Fprintf(m.out, "Invalid %s source document: %v\n", format.String(), err)
		return err
	}
	defer func() { _ = editor.Close() }()

	records := 0
	for _, source := range editor.DataSources().All() {
		records += source.Len()
	}
	fmt.Fprintf(m.out, "Valid %s source document: %s (%d sources, %d records)\n",
		format.String(), file, editor.DataSources().Len(), records)
	return nil
}

// handleSourcesConvert rewrites a document in another format
func (m *Manager) handleSourcesConvert(ctx *orpheus.Context) error {
	if err := requireArgs(ctx, "input", "output"); err != nil {
		return err
	}
	input, output := ctx.GetArg(0), ctx.GetArg(1)
	from := m.detectFormat(input, ctx.GetFlagString("from"))
	to := m.detectFormat(output, ctx.GetFlagString("to"))
	m.auditLogger.LogCommand("cli_sources_convert", input)

	editor, err := m.openSession(input, from, false)
	if err != nil {
		return errors.Wrap(err, datasources.ErrCodeIOError, "failed to load input document")
	}
	defer func() { _ = editor.Close() }()

	if err := datasources.WriteSources(output, to, editor.DataSources().Export()); err != nil {
		return errors.Wrap(err, datasources.ErrCodeIOError, "failed to write output document")
	}

	fmt.Fprintf(m.out, "Converted %s (%s) -> %s (%s)\n", input, from.String(), output, to.String())
	return nil
}

// handleSourcesInit creates a document from a template
func (m *Manager) handleSourcesInit(ctx *orpheus.Context) error {
	if err := requireArgs(ctx, "file"); err != nil {
		return err
	}
	file := ctx.GetArg(0)
	formatStr := ctx.GetFlagString("format")
	template := ctx.GetFlagString("template")
	if template == "" {
		template = "default"
	}

	var format datasources.DocumentFormat
	if formatStr == "" {
		format = datasources.DetectFormat(file)
		if format == datasources.FormatUnknown {
			format = datasources.FormatJSON
		}
	} else {
		format = datasources.ParseFormat(formatStr)
	}
	if format == datasources.FormatUnknown {
		return errors.New(datasources.ErrCodeUnsupportedFormat, fmt.Sprintf("unsupported format: %s", formatStr))
	}

	if _, err := os.Stat(file); err == nil {
		return errors.New(datasources.ErrCodeIOError, fmt.Sprintf("file already exists: %s", file))
	}

	if err := datasources.WriteSources(file, format, generateTemplate(template)); err != nil {
		return errors.Wrap(err, datasources.ErrCodeIOError, "failed to write source document")
	}
	m.auditLogger.LogCommand("cli_sources_init", file)

	fmt.Fprintf(m.out, "Created %s source document: %s\n", format.String(), file)
	fmt.Fprintf(m.out, "Template: %s\n", template)
	return nil
}

// handleWatch follows a record document with a Feed and prints the value
// bound to path on every change. The feed polls in the background and its
// mutations are drained here, on the goroutine that owns the editor.
func (m *Manager) handleWatch(ctx *orpheus.Context) error {
	if err := requireArgs(ctx, "file", "path"); err != nil {
		return err
	}
	file, path := ctx.GetArg(0), ctx.GetArg(1)

	interval, err := parseExtendedDuration(ctx.GetFlagString("interval"))
	if err != nil || interval <= 0 {
		return errors.New(datasources.ErrCodeInvalidPollInterval,
			fmt.Sprintf("invalid interval: %s", ctx.GetFlagString("interval")))
	}
	limit, err := parseExtendedDuration(ctx.GetFlagString("for"))
	if err != nil || limit < 0 {
		return errors.New(datasources.ErrCodeInvalidConfig,
			fmt.Sprintf("invalid duration: %s", ctx.GetFlagString("for")))
	}
	verbose := ctx.GetFlagBool("verbose")

	editor := datasources.New(m.config)
	defer func() { _ = editor.Close() }()

	queue := datasources.NewMutationQueue(64)
	feed := datasources.NewFeed(editor, datasources.FeedConfig{
		PollInterval: interval,
		Dispatch:     queue.Dispatch,
		OnEvent: func(event datasources.FeedEvent, err error) {
			if err != nil {
				fmt.Fprintf(m.out, "Error loading %s: %v\n", event.Path, err)
			} else if verbose {
				fmt.Fprintf(m.out, "File event: %s\n", describeEvent(event))
			}
		},
	})
	if err := feed.Watch(file, ctx.GetFlagString("source")); err != nil {
		return err
	}
	m.auditLogger.LogCommand("cli_watch", file)

	binding := editor.Bind(path, parseValue(ctx.GetFlagString("default")))
	defer binding.Dispose()

	fmt.Fprintf(m.out, "Watching %s as %v (interval: %v)\n", file, feed.Sources(), interval)
	feed.Poll()
	queue.Drain()
	fmt.Fprintf(m.out, "%s = %s\n", path, formatValue(binding.Value()))

	binding.OnChange(func(change datasources.BindingChange) {
		fmt.Fprintf(m.out, "%s = %s\n", change.Path, formatValue(change.New))
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if limit > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, limit)
		defer cancel()
	}

	if err := feed.Start(); err != nil {
		return err
	}
	// closing first releases a poll blocked on a full queue
	defer func() {
		queue.Close()
		_ = feed.Stop()
	}()

	for {
		select {
		case <-runCtx.Done():
			return nil
		case <-queue.Ready():
			queue.Drain()
		}
	}
}

// handleAuditQuery prints matching audit events, newest first
func (m *Manager) handleAuditQuery(ctx *orpheus.Context) error {
	if !m.auditLogger.Enabled() {
		return errors.New(datasources.ErrCodeAuditError, "audit logging not enabled")
	}

	since, err := parseExtendedDuration(ctx.GetFlagString("since"))
	if err != nil {
		return errors.New(datasources.ErrCodeInvalidConfig,
			fmt.Sprintf("invalid since value: %s", ctx.GetFlagString("since")))
	}

	query := datasources.AuditQuery{
		Event: ctx.GetFlagString("event"),
		Path:  ctx.GetFlagString("path"),
		Limit: ctx.GetFlagInt("limit"),
	}
	if since > 0 {
		query.Since = time.Now().Add(-since)
	}

	events, err := m.auditLogger.Query(query)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(m.out, "No audit events found")
		return nil
	}

	for _, event := range events {
		fmt.Fprintf(m.out, "%s %-8s %-16s %-10s %s",
			event.Timestamp.Format(time.RFC3339), event.Level, event.Event, event.Component, event.Path)
		if event.OldValue != nil || event.NewValue != nil {
			fmt.Fprintf(m.out, " %s -> %s", formatValue(event.OldValue), formatValue(event.NewValue))
		}
		fmt.Fprintln(m.out)
	}
	return nil
}

// handleAuditStats prints backend statistics
func (m *Manager) handleAuditStats(ctx *orpheus.Context) error {
	if !m.auditLogger.Enabled() {
		return errors.New(datasources.ErrCodeAuditError, "audit logging not enabled")
	}

	stats, err := m.auditLogger.Stats()
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Total events: %d\n", stats.TotalEvents)
	fmt.Fprintf(m.out, "Schema version: %d\n", stats.SchemaVersion)
	fmt.Fprintf(m.out, "Size: %d bytes\n", stats.DatabaseSize)
	if stats.OldestEvent != nil && stats.NewestEvent != nil {
		fmt.Fprintf(m.out, "Range: %s - %s\n",
			stats.OldestEvent.Format(time.RFC3339), stats.NewestEvent.Format(time.RFC3339))
	}
	for _, level := range sortedKeys(stats.EventsByLevel) {
		fmt.Fprintf(m.out, "  level %s: %d\n", level, stats.EventsByLevel[level])
	}
	for _, component := range sortedKeys(stats.EventsByComponent) {
		fmt.Fprintf(m.out, "  component %s: %d\n", component, stats.EventsByComponent[component])
	}
	return nil
}

// handleAuditCleanup deletes old audit events
func (m *Manager) handleAuditCleanup(ctx *orpheus.Context) error {
	if !m.auditLogger.Enabled() {
		return errors.New(datasources.ErrCodeAuditError, "audit logging not enabled")
	}

	olderThanStr := ctx.GetFlagString("older-than")
	olderThan, err := parseExtendedDuration(olderThanStr)
	if err != nil {
		return errors.New(datasources.ErrCodeInvalidConfig, fmt.Sprintf("invalid older-than value: %s", olderThanStr))
	}

	dryRun := ctx.GetFlagBool("dry-run")
	count, err := m.auditLogger.Cleanup(olderThan, dryRun)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintf(m.out, "Would delete %d audit events older than %s\n", count, olderThanStr)
	} else {
		fmt.Fprintf(m.out, "Deleted %d audit events older than %s\n", count, olderThanStr)
	}
	return nil
}

// handleInfo displays version and effective limits
func (m *Manager) handleInfo(ctx *orpheus.Context) error {
	config := m.config.WithDefaults()

	fmt.Fprintf(m.out, "Datasources Editor Toolkit\n")
	fmt.Fprintf(m.out, "Version: %s\n", Version)
	fmt.Fprintf(m.out, "Formats: JSON, YAML\n")
	fmt.Fprintf(m.out, "Audit logging: %v\n", m.auditLogger.Enabled())

	if ctx.GetFlagBool("verbose") {
		fmt.Fprintf(m.out, "\nSystem Details:\n")
		fmt.Fprintf(m.out, "Go version: %s\n", runtime.Version())
		fmt.Fprintf(m.out, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(m.out, "Max sources: %d\n", config.MaxSources)
		fmt.Fprintf(m.out, "Max records per source: %d\n", config.MaxRecordsPerSource)
		fmt.Fprintf(m.out, "Poll interval: %v\n", config.PollInterval)
		fmt.Fprintf(m.out, "Max watched files: %d\n", config.MaxWatchedFiles)
	}
	return nil
}

// handleCompletion generates shell completion scripts
func (m *Manager) handleCompletion(ctx *orpheus.Context) error {
	const commands = "sources watch audit info completion"

	switch shell := ctx.GetArg(0); shell {
	case "bash":
		fmt.Fprintf(m.out, "# Bash completion for datasources\n")
		fmt.Fprintf(m.out, "# Add to ~/.bashrc: source <(datasources completion bash)\n")
		fmt.Fprintf(m.out, "_datasources_completion() {\n")
		fmt.Fprintf(m.out, "  COMPREPLY=($(compgen -W '%s' -- \"${COMP_WORDS[COMP_CWORD]}\"))\n", commands)
		fmt.Fprintf(m.out, "}\n")
		fmt.Fprintf(m.out, "complete -F _datasources_completion datasources\n")
	case "zsh":
		fmt.Fprintf(m.out, "#compdef datasources\n")
		fmt.Fprintf(m.out, "# Add to ~/.zshrc: source <(datasources completion zsh)\n")
		fmt.Fprintf(m.out, "_datasources() {\n")
		fmt.Fprintf(m.out, "  _arguments '1: :(%s)'\n", commands)
		fmt.Fprintf(m.out, "}\n")
	case "fish":
		fmt.Fprintf(m.out, "# Fish completion for datasources\n")
		fmt.Fprintf(m.out, "complete -c datasources -f -a '%s'\n", commands)
	default:
		return errors.New(datasources.ErrCodeInvalidConfig, fmt.Sprintf("unsupported shell: %s", shell))
	}
	return nil
}
