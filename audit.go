// audit.go: Audit trail for data source mutations
//
// Every structural change of an editor session (sources added, removed or
// reset, records added or removed, field values changed) and every
// recovered subscriber panic can be recorded with a tamper-detection
// checksum. The trail is buffered and flushed in the background.
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// AuditLevel represents the severity of audit events
type AuditLevel int

const (
	AuditInfo AuditLevel = iota
	AuditWarn
	AuditCritical
	AuditSecurity
)

func (al AuditLevel) String() string {
	switch al {
	case AuditInfo:
		return "INFO"
	case AuditWarn:
		return "WARN"
	case AuditCritical:
		return "CRITICAL"
	case AuditSecurity:
		return "SECURITY"
	default:
		return "UNKNOWN"
	}
}

// levelFromString is the inverse of AuditLevel.String
func levelFromString(s string) AuditLevel {
	switch strings.ToUpper(s) {
	case "WARN":
		return AuditWarn
	case "CRITICAL":
		return AuditCritical
	case "SECURITY":
		return AuditSecurity
	default:
		return AuditInfo
	}
}

// AuditEvent represents a single auditable event
type AuditEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	Level       AuditLevel             `json:"level"`
	Event       string                 `json:"event"`
	Component   string                 `json:"component"`
	Path        string                 `json:"path,omitempty"`
	OldValue    interface{}            `json:"old_value,omitempty"`
	NewValue    interface{}            `json:"new_value,omitempty"`
	ProcessID   int                    `json:"process_id"`
	ProcessName string                 `json:"process_name"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Checksum    string                 `json:"checksum"` // For tamper detection
}

// AuditConfig configures the audit system
type AuditConfig struct {
	Enabled       bool          `json:"enabled"`
	OutputFile    string        `json:"output_file"`
	MinLevel      AuditLevel    `json:"min_level"`
	BufferSize    int           `json:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// DefaultAuditConfig returns an enabled audit configuration backed by the
// unified SQLite database. Use an OutputFile ending in .jsonl for a JSON
// lines file, or in .db for a dedicated database.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:       true,
		OutputFile:    "",
		MinLevel:      AuditInfo,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	}
}

// AuditQuery filters audit events. Zero fields match everything.
type AuditQuery struct {
	Since     time.Time
	Event     string
	Component string
	Path      string // prefix match
	MinLevel  AuditLevel
	Limit     int
}

// AuditLogger buffers audit events and writes them to a pluggable backend.
// A disabled logger accepts calls and records nothing.
type AuditLogger struct {
	config      AuditConfig
	backend     auditBackend
	buffer      []AuditEvent
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
	processID   int
	processName string
}

// NewAuditLogger creates an audit logger. A disabled configuration creates
// no backend at all.
func NewAuditLogger(config AuditConfig) (*AuditLogger, error) {
	logger := &AuditLogger{
		config:      config,
		stopCh:      make(chan struct{}),
		processID:   os.Getpid(),
		processName: getProcessName(),
	}

	if !config.Enabled {
		return logger, nil
	}

	backend, err := createAuditBackend(config)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to initialize audit backend")
	}
	logger.backend = backend
	logger.buffer = make([]AuditEvent, 0, config.BufferSize)

	if config.FlushInterval > 0 {
		logger.flushTicker = time.NewTicker(config.FlushInterval)
		go logger.flushLoop()
	}

	return logger, nil
}

// Enabled reports whether events are recorded
func (al *AuditLogger) Enabled() bool {
	return al != nil && al.backend != nil && al.config.Enabled
}

// Log records an audit event
func (al *AuditLogger) Log(level AuditLevel, event, component, path string, oldVal, newVal interface{}, context map[string]interface{}) {
	if !al.Enabled() || level < al.config.MinLevel {
		return
	}

	auditEvent := AuditEvent{
		Timestamp:   timecache.CachedTime(),
		Level:       level,
		Event:       event,
		Component:   component,
		Path:        path,
		OldValue:    oldVal,
		NewValue:    newVal,
		ProcessID:   al.processID,
		ProcessName: al.processName,
		Context:     context,
	}
	auditEvent.Checksum = generateChecksum(auditEvent)

	al.bufferMu.Lock()
	al.buffer = append(al.buffer, auditEvent)
	if len(al.buffer) >= al.config.BufferSize {
		_ = al.flushBufferUnsafe() // keep logging even if the backend is failing
	}
	al.bufferMu.Unlock()
}

// LogSecurityEvent logs security-related events
func (al *AuditLogger) LogSecurityEvent(event, details string, context map[string]interface{}) {
	if context == nil {
		context = make(map[string]interface{}, 1)
	}
	context["details"] = details
	al.Log(AuditSecurity, event, "datasources", "", nil, nil, context)
}

// LogCommand logs a CLI command execution
func (al *AuditLogger) LogCommand(command, path string) {
	al.Log(AuditInfo, command, "cli", path, nil, nil, nil)
}

// Flush immediately writes all buffered events
func (al *AuditLogger) Flush() error {
	if !al.Enabled() {
		return nil
	}
	al.bufferMu.Lock()
	defer al.bufferMu.Unlock()
	return al.flushBufferUnsafe()
}

// Query flushes pending events and returns the matching ones, newest first
func (al *AuditLogger) Query(query AuditQuery) ([]AuditEvent, error) {
	if !al.Enabled() {
		return nil, errors.New(ErrCodeAuditError, "audit logging not enabled")
	}
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.Query(query)
}

// Stats returns backend statistics
func (al *AuditLogger) Stats() (*AuditDatabaseStats, error) {
	if !al.Enabled() {
		return nil, errors.New(ErrCodeAuditError, "audit logging not enabled")
	}
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.GetStats()
}

// Cleanup deletes events older than olderThan and returns how many were
// (or with dryRun would be) deleted
func (al *AuditLogger) Cleanup(olderThan time.Duration, dryRun bool) (int64, error) {
	if !al.Enabled() {
		return 0, errors.New(ErrCodeAuditError, "audit logging not enabled")
	}
	if err := al.Flush(); err != nil {
		return 0, err
	}
	return al.backend.Cleanup(time.Now().Add(-olderThan), dryRun)
}

// Close flushes pending events and releases the backend. It is idempotent.
func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}

	var closeErr error
	al.closeOnce.Do(func() {
		close(al.stopCh)
		if al.flushTicker != nil {
			al.flushTicker.Stop()
		}
		if al.backend == nil {
			return
		}

		if err := al.Flush(); err != nil {
			closeErr = errors.Wrap(err, ErrCodeAuditError, "failed to flush audit logger during close")
			return
		}
		if err := al.backend.Close(); err != nil {
			closeErr = errors.Wrap(err, ErrCodeAuditError, "failed to close audit backend")
		}
	})
	return closeErr
}

// flushLoop runs the background flush process
func (al *AuditLogger) flushLoop() {
	for {
		select {
		case <-al.flushTicker.C:
			_ = al.Flush()
		case <-al.stopCh:
			return
		}
	}
}

// flushBufferUnsafe writes the buffer to the backend (caller must hold bufferMu)
func (al *AuditLogger) flushBufferUnsafe() error {
	if len(al.buffer) == 0 {
		return nil
	}

	if err := al.backend.Write(al.buffer); err != nil {
		return fmt.Errorf("failed to write audit events to backend: %w", err)
	}

	al.buffer = al.buffer[:0]
	return nil
}

// generateChecksum creates a tamper-detection checksum using SHA-256
func generateChecksum(event AuditEvent) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%v:%v",
		event.Timestamp.Format(time.RFC3339Nano),
		event.Event, event.Component, event.Path, event.OldValue, event.NewValue)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// VerifyChecksum reports whether an event still matches its checksum
func VerifyChecksum(event AuditEvent) bool {
	return event.Checksum != "" && event.Checksum == generateChecksum(event)
}

func getProcessName() string {
	if len(os.Args) > 0 && os.Args[0] != "" {
		return filepath.Base(os.Args[0])
	}
	return "datasources"
}
