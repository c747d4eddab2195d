// audit_backend.go: Storage backends for the audit trail
//
// Two backends share one interface: a SQLite database (the default, either
// the unified database under the system temp dir or a dedicated .db file)
// and an append-only JSON lines file selected by a .jsonl output file.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// sqliteTimeLayout is the layout of SQLite's CURRENT_TIMESTAMP
const sqliteTimeLayout = "2006-01-02 15:04:05"

// auditBackend persists audit events.
// Implementations must be safe for concurrent use.
type auditBackend interface {
	Write(events []AuditEvent) error
	Flush() error
	Close() error

	// Query returns matching events, newest first
	Query(query AuditQuery) ([]AuditEvent, error)

	// Cleanup deletes events recorded before cutoff
	Cleanup(cutoff time.Time, dryRun bool) (int64, error)

	Maintenance() error
	GetStats() (*AuditDatabaseStats, error)
}

// AuditDatabaseStats summarizes an audit backend
type AuditDatabaseStats struct {
	TotalEvents       int64            `json:"total_events"`
	EventsByLevel     map[string]int64 `json:"events_by_level"`
	EventsByComponent map[string]int64 `json:"events_by_component"`
	OldestEvent       *time.Time       `json:"oldest_event"`
	NewestEvent       *time.Time       `json:"newest_event"`
	DatabaseSize      int64            `json:"database_size_bytes"`
	SchemaVersion     int              `json:"schema_version"`
}

// createAuditBackend picks the backend for config: JSONL for a .jsonl
// output file, SQLite otherwise, falling back to JSONL when SQLite cannot
// be opened.
func createAuditBackend(config AuditConfig) (auditBackend, error) {
	if config.OutputFile != "" && filepath.Ext(config.OutputFile) == ".jsonl" {
		return newJSONLBackend(config)
	}

	backend, err := newSQLiteBackend(config)
	if err == nil {
		return backend, nil
	}

	jsonlBackend, jsonlErr := newJSONLBackend(config)
	if jsonlErr != nil {
		return nil, fmt.Errorf("all audit backends failed - SQLite: %w, JSONL: %v", err, jsonlErr)
	}

	return jsonlBackend, nil
}

// getUnifiedAuditPath returns the path of the shared SQLite audit database
func getUnifiedAuditPath() string {
	return filepath.Join(os.TempDir(), "datasources", "audit.db")
}

// matches reports whether event satisfies every non-zero filter of q
func (q AuditQuery) matches(event AuditEvent) bool {
	if !q.Since.IsZero() && event.Timestamp.Before(q.Since) {
		return false
	}
	if q.Event != "" && event.Event != q.Event {
		return false
	}
	if q.Component != "" && event.Component != q.Component {
		return false
	}
	if q.Path != "" && !strings.HasPrefix(event.Path, q.Path) {
		return false
	}
	return event.Level >= q.MinLevel
}

// sqliteAuditBackend stores events in a SQLite database
type sqliteAuditBackend struct {
	db         *sql.DB
	dbPath     string
	sourceFile string // configured OutputFile, kept per row
	insertStmt *sql.Stmt
	mu         sync.RWMutex
	closed     bool
}

func newSQLiteBackend(config AuditConfig) (*sqliteAuditBackend, error) {
	dbPath := getUnifiedAuditPath()
	if config.OutputFile != "" && filepath.Ext(config.OutputFile) == ".db" {
		dbPath = config.OutputFile
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit database directory: %w", err)
	}

	// WAL keeps writers and readers from blocking each other; busy_timeout
	// covers several processes sharing the unified database.
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=1000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	backend := &sqliteAuditBackend{
		db:         db,
		dbPath:     dbPath,
		sourceFile: config.OutputFile,
	}

	if err := backend.ensureSchemaVersion(); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to initialize audit database schema: %w", err)
	}

	stmt, err := db.Prepare(`
	INSERT INTO audit_events (
		timestamp, level, event, component,
		original_output_file, process_id, process_name,
		path, old_value, new_value, context, checksum
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to prepare audit insert statement: %w", err)
	}
	backend.insertStmt = stmt

	// Retention cleanup is best effort at startup
	_ = backend.performMaintenance()

	return backend, nil
}

// ensureSchemaVersion creates or migrates the schema to the current version
func (s *sqliteAuditBackend) ensureSchemaVersion() error {
	const currentSchemaVersion = 2

	if _, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("failed to create schema_info table: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_info ORDER BY version DESC LIMIT 1").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to check schema version: %w", err)
	}

	if version >= currentSchemaVersion {
		return nil
	}

	if err := s.migrateSchema(version, currentSchemaVersion); err != nil {
		return fmt.Errorf("schema migration from v%d to v%d failed: %w", version, currentSchemaVersion, err)
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO schema_info (version, updated_at) VALUES (?, CURRENT_TIMESTAMP)`,
		currentSchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}

// migrateSchema applies every migration after oldVersion in one transaction
func (s *sqliteAuditBackend) migrateSchema(oldVersion, newVersion int) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	migrations := map[int][]string{
		// v1: event table and basic indexes
		0: {
			`CREATE TABLE IF NOT EXISTS audit_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp TEXT NOT NULL,
				level TEXT NOT NULL,
				event TEXT NOT NULL,
				component TEXT NOT NULL,
				original_output_file TEXT NOT NULL,
				path TEXT,
				old_value TEXT,
				new_value TEXT,
				process_id INTEGER NOT NULL,
				process_name TEXT NOT NULL,
				context TEXT,
				checksum TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);`,
			"CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp)",
			"CREATE INDEX IF NOT EXISTS idx_audit_level ON audit_events(level)",
			"CREATE INDEX IF NOT EXISTS idx_audit_component ON audit_events(component)",
			"CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_events(created_at)",
		},
		// v2: indexes for the query command
		1: {
			"CREATE INDEX IF NOT EXISTS idx_audit_event_time ON audit_events(event, created_at)",
			"CREATE INDEX IF NOT EXISTS idx_audit_path ON audit_events(path)",
			"CREATE INDEX IF NOT EXISTS idx_audit_component_time ON audit_events(component, created_at)",
		},
	}

	for version := oldVersion; version < newVersion; version++ {
		statements, ok := migrations[version]
		if !ok {
			return fmt.Errorf("unknown migration path from version %d", version)
		}
		for _, stmt := range statements {
			if _, err = tx.Exec(stmt); err != nil {
				return fmt.Errorf("migration to v%d failed: %w", version+1, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}
	return nil
}

// performMaintenance applies the default retention and refreshes statistics
func (s *sqliteAuditBackend) performMaintenance() error {
	const defaultRetention = 90 * 24 * time.Hour

	if _, err := s.Cleanup(time.Now().Add(-defaultRetention), false); err != nil {
		return err
	}

	for _, task := range []string{"PRAGMA optimize", "PRAGMA wal_checkpoint(FULL)"} {
		_, _ = s.db.Exec(task)
	}
	return nil
}

func (s *sqliteAuditBackend) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Write inserts a batch in one transaction
func (s *sqliteAuditBackend) Write(events []AuditEvent) (err error) {
	if s.isClosed() {
		return fmt.Errorf("cannot write to closed SQLite audit backend")
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				fmt.Fprintf(os.Stderr, "Failed to rollback audit transaction: %v\n", rollbackErr)
			}
		}
	}()

	txStmt := tx.Stmt(s.insertStmt)
	defer func() { _ = txStmt.Close() }()

	for _, event := range events {
		if err = s.insertEvent(txStmt, event); err != nil {
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}
	return nil
}

func (s *sqliteAuditBackend) insertEvent(stmt *sql.Stmt, event AuditEvent) error {
	oldValue, err := marshalColumn(event.OldValue)
	if err != nil {
		return fmt.Errorf("failed to serialize old_value: %w", err)
	}
	newValue, err := marshalColumn(event.NewValue)
	if err != nil {
		return fmt.Errorf("failed to serialize new_value: %w", err)
	}
	var context string
	if event.Context != nil {
		if context, err = marshalColumn(event.Context); err != nil {
			return fmt.Errorf("failed to serialize context: %w", err)
		}
	}

	_, err = stmt.Exec(
		event.Timestamp.Format(time.RFC3339Nano),
		event.Level.String(),
		event.Event,
		event.Component,
		s.sourceFile,
		event.ProcessID,
		event.ProcessName,
		event.Path,
		oldValue,
		newValue,
		context,
		event.Checksum,
	)
	return err
}

// marshalColumn encodes a value as JSON text; nil becomes the empty string
func marshalColumn(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalColumn(text string) interface{} {
	if text == "" {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	return v
}

// Query selects matching events, newest first
func (s *sqliteAuditBackend) Query(query AuditQuery) ([]AuditEvent, error) {
	if s.isClosed() {
		return nil, fmt.Errorf("cannot query closed SQLite audit backend")
	}

	var (
		where []string
		args  []interface{}
	)
	if !query.Since.IsZero() {
		// created_at is written after the event, so this only narrows the scan
		where = append(where, "created_at >= ?")
		args = append(args, query.Since.UTC().Truncate(time.Second).Format(sqliteTimeLayout))
	}
	if query.Event != "" {
		where = append(where, "event = ?")
		args = append(args, query.Event)
	}
	if query.Component != "" {
		where = append(where, "component = ?")
		args = append(args, query.Component)
	}
	if query.Path != "" {
		where = append(where, "substr(path, 1, ?) = ?")
		args = append(args, len(query.Path), query.Path)
	}

	stmt := `SELECT timestamp, level, event, component, path, old_value, new_value,
		process_id, process_name, context, checksum FROM audit_events`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY id DESC"

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]AuditEvent, 0)
	for rows.Next() {
		var (
			event                    AuditEvent
			timestamp, level         string
			path, oldValue, newValue sql.NullString
			context, checksum        sql.NullString
		)
		if err := rows.Scan(&timestamp, &level, &event.Event, &event.Component, &path,
			&oldValue, &newValue, &event.ProcessID, &event.ProcessName, &context, &checksum); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		event.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		event.Level = levelFromString(level)
		event.Path = path.String
		event.OldValue = unmarshalColumn(oldValue.String)
		event.NewValue = unmarshalColumn(newValue.String)
		event.Checksum = checksum.String
		if ctx, ok := unmarshalColumn(context.String).(map[string]interface{}); ok {
			event.Context = ctx
		}

		if !query.matches(event) {
			continue
		}
		events = append(events, event)
		if query.Limit > 0 && len(events) >= query.Limit {
			break
		}
	}
	return events, rows.Err()
}

// Cleanup deletes rows created before cutoff
func (s *sqliteAuditBackend) Cleanup(cutoff time.Time, dryRun bool) (int64, error) {
	if s.isClosed() {
		return 0, fmt.Errorf("cannot clean up closed SQLite audit backend")
	}

	bound := cutoff.UTC().Format(sqliteTimeLayout)
	if dryRun {
		var count int64
		err := s.db.QueryRow("SELECT COUNT(*) FROM audit_events WHERE created_at < ?", bound).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("failed to count old audit events: %w", err)
		}
		return count, nil
	}

	result, err := s.db.Exec("DELETE FROM audit_events WHERE created_at < ?", bound)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit events: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// Flush checkpoints the WAL
func (s *sqliteAuditBackend) Flush() error {
	if s.isClosed() {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to flush SQLite audit backend: %w", err)
	}
	return nil
}

func (s *sqliteAuditBackend) Maintenance() error {
	if s.isClosed() {
		return nil
	}
	return s.performMaintenance()
}

// GetStats reports counts per level and component, the time range and
// the database size
func (s *sqliteAuditBackend) GetStats() (*AuditDatabaseStats, error) {
	if s.isClosed() {
		return nil, fmt.Errorf("cannot read stats of closed SQLite audit backend")
	}

	stats := &AuditDatabaseStats{
		EventsByLevel:     make(map[string]int64),
		EventsByComponent: make(map[string]int64),
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM audit_events").Scan(&stats.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to get total events count: %w", err)
	}
	if err := s.countBy("level", stats.EventsByLevel); err != nil {
		return nil, err
	}
	if err := s.countBy("component", stats.EventsByComponent); err != nil {
		return nil, err
	}

	var oldest, newest sql.NullString
	err := s.db.QueryRow("SELECT MIN(created_at), MAX(created_at) FROM audit_events").Scan(&oldest, &newest)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get event time range: %w", err)
	}
	stats.OldestEvent = parseSQLiteTime(oldest)
	stats.NewestEvent = parseSQLiteTime(newest)

	err = s.db.QueryRow("SELECT version FROM schema_info ORDER BY version DESC LIMIT 1").Scan(&stats.SchemaVersion)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseSize = info.Size()
	}
	return stats, nil
}

// countBy groups events by a fixed column name
func (s *sqliteAuditBackend) countBy(column string, into map[string]int64) error {
	rows, err := s.db.Query("SELECT " + column + ", COUNT(*) FROM audit_events GROUP BY " + column) // #nosec G202 -- column is a constant
	if err != nil {
		return fmt.Errorf("failed to get events by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s stats: %w", column, err)
		}
		into[key] = count
	}
	return rows.Err()
}

func parseSQLiteTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}

// Close checkpoints and releases the database. It is safe to call twice.
func (s *sqliteAuditBackend) Close() error {
	if s.isClosed() {
		return nil
	}

	var errs []error
	if err := s.Flush(); err != nil {
		errs = append(errs, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.insertStmt != nil {
		if err := s.insertStmt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close insert statement: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing SQLite audit backend: %v", errs)
	}
	return nil
}

// jsonlAuditBackend appends one JSON object per line to a file
type jsonlAuditBackend struct {
	file       *os.File
	sourceFile string
	mu         sync.Mutex
	closed     bool
}

func newJSONLBackend(config AuditConfig) (*jsonlAuditBackend, error) {
	if config.OutputFile == "" {
		return nil, fmt.Errorf("JSONL backend requires OutputFile to be specified")
	}

	if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0750); err != nil {
		return nil, fmt.Errorf("failed to create JSONL audit log directory: %w", err)
	}

	file, err := openAppend(config.OutputFile)
	if err != nil {
		return nil, err
	}

	return &jsonlAuditBackend{file: file, sourceFile: config.OutputFile}, nil
}

func openAppend(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- configured audit path
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL audit log file: %w", err)
	}
	return file, nil
}

func (j *jsonlAuditBackend) Write(events []AuditEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return fmt.Errorf("cannot write to closed JSONL audit backend")
	}

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to serialize audit event: %w", err)
		}
		if _, err := j.file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write audit event to JSONL: %w", err)
		}
	}
	return nil
}

func (j *jsonlAuditBackend) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync JSONL audit file: %w", err)
	}
	return nil
}

// readAll decodes every line of the file; undecodable lines are skipped.
// Caller must hold mu.
func (j *jsonlAuditBackend) readAll() ([]AuditEvent, error) {
	file, err := os.Open(j.sourceFile) // #nosec G304 -- configured audit path
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL audit log for reading: %w", err)
	}
	defer func() { _ = file.Close() }()

	var events []AuditEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event AuditEvent
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL audit log: %w", err)
	}
	return events, nil
}

// Query scans the whole file
func (j *jsonlAuditBackend) Query(query AuditQuery) ([]AuditEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil, fmt.Errorf("cannot query closed JSONL audit backend")
	}

	all, err := j.readAll()
	if err != nil {
		return nil, err
	}

	events := make([]AuditEvent, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if !query.matches(all[i]) {
			continue
		}
		events = append(events, all[i])
		if query.Limit > 0 && len(events) >= query.Limit {
			break
		}
	}
	return events, nil
}

// Cleanup rewrites the file without the events recorded before cutoff
func (j *jsonlAuditBackend) Cleanup(cutoff time.Time, dryRun bool) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return 0, fmt.Errorf("cannot clean up closed JSONL audit backend")
	}

	all, err := j.readAll()
	if err != nil {
		return 0, err
	}

	kept := make([]AuditEvent, 0, len(all))
	for _, event := range all {
		if !event.Timestamp.Before(cutoff) {
			kept = append(kept, event)
		}
	}
	deleted := int64(len(all) - len(kept))
	if dryRun || deleted == 0 {
		return deleted, nil
	}

	var buf strings.Builder
	for _, event := range kept {
		data, err := json.Marshal(event)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize audit event: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	if err := atomicWriteFile(j.sourceFile, []byte(buf.String()), 0600); err != nil {
		return 0, err
	}

	// The append handle still points at the replaced inode
	_ = j.file.Close()
	file, err := openAppend(j.sourceFile)
	if err != nil {
		j.closed = true
		return deleted, err
	}
	j.file = file
	return deleted, nil
}

// Maintenance is a no-op: retention for JSONL files is explicit via Cleanup
func (j *jsonlAuditBackend) Maintenance() error {
	return nil
}

// GetStats counts the events in the file
func (j *jsonlAuditBackend) GetStats() (*AuditDatabaseStats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	stats := &AuditDatabaseStats{
		EventsByLevel:     make(map[string]int64),
		EventsByComponent: make(map[string]int64),
		SchemaVersion:     1,
	}

	if info, err := os.Stat(j.sourceFile); err == nil {
		stats.DatabaseSize = info.Size()
	}
	if j.closed {
		return stats, nil
	}

	events, err := j.readAll()
	if err != nil {
		return nil, err
	}
	stats.TotalEvents = int64(len(events))
	if len(events) == 0 {
		return stats, nil
	}

	times := make([]time.Time, 0, len(events))
	for _, event := range events {
		stats.EventsByLevel[event.Level.String()]++
		stats.EventsByComponent[event.Component]++
		times = append(times, event.Timestamp)
	}
	sort.Slice(times, func(a, b int) bool { return times[a].Before(times[b]) })
	oldest, newest := times[0], times[len(times)-1]
	stats.OldestEvent = &oldest
	stats.NewestEvent = &newest
	return stats, nil
}

func (j *jsonlAuditBackend) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}
