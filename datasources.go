// datasources: Live data binding core for visual page editors
//
// Philosophy:
// - One explicit Editor session owns the registry, the hub and the audit trail
// - Synchronous fan-out: every mutation is fully observed before it returns
// - Bindings pull values, events only tell them when to look
// - Targeted notification: a binding hears only about its own address
//
// Example Usage:
//   editor := datasources.New(datasources.Config{})
//   defer editor.Close()
//
//   products, _ := editor.DataSources().Add(datasources.SourceProps{
//       ID: "products",
//       Records: []datasources.RecordProps{{"id": "p1", "title": "Lamp"}},
//   })
//
//   title := editor.Bind("products[p1].title", "untitled")
//   title.OnChange(func(change datasources.BindingChange) {
//       render(change.New)
//   })
//
//   products.GetRecord("p1").Set(map[string]interface{}{"title": "Desk lamp"})
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"fmt"
	"os"

	"github.com/agilira/go-errors"
)

// Error codes for data source operations
const (
	ErrCodeInvalidConfig        = "DATASOURCES_INVALID_CONFIG"
	ErrCodeDuplicateID          = "DATASOURCES_DUPLICATE_ID"
	ErrCodeLimitExceeded        = "DATASOURCES_LIMIT_EXCEEDED"
	ErrCodeHandlerPanic         = "DATASOURCES_HANDLER_PANIC"
	ErrCodeEditorClosed         = "DATASOURCES_EDITOR_CLOSED"
	ErrCodeSourceNotFound       = "DATASOURCES_SOURCE_NOT_FOUND"
	ErrCodeRecordNotFound       = "DATASOURCES_RECORD_NOT_FOUND"
	ErrCodeInvalidPath          = "DATASOURCES_INVALID_PATH"
	ErrCodeParseError           = "DATASOURCES_PARSE_ERROR"
	ErrCodeUnsupportedFormat    = "DATASOURCES_UNSUPPORTED_FORMAT"
	ErrCodeSerializationError   = "DATASOURCES_SERIALIZATION_ERROR"
	ErrCodeFileNotFound         = "DATASOURCES_FILE_NOT_FOUND"
	ErrCodeIOError              = "DATASOURCES_IO_ERROR"
	ErrCodeFeedRunning          = "DATASOURCES_FEED_RUNNING"
	ErrCodeFeedStopped          = "DATASOURCES_FEED_STOPPED"
	ErrCodeAuditError           = "DATASOURCES_AUDIT_ERROR"
	ErrCodeInvalidMaxSources    = "DATASOURCES_INVALID_MAX_SOURCES"
	ErrCodeInvalidMaxRecords    = "DATASOURCES_INVALID_MAX_RECORDS"
	ErrCodeInvalidPollInterval  = "DATASOURCES_INVALID_POLL_INTERVAL"
	ErrCodeInvalidCacheTTL      = "DATASOURCES_INVALID_CACHE_TTL"
	ErrCodeInvalidAuditConfig   = "DATASOURCES_INVALID_AUDIT_CONFIG"
	ErrCodeInvalidBufferSize    = "DATASOURCES_INVALID_BUFFER_SIZE"
	ErrCodeInvalidFlushInterval = "DATASOURCES_INVALID_FLUSH_INTERVAL"
	ErrCodeInvalidOutputFile    = "DATASOURCES_INVALID_OUTPUT_FILE"
)

// ErrorHandler receives errors that cannot be returned to a caller, such as
// a panicking subscriber or a feed that failed to parse a file. path is the
// topic or file the error relates to.
type ErrorHandler func(err error, path string)

// ErrorCode extracts the code of an error built by this package
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if coder, ok := err.(errors.ErrorCoder); ok {
		return string(coder.ErrorCode())
	}
	return ""
}

// IsDuplicateID reports whether err was caused by an id collision
func IsDuplicateID(err error) bool {
	return ErrorCode(err) == ErrCodeDuplicateID
}

// Editor is one editing session: it owns the source registry, the event hub
// every binding listens on, and the audit trail. Sessions are independent;
// nothing is shared between two editors.
//
// An Editor is not safe for concurrent use. Mutations from other goroutines
// must be handed to the goroutine that owns the editor (see FeedConfig.Dispatch).
type Editor struct {
	config   Config
	hub      Hub
	registry *Registry
	audit    *AuditLogger
	bindings map[*Binding]struct{}
	handlers map[*Subscription]struct{}
	closed   bool
}

// New creates an editor session
func New(config Config) *Editor {
	cfg := config.WithDefaults()

	editor := &Editor{
		config:   *cfg,
		bindings: make(map[*Binding]struct{}),
		handlers: make(map[*Subscription]struct{}),
	}

	auditLogger, err := NewAuditLogger(cfg.Audit)
	if err != nil {
		editor.reportError(errors.Wrap(err, ErrCodeAuditError, "audit disabled"), cfg.Audit.OutputFile)
		auditLogger, _ = NewAuditLogger(AuditConfig{Enabled: false})
	}
	editor.audit = auditLogger

	editor.hub = cfg.Hub
	if editor.hub == nil {
		editor.hub = NewHub(editor.handlePanic)
	}

	editor.registry = newRegistry(editor)
	return editor
}

// DataSources returns the session's source registry
func (e *Editor) DataSources() *Registry {
	return e.registry
}

// Hub returns the session's event hub
func (e *Editor) Hub() Hub {
	return e.hub
}

// Audit returns the session's audit logger. It is never nil.
func (e *Editor) Audit() *AuditLogger {
	return e.audit
}

// Config returns the effective configuration
func (e *Editor) Config() Config {
	return e.config
}

// On subscribes to a hub topic: TopicAdd, TopicRemove, TopicReset,
// SourceTopic(...) or PathTopic(...). Close cancels every subscription made
// here; on a closed editor the returned subscription is already inactive.
func (e *Editor) On(topic string, handler Handler) *Subscription {
	if e.closed {
		sub := NewSubscription(topic, nil)
		sub.Cancel()
		return sub
	}

	inner := e.hub.Subscribe(topic, handler)
	var sub *Subscription
	sub = NewSubscription(topic, func() {
		inner.Cancel()
		delete(e.handlers, sub)
	})
	e.handlers[sub] = struct{}{}
	return sub
}

// Bind creates a binding on path with the given default value
func (e *Editor) Bind(path string, defaultValue interface{}) *Binding {
	return e.NewBinding(BindingProps{Path: path, Default: defaultValue})
}

// NewBinding creates a binding from its exported properties. On a closed
// editor the binding is returned already detached and shows its default.
func (e *Editor) NewBinding(props BindingProps) *Binding {
	b := newBinding(e, props)
	if e.closed {
		b.state = BindingDetached
		return b
	}
	e.bindings[b] = struct{}{}
	b.SetPath(props.Path)
	return b
}

// Bindings returns the number of live bindings
func (e *Editor) Bindings() int {
	return len(e.bindings)
}

// LoadSources adds every source in props. The whole set is checked for
// id collisions first, so a rejected load leaves the registry untouched.
func (e *Editor) LoadSources(props []SourceProps) error {
	if e.closed {
		return errors.New(ErrCodeEditorClosed, "editor is closed")
	}

	seen := make(map[string]struct{}, len(props))
	for _, p := range props {
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup || e.registry.Get(p.ID) != nil {
			return errors.New(ErrCodeDuplicateID, "data source id already exists").
				WithContext("source", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	if e.config.MaxSources > 0 && e.registry.Len()+len(props) > e.config.MaxSources {
		return errors.New(ErrCodeLimitExceeded, "maximum data sources exceeded").
			WithContext("max_sources", e.config.MaxSources)
	}
	for _, p := range props {
		if _, err := validateRecords(p.ID, p.Records, e.config.MaxRecordsPerSource); err != nil {
			return err
		}
	}

	for _, p := range props {
		if _, err := e.registry.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Close ends the session: every binding is disposed, every On handler is
// cancelled, the registry is emptied and the audit trail is flushed. Sources
// obtained earlier keep their data but stop publishing. Close is idempotent.
func (e *Editor) Close() error {
	if e.closed {
		return nil
	}

	for b := range e.bindings {
		b.Dispose()
	}
	for sub := range e.handlers {
		sub.Cancel()
	}
	e.registry.detachAll()
	e.closed = true

	e.audit.Log(AuditInfo, "editor_close", "datasources", "", nil, nil, nil)
	return e.audit.Close()
}

// Closed reports whether Close was called
func (e *Editor) Closed() bool {
	return e.closed
}

func (e *Editor) release(b *Binding) {
	delete(e.bindings, b)
}

func (e *Editor) newID() string {
	if e.config.IDGenerator != nil {
		return e.config.IDGenerator()
	}
	return NewID()
}

func (e *Editor) handlePanic(topic string, recovered interface{}) {
	e.audit.Log(AuditCritical, "handler_panic", "datasources", topic, nil, nil,
		map[string]interface{}{"panic": fmt.Sprintf("%v", recovered)})
	e.reportError(panicError(topic, recovered), topic)
}

func (e *Editor) reportError(err error, path string) {
	if e.config.ErrorHandler != nil {
		e.config.ErrorHandler(err, path)
		return
	}
	fmt.Fprintf(os.Stderr, "datasources: %v (%s)\n", err, path)
}
