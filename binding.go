// binding.go: Live bindings between a consumer and one data source field
//
// A binding holds a path and a default value. While the path addresses an
// existing source, record and field, Value is that field's current value;
// otherwise it is the default. The binding never caches record data beyond
// its last computed value: every notification triggers a fresh lookup.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

// BindingType is the exported type name of a binding
const BindingType = "data-variable"

// BindingState is the lifecycle state of a binding
type BindingState int

const (
	// BindingUnresolved: the address is malformed or does not exist yet.
	// The binding shows its default and keeps listening.
	BindingUnresolved BindingState = iota

	// BindingResolved: the address exists and the binding shows its value
	BindingResolved

	// BindingDetached: disposed, terminal
	BindingDetached
)

func (s BindingState) String() string {
	switch s {
	case BindingUnresolved:
		return "unresolved"
	case BindingResolved:
		return "resolved"
	case BindingDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// BindingProps are the persisted properties of a binding
type BindingProps struct {
	Path    string      `json:"path" yaml:"path"`
	Default interface{} `json:"defaultValue" yaml:"defaultValue"`
}

// BindingChange describes a change of a binding's value
type BindingChange struct {
	Path  string
	Old   interface{}
	New   interface{}
	State BindingState
}

// BindingCallback is invoked when a binding's value changes
type BindingCallback func(change BindingChange)

type bindingListener struct {
	callback BindingCallback
	active   bool
}

// Binding tracks one field address for one consumer. Create bindings with
// Editor.Bind and release them with Dispose.
type Binding struct {
	editor       *Editor
	path         Path
	defaultValue interface{}
	value        interface{}
	state        BindingState
	subs         []*Subscription
	listeners    []*bindingListener
}

func newBinding(editor *Editor, props BindingProps) *Binding {
	return &Binding{
		editor:       editor,
		path:         ResolvePath(props.Path),
		defaultValue: props.Default,
		value:        props.Default,
		state:        BindingUnresolved,
	}
}

// Path returns the raw path as given
func (b *Binding) Path() string {
	return b.path.Raw
}

// Address returns the parsed address and whether the path is well formed
func (b *Binding) Address() (Address, bool) {
	return b.path.Address, b.path.Resolved()
}

// Value returns the current value: the field value when resolved, the
// default otherwise
func (b *Binding) Value() interface{} {
	return copyValue(b.value)
}

// Default returns the default value
func (b *Binding) Default() interface{} {
	return b.defaultValue
}

// State returns the lifecycle state
func (b *Binding) State() BindingState {
	return b.state
}

// Props returns the persisted properties
func (b *Binding) Props() BindingProps {
	return BindingProps{Path: b.path.Raw, Default: b.defaultValue}
}

// Export returns what a document export should contain for this binding:
// the current value, or with keepVariables the binding itself so it can be
// restored later.
func (b *Binding) Export(keepVariables bool) interface{} {
	if !keepVariables {
		return b.Value()
	}
	return map[string]interface{}{
		"type":         BindingType,
		"path":         b.path.Raw,
		"defaultValue": b.defaultValue,
	}
}

// SetPath points the binding at a new address. Old subscriptions are
// released and new ones taken before the value is recomputed, all before
// SetPath returns. No-op once disposed.
func (b *Binding) SetPath(path string) {
	if b.state == BindingDetached {
		return
	}

	b.unsubscribe()
	b.path = ResolvePath(path)
	b.subscribe()
	b.recompute()
}

// SetDefault changes the default value. An unresolved binding shows it
// immediately.
func (b *Binding) SetDefault(value interface{}) {
	if b.state == BindingDetached {
		return
	}
	b.defaultValue = value
	b.recompute()
}

// OnChange registers a callback for value changes. The returned
// subscription stops it; Dispose stops all of them.
func (b *Binding) OnChange(callback BindingCallback) *Subscription {
	if callback == nil || b.state == BindingDetached {
		return NewSubscription(b.path.Raw, nil)
	}

	listener := &bindingListener{callback: callback, active: true}
	b.listeners = append(b.listeners, listener)

	return NewSubscription(b.path.Raw, func() {
		b.removeListener(listener)
	})
}

// Refresh recomputes the value. Bindings refresh themselves on every
// relevant notification; Refresh is only needed after changes made outside
// the registry API.
func (b *Binding) Refresh() {
	if b.state == BindingDetached {
		return
	}
	b.recompute()
}

// Dispose releases every subscription and callback. It is idempotent and
// the binding stays detached afterwards.
func (b *Binding) Dispose() {
	if b.state == BindingDetached {
		return
	}

	b.unsubscribe()
	for _, l := range b.listeners {
		l.active = false
	}
	b.listeners = nil
	b.state = BindingDetached

	b.editor.release(b)
	b.editor.audit.Log(AuditInfo, "binding_dispose", "binding", b.path.Raw, nil, nil, nil)
}

// subscribe listens on the source, record and field topics of the address.
// Malformed paths can never resolve and take no subscriptions.
func (b *Binding) subscribe() {
	if !b.path.Resolved() {
		return
	}

	a := b.path.Address
	keys := [...]string{
		SourceKey(a.Source),
		RecordKey(a.Source, a.Record),
		FieldKey(a.Source, a.Record, a.Field),
	}

	b.subs = make([]*Subscription, 0, len(keys))
	for _, key := range keys {
		b.subs = append(b.subs, b.editor.hub.Subscribe(PathTopic(key), b.onNotify))
	}
}

func (b *Binding) unsubscribe() {
	for _, sub := range b.subs {
		sub.Cancel()
	}
	b.subs = nil
}

func (b *Binding) onNotify(Event) {
	if b.state == BindingDetached {
		return
	}
	b.recompute()
}

// lookup reads the addressed field from the registry
func (b *Binding) lookup() (interface{}, bool) {
	if !b.path.Resolved() {
		return nil, false
	}

	a := b.path.Address
	source := b.editor.registry.Get(a.Source)
	if source == nil {
		return nil, false
	}
	record := source.GetRecord(a.Record)
	if record == nil {
		return nil, false
	}
	return record.Get(a.Field)
}

func (b *Binding) recompute() {
	next, ok := b.lookup()
	state := BindingResolved
	if !ok {
		next = b.defaultValue
		state = BindingUnresolved
	}

	old := b.value
	b.state = state
	if valuesEqual(old, next) {
		return
	}
	b.value = next

	b.emit(BindingChange{
		Path:  b.path.Raw,
		Old:   old,
		New:   copyValue(next),
		State: state,
	})
}

func (b *Binding) emit(change BindingChange) {
	snapshot := b.listeners
	for _, l := range snapshot {
		if !l.active {
			continue
		}
		b.invoke(l, change)
	}
}

func (b *Binding) invoke(l *bindingListener, change BindingChange) {
	defer func() {
		if r := recover(); r != nil {
			b.editor.handlePanic(PathTopic(b.path.Key()), r)
		}
	}()
	l.callback(change)
}

func (b *Binding) removeListener(listener *bindingListener) {
	listener.active = false
	for i, l := range b.listeners {
		if l == listener {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}
