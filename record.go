// record.go: Data records, the keyed entities inside a data source
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import "sort"

// idKey is the reserved field holding a record's identifier
const idKey = "id"

// RecordProps describes a record: its "id" plus arbitrary fields.
// A missing id is generated when the record is added.
type RecordProps map[string]interface{}

// ID returns the record id carried by the props, or ""
func (p RecordProps) ID() string {
	return normalizeID(p[idKey])
}

// Record is a keyed collection of fields owned by exactly one Source.
// Its id never changes. A record that left its source keeps its data but
// no longer notifies anybody.
type Record struct {
	id     string
	fields map[string]interface{}
	source *Source
}

func newRecord(id string, props RecordProps) *Record {
	fields := make(map[string]interface{}, len(props))
	for k, v := range props {
		if k == idKey {
			continue
		}
		fields[k] = copyValue(v)
	}
	return &Record{id: id, fields: fields}
}

// ID returns the record id
func (r *Record) ID() string {
	return r.id
}

// Source returns the owning source, or nil once the record was removed
func (r *Record) Source() *Source {
	return r.source
}

// Get returns a field value. The key "id" returns the record id.
func (r *Record) Get(key string) (interface{}, bool) {
	if key == idKey {
		return r.id, true
	}
	v, ok := r.fields[key]
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// Has reports whether the record carries key
func (r *Record) Has(key string) bool {
	if key == idKey {
		return true
	}
	_, ok := r.fields[key]
	return ok
}

// Keys returns the field names, sorted, without "id"
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fields returns a copy of all fields including "id"
func (r *Record) Fields() map[string]interface{} {
	out := deepCopy(r.fields)
	if out == nil {
		out = make(map[string]interface{}, 1)
	}
	out[idKey] = r.id
	return out
}

// Props returns the record in the form accepted by AddRecord
func (r *Record) Props() RecordProps {
	return RecordProps(r.Fields())
}

// Set applies every field in fields, then notifies each changed field once.
// Values equal to the current ones are not changes. The "id" key is ignored.
// It returns the changed keys in sorted order.
func (r *Record) Set(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != idKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	changed := make([]string, 0, len(keys))
	previous := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		next := fields[k]
		old, had := r.fields[k]
		if had && valuesEqual(old, next) {
			continue
		}
		previous[k] = old
		r.fields[k] = copyValue(next)
		changed = append(changed, k)
	}

	for _, k := range changed {
		r.notifyField(k, previous[k], r.fields[k])
	}
	return changed
}

// Unset removes fields, then notifies each removed field once. Bindings on
// a removed field fall back to their default. The "id" key is ignored.
func (r *Record) Unset(keys ...string) []string {
	removed := make([]string, 0, len(keys))
	previous := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		if k == idKey {
			continue
		}
		old, had := r.fields[k]
		if !had {
			continue
		}
		if _, seen := previous[k]; seen {
			continue
		}
		previous[k] = old
		delete(r.fields, k)
		removed = append(removed, k)
	}
	sort.Strings(removed)

	for _, k := range removed {
		r.notifyField(k, previous[k], nil)
	}
	return removed
}

func (r *Record) notifyField(key string, oldValue, newValue interface{}) {
	s := r.source
	if s == nil || s.registry == nil {
		return
	}
	s.registry.session.audit.Log(AuditInfo, "field_change", "record", FieldKey(s.id, r.id, key),
		oldValue, newValue, nil)
	s.registry.session.hub.Publish(PathTopic(FieldKey(s.id, r.id, key)), Event{
		Kind:     EventChange,
		SourceID: s.id,
		RecordID: r.id,
		Field:    key,
		Source:   s,
		Record:   r,
	})
}
