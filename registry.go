// registry.go: The per-editor registry of data sources
//
// Notification scoping:
//   field set/unset           -> PathTopic("s.r.f")
//   record add/remove         -> PathTopic("s.r") + SourceTopic(s, add|remove)
//   source reset              -> PathTopic("s")   + SourceTopic(s, reset)
//   source add/remove         -> PathTopic("s")   + TopicAdd|TopicRemove
//   registry reset            -> PathTopic("s") per cleared source + TopicReset
//
// A binding on s.r.f listens to the three path topics of its address, so
// each relevant mutation reaches it exactly once and unrelated ones never do.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"github.com/agilira/go-errors"
)

// Registry is the ordered set of data sources of one Editor
type Registry struct {
	session *Editor
	sources []*Source
	index   map[string]*Source
}

func newRegistry(session *Editor) *Registry {
	return &Registry{
		session: session,
		index:   make(map[string]*Source),
	}
}

// Len returns the number of registered sources
func (r *Registry) Len() int {
	return len(r.sources)
}

// Get returns the source with id, or nil
func (r *Registry) Get(id string) *Source {
	return r.index[id]
}

// All returns the sources in registration order
func (r *Registry) All() []*Source {
	out := make([]*Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Export returns every source with its records in registration order
func (r *Registry) Export() []SourceProps {
	out := make([]SourceProps, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s.Props())
	}
	return out
}

// Add registers a new source with its initial records. Duplicate source
// ids and duplicate record ids are rejected before anything changes.
func (r *Registry) Add(props SourceProps) (*Source, error) {
	if r.session.closed {
		return nil, errors.New(ErrCodeEditorClosed, "editor is closed")
	}

	id := props.ID
	if id != "" {
		if _, exists := r.index[id]; exists {
			return nil, errors.New(ErrCodeDuplicateID, "data source id already exists").
				WithContext("source", id)
		}
	}

	if limit := r.session.config.MaxSources; limit > 0 && len(r.sources) >= limit {
		r.session.audit.Log(AuditWarn, "source_limit_exceeded", "registry", id, nil, nil,
			map[string]interface{}{"max_sources": limit})
		return nil, errors.New(ErrCodeLimitExceeded, "maximum data sources exceeded").
			WithContext("max_sources", limit)
	}

	source := &Source{id: id, registry: r}
	if source.id == "" {
		source.id = source.generateID(func(candidate string) bool {
			_, exists := r.index[candidate]
			return exists
		})
	}

	records, err := source.buildRecords(props.Records)
	if err != nil {
		return nil, err
	}
	source.records = records
	source.index = make(map[string]*Record, len(records))
	for _, rec := range records {
		rec.source = source
		source.index[rec.id] = rec
	}

	r.sources = append(r.sources, source)
	r.index[source.id] = source

	r.session.audit.Log(AuditInfo, "source_add", "registry", source.id, nil, nil,
		map[string]interface{}{"records": len(records)})
	event := Event{Kind: EventAdd, SourceID: source.id, Source: source}
	r.session.hub.Publish(TopicAdd, event)
	r.session.hub.Publish(PathTopic(SourceKey(source.id)), event)

	return source, nil
}

// Remove unregisters the source with id and returns it. The removed source
// keeps its records but stops publishing. Unknown ids, and any id once the
// editor is closed, return nil silently.
func (r *Registry) Remove(id string) *Source {
	if r.session.closed {
		return nil
	}
	source, ok := r.index[id]
	if !ok {
		return nil
	}

	for i, s := range r.sources {
		if s == source {
			r.sources = append(r.sources[:i:i], r.sources[i+1:]...)
			break
		}
	}
	delete(r.index, id)
	source.registry = nil

	r.session.audit.Log(AuditInfo, "source_remove", "registry", id, nil, nil,
		map[string]interface{}{"records": len(source.records)})
	event := Event{Kind: EventRemove, SourceID: id, Source: source}
	r.session.hub.Publish(TopicRemove, event)
	r.session.hub.Publish(PathTopic(SourceKey(id)), event)

	return source
}

// Reset removes every source at once. Bindings into each cleared source are
// notified once through its path topic, then a single TopicReset follows.
// Reset does nothing once the editor is closed.
func (r *Registry) Reset() {
	if r.session.closed {
		return
	}
	cleared := r.sources
	r.sources = nil
	r.index = make(map[string]*Source)
	for _, s := range cleared {
		s.registry = nil
	}

	r.session.audit.Log(AuditWarn, "registry_reset", "registry", "", nil, nil,
		map[string]interface{}{"sources": len(cleared)})

	for _, s := range cleared {
		r.session.hub.Publish(PathTopic(SourceKey(s.id)), Event{Kind: EventReset, SourceID: s.id, Source: s})
	}
	r.session.hub.Publish(TopicReset, Event{Kind: EventReset})
}

// detachAll silences and forgets every source without notifying anybody
func (r *Registry) detachAll() {
	for _, s := range r.sources {
		s.registry = nil
	}
	r.sources = nil
	r.index = make(map[string]*Source)
}
