// source.go: Data sources, ordered id-indexed collections of records
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"github.com/agilira/go-errors"
)

// SourceProps describes a data source and its initial records
type SourceProps struct {
	ID      string        `json:"id" yaml:"id"`
	Records []RecordProps `json:"records" yaml:"records"`
}

// Source owns an ordered set of records with unique ids. Sources are
// created through Registry.Add and stop publishing once removed from it.
type Source struct {
	id       string
	records  []*Record
	index    map[string]*Record
	registry *Registry
}

// ID returns the source id
func (s *Source) ID() string {
	return s.id
}

// Attached reports whether the source is still registered
func (s *Source) Attached() bool {
	return s.registry != nil
}

// Len returns the number of records
func (s *Source) Len() int {
	return len(s.records)
}

// GetRecord returns the record with id, or nil. The same id always yields
// the same *Record until it is removed.
func (s *Source) GetRecord(id string) *Record {
	return s.index[id]
}

// Index returns the position of the record with id, or -1
func (s *Source) Index(id string) int {
	if _, ok := s.index[id]; !ok {
		return -1
	}
	for i, r := range s.records {
		if r.id == id {
			return i
		}
	}
	return -1
}

// Records returns the records in insertion order
func (s *Source) Records() []*Record {
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

// Props returns the source in the form accepted by Registry.Add
func (s *Source) Props() SourceProps {
	props := SourceProps{ID: s.id, Records: make([]RecordProps, 0, len(s.records))}
	for _, r := range s.records {
		props.Records = append(props.Records, r.Props())
	}
	return props
}

// AddRecord appends a record. A duplicate id is rejected without any
// mutation or notification.
func (s *Source) AddRecord(props RecordProps) (*Record, error) {
	id := props.ID()
	if id != "" {
		if _, exists := s.index[id]; exists {
			return nil, errors.New(ErrCodeDuplicateID, "record id already exists").
				WithContext("source", s.id).
				WithContext("record", id)
		}
	}

	if limit := s.maxRecords(); limit > 0 && len(s.records) >= limit {
		return nil, errors.New(ErrCodeLimitExceeded, "maximum records per source exceeded").
			WithContext("source", s.id).
			WithContext("max_records", limit)
	}

	if id == "" {
		id = s.generateID(func(candidate string) bool {
			_, exists := s.index[candidate]
			return exists
		})
	}

	record := newRecord(id, props)
	record.source = s
	s.records = append(s.records, record)
	s.index[id] = record

	s.notify("record_add", TopicAdd, EventAdd, record, RecordKey(s.id, id))
	return record, nil
}

// RemoveRecord removes the record with id and returns it. Unknown ids
// return nil and notify nobody.
func (s *Source) RemoveRecord(id string) *Record {
	record, ok := s.index[id]
	if !ok {
		return nil
	}

	for i, r := range s.records {
		if r == record {
			s.records = append(s.records[:i:i], s.records[i+1:]...)
			break
		}
	}
	delete(s.index, id)
	record.source = nil

	s.notify("record_remove", TopicRemove, EventRemove, record, RecordKey(s.id, id))
	return record
}

// Reset replaces all records at once. The new set is validated first: a
// duplicate id rejects the whole reset. Observers see a single reset.
func (s *Source) Reset(records ...RecordProps) error {
	next, err := s.buildRecords(records)
	if err != nil {
		return err
	}

	for _, r := range s.records {
		r.source = nil
	}

	s.records = next
	s.index = make(map[string]*Record, len(next))
	for _, r := range next {
		r.source = s
		s.index[r.id] = r
	}

	s.notify("source_reset", TopicReset, EventReset, nil, SourceKey(s.id))
	return nil
}

// buildRecords turns props into detached records, rejecting duplicates
func (s *Source) buildRecords(props []RecordProps) ([]*Record, error) {
	if _, err := validateRecords(s.id, props, s.maxRecords()); err != nil {
		return nil, err
	}

	taken := make(map[string]struct{}, len(props))
	for _, p := range props {
		if id := p.ID(); id != "" {
			taken[id] = struct{}{}
		}
	}
	isTaken := func(candidate string) bool {
		_, exists := taken[candidate]
		return exists
	}

	records := make([]*Record, 0, len(props))
	for _, p := range props {
		id := p.ID()
		if id == "" {
			id = s.generateID(isTaken)
			taken[id] = struct{}{}
		}
		records = append(records, newRecord(id, p))
	}
	return records, nil
}

// validateRecords checks a record set for id collisions and the size limit.
// It returns the explicit ids in order.
func validateRecords(sourceID string, props []RecordProps, limit int) ([]string, error) {
	if limit > 0 && len(props) > limit {
		return nil, errors.New(ErrCodeLimitExceeded, "maximum records per source exceeded").
			WithContext("source", sourceID).
			WithContext("max_records", limit)
	}

	ids := make([]string, 0, len(props))
	seen := make(map[string]struct{}, len(props))
	for _, p := range props {
		id := p.ID()
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return nil, errors.New(ErrCodeDuplicateID, "duplicate record id").
				WithContext("source", sourceID).
				WithContext("record", id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// notify publishes a source scoped event and the matching path topic
func (s *Source) notify(auditEvent, action string, kind EventKind, record *Record, key string) {
	if s.registry == nil {
		return
	}
	session := s.registry.session

	var ctx map[string]interface{}
	event := Event{Kind: kind, SourceID: s.id, Source: s}
	if record != nil {
		event.RecordID = record.id
		event.Record = record
		ctx = map[string]interface{}{"record": record.id}
	} else {
		ctx = map[string]interface{}{"records": len(s.records)}
	}
	session.audit.Log(AuditInfo, auditEvent, "source", key, nil, nil, ctx)

	session.hub.Publish(SourceTopic(s.id, action), event)
	session.hub.Publish(PathTopic(key), event)
}

func (s *Source) maxRecords() int {
	if s.registry == nil {
		return 0
	}
	return s.registry.session.config.MaxRecordsPerSource
}

// generateID asks the configured generator for a free id. A generator that
// keeps returning taken ids is abandoned for NewID after a few attempts.
func (s *Source) generateID(taken func(string) bool) string {
	if s.registry != nil {
		for attempt := 0; attempt < 8; attempt++ {
			if id := s.registry.session.newID(); id != "" && !taken(id) {
				return id
			}
		}
	}
	for {
		if id := NewID(); !taken(id) {
			return id
		}
	}
}
