// parsers.go: Source document parsing
//
// A source document lists data sources and their records. Three shapes are
// accepted, in JSON or YAML:
//
//	[{"id": "users", "records": [{"id": "u1", "name": "Ada"}]}]
//	{"sources": [{"id": "users", "records": [...]}]}
//	{"users": [{"id": "u1", "name": "Ada"}]}
//
// A record document, as followed by a Feed, is either a list of records or
// an object with a "records" list.
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// DocumentFormat is the encoding of a source document
type DocumentFormat int

const (
	FormatJSON DocumentFormat = iota
	FormatYAML
	FormatUnknown
)

func (f DocumentFormat) String() string {
	switch f {
	case FormatJSON:
		return "JSON"
	case FormatYAML:
		return "YAML"
	default:
		return "Unknown"
	}
}

// ParseFormat maps a format name ("json", "yaml", "yml") to a DocumentFormat
func ParseFormat(name string) DocumentFormat {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// DetectFormat detects the document format from the file extension
func DetectFormat(filePath string) DocumentFormat {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(filePath), "."))
}

// DocumentParser decodes a document into generic values: maps with string
// keys, slices, and scalars.
//
// Parsers registered with RegisterParser are tried before the built-in
// JSON and YAML decoders, e.g. for a YAML dialect with custom tags.
type DocumentParser interface {
	Parse(data []byte) (interface{}, error)
	Supports(format DocumentFormat) bool
	Name() string
}

var (
	customParsers []DocumentParser
	parserMutex   sync.RWMutex
)

// RegisterParser registers a parser tried before the built-in ones
func RegisterParser(parser DocumentParser) {
	parserMutex.Lock()
	defer parserMutex.Unlock()
	customParsers = append(customParsers, parser)
}

// ParseDocument decodes data with the first parser supporting format
func ParseDocument(data []byte, format DocumentFormat) (interface{}, error) {
	parserMutex.RLock()
	for _, parser := range customParsers {
		if parser.Supports(format) {
			parserMutex.RUnlock()
			doc, err := parser.Parse(data)
			if err != nil {
				return nil, errors.Wrap(err, ErrCodeParseError, "parser "+parser.Name()+" failed")
			}
			return doc, nil
		}
	}
	parserMutex.RUnlock()

	switch format {
	case FormatJSON:
		var doc interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, ErrCodeParseError, "invalid JSON document")
		}
		return doc, nil
	case FormatYAML:
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, ErrCodeParseError, "invalid YAML document")
		}
		return normalizeYAML(doc), nil
	default:
		return nil, errors.New(ErrCodeUnsupportedFormat, "unsupported document format: "+format.String())
	}
}

// normalizeYAML turns maps with non-string keys into map[string]interface{}
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeYAML(item)
		}
		return val
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}

// ParseSources decodes a source document
func ParseSources(data []byte, format DocumentFormat) ([]SourceProps, error) {
	doc, err := ParseDocument(data, format)
	if err != nil {
		return nil, err
	}

	switch val := doc.(type) {
	case nil:
		return []SourceProps{}, nil
	case []interface{}:
		return sourcesFromList(val)
	case map[string]interface{}:
		if list, ok := val["sources"]; ok {
			items, ok := list.([]interface{})
			if !ok {
				return nil, errors.New(ErrCodeParseError, "\"sources\" must be a list")
			}
			return sourcesFromList(items)
		}
		return sourcesFromMap(val)
	default:
		return nil, errors.New(ErrCodeParseError,
			fmt.Sprintf("source document must be a list or an object, got %T", doc))
	}
}

func sourcesFromList(items []interface{}) ([]SourceProps, error) {
	sources := make([]SourceProps, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.New(ErrCodeParseError, fmt.Sprintf("source %d is not an object", i))
		}

		props := SourceProps{ID: normalizeID(obj["id"])}
		if raw, ok := obj["records"]; ok && raw != nil {
			records, err := recordsFromValue(raw)
			if err != nil {
				return nil, errors.Wrap(err, ErrCodeParseError, fmt.Sprintf("source %d", i)).
					WithContext("source_id", props.ID)
			}
			props.Records = records
		}
		sources = append(sources, props)
	}
	return sources, nil
}

// sourcesFromMap reads the {<id>: [records]} shape, sorted by id
func sourcesFromMap(obj map[string]interface{}) ([]SourceProps, error) {
	ids := make([]string, 0, len(obj))
	for id := range obj {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	sources := make([]SourceProps, 0, len(ids))
	for _, id := range ids {
		records, err := recordsFromValue(obj[id])
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeParseError, "source "+id).WithContext("source_id", id)
		}
		sources = append(sources, SourceProps{ID: id, Records: records})
	}
	return sources, nil
}

// ParseRecords decodes a record document
func ParseRecords(data []byte, format DocumentFormat) ([]RecordProps, error) {
	doc, err := ParseDocument(data, format)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return []RecordProps{}, nil
	}
	if obj, ok := doc.(map[string]interface{}); ok {
		raw, ok := obj["records"]
		if !ok {
			return nil, errors.New(ErrCodeParseError, "record document object needs a \"records\" list")
		}
		doc = raw
	}
	return recordsFromValue(doc)
}

func recordsFromValue(v interface{}) ([]RecordProps, error) {
	if v == nil {
		return []RecordProps{}, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, errors.New(ErrCodeParseError, fmt.Sprintf("records must be a list, got %T", v))
	}

	records := make([]RecordProps, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.New(ErrCodeParseError, fmt.Sprintf("record %d is not an object", i))
		}
		if id, ok := obj[idKey]; ok {
			obj[idKey] = normalizeID(id)
		}
		records = append(records, RecordProps(obj))
	}
	return records, nil
}

// MarshalSources encodes sources in the list shape
func MarshalSources(sources []SourceProps, format DocumentFormat) ([]byte, error) {
	if sources == nil {
		sources = []SourceProps{}
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(sources, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeSerializationError, "failed to encode sources as JSON")
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(sources)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeSerializationError, "failed to encode sources as YAML")
		}
		return data, nil
	default:
		return nil, errors.New(ErrCodeUnsupportedFormat, "unsupported document format: "+format.String())
	}
}
