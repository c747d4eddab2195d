// path.go: Path resolution for data source bindings
//
// A binding path addresses one field of one record of one data source.
// Both the dotted form ("products.p1.title") and the bracketed form
// ("products[p1]title", "products[p1].title", "products['p1'].title")
// normalize to the same address and the same canonical key. Keys keep the
// bracketed form for ids holding a dot: products["sku.42"].price.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import "strings"

// PathKind tags the result of ResolvePath
type PathKind int

const (
	// PathMalformed marks a path that does not split into exactly
	// three non-empty segments. Malformed paths never resolve.
	PathMalformed PathKind = iota

	// PathResolved marks a syntactically valid source.record.field path.
	// Whether the address currently exists is a separate question.
	PathResolved
)

func (k PathKind) String() string {
	switch k {
	case PathResolved:
		return "resolved"
	case PathMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Address identifies a single field inside the registry
type Address struct {
	Source string `json:"source"`
	Record string `json:"record"`
	Field  string `json:"field"`
}

// Key returns the canonical key of the address
func (a Address) Key() string {
	return FieldKey(a.Source, a.Record, a.Field)
}

// Path is the tagged result of parsing a binding path
type Path struct {
	Raw     string   `json:"raw"`
	Kind    PathKind `json:"kind"`
	Address Address  `json:"address"`
}

// Resolved reports whether the path parsed into a full address
func (p Path) Resolved() bool {
	return p.Kind == PathResolved
}

// Key returns the canonical key, or "" for malformed paths
func (p Path) Key() string {
	if p.Kind != PathResolved {
		return ""
	}
	return p.Address.Key()
}

// ResolvePath parses a binding path. It never fails: anything that is not
// exactly three non-empty segments comes back as PathMalformed.
func ResolvePath(raw string) Path {
	result := Path{Raw: raw, Kind: PathMalformed}

	segments, ok := SplitPath(raw)
	if !ok || len(segments) != 3 {
		return result
	}
	for _, segment := range segments {
		if segment == "" {
			return result
		}
	}

	result.Kind = PathResolved
	result.Address = Address{
		Source: segments[0],
		Record: segments[1],
		Field:  segments[2],
	}
	return result
}

// SplitPath splits a path into its segments. Dots separate segments and
// brackets enclose a segment, optionally quoted with ' or ". Inside quotes
// a backslash escapes the next character. The boolean is false when a
// bracket or quote is left open.
func SplitPath(raw string) ([]string, bool) {
	if raw == "" {
		return nil, false
	}

	segments := make([]string, 0, 3)
	var current strings.Builder
	// pending is true while current holds a segment that has not been flushed,
	// which lets "a..b" and ".a" produce empty segments.
	pending := true

	flush := func() {
		segments = append(segments, current.String())
		current.Reset()
		pending = false
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch c {
		case '.':
			if pending {
				flush()
			}
			pending = true
		case '[':
			if pending && current.Len() > 0 {
				flush()
			}
			segment, next, ok := readBracket(raw, i+1)
			if !ok {
				return nil, false
			}
			segments = append(segments, segment)
			pending = false
			i = next
			// A dot right after the closing bracket is only a separator
			if i+1 < len(raw) && raw[i+1] == '.' {
				i++
				pending = true
			}
		default:
			pending = true
			current.WriteByte(c)
		}
	}

	if pending {
		flush()
	}

	return segments, true
}

// readBracket reads the bracket content starting at start and returns the
// segment plus the index of the closing bracket.
func readBracket(raw string, start int) (string, int, bool) {
	if start >= len(raw) {
		return "", 0, false
	}

	quote := raw[start]
	if quote == '\'' || quote == '"' {
		var b strings.Builder
		for i := start + 1; i < len(raw); i++ {
			c := raw[i]
			switch {
			case c == '\\' && i+1 < len(raw):
				i++
				b.WriteByte(raw[i])
			case c == quote:
				if i+1 < len(raw) && raw[i+1] == ']' {
					return b.String(), i + 1, true
				}
				return "", 0, false
			default:
				b.WriteByte(c)
			}
		}
		return "", 0, false
	}

	end := strings.IndexByte(raw[start:], ']')
	if end < 0 {
		return "", 0, false
	}
	return raw[start : start+end], start + end, true
}

// SourceKey returns the canonical key of a source
func SourceKey(sourceID string) string {
	return joinKey(sourceID)
}

// RecordKey returns the canonical key of a record inside a source
func RecordKey(sourceID, recordID string) string {
	return joinKey(sourceID, recordID)
}

// FieldKey returns the canonical key of a field
func FieldKey(sourceID, recordID, field string) string {
	return joinKey(sourceID, recordID, field)
}

// joinKey writes segments in dotted form. A segment that holds a dot, a
// bracket, a quote or a backslash is written as ["..."] so that distinct
// addresses never share a key and every key parses back with SplitPath.
func joinKey(segments ...string) string {
	var b strings.Builder
	for i, segment := range segments {
		if strings.ContainsAny(segment, `.[]'"\`) {
			b.WriteString(`["`)
			for j := 0; j < len(segment); j++ {
				if c := segment[j]; c == '"' || c == '\\' {
					b.WriteByte('\\')
				}
				b.WriteByte(segment[j])
			}
			b.WriteString(`"]`)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(segment)
	}
	return b.String()
}
