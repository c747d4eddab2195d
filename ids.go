// ids.go: Identifier generation for sources and records created without one
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// IDGenerator produces identifiers for sources and records added without an id
type IDGenerator func() string

// NewID returns a lowercase ULID. ULIDs sort by creation time, so generated
// ids keep insertion order when listed.
func NewID() string {
	return strings.ToLower(ulid.Make().String())
}

// normalizeID converts an id coming from a parsed document to a string.
// JSON numbers decode as float64, YAML numbers as int.
func normalizeID(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		if id == float64(int64(id)) {
			return fmt.Sprintf("%d", int64(id))
		}
		return fmt.Sprintf("%v", id)
	default:
		return fmt.Sprintf("%v", id)
	}
}
