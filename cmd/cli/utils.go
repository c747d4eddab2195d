// Utility functions for the datasources CLI
//
// Format detection, value parsing and printing, durations with day and
// week units, and the document templates used by 'sources init'.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/datasources"
)

var extendedDurationRe = regexp.MustCompile(`^(\d+)(d|w)$`)

// detectFormat returns the explicit format unless it is empty or "auto",
// in which case the file extension decides
func (m *Manager) detectFormat(filePath, explicitFormat string) datasources.DocumentFormat {
	if explicitFormat != "" && explicitFormat != "auto" {
		return datasources.ParseFormat(explicitFormat)
	}
	return datasources.DetectFormat(filePath)
}

// parseValue turns a command-line string into a bool, integer, float or
// string. "0" and "1" stay integers.
func parseValue(value string) interface{} {
	if value == "" {
		return nil
	}

	lowerValue := strings.ToLower(value)
	if lowerValue == "true" || lowerValue == "false" {
		return lowerValue == "true"
	}

	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	return value
}

// formatValue prints scalars as-is and composite values as compact JSON
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func describeEvent(event datasources.FeedEvent) string {
	switch {
	case event.IsCreate:
		return fmt.Sprintf("created %s (%s, %d bytes)", event.Path, event.SourceID, event.Size)
	case event.IsDelete:
		return fmt.Sprintf("deleted %s (%s)", event.Path, event.SourceID)
	default:
		return fmt.Sprintf("modified %s (%s, %d bytes)", event.Path, event.SourceID, event.Size)
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// generateTemplate returns the sources of a starter document. Unknown
// template names get the default template.
func generateTemplate(templateType string) []datasources.SourceProps {
	switch templateType {
	case "catalog":
		return []datasources.SourceProps{
			{
				ID: "categories",
				Records: []datasources.RecordProps{
					{"id": "lighting", "title": "Lighting"},
					{"id": "stationery", "title": "Stationery"},
				},
			},
			{
				ID: "products",
				Records: []datasources.RecordProps{
					{"id": "p1", "title": "Desk lamp", "price": 39.9, "category": "lighting", "inStock": true},
					{"id": "p2", "title": "Notebook", "price": 4.5, "category": "stationery", "inStock": true},
					{"id": "p3", "title": "Fountain pen", "price": 24.0, "category": "stationery", "inStock": false},
				},
			},
		}
	case "minimal":
		return []datasources.SourceProps{
			{ID: "data", Records: []datasources.RecordProps{}},
		}
	default:
		return []datasources.SourceProps{
			{
				ID: "site",
				Records: []datasources.RecordProps{
					{"id": "main", "title": "My site", "locale": "en"},
				},
			},
			{
				ID: "products",
				Records: []datasources.RecordProps{
					{"id": "p1", "title": "Desk lamp", "price": 39.9},
					{"id": "p2", "title": "Notebook", "price": 4.5},
				},
			},
		}
	}
}

// parseExtendedDuration parses Go durations plus d (days) and w (weeks):
// "30d", "2w", "24h", "5m"
func parseExtendedDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	matches := extendedDurationRe.FindStringSubmatch(s)
	if len(matches) != 3 {
		_, err := time.ParseDuration(s)
		return 0, err
	}

	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", matches[1])
	}

	switch matches[2] {
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	}
}

// checkFileWriteable fails when path exists read-only or its directory
// cannot be written
func checkFileWriteable(filePath string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return checkDirectoryWriteable(filepath.Dir(filePath))
	}
	if err != nil {
		return fmt.Errorf("cannot stat file: %w", err)
	}

	if mode := info.Mode(); mode&0200 == 0 {
		return fmt.Errorf("file is read-only (mode: %v)", mode)
	}
	return nil
}

func checkDirectoryWriteable(dirPath string) error {
	info, err := os.Stat(dirPath)
	if err != nil {
		return fmt.Errorf("cannot access directory %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dirPath)
	}
	if mode := info.Mode(); mode&0200 == 0 {
		return fmt.Errorf("directory is not writable (mode: %v)", mode)
	}
	return nil
}
