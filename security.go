// security.go: Path checks for every file the package reads or writes
//
// Source documents, configuration files and audit outputs are named by the
// user. Before any of them is opened the path is checked for traversal
// sequences (plain and URL-encoded), system locations, Windows device names
// and alternate data streams, and control characters.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agilira/go-errors"
)

const (
	maxPathLength = 4096
	maxPathDepth  = 50
)

var traversalPatterns = []string{"..", "../", "..\\", "/..", "\\.."}

var encodedPatterns = []string{
	"%2e%2e", "%252e%252e", // ..
	"%2f", "%252f", // /
	"%5c", "%255c", // \
	"%00", "%2500", // NUL
}

var sensitiveLocations = []string{
	"/etc/passwd", "/etc/shadow", "/etc/hosts",
	"/proc/", "/sys/", "/dev/",
	"windows/system32", "program files", "system volume information",
	".ssh/", ".aws/", ".docker/",
}

var windowsDevices = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// validateSecurePath rejects paths that could escape the intended location
// or reach system files
func validateSecurePath(path string) error {
	if path == "" {
		return errors.New(ErrCodeInvalidPath, "empty path not allowed")
	}

	for _, pattern := range traversalPatterns {
		if strings.Contains(path, pattern) {
			return errors.New(ErrCodeInvalidPath, "path contains dangerous traversal pattern: "+pattern).
				WithContext("path", path)
		}
	}

	lower := strings.ToLower(path)
	for _, pattern := range encodedPatterns {
		if strings.Contains(lower, pattern) {
			return errors.New(ErrCodeInvalidPath, "path contains URL-encoded traversal pattern: "+pattern).
				WithContext("path", path)
		}
	}

	normalized := strings.ReplaceAll(lower, "\\", "/")
	for _, location := range sensitiveLocations {
		if strings.Contains(normalized, location) {
			return errors.New(ErrCodeInvalidPath, "access to system file/directory not allowed: "+location).
				WithContext("path", path)
		}
	}

	base := strings.ToUpper(filepath.Base(path))
	if dot := strings.LastIndex(base, "."); dot != -1 {
		base = base[:dot]
	}
	if windowsDevices[base] {
		return errors.New(ErrCodeInvalidPath, "windows device name not allowed: "+base)
	}

	// name.ext:stream, but not a drive letter, URL or "name:.ext"
	if colon := strings.Index(path, ":"); colon > 1 && colon < len(path)-1 {
		after := path[colon+1:]
		if !strings.HasPrefix(after, "//") && !strings.HasPrefix(after, "\\\\") && !strings.HasPrefix(after, ".") {
			return errors.New(ErrCodeInvalidPath, "windows alternate data streams not allowed").
				WithContext("path", path)
		}
	}

	if len(path) > maxPathLength {
		return errors.New(ErrCodeInvalidPath,
			fmt.Sprintf("path too long (max %d characters): %d", maxPathLength, len(path)))
	}
	if depth := strings.Count(path, "/") + strings.Count(path, "\\"); depth > maxPathDepth {
		return errors.New(ErrCodeInvalidPath,
			fmt.Sprintf("path too complex (max %d directory levels): %d", maxPathDepth, depth))
	}

	for _, char := range path {
		if char == 0 {
			return errors.New(ErrCodeInvalidPath, "null byte in path not allowed")
		}
		if char < 32 && char != '\t' {
			return errors.New(ErrCodeInvalidPath, "control characters in path not allowed")
		}
	}

	return nil
}

// resolveSecurePath validates path, makes it absolute and validates the
// symlink target if there is one. Rejections are recorded as security
// events on audit.
func resolveSecurePath(path string, audit *AuditLogger) (string, error) {
	if err := validateSecurePath(path); err != nil {
		audit.LogSecurityEvent("path_traversal_attempt", "rejected unsafe file path",
			map[string]interface{}{"rejected_path": path, "reason": err.Error()})
		return "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, ErrCodeInvalidPath, "invalid file path").WithContext("path", path)
	}

	if err := validateSecurePath(absPath); err != nil {
		audit.LogSecurityEvent("path_traversal_attempt", "rejected unsafe absolute path",
			map[string]interface{}{"rejected_path": absPath, "original_path": path, "reason": err.Error()})
		return "", err
	}

	if real, err := filepath.EvalSymlinks(absPath); err == nil && real != absPath {
		if err := validateSecurePath(real); err != nil {
			audit.LogSecurityEvent("symlink_traversal_attempt", "symlink points to unsafe location",
				map[string]interface{}{"symlink_path": absPath, "resolved_path": real, "reason": err.Error()})
			return "", errors.Wrap(err, ErrCodeInvalidPath, "symlink target is unsafe").
				WithContext("symlink_path", absPath).
				WithContext("resolved_path", real)
		}
	}

	return absPath, nil
}
