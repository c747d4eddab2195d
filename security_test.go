// security_test.go: Tests for path validation of user supplied files
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateSecurePath_Rejects(t *testing.T) {
	tests := map[string]string{
		"empty":            "",
		"traversal":        "../secrets.json",
		"nested traversal": "docs/../../etc/x.json",
		"windows":          "..\\config.json",
		"encoded dots":     "%2e%2e/config.json",
		"encoded slash":    "docs%2fconfig.json",
		"double encoded":   "%252e%252e/config.json",
		"passwd":           "/etc/passwd",
		"proc":             "/proc/self/environ",
		"ssh":              "/home/u/.ssh/id_rsa",
		"device":           "CON.json",
		"device lower":     "docs/nul.yaml",
		"ads":              "sources.json:hidden",
		"control":          "sources\x01.json",
		"null":             "sources\x00.json",
		"too long":         strings.Repeat("a", 4097),
		"too deep":         strings.Repeat("d/", 51) + "f.json",
	}

	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			err := validateSecurePath(path)
			if err == nil {
				t.Fatalf("validateSecurePath(%q) accepted", path)
			}
			if ErrorCode(err) != ErrCodeInvalidPath {
				t.Errorf("code = %q", ErrorCode(err))
			}
		})
	}
}

func TestValidateSecurePath_Accepts(t *testing.T) {
	for _, path := range []string{
		"sources.json",
		"docs/catalog.yaml",
		"/srv/editor/pages/site.yml",
		"C:\\editor\\sources.json",
		"file.with.dots.json",
		filepath.Join(os.TempDir(), "datasources", "audit.db"),
	} {
		if err := validateSecurePath(path); err != nil {
			t.Errorf("validateSecurePath(%q) = %v", path, err)
		}
	}
}

func TestResolveSecurePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "records.json")

	abs, err := resolveSecurePath(file, nil)
	if err != nil {
		t.Fatalf("resolveSecurePath failed: %v", err)
	}
	if !filepath.IsAbs(abs) {
		t.Errorf("%q is not absolute", abs)
	}

	if _, err := resolveSecurePath("../records.json", nil); err == nil {
		t.Error("traversal accepted")
	}
}

func TestResolveSecurePath_AuditsRejections(t *testing.T) {
	logger, _ := newJSONLAudit(t, AuditInfo)

	if _, err := resolveSecurePath("../../etc/shadow", logger); err == nil {
		t.Fatal("traversal accepted")
	}

	events, err := logger.Query(AuditQuery{Event: "path_traversal_attempt"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Level != AuditSecurity {
		t.Errorf("security events = %+v", events)
	}
}

func TestResolveSecurePath_SymlinkToSensitiveLocation(t *testing.T) {
	if _, err := os.Stat("/etc/hosts"); err != nil {
		t.Skip("no /etc/hosts on this system")
	}
	link := filepath.Join(t.TempDir(), "hosts.json")
	if err := os.Symlink("/etc/hosts", link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if _, err := resolveSecurePath(link, nil); ErrorCode(err) != ErrCodeInvalidPath {
		t.Errorf("symlink to /etc/hosts: %v", err)
	}
}
