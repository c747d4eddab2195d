package main

import (
	"path/filepath"
	"testing"
)

func TestRun(t *testing.T) {
	if err := run([]string{"info"}); err != nil {
		t.Errorf("info failed: %v", err)
	}
}

func TestRun_AuditFromEnvironment(t *testing.T) {
	t.Setenv("DATASOURCES_AUDIT_ENABLED", "true")
	t.Setenv("DATASOURCES_AUDIT_OUTPUT_FILE", filepath.Join(t.TempDir(), "audit.jsonl"))

	if err := run([]string{"audit", "stats"}); err != nil {
		t.Errorf("audit stats failed: %v", err)
	}
}

func TestRun_InvalidEnvironment(t *testing.T) {
	t.Setenv("DATASOURCES_MAX_SOURCES", "lots")

	if err := run([]string{"info"}); err == nil {
		t.Error("invalid environment accepted")
	}
}
