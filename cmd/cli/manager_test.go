package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agilira/datasources"
)

// cliFixture runs commands against documents in a temp directory and
// captures their output
type cliFixture struct {
	t       *testing.T
	dir     string
	out     *bytes.Buffer
	manager *Manager
}

func newFixture(t *testing.T) *cliFixture {
	t.Helper()
	out := &bytes.Buffer{}
	return &cliFixture{
		t:       t,
		dir:     t.TempDir(),
		out:     out,
		manager: NewManager().WithOutput(out),
	}
}

// run executes args and returns the trimmed output
func (f *cliFixture) run(args ...string) (string, error) {
	f.t.Helper()
	f.out.Reset()
	err := f.manager.Run(args)
	return strings.TrimSpace(f.out.String()), err
}

// file writes content to name in the fixture directory and returns its path
func (f *cliFixture) file(name, content string) string {
	f.t.Helper()
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		f.t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func (f *cliFixture) path(name string) string {
	return filepath.Join(f.dir, name)
}

// withAudit attaches a JSONL audit logger closed at test end
func (f *cliFixture) withAudit() *datasources.AuditLogger {
	f.t.Helper()
	logger, err := datasources.NewAuditLogger(datasources.AuditConfig{
		Enabled:    true,
		OutputFile: f.path("audit.jsonl"),
		BufferSize: 100,
	})
	if err != nil {
		f.t.Fatalf("NewAuditLogger failed: %v", err)
	}
	f.t.Cleanup(func() { _ = logger.Close() })
	f.manager.WithAudit(logger)
	return logger
}

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager.app == nil {
		t.Fatal("Manager.app not initialized")
	}
	if manager.auditLogger != nil {
		t.Error("audit logger set by default")
	}
	if manager.out != os.Stdout {
		t.Error("output does not default to stdout")
	}
}

func TestManager_Options(t *testing.T) {
	out := &bytes.Buffer{}
	config := datasources.Config{MaxSources: 3}
	logger, err := datasources.NewAuditLogger(datasources.AuditConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}

	manager := NewManager().WithOutput(out).WithConfig(config).WithAudit(logger)
	if manager.out != out || manager.config.MaxSources != 3 || manager.auditLogger != logger {
		t.Errorf("options not applied: %+v", manager)
	}
}

func TestManager_SessionsUseConfig(t *testing.T) {
	f := newFixture(t)
	f.manager.WithConfig(datasources.Config{MaxSources: 1})
	doc := f.file("two.json", `[{"id": "a"}, {"id": "b"}]`)

	if _, err := f.run("sources", "validate", doc); err == nil {
		t.Error("document above the source limit validated")
	}
}
