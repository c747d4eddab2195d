package cli

import (
	"os"
	"strings"
	"testing"

	"github.com/agilira/datasources"
)

const catalogDoc = `{
  "sources": [
    {"id": "site", "records": [{"id": "main", "title": "Home", "tags": ["a", "b"]}]},
    {"id": "products", "records": [{"id": "p1", "title": "Lamp", "price": 10}, {"id": "p2", "title": "Desk"}]}
  ]
}`

func TestSourcesList(t *testing.T) {
	f := newFixture(t)
	doc := f.file("catalog.json", catalogDoc)

	output, err := f.run("sources", "list", doc)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, want := range []string{"Data sources in", "site (1 records)", "products (2 records)"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "- p1") {
		t.Error("record ids listed without --records")
	}

	output, err = f.run("sources", "list", "--records", doc)
	if err != nil {
		t.Fatalf("list --records failed: %v", err)
	}
	if !strings.Contains(output, "- p1") || !strings.Contains(output, "- p2") {
		t.Errorf("record ids missing:\n%s", output)
	}
}

func TestSourcesList_Empty(t *testing.T) {
	f := newFixture(t)
	doc := f.file("empty.yaml", "[]\n")

	output, err := f.run("sources", "list", doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(output, "No data sources in") {
		t.Errorf("output = %q", output)
	}
}

func TestSourcesList_Errors(t *testing.T) {
	f := newFixture(t)

	if _, err := f.run("sources", "list", f.path("missing.json")); err == nil {
		t.Error("missing document accepted")
	}
	if _, err := f.run("sources", "list"); err == nil {
		t.Error("missing argument accepted")
	}
	if _, err := f.run("sources", "list", "../../etc/passwd.json"); err == nil {
		t.Error("unsafe path accepted")
	}
}

func TestSourcesGet(t *testing.T) {
	f := newFixture(t)
	doc := f.file("catalog.json", catalogDoc)

	tests := []struct {
		path string
		want string
	}{
		{"products.p1.title", "Lamp"},
		{"products.p1.price", "10"},
		{"products[p2].title", "Desk"},
		{"site.main.tags", `["a","b"]`},
		{"site.main.id", "main"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			output, err := f.run("sources", "get", doc, tt.path)
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if output != tt.want {
				t.Errorf("get %s = %q, want %q", tt.path, output, tt.want)
			}
		})
	}
}

func TestSourcesGet_Unresolved(t *testing.T) {
	f := newFixture(t)
	doc := f.file("catalog.json", catalogDoc)

	if _, err := f.run("sources", "get", doc, "products.p9.title"); err == nil {
		t.Error("unresolved path without default succeeded")
	}
	if _, err := f.run("sources", "get", doc, "products"); err == nil {
		t.Error("malformed path succeeded")
	}

	output, err := f.run("sources", "get", "--default", "n/a", doc, "products.p9.title")
	if err != nil {
		t.Fatalf("get with default failed: %v", err)
	}
	if output != "n/a" {
		t.Errorf("output = %q", output)
	}
}

func TestSourcesSet(t *testing.T) {
	f := newFixture(t)
	doc := f.file("catalog.json", catalogDoc)

	output, err := f.run("sources", "set", doc, "products.p1.price", "12")
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !strings.Contains(output, "Set products.p1.price = 12") {
		t.Errorf("output = %q", output)
	}

	sources, err := datasources.ReadSources(doc, datasources.FormatUnknown)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 || sources[1].Records[0]["price"] != float64(12) {
		t.Errorf("document after set = %+v", sources)
	}

	if output, _ := f.run("sources", "get", doc, "products.p1.price"); output != "12" {
		t.Errorf("get after set = %q", output)
	}
	if output, _ := f.run("sources", "get", doc, "products.p2.title"); output != "Desk" {
		t.Errorf("other records lost: %q", output)
	}
}

func TestSourcesSet_CreatesMissing(t *testing.T) {
	f := newFixture(t)
	doc := f.path("new.yaml")

	if _, err := f.run("sources", "set", doc, "settings.ui.dark", "true"); err != nil {
		t.Fatalf("set on missing document failed: %v", err)
	}
	if _, err := f.run("sources", "set", doc, "settings.ui.name", "Editor"); err != nil {
		t.Fatalf("second set failed: %v", err)
	}

	sources, err := datasources.ReadSources(doc, datasources.FormatUnknown)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 || sources[0].ID != "settings" {
		t.Fatalf("sources = %+v", sources)
	}
	record := sources[0].Records[0]
	if record.ID() != "ui" || record["dark"] != true || record["name"] != "Editor" {
		t.Errorf("record = %v", record)
	}
}

func TestSourcesSet_Rejects(t *testing.T) {
	f := newFixture(t)
	doc := f.file("catalog.json", catalogDoc)

	for _, path := range []string{"products.p1", "products..title", "products.p1.id"} {
		if _, err := f.run("sources", "set", doc, path, "x"); err == nil {
			t.Errorf("set %s accepted", path)
		}
	}
	if _, err := f.run("sources", "set", doc, "products.p1.title"); err == nil {
		t.Error("set without value accepted")
	}

	data, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != catalogDoc {
		t.Error("rejected set modified the document")
	}
}

func TestSourcesValidate(t *testing.T) {
	f := newFixture(t)

	valid := f.file("catalog.json", catalogDoc)
	output, err := f.run("sources", "validate", valid)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(output, "Valid JSON source document") || !strings.Contains(output, "(2 sources, 3 records)") {
		t.Errorf("output = %q", output)
	}

	tests := map[string]string{
		"broken.json":    `[{"id": "a"`,
		"dup-source.yml": "- id: a\n- id: a\n",
		"dup-record.json": `{"a": [{"id": "r"}, {"id": "r"}]}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			output, err := f.run("sources", "validate", f.file(name, content))
			if err == nil {
				t.Error("invalid document validated")
			}
			if !strings.Contains(output, "Invalid") {
				t.Errorf("output = %q", output)
			}
		})
	}
}

func TestSourcesConvert(t *testing.T) {
	f := newFixture(t)
	input := f.file("catalog.json", catalogDoc)
	output := f.path("catalog.yaml")

	result, err := f.run("sources", "convert", input, output)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if !strings.Contains(result, "(JSON) ->") || !strings.Contains(result, "(YAML)") {
		t.Errorf("output = %q", result)
	}

	got, err := f.run("sources", "get", output, "products.p1.title")
	if err != nil || got != "Lamp" {
		t.Errorf("converted document: %q, %v", got, err)
	}

	if _, err := f.run("sources", "convert", f.path("absent.json"), f.path("x.yaml")); err == nil {
		t.Error("missing input accepted")
	}
}

func TestSourcesInit(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		args     []string
		format   string
		template string
		sources  int
	}{
		{"default json", "page.json", nil, "JSON", "default", 2},
		{"yaml by extension", "page.yaml", nil, "YAML", "default", 2},
		{"catalog", "shop.json", []string{"--template", "catalog"}, "JSON", "catalog", 2},
		{"minimal yaml flag", "data.txt", []string{"--format", "yaml", "--template", "minimal"}, "YAML", "minimal", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			file := f.path(tt.file)

			args := append([]string{"sources", "init"}, tt.args...)
			output, err := f.run(append(args, file)...)
			if err != nil {
				t.Fatalf("init failed: %v", err)
			}
			if !strings.Contains(output, "Created "+tt.format) || !strings.Contains(output, "Template: "+tt.template) {
				t.Errorf("output = %q", output)
			}

			format := datasources.ParseFormat(tt.format)
			sources, err := datasources.ReadSources(file, format)
			if err != nil {
				t.Fatalf("generated document unreadable: %v", err)
			}
			if len(sources) != tt.sources {
				t.Errorf("got %d sources", len(sources))
			}
		})
	}
}

func TestSourcesInit_Errors(t *testing.T) {
	f := newFixture(t)
	existing := f.file("page.json", "[]")

	if _, err := f.run("sources", "init", existing); err == nil {
		t.Error("existing file overwritten")
	}
	if _, err := f.run("sources", "init", "--format", "toml", f.path("page.toml")); err == nil {
		t.Error("unsupported format accepted")
	}
}

func TestWatch(t *testing.T) {
	f := newFixture(t)
	doc := f.file("products.json", `[{"id": "p1", "title": "Lamp"}]`)

	output, err := f.run("watch", "--interval", "10ms", "--for", "50ms", doc, "products.p1.title")
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if !strings.Contains(output, "Watching") || !strings.Contains(output, "products.p1.title = Lamp") {
		t.Errorf("output = %q", output)
	}
}

func TestWatch_Errors(t *testing.T) {
	f := newFixture(t)
	doc := f.file("products.json", `[]`)

	tests := map[string][]string{
		"missing path":     {"watch", doc},
		"bad interval":     {"watch", "--interval", "often", doc, "products.p1.title"},
		"zero interval":    {"watch", "--interval", "0s", doc, "products.p1.title"},
		"bad duration":     {"watch", "--for", "later", doc, "products.p1.title"},
		"unsupported file": {"watch", "--for", "10ms", f.file("notes.txt", ""), "notes.a.b"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := f.run(args...); err == nil {
				t.Error("command succeeded")
			}
		})
	}
}

func TestAuditCommands(t *testing.T) {
	f := newFixture(t)
	logger := f.withAudit()
	doc := f.file("catalog.json", catalogDoc)

	if _, err := f.run("sources", "set", doc, "products.p1.price", "15"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := logger.Flush(); err != nil {
		t.Fatal(err)
	}

	output, err := f.run("audit", "query", "--event", "cli_sources_set")
	if err != nil {
		t.Fatalf("audit query failed: %v", err)
	}
	if !strings.Contains(output, "cli_sources_set") {
		t.Errorf("query output = %q", output)
	}

	output, err = f.run("audit", "query", "--event", "never_logged")
	if err != nil || output != "No audit events found" {
		t.Errorf("empty query = %q, %v", output, err)
	}

	output, err = f.run("audit", "stats")
	if err != nil {
		t.Fatalf("audit stats failed: %v", err)
	}
	if !strings.Contains(output, "Total events:") || !strings.Contains(output, "component cli:") {
		t.Errorf("stats output = %q", output)
	}

	output, err = f.run("audit", "cleanup", "--older-than", "30d", "--dry-run")
	if err != nil || !strings.HasPrefix(output, "Would delete 0 audit events") {
		t.Errorf("cleanup dry run = %q, %v", output, err)
	}
	output, err = f.run("audit", "cleanup", "--older-than", "2w")
	if err != nil || !strings.HasPrefix(output, "Deleted 0 audit events") {
		t.Errorf("cleanup = %q, %v", output, err)
	}

	if _, err := f.run("audit", "query", "--since", "soon"); err == nil {
		t.Error("invalid since accepted")
	}
}

func TestAuditCommands_Disabled(t *testing.T) {
	f := newFixture(t)
	for _, args := range [][]string{
		{"audit", "query"},
		{"audit", "stats"},
		{"audit", "cleanup"},
	} {
		if _, err := f.run(args...); err == nil {
			t.Errorf("%v succeeded without an audit logger", args)
		}
	}
}

func TestInfo(t *testing.T) {
	f := newFixture(t)

	output, err := f.run("info")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	if !strings.Contains(output, "Version: "+Version) || !strings.Contains(output, "Audit logging: false") {
		t.Errorf("output = %q", output)
	}
	if strings.Contains(output, "Max sources") {
		t.Error("limits shown without --verbose")
	}

	output, err = f.run("info", "--verbose")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"System Details", "Max sources: 1000", "Max records per source: 100000", "Poll interval: 5s"} {
		if !strings.Contains(output, want) {
			t.Errorf("verbose output missing %q", want)
		}
	}
}

func TestCompletion(t *testing.T) {
	f := newFixture(t)

	for shell, want := range map[string]string{
		"bash": "complete -F _datasources_completion datasources",
		"zsh":  "#compdef datasources",
		"fish": "complete -c datasources",
	} {
		output, err := f.run("completion", shell)
		if err != nil {
			t.Errorf("completion %s failed: %v", shell, err)
			continue
		}
		if !strings.Contains(output, want) {
			t.Errorf("%s output missing %q", shell, want)
		}
	}

	if _, err := f.run("completion", "powershell"); err == nil {
		t.Error("unsupported shell accepted")
	}
}
