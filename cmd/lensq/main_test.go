package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/lenschain/graph"
	"github.com/chazu/lenschain/lens"
	"github.com/chazu/lenschain/manifest"
	"github.com/chazu/lenschain/mapping"
)

const renamePlan = `
[[class]]
type = "Lcom/example/A;"
fields = ["Lcom/example/A;->x:I"]
methods = ["Lcom/example/A;->make()V"]

[[class]]
type = "Lcom/example/Main;"
methods = ["Lcom/example/Main;->main()V"]

[[code]]
method = "Lcom/example/Main;->main()V"
body = [
  "new-instance Lcom/example/A;",
  "invoke-static Lcom/example/A;->make()V",
  "sget Lcom/example/A;->x:I",
  "return",
]

[[pass]]
name = "rename"
types = { "Lcom/example/A;" = "Lcom/example/B;" }

[[pass]]
name = "move"
methods = { "Lcom/example/B;->make()V" = "Lcom/example/B;->create()V" }

[query]
types = ["Lcom/example/A;"]
fields = ["Lcom/example/A;->x:I"]
methods = [{ method = "Lcom/example/A;->make()V", kind = "static" }]
`

// setupProject writes a lenschain.toml and plan into a temp dir and loads
// the manifest.
func setupProject(t *testing.T, config, plan string) *manifest.Manifest {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(config), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plan.toml"), []byte(plan), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := manifest.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestRunRenamePlan(t *testing.T) {
	cfg := setupProject(t, `
[project]
name = "rename"
snapshot = "out/naming.cbor"

[lens]
verify = true
`, renamePlan)
	textPath := filepath.Join(cfg.Dir, "mapping.txt")

	var out bytes.Buffer
	if err := run(context.Background(), cfg, runOptions{printCode: true, mappingText: textPath}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := strings.Join([]string{
		"type Lcom/example/A; -> Lcom/example/B;",
		"field Lcom/example/A;->x:I -> Lcom/example/B;->x:I",
		"method Lcom/example/A;->make()V -> invoke-static Lcom/example/B;->create()V",
		"Lcom/example/Main;->main()V",
		"  0000  new-instance Lcom/example/B;",
		"  0001  invoke-static Lcom/example/B;->create()V",
		"  0002  sget Lcom/example/B;->x:I",
		"  0003  return",
	}, "\n") + "\n"
	if got := out.String(); got != want {
		t.Errorf("output mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}

	data, err := os.ReadFile(cfg.SnapshotPath())
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	s, err := mapping.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := s.RetraceMethod(graph.MustParseMethod("Lcom/example/B;->create()V")); len(got) != 1 || got[0] != graph.MustParseMethod("Lcom/example/A;->make()V") {
		t.Errorf("RetraceMethod(B.create) = %v", got)
	}
	if got := s.RetraceType(graph.ClassType("com/example/B")); len(got) != 1 || got[0] != graph.ClassType("com/example/A") {
		t.Errorf("RetraceType(B) = %v", got)
	}

	text, err := os.ReadFile(textPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(text), "method Lcom/example/A;->make()V -> Lcom/example/B;->create()V\n") {
		t.Errorf("mapping text:\n%s", text)
	}
}

func TestRunWithCheckpoints(t *testing.T) {
	plan := renamePlan + `
[[pass]]
kind = "clear"

[[pass]]
kind = "flatten"

[[pass]]
name = "again"
types = { "Lcom/example/B;" = "Lcom/example/C;" }
`
	// The clear and flatten passes rewrite the code, so queries name
	// references as they are after "move".
	plan = strings.Replace(plan, `types = ["Lcom/example/A;"]`, `types = ["Lcom/example/B;"]`, 1)
	plan = strings.Replace(plan, `fields = ["Lcom/example/A;->x:I"]`, `fields = []`, 1)
	plan = strings.Replace(plan, `methods = [{ method = "Lcom/example/A;->make()V", kind = "static" }]`, `methods = []`, 1)
	cfg := setupProject(t, "[project]\nname = \"checkpoints\"\n", plan)

	var out bytes.Buffer
	if err := run(context.Background(), cfg, runOptions{printCode: true}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	for _, line := range []string{
		"type Lcom/example/B; -> Lcom/example/C;",
		"  0000  new-instance Lcom/example/C;",
		"  0001  invoke-static Lcom/example/C;->create()V",
		"  0002  sget Lcom/example/C;->x:I",
	} {
		if !strings.Contains(got, line+"\n") {
			t.Errorf("output missing %q:\n%s", line, got)
		}
	}
}

func TestRunReportsLensInternalErrors(t *testing.T) {
	cfg := setupProject(t, "[project]\nname = \"broken\"\n", `
[[class]]
type = "Lcom/example/A;"
methods = ["Lcom/example/A;->m()V"]

[[class]]
type = "Lcom/example/B;"
super = "Lcom/example/A;"

[[pass]]
kind = "contextual"
merge-types = { "Lcom/example/B;" = ["Lcom/example/A;"] }
methods = { "Lcom/example/A;->m()V" = "Lcom/example/B;->m$A()V" }

[[pass.super-to-direct]]
context = "Lcom/example/B;"
from = "Lcom/example/A;->m()V"
to = "Lcom/example/B;->m$A()V"

[query]
methods = [{ method = "Lcom/example/A;->m()V", kind = "super" }]
`)

	err := run(context.Background(), cfg, runOptions{}, new(bytes.Buffer))
	var ie *lens.InternalError
	if !errors.As(err, &ie) {
		t.Fatalf("run error = %v, want an internal error", err)
	}
	if !strings.Contains(err.Error(), "pass queries") {
		t.Errorf("error should name the failing pass: %v", err)
	}
}

func TestRunRejectsBadPlan(t *testing.T) {
	cfg := setupProject(t, "[project]\nname = \"bad\"\n", "[[pass]]\nkind = \"shuffle\"\n")
	if err := run(context.Background(), cfg, runOptions{}, new(bytes.Buffer)); err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Errorf("run error = %v, want unknown kind", err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	cfg := setupProject(t, "[project]\nname = \"cancel\"\n", renamePlan)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := run(ctx, cfg, runOptions{}, new(bytes.Buffer)); !errors.Is(err, context.Canceled) {
		t.Errorf("run error = %v, want context.Canceled", err)
	}
}
