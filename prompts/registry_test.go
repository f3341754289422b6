package prompts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestRegistryRender(t *testing.T) {
	fs := fstest.MapFS{
		"summary@1.0.0.tmpl": {Data: []byte("Summary: {{.Text}}")},
		"summary@1.1.0.tmpl": {Data: []byte("Summary v1.1: {{.Text}}")},
	}
	reg := NewRegistry(fs)
	if err := reg.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	out, id, err := reg.Render(context.Background(), "summary", "1.1.0", map[string]any{"Text": "hello"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Summary v1.1: hello" {
		t.Fatalf("unexpected output: %s", out)
	}
	if id.Name != "summary" || id.Version != "1.1.0" || id.Fingerprint == "" {
		t.Fatalf("unexpected prompt id: %+v", id)
	}
}

func TestRegistryLatestVersion(t *testing.T) {
	fs := fstest.MapFS{
		"demo@1.0.0.tmpl": {Data: []byte("v1")},
		"demo@1.2.0.tmpl": {Data: []byte("v1.2")},
	}
	reg := NewRegistry(fs)
	if err := reg.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	out, _, err := reg.Render(context.Background(), "demo", "", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "v1.2" {
		t.Fatalf("expected latest version, got %s", out)
	}
}

func TestRegistryFrontMatter(t *testing.T) {
	fs := fstest.MapFS{
		"assistant@1.0.0.tmpl": {Data: []byte(
			"---\ndescription: Assistant system prompt\nvariables:\n  - persona\n---\nYou are {{.persona}}.",
		)},
	}
	reg := NewRegistry(fs)
	if err := reg.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	meta, err := reg.Describe("assistant", "1.0.0")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if meta.Description != "Assistant system prompt" || len(meta.Variables) != 1 {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	out, _, err := reg.Render(context.Background(), "assistant", "", map[string]any{"persona": "a pirate"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "You are a pirate." {
		t.Fatalf("unexpected output: %q", out)
	}

	_, _, err = reg.Render(context.Background(), "assistant", "", map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "missing variable") {
		t.Fatalf("expected missing variable error, got %v", err)
	}
}

func TestRegistryOverrideDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "greet@1.0.0.tmpl", "overridden")

	fs := fstest.MapFS{
		"greet@1.0.0.tmpl": {Data: []byte("embedded")},
	}
	reg := NewRegistry(fs, WithOverrideDir(dir))
	if err := reg.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	out, _, err := reg.Render(context.Background(), "greet", "1.0.0", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "overridden" {
		t.Fatalf("override not applied: %q", out)
	}
	if reg.HasOverride("greet") == "" {
		t.Fatalf("override path not reported")
	}
}

func TestRegistryRejectsBadFilename(t *testing.T) {
	fs := fstest.MapFS{
		"noversion.tmpl": {Data: []byte("x")},
	}
	reg := NewRegistry(fs)
	if err := reg.Reload(); err == nil {
		t.Fatalf("expected filename error")
	}
}
