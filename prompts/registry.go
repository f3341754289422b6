// Package prompts stores named, versioned prompt templates. Files are laid
// out as name@version.tmpl with optional YAML front matter carrying metadata,
// and a local override directory can shadow the embedded set at runtime.
package prompts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Meta is the YAML front matter of a prompt template.
type Meta struct {
	Description string   `yaml:"description"`
	Variables   []string `yaml:"variables"`
	Model       string   `yaml:"model,omitempty"`
}

// PromptID identifies the exact prompt version used at render time.
type PromptID struct {
	Name        string
	Version     string
	Fingerprint string
}

type templateEntry struct {
	tmpl        *template.Template
	meta        Meta
	fingerprint string
	source      string
}

// Registry loads and renders versioned prompt templates.
type Registry struct {
	fs          fs.FS
	overrideDir string
	helpers     template.FuncMap

	mu      sync.RWMutex
	prompts map[string]map[string]*templateEntry
}

// RegistryOption customises registry behaviour.
type RegistryOption func(*Registry)

// WithOverrideDir enables runtime overrides from a local directory.
func WithOverrideDir(dir string) RegistryOption {
	return func(r *Registry) { r.overrideDir = dir }
}

// WithHelpers registers template helper functions.
func WithHelpers(funcs template.FuncMap) RegistryOption {
	return func(r *Registry) {
		if r.helpers == nil {
			r.helpers = template.FuncMap{}
		}
		for k, v := range funcs {
			r.helpers[k] = v
		}
	}
}

// NewRegistry constructs a registry over the given filesystem. Call Reload
// before rendering.
func NewRegistry(promptFS fs.FS, opts ...RegistryOption) *Registry {
	r := &Registry{fs: promptFS, helpers: template.FuncMap{}}
	for _, opt := range opts {
		opt(r)
	}
	r.prompts = map[string]map[string]*templateEntry{}
	return r
}

// Reload parses templates from the filesystem and the override directory.
// Overrides shadow embedded templates with the same name and version.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prompts := map[string]map[string]*templateEntry{}

	if err := fs.WalkDir(r.fs, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tmpl") {
			return nil
		}
		name, version, err := parseFilename(path)
		if err != nil {
			return fmt.Errorf("parse prompt filename %s: %w", path, err)
		}
		data, err := fs.ReadFile(r.fs, path)
		if err != nil {
			return err
		}
		entry, err := r.parseTemplate(name, data)
		if err != nil {
			return fmt.Errorf("prompt %s@%s: %w", name, version, err)
		}
		entry.source = path
		addTemplate(prompts, name, version, entry)
		return nil
	}); err != nil {
		return err
	}

	if r.overrideDir != "" {
		if err := filepath.WalkDir(r.overrideDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".tmpl") {
				return nil
			}
			name, version, err := parseFilename(d.Name())
			if err != nil {
				return fmt.Errorf("parse override %s: %w", path, err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			entry, err := r.parseTemplate(name, data)
			if err != nil {
				return fmt.Errorf("override %s@%s: %w", name, version, err)
			}
			entry.source = path
			addTemplate(prompts, name, version, entry)
			return nil
		}); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	r.prompts = prompts
	return nil
}

const frontMatterDelimiter = "---"

// splitFrontMatter separates the optional YAML header from the template body.
func splitFrontMatter(data []byte) (Meta, []byte, error) {
	text := string(data)
	if !strings.HasPrefix(text, frontMatterDelimiter+"\n") {
		return Meta{}, data, nil
	}
	rest := text[len(frontMatterDelimiter)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelimiter)
	if end < 0 {
		return Meta{}, nil, fmt.Errorf("unterminated front matter")
	}
	header := rest[:end]
	body := rest[end+len(frontMatterDelimiter)+1:]
	body = strings.TrimPrefix(body, "\n")

	var meta Meta
	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return Meta{}, nil, fmt.Errorf("parse front matter: %w", err)
	}
	return meta, []byte(body), nil
}

func (r *Registry) parseTemplate(name string, data []byte) (*templateEntry, error) {
	meta, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(name).Funcs(r.helpers).Parse(string(body))
	if err != nil {
		return nil, err
	}
	sha := sha256.Sum256(data)
	return &templateEntry{tmpl: tmpl, meta: meta, fingerprint: hex.EncodeToString(sha[:])}, nil
}

func addTemplate(store map[string]map[string]*templateEntry, name, version string, entry *templateEntry) {
	versions, ok := store[name]
	if !ok {
		versions = map[string]*templateEntry{}
		store[name] = versions
	}
	versions[version] = entry
}

// Render executes the selected prompt. An empty version picks the latest.
// Variables declared in front matter must be present in the data map.
func (r *Registry) Render(ctx context.Context, name, version string, data map[string]any) (string, PromptID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, version, err := r.lookup(name, version)
	if err != nil {
		return "", PromptID{}, err
	}
	for _, v := range entry.meta.Variables {
		if _, ok := data[v]; !ok {
			return "", PromptID{}, fmt.Errorf("prompt %s@%s: missing variable %q", name, version, v)
		}
	}

	buf := &bytes.Buffer{}
	if err := entry.tmpl.Execute(buf, data); err != nil {
		return "", PromptID{}, err
	}
	return buf.String(), PromptID{Name: name, Version: version, Fingerprint: entry.fingerprint}, nil
}

// Describe returns the front matter metadata for a prompt version.
func (r *Registry) Describe(name, version string) (Meta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, _, err := r.lookup(name, version)
	if err != nil {
		return Meta{}, err
	}
	return entry.meta, nil
}

// ListVersions returns sorted versions for the prompt.
func (r *Registry) ListVersions(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.prompts[name]
	if len(versions) == 0 {
		return nil
	}
	out := make([]string, 0, len(versions))
	for v := range versions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// HasOverride returns the override path serving a prompt, if any.
func (r *Registry) HasOverride(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.prompts[name] {
		if r.overrideDir != "" && strings.HasPrefix(entry.source, r.overrideDir) {
			return entry.source
		}
	}
	return ""
}

func (r *Registry) lookup(name, version string) (*templateEntry, string, error) {
	versions := r.prompts[name]
	if len(versions) == 0 {
		return nil, "", fmt.Errorf("prompt %s not found", name)
	}
	if version == "" {
		version = latestVersion(versions)
	}
	entry, ok := versions[version]
	if !ok {
		return nil, "", fmt.Errorf("prompt %s@%s not found", name, version)
	}
	return entry, version, nil
}

func latestVersion(versions map[string]*templateEntry) string {
	out := make([]string, 0, len(versions))
	for v := range versions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out[len(out)-1]
}

func parseFilename(filename string) (name, version string, err error) {
	base := strings.TrimSuffix(filepath.Base(filename), ".tmpl")
	parts := strings.Split(base, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid prompt filename: %s", filename)
	}
	return parts[0], parts[1], nil
}
