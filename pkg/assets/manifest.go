// Package assets maps logical asset names to the fingerprinted files a build
// emits.
//
// The build writes manifest.json into its output directory:
//
//	{
//	  "common.js": "common.3f2a9c01d4e5b6a7c8d9.js",
//	  "main.css": "main.9e8d7c6b5a4f3e2d1c0b.css",
//	  "img/logo.png": "img/logo.png"
//	}
//
// Servers load it once and resolve names through a Resolver:
//
//	m, _ := assets.Load("dist/manifest.json")
//	r := assets.NewResolver(m, "/static/")
//	r.Asset("main.css") // "/static/main.9e8d7c6b5a4f3e2d1c0b.css"
package assets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileName is the manifest's name inside a build output directory.
const FileName = "manifest.json"

// Manifest maps logical asset names to emitted paths.
// It is safe for concurrent use.
type Manifest struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{entries: make(map[string]string)}
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadDir reads the manifest from a build output directory.
func LoadDir(dir string) (*Manifest, error) {
	return Load(filepath.Join(dir, FileName))
}

// Parse decodes manifest JSON.
func Parse(data []byte) (*Manifest, error) {
	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &Manifest{entries: entries}, nil
}

// Lookup returns the emitted path for name and whether it exists.
func (m *Manifest) Lookup(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.entries[name]
	return p, ok
}

// Resolve returns the emitted path for name, or name itself when unknown.
func (m *Manifest) Resolve(name string) string {
	if p, ok := m.Lookup(name); ok {
		return p
	}
	return name
}

// Set records an entry.
func (m *Manifest) Set(name, emitted string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = emitted
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Names returns the logical names in sorted order.
func (m *Manifest) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for k := range m.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of the entries.
func (m *Manifest) All() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the manifest with sorted keys and two-space indent,
// so identical manifests encode to identical bytes.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	// encoding/json sorts map keys.
	if err := enc.Encode(m.All()); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteFile writes the manifest to path.
func (m *Manifest) WriteFile(path string) error {
	data, err := m.MarshalJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
