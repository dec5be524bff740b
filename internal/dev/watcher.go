package dev

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ChangeType represents the type of file change.
type ChangeType int

const (
	ChangeScript ChangeType = iota
	ChangeStylesheet
	ChangeTemplate
	ChangeConfig
	ChangeAsset
)

// String returns the change type name.
func (t ChangeType) String() string {
	switch t {
	case ChangeScript:
		return "script"
	case ChangeStylesheet:
		return "stylesheet"
	case ChangeTemplate:
		return "template"
	case ChangeConfig:
		return "config"
	default:
		return "asset"
	}
}

// Change represents a detected file change.
type Change struct {
	Path string
	Type ChangeType
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the files and directories to watch.
	Paths []string

	// Ignore patterns to skip. A pattern without a slash matches a path
	// segment, globs match the base name.
	Ignore []string

	// Interval is the polling period.
	Interval time.Duration
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	"dist",
	"*.staging",
	"*.tmp",
	"*.swp",
	"*~",
	".DS_Store",
}

// Watcher polls files for changes.
type Watcher struct {
	config   WatcherConfig
	mu       sync.Mutex
	onChange func(Change)
	running  bool
	stopCh   chan struct{}
	seen     map[string]time.Time
}

// NewWatcher creates a new file watcher.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Interval == 0 {
		config.Interval = 100 * time.Millisecond
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}
	return &Watcher{config: config}
}

// OnChange sets the callback for file changes.
func (w *Watcher) OnChange(fn func(Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start polls until ctx is cancelled or Stop is called. Files present at
// start are the baseline and are not reported.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	stop := make(chan struct{})
	w.stopCh = stop
	w.seen = w.scan()
	w.mu.Unlock()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			w.poll()
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// scan returns the modification time of every watched file.
func (w *Watcher) scan() map[string]time.Time {
	files := make(map[string]time.Time)
	for _, root := range w.config.Paths {
		_ = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if w.shouldIgnore(p) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !info.IsDir() {
				files[p] = info.ModTime()
			}
			return nil
		})
	}
	return files
}

// poll diffs a fresh scan against the last one and reports the first
// change of each type, in path order.
func (w *Watcher) poll() {
	current := w.scan()

	w.mu.Lock()
	previous := w.seen
	w.seen = current
	callback := w.onChange
	w.mu.Unlock()

	if callback == nil {
		return
	}

	var changed []string
	for p, mod := range current {
		if last, ok := previous[p]; !ok || !mod.Equal(last) {
			changed = append(changed, p)
		}
	}
	for p := range previous {
		if _, ok := current[p]; !ok {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)

	reported := make(map[ChangeType]bool)
	for _, p := range changed {
		t := classifyChange(p)
		if reported[t] {
			continue
		}
		reported[t] = true
		callback(Change{Path: p, Type: t})
	}
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	name := filepath.Base(fullPath)
	normalized := filepath.ToSlash(fullPath)

	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if name == pattern {
			return true
		}

		if strings.ContainsAny(pattern, "*?[") {
			target := name
			if strings.Contains(pattern, "/") {
				target = normalized
			}
			if ok, _ := path.Match(pattern, target); ok {
				return true
			}
			continue
		}
		if containsSegments(normalized, pattern) {
			return true
		}
	}
	return false
}

// containsSegments reports whether the segments of pattern appear
// consecutively in p.
func containsSegments(p, pattern string) bool {
	have := splitSegments(p)
	want := splitSegments(pattern)
	if len(want) == 0 || len(want) > len(have) {
		return false
	}
outer:
	for i := 0; i+len(want) <= len(have); i++ {
		for j := range want {
			if have[i+j] != want[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

func splitSegments(p string) []string {
	var out []string
	for _, part := range strings.Split(p, "/") {
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}

// classifyChange determines the type of change based on file extension.
func classifyChange(p string) ChangeType {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".js", ".jsx", ".mjs":
		return ChangeScript
	case ".css", ".scss", ".sass":
		return ChangeStylesheet
	case ".html", ".htm":
		return ChangeTemplate
	case ".json", ".yaml", ".yml", ".env":
		return ChangeConfig
	default:
		return ChangeAsset
	}
}
