package dev

import (
	"path/filepath"

	"github.com/ffyyc/web/internal/config"
)

// CollectWatchPaths returns the deduplicated paths whose changes affect a
// build: the source tree, the template, the favicon source, the service
// configuration and its .env file, the project file, and dev.watch.
func CollectWatchPaths(cfg *config.Config) []string {
	services := cfg.ServicesPath()
	paths := []string{
		cfg.SrcPath(),
		cfg.TemplatePath(),
		cfg.FaviconPath(),
		services,
		filepath.Join(filepath.Dir(services), ".env"),
		cfg.Path(),
	}
	for _, p := range cfg.Dev.Watch {
		paths = append(paths, resolvePath(cfg.Dir(), p))
	}

	unique := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		clean := filepath.Clean(p)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		unique = append(unique, clean)
	}
	return unique
}

// CollectIgnore returns the default ignore patterns plus dev.ignore.
func CollectIgnore(cfg *config.Config) []string {
	ignore := append([]string(nil), DefaultIgnore...)
	return append(ignore, cfg.Dev.Ignore...)
}

func resolvePath(projectDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(projectDir, p)
}
