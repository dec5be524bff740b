package assets

import "strings"

// Resolver turns logical asset names into URL paths.
type Resolver interface {
	Asset(name string) string
}

type manifestResolver struct {
	manifest *Manifest
	prefix   string
}

// NewResolver resolves names through m and prepends prefix. A prefix
// without a trailing slash gets one.
func NewResolver(m *Manifest, prefix string) Resolver {
	return &manifestResolver{manifest: m, prefix: normalizePrefix(prefix)}
}

func (r *manifestResolver) Asset(name string) string {
	return r.prefix + strings.TrimPrefix(r.manifest.Resolve(name), "/")
}

type passthrough struct {
	prefix string
}

// NewPassthroughResolver prepends prefix without consulting a manifest.
// The dev server uses it when there is no manifest yet.
func NewPassthroughResolver(prefix string) Resolver {
	return passthrough{prefix: normalizePrefix(prefix)}
}

func (p passthrough) Asset(name string) string {
	return p.prefix + strings.TrimPrefix(name, "/")
}

func normalizePrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}
