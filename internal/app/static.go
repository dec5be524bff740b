package app

import (
	"io"
	"io/fs"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/ffyyc/web/pkg/assets"
)

// Static serves files from fsys below prefix.
type Static struct {
	fsys   fs.FS
	prefix string
}

// NewStatic serves fsys at prefix ("/static/").
func NewStatic(fsys fs.FS, prefix string) *Static {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Static{fsys: fsys, prefix: prefix}
}

// ServeHTTP serves a file with cache headers. Fingerprinted files are
// immutable for a year; everything else is revalidated after an hour.
func (s *Static) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	rel, ok := s.relPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	f, err := s.fsys.Open(rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	rs, ok := f.(io.ReadSeeker)
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if assets.IsFingerprinted(rel) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
	}
	http.ServeContent(w, r, rel, info.ModTime(), rs)
}

// relPath maps a URL path to a file inside fsys. Traversal, absolute
// paths, backslashes and NUL bytes are rejected.
func (s *Static) relPath(urlPath string) (string, bool) {
	rel, ok := strings.CutPrefix(urlPath, s.prefix)
	if !ok || rel == "" {
		return "", false
	}
	if strings.IndexByte(rel, 0) != -1 || strings.Contains(rel, "\\") || strings.HasPrefix(rel, "/") {
		return "", false
	}
	// Dot segments are rejected before cleaning so traversal cannot be
	// cleaned into a valid path.
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}
	clean := path.Clean(rel)
	if !fs.ValidPath(clean) || clean == "." {
		return "", false
	}
	if osPath := filepath.FromSlash(clean); filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}
	return clean, true
}
