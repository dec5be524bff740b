package assets

import (
	"path"
	"strings"
)

// IsFingerprinted reports whether name carries a content hash before its
// extension, e.g. "main.a1b2c3d4.css". Hashes are at least 8 hex digits.
func IsFingerprinted(name string) bool {
	parts := strings.Split(path.Base(name), ".")
	if len(parts) < 3 {
		return false
	}
	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
