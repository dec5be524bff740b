package build

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// runtime is the common bundle: a minimal module registry the vendor and
// main bundles define their modules into.
const runtime = `(function (root) {
  var definitions = {};
  var cache = {};

  function load(id) {
    if (cache[id]) {
      return cache[id].exports;
    }
    var def = definitions[id];
    if (!def) {
      throw new Error("module not found: " + id);
    }
    var module = (cache[id] = { id: id, exports: {} });
    def.factory.call(module.exports, module, module.exports, function (spec) {
      var dep = def.deps[spec];
      if (dep === undefined) {
        throw new Error("cannot resolve '" + spec + "' from " + id);
      }
      return load(dep);
    });
    return module.exports;
  }

  root.ffyycDefine = function (id, deps, factory) {
    definitions[id] = { deps: deps, factory: factory };
  };
  root.ffyycRequire = load;
})(typeof self !== "undefined" ? self : this);
`

// bundle is one emitted script file before naming.
type bundle struct {
	Bucket   Bucket
	Content  []byte
	Sections []section
}

// bundler concatenates wrapped modules into a bucket's bundle. Modules
// added with a map become sections of the bundle's index map.
type bundler struct {
	buf      bytes.Buffer
	lines    int
	sections []section
}

// add wraps a module body in a define call.
func (b *bundler) add(id string, deps map[string]string, body []byte, sourceMap json.RawMessage) {
	idJSON, _ := json.Marshal(id)
	if deps == nil {
		deps = map[string]string{}
	}
	// encoding/json sorts map keys.
	depsJSON, _ := json.Marshal(deps)

	b.write("ffyycDefine(")
	b.write(string(idJSON))
	b.write(", ")
	b.write(string(depsJSON))
	b.write(", function (module, exports, require) {\n")
	if sourceMap != nil {
		b.sections = append(b.sections, section{Offset: sectionOffset{Line: b.lines}, Map: sourceMap})
	}
	b.write(string(body))
	if len(body) > 0 && body[len(body)-1] != '\n' {
		b.write("\n")
	}
	b.write("});\n")
}

// require appends a top-level require of id.
func (b *bundler) require(id string) {
	idJSON, _ := json.Marshal(id)
	b.write("ffyycRequire(" + string(idJSON) + ");\n")
}

// raw appends src unwrapped, at column 0 of a new line.
func (b *bundler) raw(src []byte, sourceMap json.RawMessage) {
	if sourceMap != nil {
		b.sections = append(b.sections, section{Offset: sectionOffset{Line: b.lines}, Map: sourceMap})
	}
	b.write(string(src))
	if len(src) > 0 && src[len(src)-1] != '\n' {
		b.write("\n")
	}
}

func (b *bundler) write(s string) {
	b.buf.WriteString(s)
	b.lines += strings.Count(s, "\n")
}

func (b *bundler) bytes() []byte {
	return b.buf.Bytes()
}

// compilationHash hashes every bundle in order, so any module change
// renames all scripts together.
func compilationHash(bundles []bundle, length int) string {
	h := sha256.New()
	for _, b := range bundles {
		h.Write([]byte(b.Bucket))
		h.Write([]byte{0})
		h.Write(b.Content)
		h.Write([]byte{0})
	}
	return truncate(hex.EncodeToString(h.Sum(nil)), length)
}

// contentHash hashes a single output.
func contentHash(data []byte, length int) string {
	sum := sha256.Sum256(data)
	return truncate(hex.EncodeToString(sum[:]), length)
}

func truncate(s string, n int) string {
	if n > 0 && n < len(s) {
		return s[:n]
	}
	return s
}
