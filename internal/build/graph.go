package build

import (
	"bytes"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ffyyc/web/internal/errors"
)

// module is a file reached from an entry point.
type module struct {
	// ID is the slash path relative to the source root. Third-party files
	// live under the third-party directory name.
	ID   string
	File string
	Rule Rule
	Src  []byte

	// Deps maps each import specifier to the resolved module ID.
	Deps map[string]string
}

var importPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`(?m)^\s*import\s+(?:[\w*{}\s,$]+\s+from\s+)?['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?m)^\s*export\s+(?:\*|\{[^}]*\})\s+from\s+['"]([^'"]+)['"]`),
}

// scanImports returns the import specifiers of a script in source order,
// without duplicates. Matches starting inside comments or string literals
// are ignored.
func scanImports(src []byte) []string {
	type hit struct {
		pos  int
		spec string
	}
	code := codeSpans(src)
	var hits []hit
	for _, re := range importPatterns {
		for _, m := range re.FindAllSubmatchIndex(src, -1) {
			match := src[m[0]:m[1]]
			keyword := m[0] + len(match) - len(bytes.TrimLeft(match, " \t\r\n"))
			if !inCode(code, keyword) {
				continue
			}
			hits = append(hits, hit{pos: m[2], spec: string(src[m[2]:m[3]])})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[string]bool, len(hits))
	specs := make([]string, 0, len(hits))
	for _, h := range hits {
		if !seen[h.spec] {
			seen[h.spec] = true
			specs = append(specs, h.spec)
		}
	}
	return specs
}

// graph collects every file reachable from the entries.
type graph struct {
	srcDir        string
	thirdPartyDir string
	thirdParty    string
	rules         RuleSet

	modules map[string]*module
	order   []string
}

func newGraph(srcDir, thirdPartyDir string, rules RuleSet) *graph {
	return &graph{
		srcDir:        srcDir,
		thirdPartyDir: thirdPartyDir,
		thirdParty:    filepath.Base(thirdPartyDir),
		rules:         rules,
		modules:       make(map[string]*module),
	}
}

// id returns the module ID of an absolute file path.
func (g *graph) id(file string) (string, bool) {
	if rel, err := filepath.Rel(g.thirdPartyDir, file); err == nil && !strings.HasPrefix(rel, "..") {
		return g.thirdParty + "/" + filepath.ToSlash(rel), true
	}
	if rel, err := filepath.Rel(g.srcDir, file); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel), true
	}
	return "", false
}

// file returns the absolute file path of a module ID.
func (g *graph) file(id string) string {
	if rest, ok := strings.CutPrefix(id, g.thirdParty+"/"); ok {
		return filepath.Join(g.thirdPartyDir, filepath.FromSlash(rest))
	}
	return filepath.Join(g.srcDir, filepath.FromSlash(id))
}

// add loads file and, for scripts, everything it imports.
func (g *graph) add(file string) (*module, error) {
	id, ok := g.id(file)
	if !ok {
		return nil, errors.New("E150").
			WithDetail(file + " is outside the source tree")
	}
	if m, ok := g.modules[id]; ok {
		return m, nil
	}

	rule, ok := g.rules.Match(id)
	if !ok {
		return nil, errors.New("E150").
			WithDetail("No rule handles " + id).
			WithSuggestion("Only scripts, stylesheets, fonts and images can be imported")
	}

	m := &module{ID: id, File: file, Rule: rule, Deps: map[string]string{}}
	g.modules[id] = m

	if rule.Kind != KindScript {
		return m, nil
	}

	src, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.New("E150").WithDetail("Cannot read " + id).Wrap(err)
	}
	m.Src = src

	for _, spec := range scanImports(src) {
		depFile, err := g.resolve(path.Dir(id), spec)
		if err != nil {
			return nil, err.WithDetail("Cannot resolve '" + spec + "' from " + id)
		}
		dep, addErr := g.add(depFile)
		if addErr != nil {
			return nil, addErr
		}
		m.Deps[spec] = dep.ID
	}

	// Post-order keeps dependencies ahead of their importers.
	g.order = append(g.order, id)
	return m, nil
}

// resolve finds the file an import specifier refers to.
func (g *graph) resolve(fromDir, spec string) (string, *errors.Error) {
	spec = queryOrHashRef.ReplaceAllString(spec, "")
	var base string
	switch {
	case strings.HasPrefix(spec, "/"):
		base = filepath.Join(g.srcDir, filepath.FromSlash(spec))
	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		base = g.file(path.Join(fromDir, spec))
	default:
		base = filepath.Join(g.thirdPartyDir, filepath.FromSlash(spec))
		if main := packageMain(base); main != "" {
			if f, ok := resolveFile(filepath.Join(base, main)); ok {
				return f, nil
			}
		}
	}
	if f, ok := resolveFile(base); ok {
		return f, nil
	}
	return "", errors.New("E150")
}

// resolveFile tries path, then the script extensions, then an index file.
func resolveFile(p string) (string, bool) {
	candidates := []string{p, p + ".js", p + ".jsx", filepath.Join(p, "index.js"), filepath.Join(p, "index.jsx")}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}

// packageMain returns the "main" field of dir/package.json.
func packageMain(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if json.Unmarshal(data, &pkg) != nil {
		return ""
	}
	return pkg.Main
}

// scripts returns the script modules of bucket in dependency order.
func (g *graph) scripts(bucket Bucket) []*module {
	var out []*module
	for _, id := range g.order {
		m := g.modules[id]
		if m.Rule.Kind == KindScript && m.Rule.Bucket == bucket {
			out = append(out, m)
		}
	}
	return out
}

// byKind returns the non-script modules of kind in sorted ID order.
func (g *graph) byKind(kind Kind) []*module {
	var out []*module
	for _, m := range g.modules {
		if m.Rule.Kind == kind {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
