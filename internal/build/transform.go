package build

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ffyyc/web/internal/errors"
)

// Tools are the external executables the transforms use. An empty path
// means the tool is unavailable and the built-in fallback applies.
type Tools struct {
	Esbuild string
	Sass    string
}

// FindTools resolves the configured executables, looking them up in PATH
// when not configured. With noExternal set no tool is used.
func FindTools(esbuild, sass string, noExternal bool) Tools {
	if noExternal {
		return Tools{}
	}
	return Tools{
		Esbuild: lookTool(esbuild, "esbuild"),
		Sass:    lookTool(sass, "sass"),
	}
}

func lookTool(configured, name string) string {
	if configured != "" {
		name = configured
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return p
}

// transformer runs rule chains over file contents.
type transformer struct {
	tools   Tools
	defines *DefineSet
	rules   RuleSet
	srcDir  string

	// sourceMaps makes the external tools emit inline maps, which script
	// and stylesheet return alongside the output.
	sourceMaps bool

	// assets collects files referenced from stylesheets, keyed by the
	// absolute source path, valued by the emitted name.
	assets map[string]string
}

// script runs a script module's chain. With source maps on it also
// returns the module's map, falling back to an identity map of the source.
func (t *transformer) script(ctx context.Context, m *module) ([]byte, json.RawMessage, error) {
	out := m.Src
	var sourceMap json.RawMessage
	for _, step := range m.Rule.Steps() {
		var err error
		switch step {
		case StepTranspile:
			out, err = t.transpile(ctx, m.ID, out)
			if err == nil && t.sourceMaps {
				out, sourceMap = extractInlineMap(out)
			}
		case StepDefine:
			out = t.defines.Apply(out)
		default:
			err = errors.New("E150").WithDetail("Step " + string(step) + " does not apply to scripts")
		}
		if err != nil {
			return nil, nil, err
		}
	}
	if t.sourceMaps && sourceMap == nil {
		sourceMap = identityMap(m.ID, m.Src)
	}
	return out, sourceMap, nil
}

// stylesheet runs a stylesheet's chain, reading the file itself. The map
// follows the same rules as script's.
func (t *transformer) stylesheet(ctx context.Context, file string, rule Rule) ([]byte, json.RawMessage, error) {
	var out []byte
	var sourceMap json.RawMessage
	for _, step := range rule.Steps() {
		var err error
		switch step {
		case StepSass:
			out, sourceMap, err = t.sass(ctx, file)
		case StepCSS:
			if out == nil {
				out, err = readSource(file)
				if err == nil && t.sourceMaps {
					sourceMap = identityMap(t.sourceName(file), out)
				}
			}
			if err == nil {
				out, err = t.css(file, out)
			}
		default:
			err = errors.New("E150").WithDetail("Step " + string(step) + " does not apply to stylesheets")
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return out, sourceMap, nil
}

// sourceName is the name a map lists file under: its slash path below the
// source directory.
func (t *transformer) sourceName(file string) string {
	if rel, err := filepath.Rel(t.srcDir, file); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(file)
}

// transpile converts one module to plain CommonJS with esbuild. Without
// esbuild plain .js passes through and .jsx is an error.
func (t *transformer) transpile(ctx context.Context, id string, src []byte) ([]byte, error) {
	loader := strings.TrimPrefix(path.Ext(id), ".")
	if t.tools.Esbuild == "" {
		if loader == "jsx" {
			return nil, errors.New("E151").
				WithDetail(id + " needs esbuild").
				WithSuggestion("Install esbuild or set build.transpiler in ffyyc.json")
		}
		return src, nil
	}

	args := []string{
		"--loader=" + loader,
		"--format=cjs",
		"--target=es2015",
		"--sourcefile=" + id,
		"--log-level=error",
	}
	if t.sourceMaps {
		args = append(args, "--sourcemap=inline")
	}
	return run(ctx, t.tools.Esbuild, args, src, "E150", id)
}

// sass compiles a Sass file with the sass binary, or with the built-in
// preprocessor when it is missing.
func (t *transformer) sass(ctx context.Context, file string) ([]byte, json.RawMessage, error) {
	if t.tools.Sass == "" {
		p := newSCSSProcessor()
		out, err := p.run(file)
		if err != nil || !t.sourceMaps {
			return out, nil, err
		}
		return out, t.scssMap(p), nil
	}

	args := []string{"--no-source-map"}
	if t.sourceMaps {
		args = []string{"--embed-source-map", "--embed-sources"}
	}
	args = append(args, "--load-path="+filepath.Dir(file), file)
	out, err := run(ctx, t.tools.Sass, args, nil, "E152", file)
	if err != nil || !t.sourceMaps {
		return out, nil, err
	}
	out, sourceMap := extractInlineMap(out)
	if sourceMap == nil {
		sourceMap = identityMap(t.sourceName(file), out)
	}
	return out, sourceMap, nil
}

// scssMap maps the built-in preprocessor's output lines to the files they
// came from.
func (t *transformer) scssMap(p *scssProcessor) json.RawMessage {
	sources := make([]string, len(p.sources))
	contents := make([]string, len(p.sources))
	for i, file := range p.sources {
		sources[i] = t.sourceName(file)
		if data, err := readSource(file); err == nil {
			contents[i] = string(data)
		}
	}
	return lineMap(sources, contents, p.origins)
}

var cssURL = regexp.MustCompile(`url\(\s*(['"]?)([^'")]+)(['"]?)\s*\)`)

// css rewrites relative url() references to the names the file rules
// give the referenced assets, and records those assets for copying.
func (t *transformer) css(file string, src []byte) ([]byte, error) {
	var firstErr error
	out := cssURL.ReplaceAllFunc(src, func(match []byte) []byte {
		sub := cssURL.FindSubmatch(match)
		ref := string(sub[2])
		if isExternalRef(ref) {
			return match
		}
		clean := queryOrHashRef.ReplaceAllString(ref, "")
		abs := filepath.Join(filepath.Dir(file), filepath.FromSlash(clean))
		if strings.HasPrefix(clean, "/") {
			abs = filepath.Join(t.srcDir, filepath.FromSlash(clean))
		}
		rule, ok := t.rules.Match(filepath.ToSlash(abs))
		if !ok || rule.Kind != KindFile {
			return match
		}
		if !fileExists(abs) {
			if firstErr == nil {
				firstErr = errors.New("E150").WithDetail("url(" + ref + ") in " + filepath.Base(file) + " does not exist")
			}
			return match
		}
		name := rule.OutputName(clean)
		t.assets[abs] = name
		return []byte("url(" + string(sub[1]) + name + string(sub[3]) + ")")
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func isExternalRef(ref string) bool {
	return strings.HasPrefix(ref, "data:") ||
		strings.HasPrefix(ref, "http:") ||
		strings.HasPrefix(ref, "https:") ||
		strings.HasPrefix(ref, "//") ||
		strings.HasPrefix(ref, "#")
}

// run executes a tool with stdin and returns its stdout.
func run(ctx context.Context, tool string, args []string, stdin []byte, code, subject string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, tool, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.New(code).
			WithDetail(filepath.Base(tool) + " failed on " + subject + ": " + strings.TrimSpace(stderr.String())).
			Wrap(err)
	}
	return stdout.Bytes(), nil
}
