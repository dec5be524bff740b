package build

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ffyyc/web/internal/config"
	"github.com/ffyyc/web/internal/errors"
	"github.com/ffyyc/web/internal/telemetry"
)

const indexTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>ffyyc</title>
</head>
<body>
  <div id="app"></div>
</body>
</html>
`

// newProject writes a small source tree and returns its config.
func newProject(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/index.html": indexTemplate,
		"src/js/main.js": `var util = require("./util");
var lib = require("lib");
var logo = require("../img/logo.png");
require("../scss/extra.scss");

// PARSE.APP_ID stays in comments
console.log(PARSE.APP_ID, GOOGLE.ZOOM, ENV.NODE_ENV, "PARSE.URL");
util.start(lib, logo);
`,
		"src/js/util.js":                       "exports.start = function (lib, logo) { return lib(logo); };\n",
		"src/node_modules/lib/package.json":    `{"main": "dist/lib.js"}`,
		"src/node_modules/lib/dist/lib.js":     "module.exports = function (x) { return x; };\n",
		"src/node_modules/unused/index.js":     "module.exports = 1;\n",
		"src/scss/main.scss":                   "@import \"vars\";\nbody { color: $text; background: url(../img/bg.png); }\n",
		"src/scss/_vars.scss":                  "$text: #333;\n",
		"src/scss/extra.scss":                  ".extra { display: none; }\n",
		"src/fonts/brand.woff2":                "font-bytes",
		"src/fonts/nested/other.ttf":           "ttf-bytes",
		"src/img/bg.png":                       "bg-bytes",
		"src/img/logo.png":                     "logo-bytes",
		"src/node_modules/lib/dist/sprite.png": "vendor-image",
	})
	writePNG(t, filepath.Join(dir, "src", "ffyyc-favicon.png"), 32)

	cfg := config.New()
	cfg.SetPath(filepath.Join(dir, config.ConfigFileName))
	cfg.Build.NoExternalTools = true
	return cfg
}

func newTestBuilder(cfg *config.Config, opts Options) *Builder {
	if opts.LookupEnv == nil {
		opts.LookupEnv = envWith(nil)
	}
	return New(cfg, testServices(), opts)
}

var hashPattern = regexp.MustCompile(`\.[0-9a-f]{20}\.`)

func readOutput(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	files := make(map[string][]byte)
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return files
}

func findFile(t *testing.T, files map[string][]byte, pattern string) (string, []byte) {
	t.Helper()
	re := regexp.MustCompile(pattern)
	for name, data := range files {
		if re.MatchString(name) {
			return name, data
		}
	}
	t.Fatalf("no output matches %s", pattern)
	return "", nil
}

func TestBuildOutputs(t *testing.T) {
	cfg := newProject(t)
	result, err := newTestBuilder(cfg, Options{}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	files := readOutput(t, cfg.OutputPath())

	for _, name := range []string{
		"common." + result.Hash + ".js",
		"vendor." + result.Hash + ".js",
		"main." + result.Hash + ".js",
		"main." + result.CSSHash + ".css",
		"img/logo.png",
		"img/bg.png",
		"fonts/brand.woff2",
		"fonts/other.ttf",
		"icons/favicon-16x16.png",
		"icons/favicon-32x32.png",
		"icons/apple-touch-icon.png",
		"icons/favicon.ico",
		"index.html",
		"manifest.json",
	} {
		if _, ok := files[name]; !ok {
			t.Errorf("missing output %s", name)
		}
	}
	if len(result.Hash) != 20 || len(result.CSSHash) != 20 {
		t.Errorf("hash lengths = %d, %d", len(result.Hash), len(result.CSSHash))
	}
	if string(files["img/logo.png"]) != "logo-bytes" {
		t.Error("img/logo.png content not copied")
	}
	if _, ok := files["img/ffyyc-favicon.png"]; ok {
		t.Error("favicon source copied as an image")
	}
	if _, ok := files["img/sprite.png"]; ok {
		t.Error("unreferenced third-party image copied")
	}

	main := string(files["main."+result.Hash+".js"])
	for _, want := range []string{
		`console.log("X", 12, undefined, "PARSE.URL");`,
		"// PARSE.APP_ID stays in comments",
		`ffyycDefine("js/main.js", {"../img/logo.png":"img/logo.png","../scss/extra.scss":"scss/extra.scss","./util":"js/util.js","lib":"node_modules/lib/dist/lib.js"}`,
		`ffyycDefine("js/util.js"`,
		`module.exports = "/img/logo.png";`,
		`ffyycRequire("js/main.js");`,
	} {
		if !strings.Contains(main, want) {
			t.Errorf("main bundle missing %q:\n%s", want, main)
		}
	}
	if strings.Index(main, `"js/util.js", {}`) > strings.Index(main, `ffyycDefine("js/main.js"`) {
		t.Error("dependency defined after its importer")
	}

	vendor := string(files["vendor."+result.Hash+".js"])
	if !strings.Contains(vendor, `ffyycDefine("node_modules/lib/dist/lib.js"`) {
		t.Errorf("vendor bundle missing lib:\n%s", vendor)
	}
	if strings.Contains(vendor, "unused") {
		t.Error("vendor bundle includes an unreachable package")
	}

	css := string(files["main."+result.CSSHash+".css"])
	if !strings.Contains(css, "body { color: #333; background: url(img/bg.png); }") {
		t.Errorf("stylesheet not preprocessed:\n%s", css)
	}
	if strings.Index(css, "body {") > strings.Index(css, ".extra") {
		t.Error("entry stylesheet should precede imported stylesheets")
	}

	index := string(files["index.html"])
	head := strings.Index(index, "</head>")
	cssLink := strings.Index(index, `<link href="/main.`+result.CSSHash+`.css" rel="stylesheet">`)
	if cssLink < 0 || cssLink > head {
		t.Errorf("stylesheet link not injected into head:\n%s", index)
	}
	if !strings.Contains(index, `href="/icons/favicon.ico"`) {
		t.Error("favicon link not injected")
	}
	common := strings.Index(index, `src="/common.`+result.Hash+`.js"`)
	vendorTag := strings.Index(index, `src="/vendor.`+result.Hash+`.js"`)
	mainTag := strings.Index(index, `src="/main.`+result.Hash+`.js"`)
	if !(head < common && common < vendorTag && vendorTag < mainTag && mainTag < strings.Index(index, "</body>")) {
		t.Errorf("scripts not injected in order before </body>:\n%s", index)
	}

	if got := result.Manifest.Resolve("main.js"); got != "main."+result.Hash+".js" {
		t.Errorf("manifest main.js = %s", got)
	}
	if got := result.Manifest.Resolve("img/logo.png"); got != "img/logo.png" {
		t.Errorf("manifest img/logo.png = %s", got)
	}
	if len(result.Files) != len(files) {
		t.Errorf("Result.Files has %d entries, output has %d", len(result.Files), len(files))
	}
}

func TestBuildDefinesEmbedded(t *testing.T) {
	cfg := newProject(t)
	writeFiles(t, cfg.SrcPath(), map[string]string{
		"js/main.js": "var id = PARSE.APP_ID; var zoom = GOOGLE.ZOOM;\n",
	})
	result, err := newTestBuilder(cfg, Options{}).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	files := readOutput(t, cfg.OutputPath())
	main := string(files["main."+result.Hash+".js"])
	if !strings.Contains(main, `var id = "X"; var zoom = 12;`) {
		t.Errorf("defines not embedded:\n%s", main)
	}
}

func TestBuildDeterministic(t *testing.T) {
	cfg := newProject(t)

	cfg.Build.Output = "dist-a"
	if _, err := newTestBuilder(cfg, Options{}).Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := readOutput(t, cfg.OutputPath())

	cfg.Build.Output = "dist-b"
	if _, err := newTestBuilder(cfg, Options{}).Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	second := readOutput(t, cfg.OutputPath())

	if len(first) != len(second) {
		t.Fatalf("file counts differ: %d vs %d", len(first), len(second))
	}
	for name, data := range first {
		other, ok := second[name]
		if !ok {
			t.Errorf("%s missing from second build", name)
			continue
		}
		if !bytes.Equal(data, other) {
			t.Errorf("%s differs between builds", name)
		}
	}
}

func TestBuildContentChangeAltersOnlyHash(t *testing.T) {
	cfg := newProject(t)
	before, err := newTestBuilder(cfg, Options{}).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	beforeNames := outputNames(before)

	writeFiles(t, cfg.SrcPath(), map[string]string{
		"js/util.js": "exports.start = function () { return 42; };\n",
	})
	after, err := newTestBuilder(cfg, Options{}).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	afterNames := outputNames(after)

	if before.Hash == after.Hash {
		t.Fatal("compilation hash unchanged after a script change")
	}
	if before.CSSHash != after.CSSHash {
		t.Error("stylesheet hash changed although no stylesheet did")
	}

	normalize := func(names []string) []string {
		out := make([]string, len(names))
		for i, n := range names {
			out[i] = hashPattern.ReplaceAllString(n, ".[hash].")
		}
		sort.Strings(out)
		return out
	}
	a, b := normalize(beforeNames), normalize(afterNames)
	if strings.Join(a, ",") != strings.Join(b, ",") {
		t.Errorf("names differ beyond the hash:\n%v\n%v", a, b)
	}
}

func outputNames(r *Result) []string {
	names := make([]string, len(r.Files))
	for i, f := range r.Files {
		names[i] = f.Path
	}
	return names
}

func TestBuildJSXWithoutTranspiler(t *testing.T) {
	cfg := newProject(t)
	writeFiles(t, cfg.SrcPath(), map[string]string{
		"js/main.js":     `require("./view.jsx");`,
		"js/view.jsx":    "module.exports = <div />;\n",
		"scss/main.scss": "p {}\n",
	})
	_, err := newTestBuilder(cfg, Options{Tools: &Tools{}}).Build(context.Background())
	if !errors.HasCode(err, "E151") {
		t.Fatalf("error = %v, want E151", err)
	}
}

func TestBuildNodeEnv(t *testing.T) {
	tests := []struct {
		name    string
		options Options
		cfgEnv  string
		want    string
	}{
		{"unset", Options{}, "", "undefined"},
		{"process env", Options{LookupEnv: envWith(map[string]string{"NODE_ENV": "staging"})}, "", `"staging"`},
		{"config", Options{}, "production", `"production"`},
		{"option wins", Options{Env: "test"}, "production", `"test"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			cfg.Build.Env = tt.cfgEnv
			b := newTestBuilder(cfg, tt.options)
			if got, _ := b.DefineSet().Lookup("ENV.NODE_ENV"); got != tt.want {
				t.Errorf("NODE_ENV = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, cfg *config.Config)
		code   string
	}{
		{"missing template", func(t *testing.T, cfg *config.Config) {
			os.Remove(cfg.TemplatePath())
		}, "E154"},
		{"missing entry", func(t *testing.T, cfg *config.Config) {
			os.Remove(filepath.Join(cfg.SrcPath(), "js", "main.js"))
		}, "E150"},
		{"unresolved import", func(t *testing.T, cfg *config.Config) {
			writeFiles(t, cfg.SrcPath(), map[string]string{"js/main.js": `require("./missing");`})
		}, "E150"},
		{"bad stylesheet import", func(t *testing.T, cfg *config.Config) {
			writeFiles(t, cfg.SrcPath(), map[string]string{"scss/main.scss": `@import "nope";`})
		}, "E152"},
		{"colliding assets", func(t *testing.T, cfg *config.Config) {
			writeFiles(t, cfg.SrcPath(), map[string]string{"img/other/logo.png": "second"})
		}, "E150"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newProject(t)
			tt.mutate(t, cfg)
			_, err := newTestBuilder(cfg, Options{}).Build(context.Background())
			if !errors.HasCode(err, tt.code) {
				t.Fatalf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestBuildWithoutFavicon(t *testing.T) {
	cfg := newProject(t)
	os.Remove(cfg.FaviconPath())

	var steps []string
	result, err := newTestBuilder(cfg, Options{OnProgress: func(s string) { steps = append(steps, s) }}).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Manifest.Len() == 0 {
		t.Error("empty manifest")
	}
	if _, ok := result.Manifest.Lookup("icons/favicon.ico"); ok {
		t.Error("favicon generated without a source")
	}
	if len(steps) == 0 {
		t.Error("no progress reported")
	}
}

func TestBuildCancelled(t *testing.T) {
	cfg := newProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestBuilder(cfg, Options{}).Build(ctx); err != context.Canceled {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestBuildRecordsMetrics(t *testing.T) {
	cfg := newProject(t)
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))

	if _, err := newTestBuilder(cfg, Options{Metrics: m}).Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	n, err := testutil.GatherAndCount(reg, "ffyyc_builds_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("builds_total series = %d, want 1", n)
	}
}

func TestClean(t *testing.T) {
	cfg := newProject(t)
	b := newTestBuilder(cfg, Options{})
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Clean(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.OutputPath()); !os.IsNotExist(err) {
		t.Errorf("output still exists: %v", err)
	}
}

func TestResultTotalSize(t *testing.T) {
	r := &Result{Files: []OutputFile{{Path: "a", Size: 3}, {Path: "b", Size: 4}}, Duration: time.Second}
	if r.TotalSize() != 7 {
		t.Errorf("TotalSize = %d", r.TotalSize())
	}
}

func TestBuildSourceMaps(t *testing.T) {
	cfg := newProject(t)
	result, err := newTestBuilder(cfg, Options{}).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	files := readOutput(t, cfg.OutputPath())

	for _, name := range []string{
		"common." + result.Hash + ".js",
		"vendor." + result.Hash + ".js",
		"main." + result.Hash + ".js",
		"main." + result.CSSHash + ".css",
	} {
		data, ok := files[name+".map"]
		if !ok {
			t.Errorf("missing %s.map", name)
			continue
		}
		var m indexMap
		if err := json.Unmarshal(data, &m); err != nil {
			t.Errorf("%s.map: %v", name, err)
			continue
		}
		if m.Version != 3 || m.File != name || len(m.Sections) == 0 {
			t.Errorf("%s.map = version %d, file %q, %d sections", name, m.Version, m.File, len(m.Sections))
		}
		if !strings.Contains(string(files[name]), "sourceMappingURL="+name+".map") {
			t.Errorf("%s does not link its map", name)
		}
	}
	if got := result.Manifest.Resolve("main.js.map"); got != "main."+result.Hash+".js.map" {
		t.Errorf("manifest main.js.map = %s", got)
	}
	if got := result.Manifest.Resolve("main.css.map"); got != "main."+result.CSSHash+".css.map" {
		t.Errorf("manifest main.css.map = %s", got)
	}

	// The section of js/main.js starts at the line holding its first line.
	var m indexMap
	json.Unmarshal(files["main."+result.Hash+".js.map"], &m)
	lines := strings.Split(string(files["main."+result.Hash+".js"]), "\n")
	found := false
	for _, sec := range m.Sections {
		var sm sourceMap
		if err := json.Unmarshal(sec.Map, &sm); err != nil {
			t.Fatal(err)
		}
		if len(sm.Sources) == 1 && sm.Sources[0] == "js/main.js" {
			found = true
			if got := lines[sec.Offset.Line]; got != `var util = require("./util");` {
				t.Errorf("js/main.js section starts at %q", got)
			}
		}
	}
	if !found {
		t.Error("no section for js/main.js")
	}

	var cssMap indexMap
	json.Unmarshal(files["main."+result.CSSHash+".css.map"], &cssMap)
	var sources []string
	for _, sec := range cssMap.Sections {
		var sm sourceMap
		json.Unmarshal(sec.Map, &sm)
		sources = append(sources, sm.Sources...)
	}
	sort.Strings(sources)
	if got := strings.Join(sources, ","); got != "scss/_vars.scss,scss/extra.scss,scss/main.scss" {
		t.Errorf("stylesheet map sources = %s", got)
	}
}

func TestBuildWithoutSourceMaps(t *testing.T) {
	cfg := newProject(t)
	cfg.Build.SourceMaps = false
	result, err := newTestBuilder(cfg, Options{}).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range result.Files {
		if strings.HasSuffix(f.Path, ".map") {
			t.Errorf("source map %s emitted", f.Path)
		}
	}
	files := readOutput(t, cfg.OutputPath())
	if strings.Contains(string(files["main."+result.Hash+".js"]), "sourceMappingURL") {
		t.Error("bundle links a source map")
	}
}

func TestBuildRefusesOutputOverSources(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"project root", "."},
		{"source directory", "src"},
		{"parent", ".."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newProject(t)
			cfg.Build.Output = tt.output
			b := newTestBuilder(cfg, Options{})

			if _, err := b.Build(context.Background()); !errors.HasCode(err, "E122") {
				t.Fatalf("Build error = %v, want E122", err)
			}
			if err := b.Clean(); !errors.HasCode(err, "E122") {
				t.Fatalf("Clean error = %v, want E122", err)
			}
			if !fileExists(filepath.Join(cfg.SrcPath(), "js", "main.js")) {
				t.Error("sources removed")
			}
		})
	}
}
