package build

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ffyyc/web/internal/config"
	"github.com/ffyyc/web/internal/errors"
	"github.com/ffyyc/web/internal/telemetry"
	"github.com/ffyyc/web/pkg/assets"
)

// Result contains the build output.
type Result struct {
	// Duration is how long the build took.
	Duration time.Duration

	// Output is the absolute output directory.
	Output string

	// Hash is the compilation hash shared by the script bundles.
	Hash string

	// CSSHash is the content hash of the stylesheet, empty without one.
	CSSHash string

	// Files lists every emitted file in path order.
	Files []OutputFile

	// Manifest maps logical names to emitted paths.
	Manifest *assets.Manifest
}

// OutputFile is one emitted file.
type OutputFile struct {
	Path string
	Size int64
}

// TotalSize returns the summed size of all emitted files.
func (r *Result) TotalSize() int64 {
	var n int64
	for _, f := range r.Files {
		n += f.Size
	}
	return n
}

// Options configures the builder.
type Options struct {
	// Env overrides ENV.NODE_ENV; it wins over build.env.
	Env string

	// LookupEnv reads the process environment (default os.LookupEnv).
	LookupEnv func(string) (string, bool)

	// Tools overrides external tool discovery.
	Tools *Tools

	// Rules replaces the default rule set.
	Rules RuleSet

	// Metrics records build outcomes. Nil disables recording.
	Metrics *telemetry.Metrics

	// OnProgress is called with progress updates.
	OnProgress func(step string)
}

// Builder turns the source tree into the output directory.
type Builder struct {
	config   *config.Config
	services *config.Services
	options  Options
	rules    RuleSet
	tools    Tools
}

// New creates a builder. services may be nil when no service
// configuration exists; its defines are then empty strings.
func New(cfg *config.Config, services *config.Services, options Options) *Builder {
	if options.LookupEnv == nil {
		options.LookupEnv = os.LookupEnv
	}
	rules := options.Rules
	if rules == nil {
		rules = DefaultRules(filepath.Base(cfg.ThirdPartyPath()))
	}
	tools := FindTools(cfg.Build.Transpiler, cfg.Build.Sass, cfg.Build.NoExternalTools)
	if options.Tools != nil {
		tools = *options.Tools
	}
	return &Builder{
		config:   cfg,
		services: services,
		options:  options,
		rules:    rules,
		tools:    tools,
	}
}

// Rules returns the rule set in evaluation order.
func (b *Builder) Rules() RuleSet {
	return b.rules
}

// Tools returns the external tools in use.
func (b *Builder) Tools() Tools {
	return b.tools
}

// DefineSet returns the constants injected into scripts.
func (b *Builder) DefineSet() *DefineSet {
	lookup := b.options.LookupEnv
	env := b.options.Env
	if env == "" {
		env = b.config.Build.Env
	}
	if env != "" {
		lookup = func(key string) (string, bool) {
			if key == "NODE_ENV" {
				return env, true
			}
			return b.options.LookupEnv(key)
		}
	}
	return Defines(lookup, b.services)
}

// Build performs a full build. The output directory is replaced.
func (b *Builder) Build(ctx context.Context) (result *Result, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "build",
		attribute.String("build.output", b.config.OutputPath()),
	)
	defer func() {
		telemetry.EndSpan(span, err)
		b.options.Metrics.BuildFinished(time.Since(start), err)
	}()

	s := &buildState{
		Builder:  b,
		out:      b.config.OutputPath(),
		manifest: assets.NewManifest(),
		files:    make(map[string]string),
		tr: &transformer{
			tools:   b.tools,
			defines: b.DefineSet(),
			rules:   b.rules,
			srcDir:  b.config.SrcPath(),
			assets:  make(map[string]string),

			sourceMaps: b.config.Build.SourceMaps,
		},
	}

	steps := []struct {
		name     string
		progress string
		run      func(context.Context) error
	}{
		{"clean", "Cleaning output directory...", s.clean},
		{"resolve", "Resolving modules...", s.resolve},
		{"scripts", "Bundling scripts...", s.scripts},
		{"stylesheets", "Extracting stylesheets...", s.stylesheets},
		{"assets", "Copying assets...", s.copyAssets},
		{"favicons", "Generating favicons...", s.favicons},
		{"html", "Writing index.html...", s.index},
		{"manifest", "Writing manifest...", s.writeManifest},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.progress(step.progress)
		stepCtx, stepSpan := telemetry.StartSpan(ctx, "build."+step.name)
		stepErr := step.run(stepCtx)
		telemetry.EndSpan(stepSpan, stepErr)
		if stepErr != nil {
			return nil, stepErr
		}
	}

	files, err := listOutput(s.out)
	if err != nil {
		return nil, errors.New("E142").Wrap(err)
	}

	return &Result{
		Duration: time.Since(start),
		Output:   s.out,
		Hash:     s.hash,
		CSSHash:  s.cssHash,
		Files:    files,
		Manifest: s.manifest,
	}, nil
}

// Clean removes the build output directory. An output that would take the
// project or its sources with it is refused.
func (b *Builder) Clean() error {
	if err := b.config.ValidateOutput(); err != nil {
		return err
	}
	if err := os.RemoveAll(b.config.OutputPath()); err != nil {
		return errors.New("E142").Wrap(err)
	}
	return nil
}

func (b *Builder) progress(step string) {
	if b.options.OnProgress != nil {
		b.options.OnProgress(step)
	}
}

// buildState carries one build's intermediate results between steps.
type buildState struct {
	*Builder
	out      string
	tr       *transformer
	graph    *graph
	manifest *assets.Manifest

	// files maps emitted asset names to their source files.
	files map[string]string

	scriptNames     []string
	stylesheetNames []string
	icons           []Icon
	hash            string
	cssHash         string
}

func (s *buildState) clean(context.Context) error {
	if err := s.config.ValidateOutput(); err != nil {
		return err
	}
	if err := os.RemoveAll(s.out); err != nil {
		return errors.New("E142").Wrap(err)
	}
	if err := os.MkdirAll(s.out, 0755); err != nil {
		return errors.New("E142").Wrap(err)
	}
	return nil
}

// resolve loads the module graph from the entries and collects the
// font and image files of the source tree.
func (s *buildState) resolve(context.Context) error {
	s.graph = newGraph(s.config.SrcPath(), s.config.ThirdPartyPath(), s.rules)

	for _, entry := range s.config.EntryPaths() {
		if !fileExists(entry) {
			return errors.New("E150").
				WithDetail("Entry " + entry + " does not exist").
				WithSuggestion("Check paths.entries in ffyyc.json")
		}
		if _, err := s.graph.add(entry); err != nil {
			return err
		}
	}

	skip := map[string]bool{
		s.config.TemplatePath(): true,
		s.config.FaviconPath():  true,
	}
	thirdParty := s.config.ThirdPartyPath()
	srcDir := s.config.SrcPath()

	// WalkDir visits in lexical order, which keeps the build deterministic.
	return filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == thirdParty || (p != srcDir && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if skip[p] {
			return nil
		}
		rel, _ := filepath.Rel(srcDir, p)
		rule, ok := s.rules.Match(filepath.ToSlash(rel))
		if !ok || rule.Kind != KindFile {
			return nil
		}
		return s.addFile(rule.OutputName(filepath.ToSlash(rel)), p)
	})
}

// addFile records an asset to copy. Two sources claiming one name is an
// error rather than a silent overwrite.
func (s *buildState) addFile(name, source string) error {
	if prev, ok := s.files[name]; ok && prev != source {
		return errors.New("E150").
			WithDetail(source + " and " + prev + " are both emitted as " + name).
			WithSuggestion("Rename one of the files")
	}
	s.files[name] = source
	return nil
}

func (s *buildState) scripts(ctx context.Context) error {
	var vendor, main bundler

	for _, m := range s.graph.scripts(BucketVendor) {
		body, sourceMap, err := s.tr.script(ctx, m)
		if err != nil {
			return err
		}
		vendor.add(m.ID, m.Deps, body, sourceMap)
	}
	for _, m := range s.graph.scripts(BucketMain) {
		body, sourceMap, err := s.tr.script(ctx, m)
		if err != nil {
			return err
		}
		main.add(m.ID, m.Deps, body, sourceMap)
	}

	// Stylesheets and files imported from scripts become modules too: an
	// extracted stylesheet exports nothing, a file exports its URL.
	for _, m := range s.graph.byKind(KindStylesheet) {
		main.add(m.ID, nil, nil, nil)
	}
	for _, m := range s.graph.byKind(KindFile) {
		name := m.Rule.OutputName(m.ID)
		if err := s.addFile(name, m.File); err != nil {
			return err
		}
		main.add(m.ID, nil, []byte("module.exports = "+jsString(s.config.Build.PublicPath+name)+";"), nil)
	}

	for _, entry := range s.config.EntryPaths() {
		id, _ := s.graph.id(entry)
		if m := s.graph.modules[id]; m != nil && m.Rule.Kind == KindScript {
			main.require(id)
		}
	}

	var common bundler
	var runtimeMap json.RawMessage
	if s.config.Build.SourceMaps {
		runtimeMap = identityMap(runtimeSource, []byte(runtime))
	}
	common.raw([]byte(runtime), runtimeMap)

	bundles := []bundle{
		{Bucket: BucketCommon, Content: common.bytes(), Sections: common.sections},
		{Bucket: BucketVendor, Content: vendor.bytes(), Sections: vendor.sections},
		{Bucket: BucketMain, Content: main.bytes(), Sections: main.sections},
	}
	s.hash = compilationHash(bundles, s.config.Build.HashLength)

	for _, bd := range bundles {
		name := string(bd.Bucket) + "." + s.hash + ".js"
		key := string(bd.Bucket) + ".js"
		if err := s.writeMapped(key, name, bd.Content, bd.Sections); err != nil {
			return err
		}
		s.manifest.Set(key, name)
		s.scriptNames = append(s.scriptNames, name)
	}
	return nil
}

// runtimeSource names the common bundle's runtime in source maps.
const runtimeSource = "ffyyc/runtime.js"

// writeMapped writes a bundle and, with source maps on, its index map
// next to it under the bundle's name plus .map. The bundle then ends with
// a comment linking the map.
func (s *buildState) writeMapped(key, name string, content []byte, sections []section) error {
	if !s.config.Build.SourceMaps {
		return s.write(name, content)
	}
	linked := append(bytes.Clone(content), mapComment(name, path.Ext(name) == ".css")...)
	if err := s.write(name, linked); err != nil {
		return err
	}
	if err := s.write(name+".map", bundleMap(name, sections)); err != nil {
		return err
	}
	s.manifest.Set(key+".map", name+".map")
	return nil
}

func (s *buildState) stylesheets(ctx context.Context) error {
	var ordered []*module
	seen := make(map[string]bool)
	for _, entry := range s.config.EntryPaths() {
		id, _ := s.graph.id(entry)
		if m := s.graph.modules[id]; m != nil && m.Rule.Kind == KindStylesheet && !seen[id] {
			seen[id] = true
			ordered = append(ordered, m)
		}
	}
	for _, m := range s.graph.byKind(KindStylesheet) {
		if !seen[m.ID] {
			seen[m.ID] = true
			ordered = append(ordered, m)
		}
	}
	if len(ordered) == 0 {
		return nil
	}

	var css bundler
	for i, m := range ordered {
		out, sourceMap, err := s.tr.stylesheet(ctx, m.File, m.Rule)
		if err != nil {
			return err
		}
		if i > 0 {
			css.write("\n")
		}
		// Only trailing space is trimmed so map lines stay aligned.
		css.raw(bytes.TrimRight(out, " \t\r\n"), sourceMap)
	}

	// url() references found while processing become copied assets.
	sources := make([]string, 0, len(s.tr.assets))
	for src := range s.tr.assets {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		if err := s.addFile(s.tr.assets[src], src); err != nil {
			return err
		}
	}

	s.cssHash = contentHash(css.bytes(), s.config.Build.HashLength)
	name := "main." + s.cssHash + ".css"
	if err := s.writeMapped("main.css", name, css.bytes(), css.sections); err != nil {
		return err
	}
	s.manifest.Set("main.css", name)
	s.stylesheetNames = append(s.stylesheetNames, name)
	return nil
}

func (s *buildState) copyAssets(context.Context) error {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dst := filepath.Join(s.out, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return errors.New("E142").Wrap(err)
		}
		if err := copyFile(s.files[name], dst); err != nil {
			return errors.New("E142").WithDetail("Cannot copy " + s.files[name]).Wrap(err)
		}
		s.manifest.Set(name, name)
	}
	return nil
}

func (s *buildState) favicons(context.Context) error {
	source := s.config.FaviconPath()
	if !fileExists(source) {
		s.progress("No favicon source at " + source + ", skipping")
		return nil
	}
	icons, err := GenerateFavicons(source)
	if err != nil {
		return err
	}
	for _, icon := range icons {
		if err := s.write(icon.Name, icon.Data); err != nil {
			return err
		}
		s.manifest.Set(icon.Name, icon.Name)
	}
	s.icons = icons
	return nil
}

func (s *buildState) index(context.Context) error {
	page, err := renderIndex(s.config.TemplatePath(), s.config.Build.PublicPath, pageAssets{
		Stylesheets: s.stylesheetNames,
		Icons:       s.icons,
		Scripts:     s.scriptNames,
	})
	if err != nil {
		return err
	}
	return s.write("index.html", page)
}

func (s *buildState) writeManifest(context.Context) error {
	if err := s.manifest.WriteFile(filepath.Join(s.out, assets.FileName)); err != nil {
		return errors.New("E142").Wrap(err)
	}
	return nil
}

// write stores data at the slash-separated name inside the output.
func (s *buildState) write(name string, data []byte) error {
	dst := filepath.Join(s.out, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.New("E142").Wrap(err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return errors.New("E142").Wrap(err)
	}
	return nil
}

// listOutput returns every file below dir with its size.
func listOutput(dir string) ([]OutputFile, error) {
	var files []OutputFile
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		files = append(files, OutputFile{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	return files, err
}

func readSource(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E150").WithDetail("Cannot read " + path).Wrap(err)
	}
	return data, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// copyFile copies a file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
