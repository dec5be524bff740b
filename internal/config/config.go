package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ffyyc/web/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON project file.
	ConfigFileName = "ffyyc.json"

	// YAMLConfigFileName is the name of the YAML project file.
	YAMLConfigFileName = "ffyyc.yaml"

	// DefaultPort is the default development server port.
	DefaultPort = 8080

	// DefaultHost is the default development server host.
	DefaultHost = "localhost"

	// DefaultOutput is the default build output directory.
	DefaultOutput = "dist"

	// DefaultHashLength is the number of hex digits kept from content hashes.
	DefaultHashLength = 20

	// DefaultServicesFile is the default service configuration file.
	DefaultServicesFile = "config.json"
)

// Config represents the project file.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Paths locates the sources of the build.
	Paths PathsConfig `json:"paths,omitempty" yaml:"paths,omitempty"`

	// Dev contains development server configuration.
	Dev DevConfig `json:"dev,omitempty" yaml:"dev,omitempty"`

	// Build contains production build configuration.
	Build BuildConfig `json:"build,omitempty" yaml:"build,omitempty"`

	// Publish contains upload configuration.
	Publish PublishConfig `json:"publish,omitempty" yaml:"publish,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// PathsConfig contains source locations, relative to the project root.
type PathsConfig struct {
	// Src is the source tree handed to the rule set.
	Src string `json:"src,omitempty" yaml:"src,omitempty"`

	// Template is the index.html template.
	Template string `json:"template,omitempty" yaml:"template,omitempty"`

	// Favicon is the icon source the favicon set is generated from.
	Favicon string `json:"favicon,omitempty" yaml:"favicon,omitempty"`

	// ThirdParty is the directory, inside Src, holding third-party packages.
	// Scripts under it go to the vendor bundle.
	ThirdParty string `json:"thirdParty,omitempty" yaml:"thirdParty,omitempty"`

	// Entries are the entry points, scripts and stylesheets, in order.
	Entries []string `json:"entries,omitempty" yaml:"entries,omitempty"`

	// Services is the service configuration file.
	Services string `json:"services,omitempty" yaml:"services,omitempty"`
}

// DevConfig contains development server settings.
type DevConfig struct {
	// Port is the port to run the dev server on.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// HotReload enables the live reload socket and client script.
	HotReload bool `json:"hotReload" yaml:"hotReload"`

	// HistoryFallback serves index.html for every unmatched path.
	HistoryFallback bool `json:"historyFallback" yaml:"historyFallback"`

	// Proxy maps path prefixes to upstream URLs.
	Proxy map[string]string `json:"proxy,omitempty" yaml:"proxy,omitempty"`

	// Watch contains extra paths to watch besides Src.
	Watch []string `json:"watch,omitempty" yaml:"watch,omitempty"`

	// Ignore contains patterns to ignore during watch.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// BuildConfig contains production build settings.
type BuildConfig struct {
	// Output is the output directory for builds.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// PublicPath prefixes asset URLs injected into index.html.
	PublicPath string `json:"publicPath,omitempty" yaml:"publicPath,omitempty"`

	// HashLength is the number of hex digits of [hash] and [contenthash].
	HashLength int `json:"hashLength,omitempty" yaml:"hashLength,omitempty"`

	// Env is the value injected as ENV.NODE_ENV. Empty means the
	// NODE_ENV environment variable decides.
	Env string `json:"env,omitempty" yaml:"env,omitempty"`

	// Transpiler is the esbuild executable. Empty means look it up in PATH.
	Transpiler string `json:"transpiler,omitempty" yaml:"transpiler,omitempty"`

	// Sass is the sass executable. Empty means look it up in PATH, and fall
	// back to the built-in preprocessor.
	Sass string `json:"sass,omitempty" yaml:"sass,omitempty"`

	// NoExternalTools disables esbuild and sass lookups entirely.
	NoExternalTools bool `json:"noExternalTools,omitempty" yaml:"noExternalTools,omitempty"`

	// SourceMaps emits a .map file next to every script bundle and the
	// stylesheet.
	SourceMaps bool `json:"sourceMaps" yaml:"sourceMaps"`
}

// PublishConfig contains settings for uploading a build.
type PublishConfig struct {
	// Bucket is the S3 bucket receiving the build.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Prefix is prepended to every object key.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Region is the AWS region. Empty uses the SDK default chain.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Profile is the shared AWS config profile.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Concurrency is the number of parallel uploads.
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`

	// SlackWebhook receives a message after a successful upload.
	SlackWebhook string `json:"slackWebhook,omitempty" yaml:"slackWebhook,omitempty"`

	// SlackChannel receives the message through the Web API instead of a
	// webhook. The token is read from SLACK_TOKEN.
	SlackChannel string `json:"slackChannel,omitempty" yaml:"slackChannel,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Paths: PathsConfig{
			Src:        "src",
			Template:   "src/index.html",
			Favicon:    "src/ffyyc-favicon.png",
			ThirdParty: "node_modules",
			Entries:    []string{"src/js/main.js", "src/scss/main.scss"},
			Services:   DefaultServicesFile,
		},
		Dev: DevConfig{
			Port:            DefaultPort,
			Host:            DefaultHost,
			HotReload:       true,
			HistoryFallback: true,
		},
		Build: BuildConfig{
			Output:     DefaultOutput,
			PublicPath: "/",
			HashLength: DefaultHashLength,
			SourceMaps: true,
		},
	}
}

// Load reads configuration from the specified directory, preferring
// ffyyc.json over ffyyc.yaml.
func Load(dir string) (*Config, error) {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E141").
		WithDetail("No " + ConfigFileName + " or " + YAMLConfigFileName + " found in " + dir).
		WithSuggestion("Create " + ConfigFileName + " at the project root")
}

// LoadFile reads configuration from the specified file path. Files ending
// in .yaml or .yml are decoded as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E141").
				WithDetail("No project file at " + path)
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that " + filepath.Base(path) + " is well formed")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SetPath sets the file the config is considered loaded from. Relative
// paths in the config resolve against its directory.
func (c *Config) SetPath(path string) {
	c.configPath = path
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	defaults := New()

	if c.Paths.Src == "" {
		c.Paths.Src = defaults.Paths.Src
	}
	if c.Paths.Template == "" {
		c.Paths.Template = defaults.Paths.Template
	}
	if c.Paths.Favicon == "" {
		c.Paths.Favicon = defaults.Paths.Favicon
	}
	if c.Paths.ThirdParty == "" {
		c.Paths.ThirdParty = defaults.Paths.ThirdParty
	}
	if c.Paths.Entries == nil {
		c.Paths.Entries = defaults.Paths.Entries
	}
	if c.Paths.Services == "" {
		c.Paths.Services = defaults.Paths.Services
	}

	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}

	if c.Build.Output == "" {
		c.Build.Output = DefaultOutput
	}
	if c.Build.HashLength == 0 {
		c.Build.HashLength = DefaultHashLength
	}
	if c.Build.PublicPath == "" {
		c.Build.PublicPath = defaults.Build.PublicPath
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.New("E122").
			WithDetail("dev.port must be between 0 and 65535")
	}
	if c.Build.HashLength < 4 || c.Build.HashLength > 64 {
		return errors.New("E122").
			WithDetail("build.hashLength must be between 4 and 64")
	}
	if err := c.ValidateOutput(); err != nil {
		return err
	}
	for prefix, target := range c.Dev.Proxy {
		if !strings.HasPrefix(prefix, "/") {
			return errors.New("E122").
				WithDetail("dev.proxy prefix " + strconv.Quote(prefix) + " must start with /")
		}
		if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
			return errors.New("E122").
				WithDetail("dev.proxy target " + strconv.Quote(target) + " must be an http(s) URL")
		}
	}
	return nil
}

// ValidateOutput rejects an output directory that is, or contains, the
// project root or the source tree. Builds delete the output directory.
func (c *Config) ValidateOutput() error {
	out := filepath.Clean(c.OutputPath())
	protected := []struct {
		name string
		path string
	}{
		{"the project root", c.Dir()},
		{"paths.src", c.SrcPath()},
	}
	for _, p := range protected {
		if p.path == "" {
			continue
		}
		if isWithin(filepath.Clean(p.path), out) {
			return errors.New("E122").
				WithDetail("build.output " + strconv.Quote(c.Build.Output) + " contains " + p.name).
				WithSuggestion("Use a dedicated directory such as " + DefaultOutput)
		}
	}
	return nil
}

// isWithin reports whether path is dir or lies below it.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// DevAddress returns the address string for the dev server.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}

// DevURL returns the full URL for the dev server.
func (c *Config) DevURL() string {
	return "http://" + c.DevAddress()
}

// resolve returns path made absolute against the config directory.
func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// OutputPath returns the absolute path to the build output directory.
func (c *Config) OutputPath() string {
	return c.resolve(c.Build.Output)
}

// SrcPath returns the absolute path to the source tree.
func (c *Config) SrcPath() string {
	return c.resolve(c.Paths.Src)
}

// TemplatePath returns the absolute path to the index.html template.
func (c *Config) TemplatePath() string {
	return c.resolve(c.Paths.Template)
}

// FaviconPath returns the absolute path to the icon source.
func (c *Config) FaviconPath() string {
	return c.resolve(c.Paths.Favicon)
}

// ThirdPartyPath returns the absolute path to the third-party package
// directory. A relative ThirdParty resolves inside Src.
func (c *Config) ThirdPartyPath() string {
	if filepath.IsAbs(c.Paths.ThirdParty) {
		return c.Paths.ThirdParty
	}
	return filepath.Join(c.SrcPath(), c.Paths.ThirdParty)
}

// EntryPaths returns the absolute entry paths in declaration order.
func (c *Config) EntryPaths() []string {
	paths := make([]string, 0, len(c.Paths.Entries))
	for _, entry := range c.Paths.Entries {
		paths = append(paths, c.resolve(entry))
	}
	return paths
}

// ServicesPath returns the absolute path to the service configuration.
func (c *Config) ServicesPath() string {
	return c.resolve(c.Paths.Services)
}

// Exists checks if a project file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E141").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory").
				WithSuggestion("Create " + ConfigFileName + " at the project root")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
