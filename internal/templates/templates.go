package templates

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/ffyyc/web/internal/config"
	"github.com/ffyyc/web/internal/errors"
)

// Config contains template configuration.
type Config struct {
	// ProjectName is the name of the project.
	ProjectName string

	// Description is a short project description.
	Description string
}

// Template represents a project template.
type Template struct {
	// Name is the template name.
	Name string

	// Description describes the template.
	Description string

	// Files maps slash-separated relative paths to file contents.
	Files map[string]string
}

// DefaultName is the template used when none is named.
const DefaultName = "signup"

var templates = map[string]*Template{
	"signup":  signupTemplate(),
	"minimal": minimalTemplate(),
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	tmpl, ok := templates[name]
	if !ok {
		return nil, errors.New("E180").
			WithDetail("Template '" + name + "' not found").
			WithSuggestion("Available templates: minimal, signup")
	}
	return tmpl, nil
}

// List returns all template names, sorted.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Paths returns the template's files in path order.
func (t *Template) Paths() []string {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Create writes the template into dir and returns the written paths. An
// existing project is left alone unless overwrite is set.
func (t *Template) Create(dir string, cfg Config, overwrite bool) ([]string, error) {
	if cfg.ProjectName == "" {
		cfg.ProjectName = filepath.Base(dir)
	}
	if !overwrite && config.Exists(dir) {
		return nil, errors.New("E181").
			WithDetail(dir + " already has a project file").
			WithSuggestion("Use --force to overwrite it")
	}

	// Render everything before writing so a bad template leaves no
	// half-written project.
	rendered := make(map[string][]byte, len(t.Files))
	for _, rel := range t.Paths() {
		tmpl, err := template.New(rel).Parse(t.Files[rel])
		if err != nil {
			return nil, errors.Newf(errors.CategoryCLI, "invalid template %s: %v", rel, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, cfg); err != nil {
			return nil, errors.Newf(errors.CategoryCLI, "template execute error %s: %v", rel, err)
		}
		rendered[rel] = buf.Bytes()
	}

	written := make([]string, 0, len(rendered))
	for _, rel := range t.Paths() {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return written, err
		}
		if err := os.WriteFile(full, rendered[rel], 0o644); err != nil {
			return written, err
		}
		written = append(written, rel)
	}
	return written, nil
}

const projectFile = `{
  "paths": {
    "src": "src",
    "template": "src/index.html",
    "favicon": "src/ffyyc-favicon.png",
    "thirdParty": "node_modules",
    "entries": ["src/js/main.js", "src/scss/main.scss"],
    "services": "config.json"
  },
  "dev": {
    "port": 3000,
    "hotReload": true,
    "historyFallback": true
  },
  "build": {
    "output": "dist",
    "hashLength": 20
  }
}
`

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.ProjectName}}</title>
</head>
<body>
  <div id="app"></div>
</body>
</html>
`

// minimalTemplate returns the minimal template.
func minimalTemplate() *Template {
	return &Template{
		Name:        "minimal",
		Description: "A project file, an HTML template, one script and one stylesheet",
		Files: map[string]string{
			"ffyyc.json":     projectFile,
			"config.json":    `{"parse": {}, "google": {}}` + "\n",
			"src/index.html": indexHTML,
			"src/js/main.js": `var app = document.getElementById("app");
app.textContent = "{{.ProjectName}} (" + ENV.NODE_ENV + ")";
`,
			"src/scss/main.scss": `$accent: #2563eb;

body {
  font-family: system-ui, sans-serif;
  color: $accent;
}
`,
		},
	}
}

// signupTemplate returns the sign-up application template.
func signupTemplate() *Template {
	return &Template{
		Name:        "signup",
		Description: "Sign-up application with intro and search scenes",
		Files: map[string]string{
			"ffyyc.json": projectFile,
			"config.json": `{
  "parse": {
    "app_id": "",
    "js_key": "",
    "url": "http://localhost:1337/parse"
  },
  "google": {
    "map": "",
    "zoom": 12,
    "ga": ""
  }
}
`,
			".env.example": `# Overrides for config.json
PARSE_APP_ID=
PARSE_JS_KEY=
PARSE_URL=
GOOGLE_MAP=
GOOGLE_ZOOM=
GOOGLE_GA=
`,
			"src/index.html": indexHTML,
			"src/js/main.js": `var router = require("./router");
var views = require("./views");

router.mount(document.getElementById("app"), views);
`,
			"src/js/router.js": `// Reads the skipIntro cookie once per navigation.
function skippedIntro() {
  var match = document.cookie.match(/(?:^|;\s*)skipIntro=([^;]*)/);
  if (!match) return false;
  var value = decodeURIComponent(match[1]).trim();
  return ["", "false", "0", "null", "undefined"].indexOf(value) === -1;
}

exports.mount = function (root, views) {
  var landing = skippedIntro() ? views.search : views.signup;
  root.innerHTML = "";
  root.appendChild(landing());
};
`,
			"src/js/views.js": `exports.signup = function () {
  var section = document.createElement("section");
  section.className = "scene scene-signup";
  section.innerHTML = "<h1>Join {{.ProjectName}}</h1>" +
    "<form><input name=\"email\" type=\"email\" placeholder=\"Email\"><button>Sign up</button></form>";
  return section;
};

exports.search = function () {
  var section = document.createElement("section");
  section.className = "scene scene-search";
  section.setAttribute("data-zoom", String(GOOGLE.ZOOM));
  section.innerHTML = "<input type=\"search\" placeholder=\"City or address\"><div id=\"map\"></div>";
  return section;
};
`,
			"src/scss/_variables.scss": `$text: #1f2933;
$accent: #2563eb;
$radius: 6px;
`,
			"src/scss/main.scss": `@import "variables";

body {
  margin: 0;
  font-family: system-ui, sans-serif;
  color: $text;
}

.scene {
  max-width: 40rem;
  margin: 0 auto;
  padding: 2rem;
}

button {
  background: $accent;
  border-radius: $radius;
  color: #fff;
}
`,
		},
	}
}
