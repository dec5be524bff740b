package build

import (
	"bytes"
	"html"
	"os"
	"strings"

	"github.com/ffyyc/web/internal/errors"
)

// pageAssets are the tags injected into the index.html template.
type pageAssets struct {
	Stylesheets []string
	Icons       []Icon
	Scripts     []string
}

// head renders the tags injected before </head>.
func (a pageAssets) head(publicPath string) string {
	var b strings.Builder
	for _, href := range a.Stylesheets {
		b.WriteString(`<link href="` + html.EscapeString(publicPath+href) + `" rel="stylesheet">`)
	}
	for _, icon := range a.Icons {
		b.WriteString(`<link rel="` + icon.Rel + `"`)
		if icon.Type != "" {
			b.WriteString(` type="` + icon.Type + `"`)
		}
		if icon.Sizes != "" {
			b.WriteString(` sizes="` + icon.Sizes + `"`)
		}
		b.WriteString(` href="` + html.EscapeString(publicPath+icon.Name) + `">`)
	}
	return b.String()
}

// body renders the tags injected before </body>.
func (a pageAssets) body(publicPath string) string {
	var b strings.Builder
	for _, src := range a.Scripts {
		b.WriteString(`<script type="text/javascript" src="` + html.EscapeString(publicPath+src) + `"></script>`)
	}
	return b.String()
}

// renderIndex reads the template and injects the asset tags.
func renderIndex(templatePath, publicPath string, assets pageAssets) ([]byte, error) {
	tmpl, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, errors.New("E154").
			WithDetail("Cannot read " + templatePath).
			WithSuggestion("Set paths.template in ffyyc.json").
			Wrap(err)
	}
	return InjectAssets(tmpl, assets.head(publicPath), assets.body(publicPath)), nil
}

// InjectAssets inserts head before the closing head tag and body before the
// closing body tag. A missing head tag puts head content at the start; a
// missing body tag puts body content at the end.
func InjectAssets(doc []byte, head, body string) []byte {
	out := doc
	if head != "" {
		out = insertBefore(out, "</head>", head, false)
	}
	if body != "" {
		out = insertBefore(out, "</body>", body, true)
	}
	return out
}

func insertBefore(doc []byte, tag, content string, atEnd bool) []byte {
	idx := bytes.LastIndex(bytes.ToLower(doc), []byte(tag))
	if idx < 0 {
		if atEnd {
			idx = len(doc)
		} else {
			idx = 0
		}
	}
	out := make([]byte, 0, len(doc)+len(content))
	out = append(out, doc[:idx]...)
	out = append(out, content...)
	out = append(out, doc[idx:]...)
	return out
}
