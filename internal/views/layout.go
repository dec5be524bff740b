package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/ffyyc/web/pkg/assets"
)

// AppName is shown in titles and the header.
const AppName = "ffyyc"

// Page carries the per-request values the layout needs.
type Page struct {
	// Title is the document title; empty shows the app name alone.
	Title string

	// Assets resolves bundle names to URLs.
	Assets assets.Resolver

	// Favicons adds the generated favicon links.
	Favicons bool
}

// Nav links shown in the header, in order.
var navLinks = []struct{ Href, Label string }{
	{"/search", "Search"},
	{"/about", "About"},
	{"/privacy", "Privacy"},
}

// Layout is the shell every view renders in. The view is taken from the
// context's children.
func Layout(p Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		resolver := p.Assets
		if resolver == nil {
			resolver = assets.NewPassthroughResolver("/")
		}
		title := AppName
		if p.Title != "" {
			title = p.Title + " | " + AppName
		}

		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.raw(`<title>`).text(title).raw(`</title>`)
		hw.raw(`<link href="`).attr(resolver.Asset("main.css")).raw(`" rel="stylesheet">`)
		if p.Favicons {
			hw.raw(`<link rel="icon" type="image/png" sizes="32x32" href="`).attr(resolver.Asset("icons/favicon-32x32.png")).raw(`">`)
			hw.raw(`<link rel="shortcut icon" href="`).attr(resolver.Asset("icons/favicon.ico")).raw(`">`)
		}
		hw.raw(`</head><body><header class="app-header"><a class="brand" href="/">`).text(AppName).raw(`</a><nav>`)
		for _, l := range navLinks {
			hw.raw(`<a href="`).attr(l.Href).raw(`">`).text(l.Label).raw(`</a>`)
		}
		hw.raw(`</nav></header><main id="app">`)
		if hw.err != nil {
			return hw.err
		}

		if err := templ.GetChildren(ctx).Render(ctx, w); err != nil {
			return err
		}

		hw.raw(`</main><footer class="app-footer"><a href="/privacy">Privacy</a></footer>`)
		for _, bundle := range []string{"common.js", "vendor.js", "main.js"} {
			hw.raw(`<script type="text/javascript" src="`).attr(resolver.Asset(bundle)).raw(`"></script>`)
		}
		hw.raw(`</body></html>`)
		return hw.err
	})
}

// htmlWriter writes markup, keeping the first error.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) *htmlWriter {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
	return h
}

func (h *htmlWriter) text(s string) *htmlWriter {
	return h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) attr(s string) *htmlWriter {
	return h.raw(templ.EscapeString(s))
}
