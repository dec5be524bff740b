package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/ffyyc/web/internal/errors"
	"github.com/ffyyc/web/internal/telemetry"
	"github.com/ffyyc/web/internal/views"
	"github.com/ffyyc/web/pkg/assets"
	"github.com/ffyyc/web/pkg/router"
)

// Mode selects the route table.
type Mode int

const (
	// ModeSignUpOnly renders the sign-up view for every path.
	ModeSignUpOnly Mode = iota

	// ModeIntroRoutes serves the landing, search, about and privacy
	// routes with a not-found fallback.
	ModeIntroRoutes
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeIntroRoutes {
		return "intro-routes"
	}
	return "signup-only"
}

// ModeFor returns ModeIntroRoutes when introRoutes is set.
func ModeFor(introRoutes bool) Mode {
	if introRoutes {
		return ModeIntroRoutes
	}
	return ModeSignUpOnly
}

// Navigation is what a render depends on: the path and the skipIntro
// cookie.
type Navigation struct {
	Path string

	// SkipIntro is the raw cookie value; HasSkipIntro is false when the
	// cookie is absent.
	SkipIntro    string
	HasSkipIntro bool
}

// NavigationFromRequest reads the navigation from r.
func NavigationFromRequest(r *http.Request) Navigation {
	nav := Navigation{Path: r.URL.Path}
	if c, err := r.Cookie(router.SkipIntroCookie); err == nil {
		nav.SkipIntro = c.Value
		nav.HasSkipIntro = true
	}
	return nav
}

// IntroState interprets the navigation's cookie.
func (n Navigation) IntroState() router.IntroState {
	return router.IntroStateFromCookie(n.SkipIntro, n.HasSkipIntro)
}

// Options configures Routes.
type Options struct {
	Mode Mode

	// Assets resolves bundle names in the layout. Nil serves unhashed
	// names from "/".
	Assets assets.Resolver

	// Favicons adds favicon links to the layout.
	Favicons bool

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Routes renders the view for a navigation inside the layout.
type Routes struct {
	opts   Options
	logger *slog.Logger

	// tables holds one table per landing variant; in ModeSignUpOnly both
	// variants share the single-route table.
	tables map[router.ViewVariant]*router.Table
}

var titles = map[string]string{
	"signup":    "Sign up",
	"search":    "Search",
	"intro":     "Welcome",
	"about":     "About",
	"privacy":   "Privacy",
	"not-found": "Not found",
}

// NewRoutes builds the route tables for opts.Mode.
func NewRoutes(opts Options) (*Routes, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Routes{opts: opts, logger: logger, tables: make(map[router.ViewVariant]*router.Table, 2)}

	for _, variant := range []router.ViewVariant{router.VariantSignUp, router.VariantSearch} {
		table, err := newTable(opts.Mode, variant)
		if err != nil {
			return nil, errors.New("E170").Wrap(err)
		}
		r.tables[variant] = table
	}
	return r, nil
}

func newTable(mode Mode, landing router.ViewVariant) (*router.Table, error) {
	if mode == ModeSignUpOnly {
		return router.NewTable(
			router.Route{Name: "signup", View: views.SignUp()},
		)
	}

	home := router.Route{Name: "signup", Pattern: "/", Exact: true, View: views.SignUp()}
	if landing == router.VariantSearch {
		home = router.Route{Name: "search", Pattern: "/", Exact: true, View: views.Search()}
	}
	return router.NewTable(
		home,
		router.Route{Name: "search", Pattern: "/search", View: views.Search()},
		router.Route{Name: "intro", Pattern: "/intro", View: views.Intro()},
		router.Route{Name: "about", Pattern: "/about", View: views.About()},
		router.Route{Name: "privacy", Pattern: "/privacy", View: views.Privacy()},
		router.Route{Name: "not-found", View: views.NotFound(), Status: http.StatusNotFound},
	)
}

// Mode returns the active mode.
func (r *Routes) Mode() Mode {
	return r.opts.Mode
}

// Table returns the route table used for nav. The skipIntro cookie is read
// and the landing variant computed on every call; in ModeSignUpOnly the
// result does not change which table is returned.
func (r *Routes) Table(nav Navigation) *router.Table {
	state := nav.IntroState()
	variant := router.SelectLandingView(state)
	r.logger.Debug("landing variant",
		slog.String("path", nav.Path),
		slog.String("intro_state", state.String()),
		slog.String("variant", variant.String()),
		slog.String("mode", r.opts.Mode.String()),
	)
	if r.opts.Mode == ModeSignUpOnly {
		return r.tables[router.VariantSignUp]
	}
	return r.tables[variant]
}

// Render writes the page for nav to w and returns the HTTP status to answer
// with.
func (r *Routes) Render(ctx context.Context, w io.Writer, nav Navigation) (int, error) {
	m, ok := r.Table(nav).Match(nav.Path)
	if !ok {
		// Every table ends in a fallback route.
		return http.StatusInternalServerError, fmt.Errorf("no route for %q", nav.Path)
	}

	page := views.Page{
		Title:    titles[m.Route.Name],
		Assets:   r.opts.Assets,
		Favicons: r.opts.Favicons,
	}
	view, ok := m.Route.View.(templ.Component)
	if !ok {
		view = templ.ComponentFunc(m.Route.View.Render)
	}
	if err := views.Layout(page).Render(templ.WithChildren(ctx, view), w); err != nil {
		r.opts.Metrics.RenderFailed(m.Route.Name)
		return http.StatusInternalServerError, err
	}

	status := m.Route.Status
	if status == 0 {
		status = http.StatusOK
	}
	return status, nil
}

// ServeHTTP renders the page for the request. Render failures are logged
// and answered with 500.
func (r *Routes) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", strings.Join([]string{http.MethodGet, http.MethodHead}, ", "))
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	status, err := r.Render(req.Context(), &buf, NavigationFromRequest(req))
	if err != nil {
		r.logger.Error("render failed",
			slog.String("path", req.URL.Path),
			slog.Any("error", err),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if req.Method != http.MethodHead {
		_, _ = w.Write(buf.Bytes())
	}
}
