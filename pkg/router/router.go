package router

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ffyyc/web/pkg/routepath"
)

// Renderable writes a view as HTML.
type Renderable interface {
	Render(ctx context.Context, w io.Writer) error
}

// Route maps a path pattern to a view.
type Route struct {
	// Name identifies the route in logs and listings.
	Name string

	// Pattern is the path pattern. Empty matches every path.
	Pattern string

	// Exact restricts the match to the pattern itself, not paths below it.
	Exact bool

	// Sensitive makes static segments compare case-sensitively.
	Sensitive bool

	// View is rendered when the route matches.
	View Renderable

	// Status is the HTTP status to answer with; zero means 200.
	Status int
}

// Match is the result of matching a path against a table.
type Match struct {
	// Route is the matched route.
	Route Route

	// Path is the canonical path that was matched.
	Path string

	// Params are the captured parameters.
	Params map[string]string
}

// Table is an ordered, first-match route table.
type Table struct {
	routes []compiledRoute
}

type segmentKind int

const (
	segmentStatic segmentKind = iota
	segmentParam
	segmentCatchAll
)

type segment struct {
	kind  segmentKind
	value string
}

type compiledRoute struct {
	route    Route
	segments []segment
	any      bool
}

// NewTable validates routes and returns them as a table, preserving order.
// A pattern may appear only once; patterns differing only in parameter
// names count as the same pattern.
func NewTable(routes ...Route) (*Table, error) {
	t := &Table{routes: make([]compiledRoute, 0, len(routes))}
	seen := make(map[string]string, len(routes))

	for _, r := range routes {
		if r.View == nil {
			return nil, fmt.Errorf("route %q: view is nil", r.Name)
		}
		compiled, err := compile(r)
		if err != nil {
			return nil, err
		}
		key := compiled.key()
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("route %q: pattern %q already mapped by route %q", r.Name, r.Pattern, prev)
		}
		seen[key] = r.Name
		t.routes = append(t.routes, compiled)
	}

	return t, nil
}

// MustTable is like NewTable but panics on error. Use it for tables
// declared in code.
func MustTable(routes ...Route) *Table {
	t, err := NewTable(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

// Match returns the first route matching path.
func (t *Table) Match(path string) (Match, bool) {
	canonical, err := routepath.Canonicalize(path)
	if err != nil {
		// Only the fallback route can match a path that does not canonicalize.
		for _, r := range t.routes {
			if r.any {
				return Match{Route: r.route, Path: path, Params: map[string]string{}}, true
			}
		}
		return Match{}, false
	}

	segments := routepath.Segments(canonical)
	for _, r := range t.routes {
		if params, ok := r.match(segments); ok {
			return Match{Route: r.route, Path: canonical, Params: params}, true
		}
	}
	return Match{}, false
}

// Routes returns a copy of the routes in evaluation order.
func (t *Table) Routes() []Route {
	routes := make([]Route, len(t.routes))
	for i, r := range t.routes {
		routes[i] = r.route
	}
	return routes
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(t.routes)
}

func compile(r Route) (compiledRoute, error) {
	c := compiledRoute{route: r}
	if r.Pattern == "" {
		c.any = true
		return c, nil
	}
	if !strings.HasPrefix(r.Pattern, "/") {
		return c, fmt.Errorf("route %q: pattern %q must start with /", r.Name, r.Pattern)
	}

	names := make(map[string]bool)
	parts := routepath.Segments(r.Pattern)
	for i, part := range parts {
		switch {
		case part == "" || part == "." || part == "..":
			return c, fmt.Errorf("route %q: invalid segment %q in %q", r.Name, part, r.Pattern)
		case strings.HasPrefix(part, ":") || strings.HasPrefix(part, "*"):
			name := part[1:]
			if name == "" {
				return c, fmt.Errorf("route %q: unnamed parameter in %q", r.Name, r.Pattern)
			}
			if names[name] {
				return c, fmt.Errorf("route %q: parameter %q repeated in %q", r.Name, name, r.Pattern)
			}
			names[name] = true
			kind := segmentParam
			if part[0] == '*' {
				if i != len(parts)-1 {
					return c, fmt.Errorf("route %q: catch-all must be the last segment of %q", r.Name, r.Pattern)
				}
				kind = segmentCatchAll
			}
			c.segments = append(c.segments, segment{kind: kind, value: name})
		default:
			c.segments = append(c.segments, segment{kind: segmentStatic, value: part})
		}
	}
	return c, nil
}

// key identifies the pattern for duplicate detection.
func (c compiledRoute) key() string {
	if c.any {
		return ""
	}
	var b strings.Builder
	for _, s := range c.segments {
		b.WriteByte('/')
		switch s.kind {
		case segmentParam:
			b.WriteByte(':')
		case segmentCatchAll:
			b.WriteByte('*')
		default:
			if c.route.Sensitive {
				b.WriteString(s.value)
			} else {
				b.WriteString(strings.ToLower(s.value))
			}
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

func (c compiledRoute) match(path []string) (map[string]string, bool) {
	params := map[string]string{}
	if c.any {
		return params, true
	}

	for i, s := range c.segments {
		if s.kind == segmentCatchAll {
			rest := make([]string, 0, len(path)-i)
			for _, p := range path[i:] {
				decoded, err := routepath.DecodeSegment(p, true)
				if err != nil {
					return nil, false
				}
				rest = append(rest, decoded)
			}
			params[s.value] = strings.Join(rest, "/")
			return params, true
		}
		if i >= len(path) {
			return nil, false
		}
		switch s.kind {
		case segmentParam:
			decoded, err := routepath.DecodeSegment(path[i], false)
			if err != nil {
				return nil, false
			}
			params[s.value] = decoded
		default:
			if c.route.Sensitive {
				if path[i] != s.value {
					return nil, false
				}
			} else if !strings.EqualFold(path[i], s.value) {
				return nil, false
			}
		}
	}

	if c.route.Exact && len(path) != len(c.segments) {
		return nil, false
	}
	return params, true
}
