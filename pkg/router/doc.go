// Package router maps navigation paths to views with an ordered route table.
//
// A Table is plain data: an ordered list of routes evaluated first-match,
// independent of how views are rendered. A route's view only has to be
// Renderable, which templ components satisfy.
//
// # Patterns
//
//	""            matches every path (fallback route)
//	"/about"      matches /about and anything below it (/about/team)
//	"/about" +Exact matches /about only
//	"/users/:id"  captures one segment as params["id"]
//	"/files/*rest" captures the remainder as params["rest"]
//
// Static segments compare case-insensitively unless the route is Sensitive.
// Paths are canonicalized first, so "/about/" and "//about" match "/about".
//
// # Usage
//
//	table, err := router.NewTable(
//	    router.Route{Name: "home", Pattern: "/", Exact: true, View: home},
//	    router.Route{Name: "about", Pattern: "/about", View: about},
//	    router.Route{Name: "not-found", View: notFound, Status: 404},
//	)
//	m, ok := table.Match("/about/team")
//
// # Landing selection
//
// SelectLandingView turns the intro cookie state into the view variant shown
// on "/": visitors who skipped the intro land on search, everyone else on
// sign-up.
package router
