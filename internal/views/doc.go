// Package views renders the application shell and its pages as templ
// components.
//
// Pages are rendered inside Layout through templ's children mechanism:
//
//	page := views.Page{Title: "Sign up", Assets: resolver}
//	err := views.Layout(page).Render(templ.WithChildren(ctx, views.SignUp()), w)
package views
