// Package errors provides coded, actionable errors for the ffyyc toolchain.
//
// Every failure the CLI can surface to a developer carries a stable code
// (e.g. "E150") that maps to a category, a short message and a longer
// explanation. Call sites add the specifics:
//
//	err := errors.New("E152").
//	    WithLocation("src/scss/main.scss", 3, 1).
//	    WithDetail(`cannot resolve @import "theme"`).
//	    WithSuggestion("Create src/scss/_theme.scss or fix the import path")
//
//	fmt.Print(err.Format())
//
// # Categories
//
//   - config: project or service configuration problems
//   - build: transform, bundling and output failures
//   - route: route table construction
//   - publish: uploading a finished build
//   - cli: command usage
package errors
