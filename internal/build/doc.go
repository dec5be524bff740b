// Package build turns the front-end source tree into a deployable output
// directory.
//
// Files are claimed by an ordered rule set (first match wins):
//
//	scripts         \.jsx?$ outside the third-party dir   define <- transpile
//	vendor-scripts  \.jsx?$ inside the third-party dir    define
//	css             \.css$                                 css
//	scss            \.(sass|scss)$                         css <- sass
//	fonts           \.(ttf|otf|eot|woff2?)                 fonts/[name].[ext]
//	images          \.(jpg|jpeg|gif|png|svg)$              img/[name].[ext]
//
// Scripts reachable from the entries are wrapped as modules into three
// bundles sharing one compilation hash: common (the module runtime),
// vendor and main. Stylesheets are extracted into a single
// main.[contenthash].css. Compile-time constants (ENV, PARSE, GOOGLE) are
// substituted into every script.
//
// # Usage
//
//	builder := build.New(cfg, services, build.Options{})
//	result, err := builder.Build(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("Built in %s\n", result.Duration)
//
// # Output Structure
//
//	dist/
//	├── common.<hash>.js
//	├── vendor.<hash>.js
//	├── main.<hash>.js
//	├── main.<contenthash>.css
//	├── fonts/
//	├── img/
//	├── icons/            # favicon set
//	├── index.html        # template with tags injected
//	└── manifest.json
//
// External tools are optional. esbuild handles JSX; without it .js passes
// through unchanged and .jsx fails. The sass binary compiles stylesheets;
// without it a built-in preprocessor handles imports, variables and
// comments.
//
// Identical inputs produce byte-identical output.
package build
