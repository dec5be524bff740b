// Package config loads the configuration of an ffyyc project.
//
// Three sources are involved:
//
//   - the project file (ffyyc.json or ffyyc.yaml) at the project root, which
//     describes paths, the dev server, build output and publishing;
//   - the service configuration (config.json by default) holding the
//     parse/google settings that are injected into the bundle at build time,
//     with environment overrides so keys never need to be committed;
//   - the process environment for the production app server.
//
// # Project File
//
//	{
//	  "name": "ffyyc",
//	  "paths": {
//	    "src": "src",
//	    "template": "src/index.html",
//	    "favicon": "src/ffyyc-favicon.png",
//	    "entries": ["src/js/main.js", "src/scss/main.scss"]
//	  },
//	  "dev": {"port": 8080, "historyFallback": true},
//	  "build": {"output": "dist", "hashLength": 20}
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    return err
//	}
//	services, err := config.LoadServices(cfg.ServicesPath())
package config
