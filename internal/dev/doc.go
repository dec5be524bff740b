// Package dev provides the development server.
//
// The server builds the project on start, serves the build output with a
// single-page-app fallback, forwards configured prefixes to upstream
// services and rebuilds when sources change.
//
// # Components
//
//   - Watcher: polls the source tree for changes
//   - ReloadServer: notifies browsers over a WebSocket
//   - Server: ties the builder, watcher and reload server together
//
// # Live Reload Protocol
//
// Browsers connect to /_ffyyc/reload. Messages are JSON:
//
//	{"type": "reload"}                    // full page reload
//	{"type": "css", "file": "main.css"}   // stylesheet-only reload
//	{"type": "error", "error": "..."}     // show the build error overlay
//	{"type": "clear"}                     // hide the overlay
//
// The client script is injected into served HTML only when dev.hotReload
// is set.
package dev
