// Package app is the production server: it renders routed views inside the
// layout shell and serves the build output.
//
// Routes decides which view a navigation shows. In the default mode every
// path renders the sign-up view. ModeIntroRoutes enables the full table,
// where "/" picks between sign-up and search from the skipIntro cookie.
package app
