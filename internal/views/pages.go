package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// SignUp is the sign-up form. Submission is handled client-side.
func SignUp() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<section class="scene scene-signup">`)
		hw.raw(`<h1>`).text("Join " + AppName).raw(`</h1>`)
		hw.raw(`<p class="lead">`).text("Sign up for early access.").raw(`</p>`)
		hw.raw(`<form class="signup-form" method="post" novalidate>`)
		hw.raw(`<label for="signup-name">Name</label>`)
		hw.raw(`<input id="signup-name" name="name" type="text" autocomplete="name" required>`)
		hw.raw(`<label for="signup-email">Email</label>`)
		hw.raw(`<input id="signup-email" name="email" type="email" autocomplete="email" required>`)
		hw.raw(`<button type="submit">Sign up</button>`)
		hw.raw(`</form></section>`)
		return hw.err
	})
}

// Intro walks first-time visitors through the service.
func Intro() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<section class="scene scene-intro">`)
		hw.raw(`<h1>`).text("Welcome").raw(`</h1>`)
		hw.raw(`<ol class="intro-steps">`)
		for _, step := range []string{"Search the map around you.", "Save the places you like.", "Hear from us when we launch."} {
			hw.raw(`<li>`).text(step).raw(`</li>`)
		}
		hw.raw(`</ol><a class="button" href="/search">`).text("Skip intro").raw(`</a></section>`)
		return hw.err
	})
}

// Search is the map search page; the map itself is mounted client-side.
func Search() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<section class="scene scene-search">`)
		hw.raw(`<form class="search-form" role="search"><label for="search-q">Location</label>`)
		hw.raw(`<input id="search-q" name="q" type="search" placeholder="City or address">`)
		hw.raw(`<button type="submit">Search</button></form>`)
		hw.raw(`<div id="map" class="search-map"></div></section>`)
		return hw.err
	})
}

// About describes the project.
func About() templ.Component {
	return textScene("about", "About", []string{
		AppName + " is a map search for the places around you.",
		"The service is in early access.",
	})
}

// Privacy is the privacy notice.
func Privacy() templ.Component {
	return textScene("privacy", "Privacy", []string{
		"We store the email address you give us to tell you about the launch, and nothing else.",
		"A single cookie remembers whether you have seen the intro.",
	})
}

// NotFound is shown for paths no route claims.
func NotFound() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<section class="scene scene-notfound"><h1>`).text("Page not found").raw(`</h1>`)
		hw.raw(`<p><a href="/">`).text("Back to the start").raw(`</a></p></section>`)
		return hw.err
	})
}

func textScene(name, heading string, paragraphs []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<section class="scene scene-` + name + `"><h1>`).text(heading).raw(`</h1>`)
		for _, p := range paragraphs {
			hw.raw(`<p>`).text(p).raw(`</p>`)
		}
		hw.raw(`</section>`)
		return hw.err
	})
}
