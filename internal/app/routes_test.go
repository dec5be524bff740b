package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ffyyc/web/internal/telemetry"
	"github.com/ffyyc/web/pkg/router"
)

func newRoutes(t *testing.T, mode Mode) *Routes {
	t.Helper()
	r, err := NewRoutes(Options{Mode: mode})
	if err != nil {
		t.Fatalf("NewRoutes: %v", err)
	}
	return r
}

func get(t *testing.T, h http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSignUpOnlyRendersSignUpEverywhere(t *testing.T) {
	routes := newRoutes(t, ModeSignUpOnly)

	for _, path := range []string{"/", "/search", "/about", "/privacy", "/does/not/exist", "/a/b/c/"} {
		rec := get(t, routes, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "scene-signup") {
			t.Errorf("%s: sign-up view not rendered", path)
		}
	}
}

func TestSignUpOnlyIgnoresCookie(t *testing.T) {
	routes := newRoutes(t, ModeSignUpOnly)

	want := get(t, routes, "/", nil).Body.String()
	for _, value := range []string{"true", "false", "1", ""} {
		got := get(t, routes, "/", &http.Cookie{Name: router.SkipIntroCookie, Value: value}).Body.String()
		if got != want {
			t.Errorf("cookie %q changed the output", value)
		}
	}
}

func TestIntroRoutes(t *testing.T) {
	routes := newRoutes(t, ModeIntroRoutes)
	skip := &http.Cookie{Name: router.SkipIntroCookie, Value: "true"}
	noSkip := &http.Cookie{Name: router.SkipIntroCookie, Value: `""`}

	tests := []struct {
		name   string
		path   string
		cookie *http.Cookie
		status int
		scene  string
	}{
		{"landing without cookie", "/", nil, http.StatusOK, "scene-signup"},
		{"landing with falsy cookie", "/", noSkip, http.StatusOK, "scene-signup"},
		{"landing after intro", "/", skip, http.StatusOK, "scene-search"},
		{"search", "/search", nil, http.StatusOK, "scene-search"},
		{"intro", "/intro", nil, http.StatusOK, "scene-intro"},
		{"about", "/about", nil, http.StatusOK, "scene-about"},
		{"about trailing slash", "/about/", nil, http.StatusOK, "scene-about"},
		{"privacy", "/privacy", skip, http.StatusOK, "scene-privacy"},
		{"unknown", "/nope", nil, http.StatusNotFound, "scene-notfound"},
		{"nested under exact landing", "/x/y", skip, http.StatusNotFound, "scene-notfound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, routes, tt.path, tt.cookie)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.scene) {
				t.Errorf("body missing %q", tt.scene)
			}
		})
	}
}

func TestRoutesHeaders(t *testing.T) {
	routes := newRoutes(t, ModeIntroRoutes)

	rec := get(t, routes, "/", nil)
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}

	req := httptest.NewRequest(http.MethodHead, "/", nil)
	head := httptest.NewRecorder()
	routes.ServeHTTP(head, req)
	if head.Code != http.StatusOK || head.Body.Len() != 0 {
		t.Errorf("HEAD: status = %d, body = %d bytes", head.Code, head.Body.Len())
	}
}

func TestRoutesRejectsOtherMethods(t *testing.T) {
	routes := newRoutes(t, ModeSignUpOnly)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET, HEAD" {
		t.Errorf("Allow = %q", allow)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRenderFailureIsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	routes, err := NewRoutes(Options{
		Mode:    ModeSignUpOnly,
		Metrics: telemetry.NewMetrics(telemetry.WithRegistry(reg)),
	})
	if err != nil {
		t.Fatal(err)
	}

	status, err := routes.Render(context.Background(), failingWriter{}, Navigation{Path: "/"})
	if err == nil {
		t.Fatal("expected render error")
	}
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	n, err := testutil.GatherAndCount(reg, "ffyyc_render_errors_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("render error series = %d, want 1", n)
	}
}

func TestRenderStatus(t *testing.T) {
	routes := newRoutes(t, ModeIntroRoutes)

	var buf bytes.Buffer
	status, err := routes.Render(context.Background(), &buf, Navigation{Path: "/missing"})
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
	if !strings.Contains(buf.String(), "<title>Not found | ffyyc</title>") {
		t.Error("not-found title missing")
	}
}

func TestModeFor(t *testing.T) {
	if ModeFor(false) != ModeSignUpOnly || ModeFor(true) != ModeIntroRoutes {
		t.Error("ModeFor mapping wrong")
	}
	if ModeSignUpOnly.String() != "signup-only" || ModeIntroRoutes.String() != "intro-routes" {
		t.Error("Mode names wrong")
	}
}
