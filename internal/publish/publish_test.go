package publish

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ffyyc/web/internal/errors"
	"github.com/ffyyc/web/internal/telemetry"
)

type putCall struct {
	Bucket, Key, ContentType, CacheControl, Body string
}

type fakePutter struct {
	mu    sync.Mutex
	calls []putCall
	fail  string
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if aws.ToString(in.Key) == f.fail {
		return nil, stderrors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, putCall{
		Bucket:       aws.ToString(in.Bucket),
		Key:          aws.ToString(in.Key),
		ContentType:  aws.ToString(in.ContentType),
		CacheControl: aws.ToString(in.CacheControl),
		Body:         string(body),
	})
	return &s3.PutObjectOutput{}, nil
}

func (f *fakePutter) sorted() []putCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]putCall(nil), f.calls...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func newDist(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html":                    "<html></html>",
		"manifest.json":                 "{}",
		"main.0123456789abcdef0123.js":  "js",
		"main.0123456789abcdef0123.css": "css",
		"img/logo.png":                  "png",
		"icons/favicon.ico":             "ico",
		"fonts/brand.woff2":             "font",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestPublishUploadsEveryFile(t *testing.T) {
	reg := prometheus.NewRegistry()
	putter := &fakePutter{}
	p, err := New(putter, Options{
		Bucket:  "site",
		Prefix:  "/releases/v1/",
		Metrics: telemetry.NewMetrics(telemetry.WithRegistry(reg)),
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := p.Publish(context.Background(), newDist(t))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	want := []putCall{
		{"site", "releases/v1/fonts/brand.woff2", "font/woff2", "public, max-age=3600", "font"},
		{"site", "releases/v1/icons/favicon.ico", "image/x-icon", "public, max-age=3600", "ico"},
		{"site", "releases/v1/img/logo.png", "image/png", "public, max-age=3600", "png"},
		{"site", "releases/v1/index.html", "text/html; charset=utf-8", "no-cache", "<html></html>"},
		{"site", "releases/v1/main.0123456789abcdef0123.css", "text/css; charset=utf-8", "public, max-age=31536000, immutable", "css"},
		{"site", "releases/v1/main.0123456789abcdef0123.js", "text/javascript; charset=utf-8", "public, max-age=31536000, immutable", "js"},
		{"site", "releases/v1/manifest.json", "application/json", "no-cache", "{}"},
	}
	got := putter.sorted()
	if len(got) != len(want) {
		t.Fatalf("uploaded %d objects, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("object %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if len(report.Objects) != len(want) || report.Bytes != 30 {
		t.Errorf("report = %d objects, %d bytes", len(report.Objects), report.Bytes)
	}
	if report.Prefix != "releases/v1" {
		t.Errorf("report prefix = %q", report.Prefix)
	}
	expected := `
# HELP ffyyc_published_files_total Files uploaded by publish
# TYPE ffyyc_published_files_total counter
ffyyc_published_files_total 7
# HELP ffyyc_published_bytes_total Bytes uploaded by publish
# TYPE ffyyc_published_bytes_total counter
ffyyc_published_bytes_total 30
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"ffyyc_published_files_total", "ffyyc_published_bytes_total"); err != nil {
		t.Error(err)
	}
}

func TestPublishDryRun(t *testing.T) {
	p, err := New(nil, Options{Bucket: "site", DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	report, err := p.Publish(context.Background(), newDist(t))
	if err != nil {
		t.Fatal(err)
	}
	if !report.DryRun || len(report.Objects) != 7 {
		t.Errorf("report = %+v", report)
	}
	if report.Objects[0].Key != "fonts/brand.woff2" {
		t.Errorf("first key = %q, want sorted keys", report.Objects[0].Key)
	}
}

func TestPublishFailure(t *testing.T) {
	putter := &fakePutter{fail: "index.html"}
	notified := false
	p, err := New(putter, Options{
		Bucket:      "site",
		Concurrency: 1,
		Notifier: notifierFunc(func(context.Context, *Report) error {
			notified = true
			return nil
		}),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Publish(context.Background(), newDist(t))
	if !errors.HasCode(err, "E160") {
		t.Fatalf("err = %v, want E160", err)
	}
	if !strings.Contains(err.Error(), "access denied") {
		t.Errorf("cause missing from %q", err)
	}
	if notified {
		t.Error("notified after a failed upload")
	}
}

func TestPublishUploadsEntryPointsLast(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		putter := &fakePutter{}
		p, err := New(putter, Options{Bucket: "site", Concurrency: concurrency})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := p.Publish(context.Background(), newDist(t)); err != nil {
			t.Fatal(err)
		}

		putter.mu.Lock()
		calls := append([]putCall(nil), putter.calls...)
		putter.mu.Unlock()
		if len(calls) != 7 {
			t.Fatalf("concurrency %d: uploaded %d objects, want 7", concurrency, len(calls))
		}
		for i, c := range calls {
			entry := c.Key == "index.html" || c.Key == "manifest.json"
			if entry != (i >= len(calls)-2) {
				t.Errorf("concurrency %d: %s uploaded at position %d of %d", concurrency, c.Key, i, len(calls))
			}
		}
	}
}

func TestPublishFailureKeepsEntryPoints(t *testing.T) {
	putter := &fakePutter{fail: "img/logo.png"}
	p, err := New(putter, Options{Bucket: "site"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Publish(context.Background(), newDist(t)); !errors.HasCode(err, "E160") {
		t.Fatalf("err = %v, want E160", err)
	}
	for _, c := range putter.sorted() {
		if c.Key == "index.html" || c.Key == "manifest.json" {
			t.Errorf("%s uploaded although an asset failed", c.Key)
		}
	}
}

func TestPublishErrors(t *testing.T) {
	if _, err := New(&fakePutter{}, Options{}); !errors.HasCode(err, "E160") {
		t.Errorf("missing bucket: err = %v", err)
	}
	if _, err := New(nil, Options{Bucket: "b"}); !errors.HasCode(err, "E160") {
		t.Errorf("missing client: err = %v", err)
	}

	p, _ := New(&fakePutter{}, Options{Bucket: "b"})
	if _, err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "dist")); !errors.HasCode(err, "E160") {
		t.Errorf("missing dir: err = %v", err)
	}
}

type notifierFunc func(context.Context, *Report) error

func (f notifierFunc) NotifyPublished(ctx context.Context, r *Report) error { return f(ctx, r) }

func TestPublishNotifyFailure(t *testing.T) {
	p, _ := New(&fakePutter{}, Options{
		Bucket: "b",
		Notifier: notifierFunc(func(context.Context, *Report) error {
			return stderrors.New("slack down")
		}),
	})
	report, err := p.Publish(context.Background(), newDist(t))
	if !errors.HasCode(err, "E161") {
		t.Fatalf("err = %v, want E161", err)
	}
	if report == nil || len(report.Objects) != 7 {
		t.Error("report not returned with a notification failure")
	}
}

func TestCacheControlAndContentType(t *testing.T) {
	tests := []struct {
		name, cache, ctype string
	}{
		{"index.html", "no-cache", "text/html; charset=utf-8"},
		{"manifest.json", "no-cache", "application/json"},
		{"common.abcdef0123456789abcd.js", "public, max-age=31536000, immutable", "text/javascript; charset=utf-8"},
		{"img/photo.JPG", "public, max-age=3600", "image/jpeg"},
		{"fonts/icons.eot", "public, max-age=3600", "application/vnd.ms-fontobject"},
		{"LICENSE", "public, max-age=3600", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := CacheControl(tt.name); got != tt.cache {
			t.Errorf("CacheControl(%q) = %q, want %q", tt.name, got, tt.cache)
		}
		if got := ContentType(tt.name); got != tt.ctype {
			t.Errorf("ContentType(%q) = %q, want %q", tt.name, got, tt.ctype)
		}
	}
}

func testReport() *Report {
	return &Report{
		Bucket:   "site",
		Prefix:   "v1",
		Objects:  make([]Object, 3),
		Bytes:    2048,
		Duration: 1500 * time.Millisecond,
	}
}

func TestSummary(t *testing.T) {
	got := Summary(testReport())
	for _, want := range []string{"`s3://site/v1`", "*Files*: 3 (2.0 KiB)", "1.5s"} {
		if !strings.Contains(got, want) {
			t.Errorf("Summary missing %q:\n%s", want, got)
		}
	}
}

func TestWebhookNotifier(t *testing.T) {
	var text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode: %v", err)
		}
		text = msg.Text
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).NotifyPublished(context.Background(), testReport()); err != nil {
		t.Fatalf("NotifyPublished: %v", err)
	}
	if !strings.Contains(text, "Build published") {
		t.Errorf("text = %q", text)
	}
}

func TestWebhookNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).NotifyPublished(context.Background(), testReport()); err == nil {
		t.Error("expected error for a rejected webhook")
	}
}

func TestChannelNotifier(t *testing.T) {
	var channel, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat.postMessage") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		channel = r.FormValue("channel")
		text = r.FormValue("text")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"channel":"C123","ts":"1.0"}`)
	}))
	defer srv.Close()

	n := NewChannelNotifier("xoxb-test", "C123", srv.URL+"/")
	if err := n.NotifyPublished(context.Background(), testReport()); err != nil {
		t.Fatalf("NotifyPublished: %v", err)
	}
	if channel != "C123" || !strings.Contains(text, "s3://site/v1") {
		t.Errorf("posted channel=%q text=%q", channel, text)
	}
}
