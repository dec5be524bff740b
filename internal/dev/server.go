package dev

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ffyyc/web/internal/build"
	"github.com/ffyyc/web/internal/config"
	"github.com/ffyyc/web/internal/errors"
	"github.com/ffyyc/web/internal/telemetry"
)

// ServerOptions configures the development server.
type ServerOptions struct {
	// Config is the project configuration.
	Config *config.Config

	// Services is the service configuration injected as defines. Nil
	// loads it from the configured path and reloads it when it changes.
	Services *config.Services

	// Build is passed to the builder. Metrics is filled in from Metrics.
	Build build.Options

	Logger  *slog.Logger
	Metrics *telemetry.Metrics

	// OnBuildStart is called when a build starts.
	OnBuildStart func()

	// OnBuildComplete is called when a build completes.
	OnBuildComplete func(result *build.Result, err error)

	// OnReload is called when browsers are reloaded.
	OnReload func(clients int)
}

type proxyRule struct {
	prefix string
	proxy  *httputil.ReverseProxy
}

// Server is the development server.
type Server struct {
	config  *config.Config
	options ServerOptions
	logger  *slog.Logger
	metrics *telemetry.Metrics

	watcher  *Watcher
	reload   *ReloadServer
	proxies  []proxyRule
	handler  http.Handler
	changeCh chan Change

	// buildMu serializes builds.
	buildMu  sync.Mutex
	builder  *build.Builder
	services *config.Services

	// outputMu guards the served output. Builds write to a staging
	// directory which replaces the output under the write lock.
	outputMu sync.RWMutex
	result   *build.Result
	buildErr error

	mu         sync.Mutex
	running    bool
	httpServer *http.Server
}

// NewServer creates a development server. Proxy targets are parsed here.
func NewServer(options ServerOptions) (*Server, error) {
	cfg := options.Config
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		config:   cfg,
		options:  options,
		logger:   logger,
		metrics:  options.Metrics,
		services: options.Services,
		watcher: NewWatcher(WatcherConfig{
			Paths:    CollectWatchPaths(cfg),
			Ignore:   CollectIgnore(cfg),
			Interval: 100 * time.Millisecond,
		}),
	}
	if cfg.Dev.HotReload {
		s.reload = NewReloadServer(logger, options.Metrics)
	}

	prefixes := make([]string, 0, len(cfg.Dev.Proxy))
	for prefix := range cfg.Dev.Proxy {
		prefixes = append(prefixes, prefix)
	}
	// Longest prefix first so nested rules win.
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}
		return prefixes[i] < prefixes[j]
	})
	for _, prefix := range prefixes {
		target, err := url.Parse(cfg.Dev.Proxy[prefix])
		if err != nil || target.Host == "" {
			return nil, errors.New("E122").
				WithDetail("dev.proxy target for " + prefix + " is not a valid URL").
				Wrap(err)
		}
		s.proxies = append(s.proxies, proxyRule{prefix: prefix, proxy: newProxy(target, logger)})
	}

	s.handler = s.router()
	return s, nil
}

func newProxy(target *url.URL, logger *slog.Logger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy failed",
			slog.String("target", target.String()),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		http.Error(w, "upstream unavailable: "+target.Host, http.StatusBadGateway)
	}
	return proxy
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	if s.reload != nil {
		r.Handle(ReloadPath, s.reload)
	}
	r.Handle("/metrics", s.metrics.Handler())
	r.Handle("/*", http.HandlerFunc(s.serve))
	return r
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Reload returns the reload server, nil when hot reload is off.
func (s *Server) Reload() *ReloadServer {
	return s.reload
}

// Result returns the last successful build, nil before the first one.
func (s *Server) Result() *build.Result {
	s.outputMu.RLock()
	defer s.outputMu.RUnlock()
	return s.result
}

// Start builds the project, starts watching and serves until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.httpServer = &http.Server{
		Addr:              s.config.DevAddress(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	if _, err := s.Rebuild(ctx); err != nil {
		s.logger.Error("build failed", slog.String("error", errorMessage(err)))
	}

	s.changeCh = make(chan Change, 64)
	s.watcher.OnChange(func(change Change) {
		select {
		case s.changeCh <- change:
		default:
		}
	})
	go s.watcher.Start(ctx)
	go s.processChanges(ctx)

	s.logger.Info("dev server running",
		slog.String("url", s.config.DevURL()),
		slog.Bool("hot_reload", s.reload != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		s.Stop()
		return err
	}
}

// Stop stops the development server.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.watcher.Stop()
	if s.reload != nil {
		s.reload.Close()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(ctx)
	}
}

// Rebuild builds into a staging directory and, on success, swaps it in as
// the served output. A failed build leaves the previous output in place.
func (s *Server) Rebuild(ctx context.Context) (*build.Result, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if s.options.OnBuildStart != nil {
		s.options.OnBuildStart()
	}
	result, err := s.build(ctx)
	if s.options.OnBuildComplete != nil {
		s.options.OnBuildComplete(result, err)
	}

	s.outputMu.Lock()
	s.buildErr = err
	if err == nil {
		s.result = result
	}
	s.outputMu.Unlock()

	if err != nil {
		return nil, err
	}
	s.logger.Info("built",
		slog.Duration("duration", result.Duration.Round(time.Millisecond)),
		slog.String("hash", result.Hash),
		slog.Int("files", len(result.Files)),
	)
	return result, nil
}

func (s *Server) build(ctx context.Context) (*build.Result, error) {
	if s.builder == nil {
		if err := s.newBuilder(); err != nil {
			return nil, err
		}
	}

	result, err := s.builder.Build(ctx)
	if err != nil {
		return nil, err
	}

	out := s.config.OutputPath()
	s.outputMu.Lock()
	defer s.outputMu.Unlock()
	if err := swapOutput(result.Output, out); err != nil {
		return nil, errors.New("E142").
			WithDetail("Replacing " + out + " with the new build failed").
			Wrap(err)
	}
	result.Output = out
	return result, nil
}

// swapOutput moves staging to out. The old output is renamed aside first
// and moved back when the swap fails, so out is never left missing.
func swapOutput(staging, out string) error {
	previous := out + ".previous"
	if err := os.RemoveAll(previous); err != nil {
		return err
	}
	moved := true
	if err := os.Rename(out, previous); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		moved = false
	}
	if err := os.Rename(staging, out); err != nil {
		if moved {
			if restoreErr := os.Rename(previous, out); restoreErr != nil {
				return fmt.Errorf("%w (restoring the previous output: %v)", err, restoreErr)
			}
		}
		return err
	}
	if moved {
		// A leftover copy is removed by the next swap.
		_ = os.RemoveAll(previous)
	}
	return nil
}

// newBuilder creates a builder writing to the staging directory, loading
// the service configuration unless one was given.
func (s *Server) newBuilder() error {
	services := s.options.Services
	if services == nil {
		loaded, err := config.LoadServices(s.config.ServicesPath())
		if err != nil {
			return err
		}
		services = loaded
	}

	staging := *s.config
	staging.Build.Output = s.config.OutputPath() + ".staging"

	opts := s.options.Build
	opts.Metrics = s.metrics
	s.services = services
	s.builder = build.New(&staging, services, opts)
	return nil
}

// processChanges serializes file change handling and coalesces bursts.
func (s *Server) processChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-s.changeCh:
			changes := []Change{change}
			for draining := true; draining; {
				select {
				case next := <-s.changeCh:
					changes = append(changes, next)
				default:
					draining = false
				}
			}
			s.HandleChanges(ctx, changes)
		}
	}
}

// HandleChanges rebuilds after a batch of changes and notifies browsers.
// A batch of only stylesheet changes refreshes styles in place.
func (s *Server) HandleChanges(ctx context.Context, changes []Change) {
	if len(changes) == 0 {
		return
	}

	cssOnly := true
	for _, change := range changes {
		s.logger.Info("changed",
			slog.String("path", change.Path),
			slog.String("type", change.Type.String()),
		)
		if change.Type == ChangeConfig && s.options.Services == nil {
			// Reload service configuration on the next build.
			s.buildMu.Lock()
			s.builder = nil
			s.buildMu.Unlock()
		}
		if change.Type != ChangeStylesheet {
			cssOnly = false
		}
	}

	result, err := s.Rebuild(ctx)
	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return
		}
		msg := errorMessage(err)
		s.logger.Error("build failed", slog.String("error", msg))
		if s.reload != nil {
			s.reload.NotifyError(msg)
		}
		return
	}

	if s.reload == nil {
		s.logger.Info("rebuild complete, hot reload disabled")
		return
	}
	s.reload.ClearError()
	if cssOnly {
		file, _ := result.Manifest.Lookup("main.css")
		s.reload.NotifyCSS(file)
	} else {
		s.reload.NotifyReload()
	}
	clients := s.reload.ClientCount()
	if s.options.OnReload != nil {
		s.options.OnReload(clients)
	}
	s.logger.Info("reloaded browsers", slog.Int("clients", clients))
}

// serve answers from proxies first, then from the build output with the
// single-page-app fallback.
func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	for _, rule := range s.proxies {
		if r.URL.Path == rule.prefix || strings.HasPrefix(r.URL.Path, strings.TrimSuffix(rule.prefix, "/")+"/") {
			rule.proxy.ServeHTTP(w, r)
			return
		}
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	s.outputMu.RLock()
	defer s.outputMu.RUnlock()

	if s.result == nil {
		s.serveBuildError(w)
		return
	}

	out := os.DirFS(s.result.Output)
	name, ok := outputName(r.URL.Path)
	if ok {
		if info, err := fs.Stat(out, name); err == nil && info.IsDir() {
			name = path.Join(name, "index.html")
		}
		if info, err := fs.Stat(out, name); err == nil && !info.IsDir() {
			s.serveFile(w, r, out, name, http.StatusOK)
			return
		}
	}

	if !s.config.Dev.HistoryFallback {
		http.NotFound(w, r)
		return
	}
	s.serveFile(w, r, out, "index.html", http.StatusOK)
}

// outputName maps a URL path to a file name in the output. The root maps
// to index.html.
func outputName(urlPath string) (string, bool) {
	if strings.ContainsAny(urlPath, "\\\x00") {
		return "", false
	}
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		return "index.html", true
	}
	return name, fs.ValidPath(name)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, fsys fs.FS, name string, status int) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	if ext := path.Ext(name); ext == ".html" || ext == ".htm" {
		if s.reload != nil {
			data = build.InjectAssets(data, "", ClientScript)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			_, _ = w.Write(data)
		}
		return
	}
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

// serveBuildError answers while no build has succeeded yet. The page
// reloads itself once a build succeeds.
func (s *Server) serveBuildError(w http.ResponseWriter) {
	msg := "The first build has not finished yet."
	if s.buildErr != nil {
		msg = errorMessage(s.buildErr)
	}
	script := ""
	if s.reload != nil {
		script = ClientScript
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8"><title>Build unavailable</title></head>
<body style="font-family:system-ui;padding:40px;background:#1a1a1a;color:#eee">
<h1 style="color:#ff6b6b">No build to serve</h1>
<pre style="white-space:pre-wrap">%s</pre>
%s</body></html>`, html.EscapeString(msg), script)
}

// errorMessage renders err as plain text for logs and the overlay.
func errorMessage(err error) string {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(e.FormatCompact())
	if e.Detail != "" {
		b.WriteString("\n")
		b.WriteString(e.Detail)
	}
	if e.Suggestion != "" {
		b.WriteString("\nHint: ")
		b.WriteString(e.Suggestion)
	}
	return b.String()
}
