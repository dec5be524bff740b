package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ffyyc/web/internal/config"
	"github.com/ffyyc/web/internal/telemetry"
	"github.com/ffyyc/web/pkg/assets"
)

// StaticPrefix is where the build output is served.
const StaticPrefix = "/static/"

// ServerConfig configures the production server.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string

	// Dist is the build output directory.
	Dist string

	// Mode selects the route table.
	Mode Mode

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// ServerConfigFromEnv maps the runtime environment onto a ServerConfig.
func ServerConfigFromEnv(env config.ServerEnv, logger *slog.Logger, metrics *telemetry.Metrics) ServerConfig {
	return ServerConfig{
		Addr:    env.Addr,
		Dist:    env.Dist,
		Mode:    ModeFor(env.IntroRoutes),
		Logger:  logger,
		Metrics: metrics,
	}
}

// Server is the production HTTP server.
type Server struct {
	config  ServerConfig
	logger  *slog.Logger
	routes  *Routes
	handler http.Handler
}

// NewServer loads the manifest from the build output and assembles the
// router. Without a manifest, assets resolve to their logical names.
func NewServer(cfg ServerConfig) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var resolver assets.Resolver
	manifest, err := assets.LoadDir(cfg.Dist)
	if err != nil {
		logger.Warn("no asset manifest, serving unhashed names",
			slog.String("dist", cfg.Dist),
			slog.Any("error", err),
		)
		resolver = assets.NewPassthroughResolver(StaticPrefix)
	} else {
		resolver = assets.NewResolver(manifest, StaticPrefix)
	}
	_, faviconErr := os.Stat(filepath.Join(cfg.Dist, "icons", "favicon.ico"))

	routes, err := NewRoutes(Options{
		Mode:     cfg.Mode,
		Assets:   resolver,
		Favicons: faviconErr == nil,
		Logger:   logger,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{config: cfg, logger: logger, routes: routes}
	s.handler = s.router()
	return s, nil
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(telemetry.Tracing)
	r.Use(s.config.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.config.Metrics.Handler())
	r.Handle(StaticPrefix+"*", NewStatic(os.DirFS(s.config.Dist), StaticPrefix))
	r.Handle("/*", s.routes)
	return r
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Routes returns the route component.
func (s *Server) Routes() *Routes {
	return s.routes
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening",
			slog.String("addr", s.config.Addr),
			slog.String("mode", s.config.Mode.String()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RequestID tags each request with a UUID, reusing an incoming
// X-Request-Id. The ID is readable with middleware.GetReqID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs one line per request.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
