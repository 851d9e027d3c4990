package dev

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/statikapi/statikapi/internal/build"
	"github.com/statikapi/statikapi/internal/config"
	"github.com/statikapi/statikapi/internal/metrics"
	"github.com/statikapi/statikapi/internal/module"
	"github.com/statikapi/statikapi/internal/notify"
)

// Paths served by the dev server next to the artifacts.
const (
	WebSocketPath    = "/_statikapi/ws"
	ClientScriptPath = "/_statikapi/client.js"
	ManifestPath     = "/_statikapi/manifest"
	MetricsPath      = "/_statikapi/metrics"
)

// ServerOptions configures the development server.
type ServerOptions struct {
	// Config is the project configuration.
	Config *config.Config

	// Host executes endpoint modules.
	Host module.Host

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional; when set it is served at MetricsPath.
	Metrics *metrics.Metrics

	// Notifier receives route changes in addition to WebSocket clients
	// and the configured notify URL.
	Notifier notify.Notifier

	// OnReady is called after the initial build.
	OnReady func(result *build.Result)

	// OnRebuild is called after every handled file event.
	OnRebuild func(out *Outcome)
}

// Server is the development server: an initial build, then a watcher
// feeding the incremental engine, and an HTTP server for the output.
type Server struct {
	config     *config.Config
	options    ServerOptions
	logger     *slog.Logger
	engine     *Engine
	watcher    *Watcher
	reload     *ReloadServer
	changeCh   chan Event
	httpServer *http.Server
	mu         sync.Mutex
	running    bool
	failing    bool
}

// NewServer creates a new development server.
func NewServer(options ServerOptions) *Server {
	cfg := options.Config
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	builder := build.New(cfg, options.Host, build.Options{
		Logger:  logger,
		Metrics: options.Metrics,
	})

	reload := NewReloadServer(options.Metrics)
	notifiers := notify.Multi{reload}
	if options.Notifier != nil {
		notifiers = append(notifiers, options.Notifier)
	}
	if cfg.Dev.NotifyURL != "" {
		notifiers = append(notifiers, notify.NewHTTP(cfg.Dev.NotifyURL, nil))
	}

	debounce, _ := cfg.DebounceDuration()
	watcher := NewWatcher(WatcherConfig{
		Paths:    []string{cfg.SrcPath()},
		Debounce: debounce,
		Logger:   logger,
	})

	return &Server{
		config:  cfg,
		options: options,
		logger:  logger,
		engine:  NewEngine(builder, EngineOptions{Notifier: notifiers}),
		watcher: watcher,
		reload:  reload,
	}
}

// Engine returns the incremental engine.
func (s *Server) Engine() *Engine {
	return s.engine
}

// Start builds the project, then watches and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	result, err := s.engine.Init(ctx)
	if err != nil && result == nil {
		s.Stop()
		return err
	}
	s.logger.Info("initial build complete",
		"routes", result.Written,
		"failed", len(result.Failures),
		"duration", result.Duration.Round(time.Millisecond))
	if s.options.OnReady != nil {
		s.options.OnReady(result)
	}

	s.changeCh = make(chan Event, 256)
	s.watcher.OnChange(func(ev Event) {
		select {
		case s.changeCh <- ev:
		case <-ctx.Done():
		}
	})

	go func() {
		if err := s.watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("watcher stopped", "err", err)
		}
	}()
	go s.processChanges(ctx)

	ln, err := net.Listen("tcp", s.config.DevAddress())
	if err != nil {
		s.Stop()
		return err
	}
	s.mu.Lock()
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("dev server running", "url", "http://"+ln.Addr().String())
	err = serve(ctx, srv, ln)
	s.Stop()
	return err
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
	s.reload.Close()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(ctx)
	}
}

// Handler returns the dev HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(WebSocketPath, s.reload.HandleWebSocket)
	r.Get(ClientScriptPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		_, _ = w.Write([]byte(ClientScript))
	})
	r.Get(ManifestPath, func(w http.ResponseWriter, _ *http.Request) {
		data, err := s.engine.Manifest()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error(), "")
			return
		}
		writeJSON(w, data)
	})
	r.Post(notify.ChangedPath, func(w http.ResponseWriter, req *http.Request) {
		route := req.URL.Query().Get("route")
		if route == "" {
			writeJSONError(w, http.StatusBadRequest, "missing route", "")
			return
		}
		_ = s.reload.Notify(req.Context(), notify.Changed(route))
		w.WriteHeader(http.StatusNoContent)
	})
	if s.options.Metrics != nil {
		r.Handle(MetricsPath, s.options.Metrics.Handler())
	}
	r.Handle("/*", compress(NewArtifactHandler(s.config.OutPath())))
	return r
}

// processChanges applies file events one at a time, in arrival order.
func (s *Server) processChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.changeCh:
			s.handleChange(ctx, ev)
		}
	}
}

func (s *Server) handleChange(ctx context.Context, ev Event) {
	out := s.engine.Handle(ctx, ev)
	switch {
	case out.Err != nil:
		s.failing = true
		s.reload.NotifyError(out.File, out.Err.Error())
	case s.failing:
		s.failing = false
		s.reload.ClearError()
	}
	if s.options.OnRebuild != nil {
		s.options.OnRebuild(out)
	}
}

// serve runs srv on ln until ctx is done or the server fails.
func serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
