package dev

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"github.com/statikapi/statikapi/internal/build"
	"github.com/statikapi/statikapi/internal/config"
	"github.com/statikapi/statikapi/internal/metrics"
)

// ArtifactHandler serves an output tree the way a static host would:
// GET /users/1 returns users/1/index.json.
type ArtifactHandler struct {
	outDir string
}

// NewArtifactHandler serves the artifacts below outDir.
func NewArtifactHandler(outDir string) *ArtifactHandler {
	return &ArtifactHandler{outDir: outDir}
}

func (h *ArtifactHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	route := routeOf(r.URL.Path)
	if hidden(route) {
		writeJSONError(w, http.StatusNotFound, "not found", route)
		return
	}

	file := filepath.Join(h.outDir, filepath.FromSlash(build.OutPath(route)))
	f, err := os.Open(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSONError(w, http.StatusNotFound, "not found", route)
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error(), route)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeJSONError(w, http.StatusNotFound, "not found", route)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.json", info.ModTime(), f)
}

// routeOf maps a request path to a concrete route. "/users/1/",
// "/users/1/index.json" and "/users/1" are the same route.
func routeOf(urlPath string) string {
	p := path.Clean("/" + urlPath)
	if p == "/index.json" {
		return "/"
	}
	p = strings.TrimSuffix(p, "/index.json")
	return p
}

// hidden reports whether route reaches into a dot directory such as the
// manifest's.
func hidden(route string) bool {
	for _, seg := range strings.Split(route, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func compress(h http.Handler) http.Handler {
	return gzhttp.GzipHandler(h)
}

func writeJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

func writeJSONError(w http.ResponseWriter, status int, msg, route string) {
	body := struct {
		Error string `json:"error"`
		Route string `json:"route,omitempty"`
	}{msg, route}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// PreviewOptions configures the preview server.
type PreviewOptions struct {
	// Addr overrides the configured dev address.
	Addr string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// NewPreviewHandler serves an existing output tree and its manifest
// without building or watching.
func NewPreviewHandler(cfg *config.Config, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(ManifestPath, func(w http.ResponseWriter, _ *http.Request) {
		data, err := os.ReadFile(filepath.Join(cfg.OutPath(), filepath.FromSlash(build.ManifestPath)))
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "no manifest; run statikapi build first", "")
			return
		}
		writeJSON(w, data)
	})
	if m != nil {
		r.Handle(MetricsPath, m.Handler())
	}
	r.Handle("/*", compress(NewArtifactHandler(cfg.OutPath())))
	return r
}

// Preview serves cfg's output tree until ctx is done. onListen receives
// the bound address.
func Preview(ctx context.Context, cfg *config.Config, opts PreviewOptions, onListen func(addr string)) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := opts.Addr
	if addr == "" {
		addr = cfg.DevAddress()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if onListen != nil {
		onListen(ln.Addr().String())
	}
	logger.Info("preview server running", "url", "http://"+ln.Addr().String(), "dir", cfg.OutDir)

	srv := &http.Server{
		Handler:           NewPreviewHandler(cfg, opts.Metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, ln)
}
