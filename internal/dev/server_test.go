package dev

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statikapi/statikapi/internal/config"
	"github.com/statikapi/statikapi/internal/metrics"
	"github.com/statikapi/statikapi/internal/module"
)

func newTestServer(t *testing.T) (*Server, *config.Config, *httptest.Server) {
	t.Helper()
	cfg := config.New()
	cfg.SetRoot(t.TempDir())
	host := module.NewNativeHost(cfg.SrcPath())

	for rel, v := range map[string]any{
		"index.js":        "home",
		"blog/archive.js": []any{"a", "b"},
	} {
		file := filepath.Join(cfg.SrcPath(), filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
		require.NoError(t, os.WriteFile(file, []byte("//"), 0644))
		host.Register(rel, module.Definition{Default: v})
	}

	s := NewServer(ServerOptions{Config: cfg, Host: host, Metrics: metrics.New()})
	_, err := s.Engine().Init(context.Background())
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, cfg, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_Artifacts(t *testing.T) {
	_, _, ts := newTestServer(t)

	for _, p := range []string{"/blog/archive", "/blog/archive/", "/blog/archive/index.json"} {
		resp, body := get(t, ts.URL+p)
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
		assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Equal(t, `["a","b"]`, body, p)
	}

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"home"`, body)

	resp, body = get(t, ts.URL+"/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"not found","route":"/missing"}`, body)

	resp, _ = get(t, ts.URL+"/.statikapi/manifest.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err := http.Post(ts.URL+"/blog/archive", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_Gzip(t *testing.T) {
	_, cfg, ts := newTestServer(t)

	big := `"` + strings.Repeat("statikapi ", 200) + `"`
	file := filepath.Join(cfg.OutPath(), "big", "index.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	require.NoError(t, os.WriteFile(file, []byte(big), 0644))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/big", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	zr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, big, string(data))
}

func TestServer_Manifest(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, body := get(t, ts.URL+ManifestPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []struct {
		Route string `json:"route"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "/", entries[0].Route)
	assert.Equal(t, "/blog/archive", entries[1].Route)
}

func TestServer_ClientScriptAndMetrics(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, body := get(t, ts.URL+ClientScriptPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "/_statikapi/ws")
	assert.Contains(t, body, "statikapi:changed")

	resp, body = get(t, ts.URL+MetricsPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "statikapi_routes_emitted_total")
}

func TestServer_WebSocket(t *testing.T) {
	s, cfg, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + WebSocketPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.reload.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	read := func() ReloadMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg ReloadMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	resp, err := http.Post(ts.URL+"/_ui/changed?route=%2Fusers%2F1", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, ReloadMessage{Type: ReloadTypeChanged, Route: "/users/1"}, read())

	resp, err = http.Post(ts.URL+"/_ui/changed", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// a rebuild reaches connected clients
	file := filepath.Join(cfg.SrcPath(), "index.js")
	s.handleChange(context.Background(), Event{Op: OpChange, Path: file})
	assert.Equal(t, ReloadMessage{Type: ReloadTypeChanged, Route: "/"}, read())

	// errors and their resolution are reported
	s.handleChange(context.Background(), Event{Op: OpAdd, Path: filepath.Join(cfg.SrcPath(), "unregistered.js")})
	msg := read()
	assert.Equal(t, ReloadTypeError, msg.Type)
	assert.Equal(t, "src-api/unregistered.js", msg.File)
	assert.Contains(t, msg.Error, "E201")

	s.handleChange(context.Background(), Event{Op: OpChange, Path: file})
	assert.Equal(t, ReloadTypeChanged, read().Type)
	assert.Equal(t, ReloadTypeClear, read().Type)
}

func TestPreviewHandler(t *testing.T) {
	_, cfg, _ := newTestServer(t)

	ts := httptest.NewServer(NewPreviewHandler(cfg, nil))
	defer ts.Close()

	resp, body := get(t, ts.URL+"/blog/archive")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `["a","b"]`, body)

	resp, body = get(t, ts.URL+ManifestPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"route":"/blog/archive"`)

	resp, _ = get(t, ts.URL+MetricsPath)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreview_Serve(t *testing.T) {
	_, cfg, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Preview(ctx, cfg, PreviewOptions{Addr: "127.0.0.1:0"}, func(addr string) { addrCh <- addr })
	}()

	addr := <-addrCh
	resp, body := get(t, "http://"+addr+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"home"`, body)

	cancel()
	require.NoError(t, <-done)
}

func TestRouteOf(t *testing.T) {
	tests := map[string]string{
		"":                    "/",
		"/":                   "/",
		"/index.json":         "/",
		"/users/1/":           "/users/1",
		"/users/1/index.json": "/users/1",
		"/a/../b":             "/b",
		"/../../etc/passwd":   "/etc/passwd",
	}
	for in, want := range tests {
		assert.Equal(t, want, routeOf(in), "routeOf(%q)", in)
	}
}
