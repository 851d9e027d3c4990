// Package dev keeps an output tree in sync with its source tree while
// endpoints are being edited, and serves it.
//
// # Architecture
//
//   - Engine: applies one file event at a time to the output tree
//   - History: the routes each source file emitted last time
//   - Watcher: reports debounced add, change and remove events
//   - Server: initial build, watcher, engine and HTTP in one process
//   - ReloadServer: notifies preview clients of changed routes
//
// The engine re-executes a changed module from its current source, writes
// the routes it produces now and deletes the routes it produced before but
// no longer does. A file that fails to import, enumerate or render keeps
// its previous artifacts; other files are never touched. Changes to a
// private helper ("_lib/format.js") re-render every route file.
//
// # Usage
//
//	srv := dev.NewServer(dev.ServerOptions{
//	    Config: cfg,
//	    Host:   host,
//	})
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Endpoints
//
//	GET  /<route>                  the route's index.json
//	GET  /_statikapi/manifest      the current manifest
//	GET  /_statikapi/ws            WebSocket change feed
//	GET  /_statikapi/client.js     browser client for the feed
//	GET  /_statikapi/metrics       Prometheus metrics, when enabled
//	POST /_ui/changed?route=/x     rebroadcast a change
//
// # Change Protocol
//
// Messages are JSON-encoded:
//
//	{"type": "changed", "route": "/users/1"}
//	{"type": "changed", "route": "/users/2", "removed": true}
//	{"type": "error", "file": "src-api/users/[id].js", "error": "..."}
//	{"type": "clear"}
//
// The same changes are posted to dev.notifyURL + "/_ui/changed?route=..."
// when configured.
package dev
