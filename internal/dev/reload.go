package dev

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/statikapi/statikapi/internal/metrics"
	"github.com/statikapi/statikapi/internal/notify"
)

// ReloadMessageType represents the type of reload message.
type ReloadMessageType string

const (
	ReloadTypeChanged ReloadMessageType = notify.TypeChanged
	ReloadTypeError   ReloadMessageType = "error"
	ReloadTypeClear   ReloadMessageType = "clear"
)

// ReloadMessage is sent to preview clients via WebSocket.
type ReloadMessage struct {
	Type    ReloadMessageType `json:"type"`
	Route   string            `json:"route,omitempty"`
	Removed bool              `json:"removed,omitempty"`
	Error   string            `json:"error,omitempty"`
	File    string            `json:"file,omitempty"`
}

const writeWait = 2 * time.Second

// ReloadServer manages WebSocket connections of preview clients. It is a
// notify.Notifier.
type ReloadServer struct {
	clients  map[*websocket.Conn]*sync.Mutex
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
}

// NewReloadServer creates a new reload server. m may be nil.
func NewReloadServer(m *metrics.Metrics) *ReloadServer {
	return &ReloadServer{
		clients: make(map[*websocket.Conn]*sync.Mutex),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // any origin in dev
			},
		},
		metrics: m,
	}
}

// HandleWebSocket handles WebSocket upgrade and connection.
func (r *ReloadServer) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	r.mu.Lock()
	r.clients[conn] = &sync.Mutex{}
	r.metrics.SetReloadClients(len(r.clients))
	r.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	r.drop(conn)
}

// Notify broadcasts a route change.
func (r *ReloadServer) Notify(_ context.Context, ev notify.Event) error {
	r.broadcast(ReloadMessage{Type: ReloadTypeChanged, Route: ev.Route, Removed: ev.Removed})
	return nil
}

// NotifyError sends a rebuild error to all clients.
func (r *ReloadServer) NotifyError(file, errMsg string) {
	r.broadcast(ReloadMessage{Type: ReloadTypeError, File: file, Error: errMsg})
}

// ClearError tells clients the last error is resolved.
func (r *ReloadServer) ClearError() {
	r.broadcast(ReloadMessage{Type: ReloadTypeClear})
}

// broadcast sends a message to all connected clients.
func (r *ReloadServer) broadcast(msg ReloadMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	r.mu.RLock()
	clients := make(map[*websocket.Conn]*sync.Mutex, len(r.clients))
	for c, wmu := range r.clients {
		clients[c] = wmu
	}
	r.mu.RUnlock()

	for client, wmu := range clients {
		wmu.Lock()
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		err := client.WriteMessage(websocket.TextMessage, data)
		wmu.Unlock()
		if err != nil {
			r.drop(client)
		}
	}
}

func (r *ReloadServer) drop(conn *websocket.Conn) {
	r.mu.Lock()
	if _, ok := r.clients[conn]; ok {
		delete(r.clients, conn)
		r.metrics.SetReloadClients(len(r.clients))
	}
	r.mu.Unlock()
	conn.Close()
}

// ClientCount returns the number of connected clients.
func (r *ReloadServer) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close closes all client connections.
func (r *ReloadServer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for client := range r.clients {
		client.Close()
		delete(r.clients, client)
	}
	r.metrics.SetReloadClients(0)
}

// ClientScript is served at ClientScriptPath. A page that includes it
// receives a "statikapi:changed" DOM event with the route as detail for
// every rebuilt route, and an overlay for rebuild errors.
const ClientScript = `(function() {
  'use strict';

  var delay = 1000;

  function connect() {
    var protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
    var ws = new WebSocket(protocol + '//' + location.host + '/_statikapi/ws');

    ws.onopen = function() {
      delay = 1000;
      clearOverlay();
    };

    ws.onmessage = function(e) {
      var msg;
      try { msg = JSON.parse(e.data); } catch (err) { return; }

      switch (msg.type) {
        case 'changed':
          clearOverlay();
          window.dispatchEvent(new CustomEvent('statikapi:changed', { detail: msg }));
          break;
        case 'error':
          console.error('[statikapi] ' + msg.file + ': ' + msg.error);
          showOverlay(msg.file, msg.error);
          break;
        case 'clear':
          clearOverlay();
          break;
      }
    };

    ws.onclose = function() {
      setTimeout(function() {
        delay = Math.min(delay * 2, 30000);
        connect();
      }, delay);
    };

    ws.onerror = function() { ws.close(); };
  }

  function showOverlay(file, error) {
    clearOverlay();
    var overlay = document.createElement('div');
    overlay.id = 'statikapi-error-overlay';
    overlay.style.cssText = 'position:fixed;inset:0;background:rgba(0,0,0,0.9);color:#fff;font:14px monospace;padding:20px;overflow:auto;z-index:999999;';
    var pre = document.createElement('pre');
    pre.style.cssText = 'white-space:pre-wrap;max-width:800px;margin:0 auto;';
    pre.textContent = file + '\n\n' + error;
    overlay.appendChild(pre);
    document.body.appendChild(overlay);
  }

  function clearOverlay() {
    var overlay = document.getElementById('statikapi-error-overlay');
    if (overlay) { overlay.remove(); }
  }

  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', connect);
  } else {
    connect();
  }
})();
`
