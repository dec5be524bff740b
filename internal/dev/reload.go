package dev

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ffyyc/web/internal/telemetry"
)

// ReloadPath is the WebSocket endpoint browsers connect to.
const ReloadPath = "/_ffyyc/reload"

// ReloadMessageType represents the type of reload message.
type ReloadMessageType string

const (
	ReloadTypeFull  ReloadMessageType = "reload"
	ReloadTypeCSS   ReloadMessageType = "css"
	ReloadTypeError ReloadMessageType = "error"
	ReloadTypeClear ReloadMessageType = "clear"
)

// ReloadMessage is sent to browsers via WebSocket.
type ReloadMessage struct {
	Type  ReloadMessageType `json:"type"`
	Error string            `json:"error,omitempty"`
	File  string            `json:"file,omitempty"`
}

const writeTimeout = 5 * time.Second

// ReloadServer manages WebSocket connections for live reload.
type ReloadServer struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader

	// sendMu serializes broadcasts; a connection allows one writer.
	sendMu sync.Mutex

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewReloadServer creates a reload server. logger and metrics may be nil.
func NewReloadServer(logger *slog.Logger, metrics *telemetry.Metrics) *ReloadServer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ReloadServer{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Any origin may connect to a local dev server.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
	}
}

// ServeHTTP upgrades the connection and holds it until the browser goes
// away.
func (rs *ReloadServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := rs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rs.logger.Debug("reload upgrade failed", slog.Any("error", err))
		return
	}

	rs.mu.Lock()
	rs.clients[conn] = struct{}{}
	rs.mu.Unlock()
	rs.metrics.ReloadClientConnected()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	rs.remove(conn)
}

func (rs *ReloadServer) remove(conn *websocket.Conn) {
	rs.mu.Lock()
	_, ok := rs.clients[conn]
	delete(rs.clients, conn)
	rs.mu.Unlock()
	if ok {
		rs.metrics.ReloadClientDisconnected()
	}
	conn.Close()
}

// NotifyReload asks every browser to reload the page.
func (rs *ReloadServer) NotifyReload() {
	rs.Broadcast(ReloadMessage{Type: ReloadTypeFull})
}

// NotifyCSS asks every browser to refetch its stylesheets.
func (rs *ReloadServer) NotifyCSS(file string) {
	rs.Broadcast(ReloadMessage{Type: ReloadTypeCSS, File: file})
}

// NotifyError shows msg in the error overlay.
func (rs *ReloadServer) NotifyError(msg string) {
	rs.Broadcast(ReloadMessage{Type: ReloadTypeError, Error: msg})
}

// ClearError hides the error overlay.
func (rs *ReloadServer) ClearError() {
	rs.Broadcast(ReloadMessage{Type: ReloadTypeClear})
}

// Broadcast sends msg to all clients. Clients that fail to receive it are
// dropped.
func (rs *ReloadServer) Broadcast(msg ReloadMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	rs.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(rs.clients))
	for c := range rs.clients {
		clients = append(clients, c)
	}
	rs.mu.RUnlock()

	rs.sendMu.Lock()
	defer rs.sendMu.Unlock()
	for _, c := range clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			rs.remove(c)
		}
	}
	rs.metrics.ReloadSent(string(msg.Type))
}

// ClientCount returns the number of connected clients.
func (rs *ReloadServer) ClientCount() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.clients)
}

// Close disconnects every client.
func (rs *ReloadServer) Close() {
	rs.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(rs.clients))
	for c := range rs.clients {
		clients = append(clients, c)
	}
	rs.mu.RUnlock()

	for _, c := range clients {
		rs.remove(c)
	}
}

// ClientScript connects the page to the reload socket. It is injected
// before </body> of served HTML.
const ClientScript = `<script>
(function () {
  var delay = 1000;
  var overlayId = 'ffyyc-error-overlay';

  function hideError() {
    var el = document.getElementById(overlayId);
    if (el) el.parentNode.removeChild(el);
  }

  function showError(text) {
    hideError();
    var el = document.createElement('div');
    el.id = overlayId;
    el.style.cssText = 'position:fixed;inset:0;z-index:2147483647;overflow:auto;padding:24px;' +
      'background:rgba(20,20,20,.94);color:#eee;font:13px/1.5 monospace;';
    var title = document.createElement('h2');
    title.style.cssText = 'margin:0 0 16px;color:#ff6b6b;';
    title.textContent = 'Build failed';
    var pre = document.createElement('pre');
    pre.style.cssText = 'white-space:pre-wrap;margin:0;';
    pre.textContent = text;
    el.appendChild(title);
    el.appendChild(pre);
    document.body.appendChild(el);
  }

  // The stylesheet name carries a content hash, so the link is pointed
  // at the new file rather than refetched.
  function refreshStyles(file) {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    for (var i = 0; i < links.length; i++) {
      var url = new URL(links[i].href);
      if (url.host !== location.host) continue;
      if (file && /\/main\.[^\/]*\.css$/.test(url.pathname)) {
        url.pathname = url.pathname.replace(/[^\/]*$/, file);
      }
      url.searchParams.set('_reload', String(Date.now()));
      links[i].href = url.toString();
    }
  }

  function connect() {
    var scheme = location.protocol === 'https:' ? 'wss:' : 'ws:';
    var ws = new WebSocket(scheme + '//' + location.host + '` + ReloadPath + `');
    ws.onopen = function () { delay = 1000; };
    ws.onmessage = function (e) {
      var msg;
      try { msg = JSON.parse(e.data); } catch (_) { return; }
      if (msg.type === 'reload') location.reload();
      else if (msg.type === 'css') { hideError(); refreshStyles(msg.file); }
      else if (msg.type === 'error') showError(msg.error || '');
      else if (msg.type === 'clear') hideError();
    };
    ws.onclose = function () {
      setTimeout(connect, delay);
      delay = Math.min(delay * 2, 30000);
    };
  }

  if (document.readyState === 'loading') document.addEventListener('DOMContentLoaded', connect);
  else connect();
})();
</script>
`
