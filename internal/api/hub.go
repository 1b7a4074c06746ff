package api

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Hub fans progress events out to every connected websocket listener.
// Slow listeners lose events rather than stalling the collector.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*listener]struct{}
	upgrader websocket.Upgrader
	dropped  atomic.Int64
	logger   *slog.Logger
}

type listener struct {
	conn *websocket.Conn
	send chan types.ProgressEvent
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*listener]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "event_hub"),
	}
}

// Emit queues ev for every listener without blocking.
func (h *Hub) Emit(ev types.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for l := range h.clients {
		select {
		case l.send <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Len returns the number of connected listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the peer leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	l := &listener{conn: conn, send: make(chan types.ProgressEvent, sendBuffer)}
	h.mu.Lock()
	h.clients[l] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("listener connected", "remote", r.RemoteAddr, "listeners", h.Len())

	go h.writeLoop(l)
	h.readLoop(l)
}

// readLoop only services control frames; listeners never send data.
func (h *Hub) readLoop(l *listener) {
	defer h.remove(l)
	l.conn.SetReadLimit(512)
	_ = l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := l.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(l *listener) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = l.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-l.send:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = l.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := l.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(l *listener) {
	h.mu.Lock()
	if _, ok := h.clients[l]; ok {
		delete(h.clients, l)
		close(l.send)
	}
	h.mu.Unlock()
	h.logger.Debug("listener disconnected", "listeners", h.Len())
}

// Close disconnects every listener.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for l := range h.clients {
		delete(h.clients, l)
		close(l.send)
	}
	if n := h.dropped.Load(); n > 0 {
		h.logger.Info("event hub closed", "dropped_events", n)
	}
}
