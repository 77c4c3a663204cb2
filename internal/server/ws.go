package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/session"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Hub pushes session snapshots to websocket clients. It implements the
// pipeline's Presenter; Present only records the latest snapshot and the
// broadcast loop started by Run does the writing.
type Hub struct {
	clients map[*websocket.Conn]*sync.Mutex
	mu      sync.Mutex
	latest  []byte
	notify  chan struct{}
}

// NewHub creates a Hub with no clients.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*sync.Mutex),
		notify:  make(chan struct{}, 1),
	}
}

// Present stores snap as the latest snapshot and wakes the broadcast loop.
// It never blocks; snapshots published faster than clients read are dropped.
func (h *Hub) Present(snap session.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		slog.Error("encoding snapshot", "error", err)
		return
	}

	h.mu.Lock()
	h.latest = payload
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Run broadcasts the latest snapshot to every client until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.notify:
		}

		h.mu.Lock()
		payload := h.latest
		clients := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
		for conn, writeMu := range h.clients {
			clients[conn] = writeMu
		}
		h.mu.Unlock()

		for conn, writeMu := range clients {
			if err := writeMessage(conn, writeMu, websocket.TextMessage, payload); err != nil {
				h.removeClient(conn)
			}
		}
	}
}

// ServeHTTP upgrades the request and registers the client. The client gets
// the latest snapshot immediately if one exists.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "error", err)
		return
	}
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writeMu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = writeMu
	latest := h.latest
	h.mu.Unlock()

	if latest != nil {
		_ = writeMessage(conn, writeMu, websocket.TextMessage, latest)
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := writeMessage(conn, writeMu, websocket.PingMessage, nil); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()
	defer close(done)
	defer h.removeClient(conn)

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func writeMessage(conn *websocket.Conn, writeMu *sync.Mutex, messageType int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}
