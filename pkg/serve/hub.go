// Package serve implements the development server: static files from the
// source tree with a live-reload client injected into every HTML page.
package serve

import (
	"bufio"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const heartbeatInterval = 30 * time.Second

// Hub manages the server-sent-event clients waiting for reload signals.
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*client
	closed    bool
	lastToken string
}

type client struct {
	id   int
	ch   chan string
	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{clients: map[int]*client{}}
}

// ServeHTTP implements the SSE endpoint at /livereload.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := &client{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	c.id = h.nextID
	h.nextID++
	h.clients[c.id] = c
	current := h.lastToken
	h.mu.Unlock()
	defer h.removeClient(c.id)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		slog.Debug("livereload write", "error", err)
		return
	}
	writeEvent(bw, current)
	if err := bw.Flush(); err == nil {
		flusher.Flush()
	}

	hb := time.NewTicker(heartbeatInterval)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err != nil {
				slog.Debug("livereload ping write", "error", err)
				return
			}
		case token := <-c.ch:
			writeEvent(bw, token)
		}
		if err := bw.Flush(); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeEvent(bw *bufio.Writer, token string) {
	_, _ = bw.WriteString("data: {\"token\":" + strconv.Quote(token) + "}\n\n")
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast tells every connected client to reload. Clients whose buffer is
// full are dropped; they reconnect on their own.
func (h *Hub) Broadcast(token string) {
	h.mu.Lock()
	if h.closed || token == "" || token == h.lastToken {
		h.mu.Unlock()
		return
	}
	h.lastToken = token
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- token:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	slog.Debug("livereload broadcast", "token", token, "clients", len(snapshot), "dropped", dropped)
}

// Reload broadcasts a fresh token.
func (h *Hub) Reload() {
	h.Broadcast(strconv.FormatInt(time.Now().UnixNano(), 10))
}

// Shutdown disconnects all clients and stops future broadcasts.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
}
