package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// ReadyMessage is the frame sent once a task completes
const ReadyMessage = "event: ready\ndata: \n\n"

// Tracker knows which tokens are valid and which tasks still run
type Tracker interface {
	Authorized(token string) bool
	Pending(token, task string) bool
}

type taskKey struct {
	token string
	task  string
}

// Client represents a connected SSE client waiting on one task
type Client struct {
	id    string
	key   taskKey
	ready chan struct{}
	once  sync.Once
}

func (c *Client) signal() {
	c.once.Do(func() { close(c.ready) })
}

// Hub manages SSE client connections to /status
type Hub struct {
	tracker   Tracker
	keepalive time.Duration

	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	notify     chan taskKey
	done       chan struct{}
}

// New creates a new Hub
func New(tracker Tracker) *Hub {
	return &Hub{
		tracker:    tracker,
		keepalive:  15 * time.Second,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notify:     make(chan taskKey, 256),
		done:       make(chan struct{}),
	}
}

// WithKeepalive sets the keep-alive comment interval
func (h *Hub) WithKeepalive(d time.Duration) *Hub {
	h.keepalive = d
	return h
}

// Run starts the hub's event loop. It must be running before ServeHTTP is
// used and returns when ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("SSE client connected: %s waiting on %s (total: %d)", client.id, client.key.task, n)

			if !h.tracker.Pending(client.key.token, client.key.task) {
				client.signal()
			}

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client)
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("SSE client disconnected: %s (total: %d)", client.id, n)

		case key := <-h.notify:
			h.mu.RLock()
			for client := range h.clients {
				if client.key == key {
					client.signal()
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			return
		}
	}
}

// Notify wakes every client waiting on task for token
func (h *Hub) Notify(token, task string) {
	select {
	case h.notify <- taskKey{token: token, task: task}:
	default:
		log.Println("Notify channel full, dropping task completion")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP streams keep-alive comments until the requested task is done,
// then sends a single ready event and ends the stream
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	task := r.URL.Query().Get("task")
	token := r.URL.Query().Get("token")
	if task == "" || token == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "task and token query parameters are required")
		return
	}
	if !h.tracker.Authorized(token) {
		writeDetail(w, http.StatusUnauthorized, "Token SHA-256 hash invalid")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	client := &Client{
		id:    fmt.Sprintf("%d", time.Now().UnixNano()),
		key:   taskKey{token: token, task: task},
		ready: make(chan struct{}),
	}

	select {
	case h.register <- client:
	case <-h.done:
		writeDetail(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-client.ready:
			fmt.Fprint(w, ReadyMessage)
			flusher.Flush()
			return

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return

		case <-h.done:
			return
		}
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
