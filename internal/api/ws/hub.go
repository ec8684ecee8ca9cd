package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"argus/internal/domain/telemetry"
	"argus/internal/metrics"
	"argus/pkg/logger"
)

const (
	channelName  = "telemetry"
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second

	// Buffered sends per subscriber. A subscriber that falls this far
	// behind the feed is disconnected instead of stalling everyone else.
	sendBufferSize = 64
)

// Hub fans ingested request records out to WebSocket subscribers
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	wg  sync.WaitGroup
	log *logger.Logger
}

// NewHub creates a telemetry feed hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed is read-only and unauthenticated demo surface
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		log:     log.With("component", "ws_hub"),
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// ServeHTTP upgrades the connection and subscribes it to the feed
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("WebSocket upgrade failed",
			"remote_addr", r.RemoteAddr,
			"error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	metrics.WebSocketConnections.WithLabelValues(channelName).Inc()
	h.log.Debugw("Subscriber connected",
		"remote_addr", r.RemoteAddr,
		"subscribers", h.ClientCount())

	go h.writePump(c)
	go h.readPump(c)
}

// RecordIngested broadcasts a stored record to all subscribers.
// Satisfies the telemetry ingest sink.
func (h *Hub) RecordIngested(_ context.Context, record *telemetry.Record) {
	h.Broadcast(record)
}

// Broadcast sends one event to every connected subscriber
func (h *Hub) Broadcast(event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Errorw("Failed to marshal feed event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Subscriber is not keeping up, cut it loose
			go h.drop(c, "send buffer full")
		}
	}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects all subscribers and waits for their pumps to exit
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
		metrics.WebSocketConnections.WithLabelValues(channelName).Dec()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("✓ WebSocket hub stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drop disconnects one subscriber
func (h *Hub) drop(c *client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()

	metrics.WebSocketConnections.WithLabelValues(channelName).Dec()
	h.log.Debugw("Subscriber dropped", "reason", reason)
}

// writePump pushes feed events and pings to one subscriber
func (h *Hub) writePump(c *client) {
	defer h.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				go h.drop(c, "write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				go h.drop(c, "ping failed")
				return
			}
		}
	}
}

// readPump drains inbound frames so pongs and close messages are
// processed. The feed itself is one-way.
func (h *Hub) readPump(c *client) {
	defer h.wg.Done()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			go h.drop(c, "connection closed")
			return
		}
	}
}
