// Package ws streams training progress to browser clients over WebSocket.
package ws

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// sendBuffer is the per-client queue length.
const sendBuffer = 256

// Client is one connected browser. Messages queued on send are written by
// writePump in order.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{hub: hub, conn: conn, send: make(chan []byte, sendBuffer)}
}

// Hub fans progress messages out to every registered client.
type Hub struct {
	log     *zap.SugaredLogger
	dropped atomic.Int64

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{log: log, clients: make(map[*Client]struct{})}
}

// Register adds c. After Close, c is closed immediately instead.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c.send)
		return
	}
	h.clients[c] = struct{}{}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues msg for every client. A client whose queue is full
// misses the message; Dropped counts these.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			if n := h.dropped.Add(1); n == 1 || n%100 == 0 {
				h.log.Warnw("client queue full, dropping progress messages", "dropped_total", n)
			}
		}
	}
}

// sendTo queues msg for c alone. It reports false when c is no longer
// registered or its queue is full.
func (h *Hub) sendTo(c *Client, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Dropped returns how many messages were not queued since the hub started.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Their write pumps drain what is queued
// and close the connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
}
