package web

import (
	"sync"

	"github.com/gorilla/websocket"

	appLog "calgrid/internal/log"
)

// connWithMutex serializes writes to one connection.
type connWithMutex struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *connWithMutex) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub keeps the open websocket connections that receive state pushes.
type Hub struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]*connWithMutex
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{connections: make(map[*websocket.Conn]*connWithMutex)}
}

// Add registers conn.
func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn] = &connWithMutex{conn: conn}
}

// Send writes v to a single registered connection.
func (h *Hub) Send(conn *websocket.Conn, v any) error {
	h.mu.RLock()
	c, ok := h.connections[conn]
	h.mu.RUnlock()
	if !ok {
		return websocket.ErrCloseSent
	}
	return c.writeJSON(v)
}

// Remove forgets conn.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, conn)
}

// Len reports the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Broadcast sends message to every client. Connections that fail to write
// are dropped.
func (h *Hub) Broadcast(message any) {
	h.mu.RLock()
	conns := make([]*connWithMutex, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeJSON(message); err != nil {
			appLog.Debug("ws write failed; dropping client", "remote", c.conn.RemoteAddr().String())
			h.Remove(c.conn)
			_ = c.conn.Close()
		}
	}
}
