package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection represents a single WebSocket client connection bound to an
// authenticated user, with a write mutex for serializing outbound frames.
type Connection struct {
	Code      string    // the user's connection code
	Conn      net.Conn  // underlying TCP connection
	CreatedAt time.Time // when the connection was established
	LastPing  time.Time // last activity observed from the client
	writeMu   sync.Mutex
}

// WriteMessage sends a WebSocket text frame to this connection. The write
// mutex ensures that concurrent goroutines do not interleave frame bytes.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a WebSocket protocol-level ping frame (opcode 0x9) on the
// connection. The write mutex ensures this does not interleave with other
// outbound frames.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ConnectionManager is a thread-safe registry mapping connection codes to
// their live Connection. At most one connection per code is held; a newer
// connection for the same code evicts the older one (single-device session).
type ConnectionManager struct {
	mu     sync.RWMutex
	byCode map[string]*Connection
}

// NewConnectionManager creates an empty ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byCode: make(map[string]*Connection),
	}
}

// Add registers a connection, returning the evicted previous connection for
// the same code, if any. The caller is responsible for closing the evicted
// connection.
func (cm *ConnectionManager) Add(conn *Connection) *Connection {
	cm.mu.Lock()
	prev := cm.byCode[conn.Code]
	cm.byCode[conn.Code] = conn
	cm.mu.Unlock()
	return prev
}

// Remove removes the given connection and closes it. Returns false if the
// registry holds no entry for the code, or holds a different (newer)
// connection; in that case nothing is closed and the caller must not run
// disconnect cleanup for the code.
func (cm *ConnectionManager) Remove(conn *Connection) bool {
	cm.mu.Lock()
	cur, ok := cm.byCode[conn.Code]
	if ok && cur == conn {
		delete(cm.byCode, conn.Code)
	} else {
		ok = false
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection for the given code, or nil if not found.
func (cm *ConnectionManager) Get(code string) *Connection {
	cm.mu.RLock()
	conn := cm.byCode[code]
	cm.mu.RUnlock()
	return conn
}

// Count returns the current number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byCode)
	cm.mu.RUnlock()
	return n
}

// All returns a snapshot of all current connections. The returned slice is
// safe to iterate without holding the lock.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byCode))
	for _, conn := range cm.byCode {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}
