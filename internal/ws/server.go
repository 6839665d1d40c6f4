// Package ws handles the server side of the live channel: upgrading HTTP
// connections, authenticating them against the session-token store, keeping
// the registry of active connections, and dispatching inbound frames to the
// application layer.
package ws

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/linkup/chat-app/internal/auth"
	"github.com/linkup/chat-app/internal/metrics"
	"github.com/linkup/chat-app/internal/protocol"
)

// TokenResolver authenticates a bearer token to an identity. Satisfied by
// *auth.Store.
type TokenResolver interface {
	Lookup(ctx context.Context, token string) (*auth.Identity, error)
}

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	MaxConnections int           // hard cap on total connections
	ReadTimeout    time.Duration // idle timeout on WebSocket reads
	WriteTimeout   time.Duration // timeout for WebSocket write operations
}

// DefaultServerConfig returns a ServerConfig with sensible production defaults.
// The read timeout must exceed the heartbeat interval so that an idle but
// healthy client (which answers protocol pings) is never timed out.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MaxConnections: 100000,
		ReadTimeout:    90 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Server manages live WebSocket connections. Each accepted connection gets a
// dedicated read goroutine; writes are serialized by the per-connection
// mutex. The server itself holds no chat state; message routing lives in
// the application layer via the onMessage callback.
type Server struct {
	config       ServerConfig
	conns        *ConnectionManager
	tokens       TokenResolver
	onMessage    func(conn *Connection, data []byte)
	onConnect    func(conn *Connection)
	onDisconnect func(code string)
	done         chan struct{}
}

// NewServer creates a Server with the given configuration, token resolver,
// and message callback. The onMessage function is called from the
// connection's read goroutine whenever a complete text frame arrives.
func NewServer(config ServerConfig, tokens TokenResolver, onMessage func(conn *Connection, data []byte)) *Server {
	return &Server{
		config:    config,
		conns:     NewConnectionManager(),
		tokens:    tokens,
		onMessage: onMessage,
		done:      make(chan struct{}),
	}
}

// SetOnConnect registers a callback invoked after a connection is
// authenticated and registered, before any frames are read from it.
func (s *Server) SetOnConnect(fn func(conn *Connection)) {
	s.onConnect = fn
}

// SetOnDisconnect registers a callback invoked when a connection is removed
// (read error, heartbeat timeout, or graceful close).
func (s *Server) SetOnDisconnect(fn func(code string)) {
	s.onDisconnect = fn
}

// Start launches the heartbeat monitor. The HTTP listener is owned by the
// caller, which mounts HandleUpgrade on its mux.
func (s *Server) Start() {
	StartHeartbeat(s, DefaultHeartbeatConfig())
}

// HandleUpgrade upgrades an HTTP request to a WebSocket connection. The
// request must carry a valid session token in the "token" query parameter;
// the resulting connection is bound to the token's connection code. On
// success the client receives a session_ready message and a read goroutine
// is started.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	identity, err := s.tokens.Lookup(ctx, token)
	cancel()
	if err != nil {
		log.Printf("ws: token lookup failed: %v", err)
		http.Error(w, "authentication unavailable", http.StatusServiceUnavailable)
		return
	}
	if identity == nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("ws: upgrade failed for %s: %v", identity.ConnectionCode, err)
		return
	}

	c := &Connection{
		Code:      identity.ConnectionCode,
		Conn:      conn,
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
	}

	// A reconnecting user evicts their previous connection.
	if prev := s.conns.Add(c); prev != nil {
		log.Printf("ws: evicting stale connection for code=%s", c.Code)
		prev.Close()
	}
	metrics.ConnectionsTotal.Set(float64(s.conns.Count()))

	if s.onConnect != nil {
		s.onConnect(c)
	}

	readyMsg, err := protocol.NewServerMessage(protocol.TypeSessionReady, protocol.SessionReadyMsg{
		ConnectionCode: c.Code,
	})
	if err != nil {
		log.Printf("ws: failed to build session_ready for code=%s: %v", c.Code, err)
	} else if err := c.WriteMessage(readyMsg); err != nil {
		log.Printf("ws: failed to send session_ready for code=%s: %v", c.Code, err)
	}

	log.Printf("ws: new connection code=%s (total=%d)", c.Code, s.conns.Count())

	go s.readLoop(c)
}

// readLoop reads frames from the connection until it fails or the server
// shuts down. Control frames refresh the liveness timestamp; text frames are
// handed to the onMessage callback.
func (s *Server) readLoop(c *Connection) {
	defer s.RemoveConnection(c)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if s.config.ReadTimeout > 0 {
			_ = c.Conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}

		header, reader, err := wsutil.NextReader(c.Conn, ws.StateServerSide)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				log.Printf("ws: read timeout code=%s", c.Code)
			}
			return
		}

		// Any frame proves the connection is alive.
		c.LastPing = time.Now()

		if header.OpCode.IsControl() {
			if header.OpCode == ws.OpClose {
				return
			}
			if header.OpCode == ws.OpPing {
				_ = s.writePong(c)
			}
			// Pong: nothing else to do.
			if _, err := io.Copy(io.Discard, reader); err != nil {
				return
			}
			continue
		}

		data := make([]byte, header.Length)
		if header.Length > 0 {
			if _, err := io.ReadFull(reader, data); err != nil {
				return
			}
		}
		if len(data) == 0 {
			continue
		}

		if s.onMessage != nil {
			s.onMessage(c, data)
		}
	}
}

// writePong answers a protocol-level ping frame.
func (s *Server) writePong(c *Connection) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPongFrame(nil))
}

// RemoveConnection removes a connection from the manager and closes it.
// Exported so the heartbeat monitor can evict dead connections. It is safe
// against races between the read loop and the heartbeat: cleanup runs only
// for the goroutine that actually removed the registered connection.
func (s *Server) RemoveConnection(c *Connection) {
	if !s.conns.Remove(c) {
		return
	}
	metrics.ConnectionsTotal.Set(float64(s.conns.Count()))

	if s.onDisconnect != nil {
		s.onDisconnect(c.Code)
	}

	log.Printf("ws: connection closed code=%s (total=%d)", c.Code, s.conns.Count())
}

// SendTo writes a WebSocket text frame to the connection bound to the given
// connection code. Returns an error if the user is not connected here.
func (s *Server) SendTo(code string, data []byte) error {
	c := s.conns.Get(code)
	if c == nil {
		return fmt.Errorf("ws: connection %s not found", code)
	}

	if s.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}

	err := c.WriteMessage(data)

	// Clear write deadline so it doesn't affect future writes (e.g., heartbeat pings).
	_ = c.Conn.SetWriteDeadline(time.Time{})

	return err
}

// Connections returns the ConnectionManager for external access to connection
// state (e.g., by the heartbeat monitor).
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Shutdown stops the heartbeat and read loops and closes all active
// connections. The caller shuts down the HTTP listener separately.
func (s *Server) Shutdown() error {
	log.Println("ws: shutting down...")

	close(s.done)

	for _, c := range s.conns.All() {
		s.RemoveConnection(c)
	}

	log.Printf("ws: server stopped, all connections closed")
	return nil
}
