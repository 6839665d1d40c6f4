// Package transport provides the client side of the Linkup WebSocket
// channel. It connects using gobwas/ws (the same library the server uses),
// dispatches incoming messages to registered handlers, and transparently
// redials with capped backoff when the connection drops.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Reconnect backoff bounds. The delay starts at ReconnectBaseDelay and
// doubles after each failed attempt up to ReconnectMaxDelay.
const (
	ReconnectBaseDelay = 1 * time.Second
	ReconnectMaxDelay  = 30 * time.Second
)

// Channel is a single live connection to the Linkup server. It manages the
// WebSocket lifecycle, dispatches incoming messages to registered handlers,
// and automatically reconnects when the link drops. Handler registration
// survives reconnects.
type Channel struct {
	url string

	mu   sync.Mutex
	conn net.Conn
	up   bool

	handlers    map[string]func(json.RawMessage)
	onReconnect func()

	done      chan struct{}
	closeOnce sync.Once
}

// ErrNotConnected is returned by Emit while the channel is down. Callers
// treat emits as fire-and-forget; a lost typing signal or message send is
// surfaced, not queued.
var ErrNotConnected = fmt.Errorf("transport: not connected")

// NewChannel creates a Channel for the given WebSocket URL. The URL carries
// the auth token as a query parameter. Register handlers with On before
// calling Connect.
func NewChannel(url string) *Channel {
	return &Channel{
		url:      url,
		handlers: make(map[string]func(json.RawMessage)),
		done:     make(chan struct{}),
	}
}

// On registers a handler for a specific server message type. The handler
// receives the full raw JSON of the message for flexible decoding. Handlers
// are invoked sequentially from the read loop goroutine, in the order the
// server sent the messages, so they should not block for extended periods.
// Only one handler per message type is supported; registering a second
// handler for the same type replaces the first.
func (c *Channel) On(msgType string, handler func(json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// SetOnReconnect registers a hook invoked after every successful redial. The
// hook runs on the read loop goroutine before any messages from the new
// connection are dispatched, so session state can be resynced first.
func (c *Channel) SetOnReconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnect = fn
}

// Connect dials the server and starts the background read loop. It returns
// an error only if the initial dial fails; once connected, subsequent drops
// are handled by the reconnect loop.
func (c *Channel) Connect(ctx context.Context) error {
	conn, _, _, err := ws.Dial(ctx, c.url)
	if err != nil {
		return fmt.Errorf("transport: dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.up = true
	c.mu.Unlock()

	go c.readLoop()
	return nil
}

// Emit sends a JSON message to the server. The msgType is injected into the
// payload under the "type" key. It is goroutine-safe and fire-and-forget:
// an error means the message was not sent and will not be retried.
func (c *Channel) Emit(msgType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: marshal payload: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("transport: payload must be a JSON object: %w", err)
	}
	m["type"] = msgType
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("transport: marshal message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.up || c.conn == nil {
		return ErrNotConnected
	}
	if err := wsutil.WriteClientMessage(c.conn, ws.OpText, data); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Connected reports whether the channel currently has a live connection.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

// Close tears the channel down permanently. The read loop stops and no
// reconnect is attempted. It is safe to call multiple times.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			err = c.conn.Close()
		}
		c.up = false
		c.mu.Unlock()
	})
	return err
}

// readLoop reads frames from the current connection and dispatches them to
// registered handlers. When the connection drops it hands off to the
// reconnect loop; it returns only when the channel is closed.
func (c *Channel) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			c.mu.Lock()
			c.up = false
			c.mu.Unlock()
			conn.Close()

			if !c.reconnect() {
				return
			}
			continue
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			continue
		}

		c.mu.Lock()
		handler := c.handlers[envelope.Type]
		c.mu.Unlock()
		if handler != nil {
			handler(json.RawMessage(data))
		}
	}
}

// reconnect redials with exponential backoff until it succeeds or the
// channel is closed. It returns false when the channel was closed.
func (c *Channel) reconnect() bool {
	delay := ReconnectBaseDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, _, _, err := ws.Dial(ctx, c.url)
		cancel()
		if err != nil {
			log.Printf("[transport] reconnect attempt %d failed: %v", attempt, err)
			delay *= 2
			if delay > ReconnectMaxDelay {
				delay = ReconnectMaxDelay
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.up = true
		hook := c.onReconnect
		c.mu.Unlock()

		log.Printf("[transport] reconnected after %d attempt(s)", attempt)
		if hook != nil {
			hook()
		}
		return true
	}
}
