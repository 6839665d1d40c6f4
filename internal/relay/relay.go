// Package relay provides a NATS client wrapper for fanning live chat events
// out across Linkup server instances. Each connected user gets a subject
// keyed by connection code; whichever instance holds the user's WebSocket
// subscribes there, so a sender's instance never needs to know where the
// receiver is connected.
package relay

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used across Linkup services.
const (
	SubjectChat     = "chat"     // + .<connection_code>
	SubjectPresence = "presence" // broadcast user online/offline
)

// Client wraps the NATS connection with helper methods for pub/sub.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "linkup",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[relay] disconnected: %v", err)
			} else {
				log.Printf("[relay] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[relay] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[relay] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("relay: nats connect: %w", err)
	}

	log.Printf("[relay] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// PublishChatEvent publishes data to the chat.<connection_code> subject of
// the given user.
func (c *Client) PublishChatEvent(code string, data []byte) error {
	return c.Publish(SubjectChat+"."+code, data)
}

// SubscribeChatEvents subscribes to the chat.<connection_code> subject for a
// connected user. The subscription replaces any previous one for the same
// code, so a reconnecting user does not accumulate handlers.
func (c *Client) SubscribeChatEvents(code string, handler func(data []byte)) error {
	subject := SubjectChat + "." + code

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("relay: subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	if old, ok := c.subs[subject]; ok {
		_ = old.Unsubscribe()
	}
	c.subs[subject] = sub
	c.mu.Unlock()
	return nil
}

// UnsubscribeChatEvents drops the user's chat subscription.
func (c *Client) UnsubscribeChatEvents(code string) error {
	return c.unsubscribe(SubjectChat + "." + code)
}

// PublishPresence broadcasts a user status change to all instances.
func (c *Client) PublishPresence(data []byte) error {
	return c.Publish(SubjectPresence, data)
}

// SubscribePresence subscribes to user status broadcasts.
func (c *Client) SubscribePresence(handler func(data []byte)) error {
	sub, err := c.conn.Subscribe(SubjectPresence, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("relay: subscribe %s: %w", SubjectPresence, err)
	}

	c.mu.Lock()
	c.subs[SubjectPresence] = sub
	c.mu.Unlock()
	return nil
}

// unsubscribe removes and unsubscribes the subscription stored under key.
func (c *Client) unsubscribe(key string) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if ok {
		delete(c.subs, key)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("relay: unsubscribe %s: %w", key, err)
	}
	return nil
}

// Close drains all subscriptions and closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	for key, sub := range c.subs {
		_ = sub.Unsubscribe()
		delete(c.subs, key)
	}
	c.mu.Unlock()

	c.conn.Close()
}
