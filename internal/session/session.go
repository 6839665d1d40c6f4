// Package session coordinates a logged-in user's live chat state: the
// active conversation, message routing from the server channel, typing
// signals in both directions, and the contact directory. It sits between
// the transport/REST layers and a view, and owns all ordering decisions so
// the view can stay a dumb projection.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/linkup/chat-app/internal/client"
	"github.com/linkup/chat-app/internal/protocol"
	"github.com/linkup/chat-app/internal/typing"
)

// ---------------------------------------------------------------------------
// Collaborator interfaces
// ---------------------------------------------------------------------------

// Transport is the live server channel the manager routes messages through.
type Transport interface {
	On(msgType string, handler func(json.RawMessage))
	SetOnReconnect(fn func())
	Connect(ctx context.Context) error
	Emit(msgType string, payload interface{}) error
	Close() error
}

// Directory provides the linked contact list.
type Directory interface {
	Load(ctx context.Context) ([]client.Contact, error)
	Resolve(code string) (client.Contact, bool)
	Add(ctx context.Context, code string) ([]client.Contact, error)
}

// HistoryLoader fetches the durable conversation log for a contact.
type HistoryLoader interface {
	Load(ctx context.Context, contactCode string) ([]client.Message, error)
}

// View is the projection surface the manager drives. Every method is
// invoked with the manager's internal lock held, so implementations see a
// strictly serialized stream of updates and must not call back into the
// manager.
type View interface {
	RenderContacts(contacts []client.Contact)
	RenderHistory(contact client.Contact, messages []client.Message)
	AppendMessage(msg client.Message)
	ShowTyping()
	HideTyping()
	SetComposerEnabled(enabled bool)
	SetContactStatus(code, status string)
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Config collects the manager's collaborators.
type Config struct {
	View      View
	Transport Transport
	Directory Directory
	History   HistoryLoader

	// TypingInterval overrides the typing stop debounce. Zero means
	// typing.DebounceInterval.
	TypingInterval time.Duration
}

// Manager owns one user's session. All state transitions are serialized
// through a single mutex; transport handlers, typing timers, and async
// history loads all converge on it.
type Manager struct {
	view      View
	transport Transport
	directory Directory
	history   HistoryLoader
	typing    *typing.Coordinator
	indicator *typing.Indicator

	mu         sync.Mutex
	user       client.User
	active     client.Contact
	hasActive  bool
	generation uint64
}

// NewManager creates a Manager wired to the given collaborators. Call
// Initialize before anything else.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		view:      cfg.View,
		transport: cfg.Transport,
		directory: cfg.Directory,
		history:   cfg.History,
	}

	interval := cfg.TypingInterval
	if interval == 0 {
		interval = typing.DebounceInterval
	}
	m.typing = typing.NewCoordinator(m.emitTyping, interval)
	m.indicator = typing.NewIndicator(cfg.View.ShowTyping, cfg.View.HideTyping)
	return m
}

// Initialize binds the manager to a logged-in user, installs message
// routing, connects the live channel, and loads the contact directory. A
// directory failure is logged and tolerated: the session starts with an
// empty list and the user can retry by adding or selecting contacts later.
// Routing is installed exactly once; contact switches never rebind handlers.
func (m *Manager) Initialize(ctx context.Context, user client.User) error {
	m.mu.Lock()
	m.user = user
	m.view.SetComposerEnabled(false)
	m.mu.Unlock()

	m.transport.On(protocol.TypeReceiveMessage, m.onLiveMessage)
	m.transport.On(protocol.TypeUserTyping, m.onLiveTyping)
	m.transport.On(protocol.TypeUserStatus, m.onLiveStatus)
	m.transport.SetOnReconnect(m.resync)

	if err := m.transport.Connect(ctx); err != nil {
		return fmt.Errorf("session: connect: %w", err)
	}

	contacts, err := m.directory.Load(ctx)
	if err != nil {
		log.Printf("[session] directory load failed, starting empty: %v", err)
		return nil
	}

	m.mu.Lock()
	m.view.RenderContacts(contacts)
	m.mu.Unlock()
	return nil
}

// SelectContact makes the given contact the active conversation. The
// routing target switches immediately; history arrives asynchronously and
// is discarded if another selection happened in the meantime. Re-selecting
// the current contact reloads its history.
func (m *Manager) SelectContact(ctx context.Context, code string) error {
	contact, ok := m.directory.Resolve(code)
	if !ok {
		return fmt.Errorf("session: unknown contact %q", code)
	}

	m.typing.SetActiveContact(code)

	m.mu.Lock()
	m.active = contact
	m.hasActive = true
	m.generation++
	gen := m.generation
	m.indicator.Clear()
	m.view.SetComposerEnabled(false)
	m.mu.Unlock()

	go m.loadHistory(ctx, contact, gen)
	return nil
}

// loadHistory fetches the conversation and applies it only if the
// selection it belongs to is still current. A failed load leaves the
// conversation empty but still re-enables the composer; live messages for
// the contact keep flowing regardless.
func (m *Manager) loadHistory(ctx context.Context, contact client.Contact, gen uint64) {
	messages, err := m.history.Load(ctx, contact.ContactCode)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != gen || !m.hasActive || m.active.ContactCode != contact.ContactCode {
		return
	}
	if err != nil {
		log.Printf("[session] history load for %s failed: %v", contact.ContactCode, err)
		messages = nil
	}
	m.view.RenderHistory(contact, messages)
	m.view.SetComposerEnabled(true)
}

// SendMessage validates and emits a chat message to the active contact.
// There is no optimistic local append; the server echoes the message back
// and it is rendered on receipt like any other.
func (m *Manager) SendMessage(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return &client.ValidationError{Field: "message", Reason: "must not be empty"}
	}

	m.mu.Lock()
	if !m.hasActive {
		m.mu.Unlock()
		return &client.ValidationError{Field: "contact", Reason: "no conversation selected"}
	}
	receiver := m.active.ContactCode
	m.mu.Unlock()

	m.typing.Flush()

	err := m.transport.Emit(protocol.TypeSendMessage, protocol.SendMessageMsg{
		Receiver: receiver,
		Content:  content,
	})
	if err != nil {
		return fmt.Errorf("session: send: %w", err)
	}
	return nil
}

// Keystroke reports composition activity to the typing coordinator.
func (m *Manager) Keystroke() {
	m.typing.Keystroke()
}

// AddContact links a new contact and refreshes the rendered directory.
// Validation and duplicate handling live in the directory and server; the
// manager only projects the outcome.
func (m *Manager) AddContact(ctx context.Context, code string) error {
	contacts, err := m.directory.Add(ctx, code)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.view.RenderContacts(contacts)
	m.mu.Unlock()
	return nil
}

// Close tears down the live channel.
func (m *Manager) Close() error {
	return m.transport.Close()
}

// ---------------------------------------------------------------------------
// Live event routing
// ---------------------------------------------------------------------------

// onLiveMessage routes an incoming chat message. It is appended only when
// it belongs to the active conversation: either the active contact sent it,
// or it is the server's echo of our own message to the active contact.
// Everything else is dropped; history loads will surface it later.
func (m *Manager) onLiveMessage(raw json.RawMessage) {
	var msg protocol.ReceiveMessageMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[session] malformed receive_message: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasActive {
		return
	}
	fromActive := msg.Sender == m.active.ContactCode
	ownEcho := msg.Sender == m.user.ConnectionCode && msg.Receiver == m.active.ContactCode
	if !fromActive && !ownEcho {
		return
	}

	if fromActive {
		// A message ends any typing burst on the sender's side.
		m.indicator.Clear()
	}
	m.view.AppendMessage(client.Message{
		Sender:    msg.Sender,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	})
}

// onLiveTyping shows or hides the remote typing indicator, but only for the
// active contact.
func (m *Manager) onLiveTyping(raw json.RawMessage) {
	var msg protocol.UserTypingMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[session] malformed user_typing: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasActive || msg.User != m.active.ContactCode {
		return
	}
	m.indicator.Set(msg.IsTyping)
}

// onLiveStatus forwards presence changes to the view for any contact.
func (m *Manager) onLiveStatus(raw json.RawMessage) {
	var msg protocol.UserStatusMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[session] malformed user_status: %v", err)
		return
	}

	m.mu.Lock()
	m.view.SetContactStatus(msg.User, msg.Status)
	m.mu.Unlock()
}

// emitTyping forwards a local typing transition to the server. Losing one
// over a down link is acceptable.
func (m *Manager) emitTyping(receiver string, isTyping bool) {
	err := m.transport.Emit(protocol.TypeTyping, protocol.ClientTypingMsg{
		Receiver: receiver,
		IsTyping: isTyping,
	})
	if err != nil {
		log.Printf("[session] typing signal dropped: %v", err)
	}
}

// resync runs after the transport reconnects: the directory may have
// changed and live messages were missed, so reload both.
func (m *Manager) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	contacts, err := m.directory.Load(ctx)
	if err != nil {
		log.Printf("[session] resync directory load failed: %v", err)
	} else {
		m.mu.Lock()
		m.view.RenderContacts(contacts)
		m.mu.Unlock()
	}

	m.mu.Lock()
	if !m.hasActive {
		m.mu.Unlock()
		return
	}
	contact := m.active
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	m.loadHistory(ctx, contact, gen)
}
