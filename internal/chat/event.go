// Package chat holds the shared chat event payload and message content
// validation used by the server's relay and WebSocket layers.
package chat

// Event is the payload published to NATS chat.<connection_code> subjects
// for real-time delivery between users, possibly across server instances.
type Event struct {
	Type     string `json:"type"`                // "message" | "typing"
	From     string `json:"from"`                // sender's connection code
	To       string `json:"to"`                  // receiver's connection code
	Content  string `json:"content,omitempty"`   // for message events
	IsTyping bool   `json:"is_typing,omitempty"` // for typing events
	Ts       string `json:"ts,omitempty"`        // HH:MM timestamp for messages
}

// Event type values carried in Event.Type.
const (
	EventMessage = "message"
	EventTyping  = "typing"
)

// StatusEvent is the payload published to the presence subject when a user
// connects or disconnects.
type StatusEvent struct {
	User   string `json:"user"`
	Status string `json:"status"` // "online" | "offline"
}
