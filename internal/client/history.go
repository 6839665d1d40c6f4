package client

import "context"

// HistoryLoader fetches the durable message log for a contact. Loads are
// never retried automatically; a failure leaves the conversation view empty
// until the user selects the contact again.
type HistoryLoader struct {
	api *Client
}

// NewHistoryLoader creates a HistoryLoader backed by the given REST client.
func NewHistoryLoader(api *Client) *HistoryLoader {
	return &HistoryLoader{api: api}
}

// Load fetches all messages exchanged with contactCode, oldest first.
func (l *HistoryLoader) Load(ctx context.Context, contactCode string) ([]Message, error) {
	return l.api.fetchMessages(ctx, contactCode)
}
