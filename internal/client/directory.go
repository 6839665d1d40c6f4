package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Directory fetches and caches the set of linked contacts. A failed load
// leaves the previously cached list intact so the UI can keep rendering a
// stale directory rather than a blank one.
type Directory struct {
	api *Client

	mu       sync.Mutex
	contacts []Contact
	loaded   bool
}

// NewDirectory creates a Directory backed by the given REST client.
func NewDirectory(api *Client) *Directory {
	return &Directory{api: api}
}

// Load fetches the directory from the server. On success the cache is
// replaced with the server's ordering; on failure the cache is untouched and
// the error describes whether the server rejected the call or the network
// failed.
func (d *Directory) Load(ctx context.Context) ([]Contact, error) {
	contacts, err := d.api.fetchContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory unavailable: %w", err)
	}

	d.mu.Lock()
	d.contacts = contacts
	d.loaded = true
	d.mu.Unlock()
	return contacts, nil
}

// Contacts returns the cached directory snapshot in server order.
func (d *Directory) Contacts() []Contact {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Contact, len(d.contacts))
	copy(out, d.contacts)
	return out
}

// Resolve looks a contact up in the cache by connection code.
func (d *Directory) Resolve(code string) (Contact, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.contacts {
		if c.ContactCode == code {
			return c, true
		}
	}
	return Contact{}, false
}

// Add validates and links a new contact, then reloads the directory so the
// cache reflects the server's state. Each call is an independent round trip;
// duplicate codes are the server's concern.
func (d *Directory) Add(ctx context.Context, code string) ([]Contact, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &ValidationError{Field: "contact code", Reason: "must not be empty"}
	}

	if err := d.api.addContact(ctx, code); err != nil {
		return nil, err
	}
	return d.Load(ctx)
}
