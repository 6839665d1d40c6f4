// Package client implements the request/response side of the Linkup client:
// authentication, the contact directory, and message history loads. Live
// events travel separately over the transport channel.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// User is the authenticated account for the lifetime of a session. Never
// mutated after login.
type User struct {
	Username       string `json:"username"`
	ConnectionCode string `json:"connection_code"`
	Token          string `json:"token"`
}

// Contact is one directory entry.
type Contact struct {
	ContactName string `json:"contact_name"`
	ContactCode string `json:"contact_code"`
}

// Message is one entry of a conversation. Historical messages come from the
// history load; new ones arrive as live events carrying the same shape.
type Message struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Client issues REST calls against the Linkup server. The zero value is not
// usable; construct with New.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a REST client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken installs the session token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the current session token.
func (c *Client) Token() string {
	return c.token
}

// Login authenticates by identifier (email, phone, or connection code) and
// stores the issued session token on the client.
func (c *Client) Login(ctx context.Context, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, &ValidationError{Field: "identifier", Reason: "must not be empty"}
	}

	var user User
	form := url.Values{"identifier": {identifier}}
	if err := c.postForm(ctx, "/login", form, &user); err != nil {
		return nil, err
	}
	c.token = user.Token
	return &user, nil
}

// Register creates a new account and returns the assigned connection code.
// It does not log the account in.
func (c *Client) Register(ctx context.Context, username, email, phone string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &ValidationError{Field: "username", Reason: "must not be empty"}
	}

	var user User
	form := url.Values{"username": {username}, "email": {email}, "phone": {phone}}
	if err := c.postForm(ctx, "/register", form, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// fetchContacts retrieves the full directory.
func (c *Client) fetchContacts(ctx context.Context) ([]Contact, error) {
	var contacts []Contact
	if err := c.getJSON(ctx, "/contacts", &contacts); err != nil {
		return nil, err
	}
	if contacts == nil {
		contacts = []Contact{}
	}
	return contacts, nil
}

// addContact links the given connection code into the directory.
func (c *Client) addContact(ctx context.Context, code string) error {
	body, err := json.Marshal(map[string]string{"contact_code": code})
	if err != nil {
		return fmt.Errorf("client: marshal add_contact: %w", err)
	}
	return c.postJSON(ctx, "/add_contact", body, nil)
}

// fetchMessages retrieves the conversation with contactCode, oldest first.
func (c *Client) fetchMessages(ctx context.Context, contactCode string) ([]Message, error) {
	var messages []Message
	if err := c.getJSON(ctx, "/get_messages/"+url.PathEscape(contactCode), &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}

// ---------------------------------------------------------------------------
// HTTP plumbing
// ---------------------------------------------------------------------------

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	return c.do(req, out)
}

// do executes the request, mapping transport failures to ErrNetwork and
// non-2xx responses to ServerError with the server's literal reason.
func (c *Client) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := serverReason(resp.Body)
		return &ServerError{Status: resp.StatusCode, Reason: reason}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrNetwork, err)
	}
	return nil
}

// serverReason extracts the "error" field of an error response, falling back
// to a generic reason if the body is not structured.
func serverReason(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return "request failed"
}
