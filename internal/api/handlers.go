// Package api implements the REST surface of the Linkup server: account
// registration and login, the contact directory, and message history. All
// responses are JSON; errors carry a single "error" field with the reason.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/linkup/chat-app/internal/auth"
	"github.com/linkup/chat-app/internal/metrics"
	"github.com/linkup/chat-app/internal/store"
)

// Datastore is the durable-state dependency of the REST layer. Satisfied by
// *store.Store.
type Datastore interface {
	CreateUser(ctx context.Context, u store.User) error
	FindUser(ctx context.Context, identifier string) (*store.User, error)
	UserByCode(ctx context.Context, code string) (*store.User, error)
	AddContact(ctx context.Context, userCode, contactCode, contactName string) error
	ContactsOf(ctx context.Context, userCode string) ([]store.Contact, error)
	Conversation(ctx context.Context, userCode, contactCode string) ([]store.Message, error)
}

// Sessions is the token-session dependency of the REST layer. Satisfied by
// *auth.Store.
type Sessions interface {
	Issue(ctx context.Context, id auth.Identity) (string, error)
	Lookup(ctx context.Context, token string) (*auth.Identity, error)
}

// Handler serves the REST endpoints.
type Handler struct {
	store    Datastore
	sessions Sessions
}

// NewHandler creates a Handler backed by the given stores.
func NewHandler(st Datastore, sessions Sessions) *Handler {
	return &Handler{store: st, sessions: sessions}
}

// Routes mounts all REST endpoints on the given mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /login", h.timed("login", h.handleLogin))
	mux.HandleFunc("POST /register", h.timed("register", h.handleRegister))
	mux.HandleFunc("GET /contacts", h.timed("contacts", h.requireAuth(h.handleContacts)))
	mux.HandleFunc("POST /add_contact", h.timed("add_contact", h.requireAuth(h.handleAddContact)))
	mux.HandleFunc("GET /get_messages/{contactCode}", h.timed("get_messages", h.requireAuth(h.handleGetMessages)))
}

// timed wraps a handler with a Prometheus latency observation.
func (h *Handler) timed(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// requireAuth resolves the bearer token and stores the identity in the
// request context. Requests without a valid token get 401.
func (h *Handler) requireAuth(next func(w http.ResponseWriter, r *http.Request, id *auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Not logged in")
			return
		}

		id, err := h.sessions.Lookup(r.Context(), token)
		if err != nil {
			log.Printf("api: token lookup failed: %v", err)
			writeError(w, http.StatusServiceUnavailable, "Session store unavailable")
			return
		}
		if id == nil {
			writeError(w, http.StatusUnauthorized, "Not logged in")
			return
		}

		next(w, r, id)
	}
}

// handleLogin authenticates by identifier (email, phone, or connection code)
// and issues a session token.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	identifier := strings.TrimSpace(r.PostFormValue("identifier"))
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "Identifier is required")
		return
	}

	user, err := h.store.FindUser(r.Context(), identifier)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("api: login lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	token, err := h.sessions.Issue(r.Context(), auth.Identity{
		Username:       user.Username,
		ConnectionCode: user.ConnectionCode,
	})
	if err != nil {
		log.Printf("api: token issue failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"username":        user.Username,
		"connection_code": user.ConnectionCode,
		"token":           token,
	})
}

// handleRegister creates a new account with a freshly generated connection
// code.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	phone := strings.TrimSpace(r.PostFormValue("phone"))

	code, err := h.createUser(r.Context(), username, email, phone)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusBadRequest, "Username already exists")
		return
	}
	if err != nil {
		log.Printf("api: register failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"username":        username,
		"connection_code": code,
	})
}

// createUser inserts the account, retrying code generation if the random
// code collides with an existing one. A duplicate username is returned to
// the caller as store.ErrDuplicate on the first attempt.
func (h *Handler) createUser(ctx context.Context, username, email, phone string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		code, err := auth.NewConnectionCode()
		if err != nil {
			return "", err
		}

		err = h.store.CreateUser(ctx, store.User{
			Username:       username,
			Email:          email,
			Phone:          phone,
			ConnectionCode: code,
		})
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return "", err
		}

		// Duplicate: if the username itself is taken, retrying with a new
		// code cannot help.
		if _, lookupErr := h.store.FindUser(ctx, code); lookupErr == nil {
			lastErr = err
			continue // code collision, retry
		}
		return "", err
	}
	return "", lastErr
}

// handleContacts returns the user's contact directory in insertion order.
func (h *Handler) handleContacts(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	contacts, err := h.store.ContactsOf(r.Context(), id.ConnectionCode)
	if err != nil {
		log.Printf("api: contacts load failed for %s: %v", id.ConnectionCode, err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// handleAddContact links another user into the caller's directory by
// connection code.
func (h *Handler) handleAddContact(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	var req struct {
		ContactCode string `json:"contact_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	code := strings.TrimSpace(req.ContactCode)
	if code == "" {
		writeError(w, http.StatusBadRequest, "Connection code is required")
		return
	}
	if code == id.ConnectionCode {
		writeError(w, http.StatusBadRequest, "Cannot add yourself")
		return
	}

	contact, err := h.store.UserByCode(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("api: add_contact lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	if err := h.store.AddContact(r.Context(), id.ConnectionCode, code, contact.Username); err != nil {
		log.Printf("api: add_contact insert failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"contact_name": contact.Username,
	})
}

// handleGetMessages returns the full conversation with the given contact,
// oldest first.
func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	contactCode := r.PathValue("contactCode")
	if contactCode == "" {
		writeError(w, http.StatusBadRequest, "Contact code is required")
		return
	}

	start := time.Now()
	messages, err := h.store.Conversation(r.Context(), id.ConnectionCode, contactCode)
	if err != nil {
		log.Printf("api: history load failed for %s<->%s: %v", id.ConnectionCode, contactCode, err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	metrics.HistoryLoadDuration.Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, messages)
}

// bearerToken extracts the session token from the Authorization header or,
// as a fallback, the "token" query parameter (used by the WebSocket upgrade
// as well).
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}
