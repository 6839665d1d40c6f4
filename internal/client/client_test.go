package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestLogin_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.PostFormValue("identifier"); got != "1234567890" {
			t.Errorf("expected identifier 1234567890, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"username":"alice","connection_code":"1234567890","token":"tok-1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	user, err := c.Login(context.Background(), "1234567890")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Username != "alice" || user.ConnectionCode != "1234567890" {
		t.Errorf("unexpected user: %+v", user)
	}
	if c.Token() != "tok-1" {
		t.Errorf("expected token to be stored, got %q", c.Token())
	}
}

func TestLogin_BlankIdentifierSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Login(context.Background(), "   ")
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no network calls, got %d", calls)
	}
}

func TestLogin_ServerRejectionSurfacesReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"User not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Login(context.Background(), "0000000000")

	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if se.Status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", se.Status)
	}
	if se.Reason != "User not found" {
		t.Errorf("expected the server's literal reason, got %q", se.Reason)
	}
}

func TestNetworkFailureIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	c := New(srv.URL)
	_, err := c.Login(context.Background(), "1234567890")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestHistoryLoader_OldestFirstPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_messages/2222222222" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("expected bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"sender":"2222222222","content":"hi","timestamp":"09:00"},
			{"sender":"1111111111","content":"hello","timestamp":"09:01"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetToken("tok-1")
	loader := NewHistoryLoader(c)

	msgs, err := loader.Load(context.Background(), "2222222222")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "hi" || msgs[1].Content != "hello" {
		t.Errorf("history out of order: %+v", msgs)
	}
}

func TestHistoryLoader_EmptyConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	loader := NewHistoryLoader(New(srv.URL))
	msgs, err := loader.Load(context.Background(), "2222222222")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", msgs)
	}
}
