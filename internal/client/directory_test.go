package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestDirectory_StaleCacheSurvivesFailedLoad(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"contact_name":"bob","contact_code":"2222222222"}]`))
	}))
	defer srv.Close()

	d := NewDirectory(New(srv.URL))
	if _, err := d.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fail.Store(true)
	if _, err := d.Load(context.Background()); err == nil {
		t.Fatal("expected error from failed load")
	}

	contacts := d.Contacts()
	if len(contacts) != 1 || contacts[0].ContactName != "bob" {
		t.Errorf("expected cached directory to survive, got %+v", contacts)
	}
}

func TestDirectory_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"contact_name":"bob","contact_code":"2222222222"},
			{"contact_name":"carol","contact_code":"3333333333"}]`))
	}))
	defer srv.Close()

	d := NewDirectory(New(srv.URL))
	if _, err := d.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, ok := d.Resolve("3333333333")
	if !ok || c.ContactName != "carol" {
		t.Errorf("expected carol, got %+v (ok=%v)", c, ok)
	}
	if _, ok := d.Resolve("9999999999"); ok {
		t.Error("expected unknown code to miss")
	}
}

func TestDirectory_AddBlankCodeSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d := NewDirectory(New(srv.URL))
	_, err := d.Add(context.Background(), "  ")
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no network calls, got %d", calls)
	}
}

func TestDirectory_AddReloadsCache(t *testing.T) {
	var posts, gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/add_contact":
			atomic.AddInt32(&posts, 1)
			w.Write([]byte(`{"success":true,"contact_name":"bob"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/contacts":
			atomic.AddInt32(&gets, 1)
			w.Write([]byte(`[{"contact_name":"bob","contact_code":"2222222222"}]`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	d := NewDirectory(New(srv.URL))
	contacts, err := d.Add(context.Background(), "2222222222")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if posts != 1 || gets != 1 {
		t.Errorf("expected 1 add and 1 reload, got posts=%d gets=%d", posts, gets)
	}
	if len(contacts) != 1 || contacts[0].ContactCode != "2222222222" {
		t.Errorf("unexpected contacts: %+v", contacts)
	}
}
