package ws

import (
	"net"
	"testing"
	"time"
)

// pipeConn returns one end of an in-memory connection for registry tests.
func pipeConn(t *testing.T) net.Conn {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a
}

func newTestConnection(t *testing.T, code string) *Connection {
	return &Connection{
		Code:      code,
		Conn:      pipeConn(t),
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
	}
}

func TestConnectionManager_AddAndGet(t *testing.T) {
	cm := NewConnectionManager()
	c := newTestConnection(t, "1111111111")

	if prev := cm.Add(c); prev != nil {
		t.Fatalf("expected no evicted connection, got %v", prev)
	}
	if got := cm.Get("1111111111"); got != c {
		t.Fatalf("expected to get registered connection, got %v", got)
	}
	if cm.Count() != 1 {
		t.Fatalf("expected count 1, got %d", cm.Count())
	}
}

func TestConnectionManager_AddEvictsPrevious(t *testing.T) {
	cm := NewConnectionManager()
	first := newTestConnection(t, "1111111111")
	second := newTestConnection(t, "1111111111")

	cm.Add(first)
	prev := cm.Add(second)

	if prev != first {
		t.Fatalf("expected first connection to be evicted, got %v", prev)
	}
	if cm.Count() != 1 {
		t.Fatalf("expected count 1 after eviction, got %d", cm.Count())
	}
	if cm.Get("1111111111") != second {
		t.Fatal("expected newer connection to be registered")
	}
}

func TestConnectionManager_RemoveStaleIsNoop(t *testing.T) {
	cm := NewConnectionManager()
	first := newTestConnection(t, "1111111111")
	second := newTestConnection(t, "1111111111")

	cm.Add(first)
	cm.Add(second)

	// Removing the evicted connection must not unregister the newer one.
	if cm.Remove(first) {
		t.Fatal("removing a stale connection should report false")
	}
	if cm.Get("1111111111") != second {
		t.Fatal("newer connection should survive stale removal")
	}

	if !cm.Remove(second) {
		t.Fatal("removing the registered connection should report true")
	}
	if cm.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", cm.Count())
	}
}

func TestConnectionManager_All(t *testing.T) {
	cm := NewConnectionManager()
	cm.Add(newTestConnection(t, "1111111111"))
	cm.Add(newTestConnection(t, "2222222222"))

	all := cm.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(all))
	}
}
