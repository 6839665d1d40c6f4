package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: Parsing a valid send_message message
// ---------------------------------------------------------------------------

func TestParseClientMessage_SendMessage(t *testing.T) {
	input := []byte(`{"type":"send_message","receiver":"1234567890","content":"Hello!"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeSendMessage {
		t.Fatalf("expected type %q, got %q", TypeSendMessage, msgType)
	}

	sm, ok := msg.(SendMessageMsg)
	if !ok {
		t.Fatalf("expected SendMessageMsg, got %T", msg)
	}
	if sm.Receiver != "1234567890" {
		t.Errorf("expected receiver %q, got %q", "1234567890", sm.Receiver)
	}
	if sm.Content != "Hello!" {
		t.Errorf("expected content %q, got %q", "Hello!", sm.Content)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a valid typing message
// ---------------------------------------------------------------------------

func TestParseClientMessage_Typing(t *testing.T) {
	input := []byte(`{"type":"typing","receiver":"1234567890","is_typing":true}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeTyping {
		t.Fatalf("expected type %q, got %q", TypeTyping, msgType)
	}

	tm, ok := msg.(ClientTypingMsg)
	if !ok {
		t.Fatalf("expected ClientTypingMsg, got %T", msg)
	}
	if tm.Receiver != "1234567890" {
		t.Errorf("expected receiver %q, got %q", "1234567890", tm.Receiver)
	}
	if !tm.IsTyping {
		t.Error("expected is_typing true")
	}
}

// ---------------------------------------------------------------------------
// Test: Ping parses without payload fields
// ---------------------------------------------------------------------------

func TestParseClientMessage_Ping(t *testing.T) {
	msgType, msg, err := ParseClientMessage([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypePing {
		t.Fatalf("expected type %q, got %q", TypePing, msgType)
	}
	if _, ok := msg.(PingMsg); !ok {
		t.Fatalf("expected PingMsg, got %T", msg)
	}
}

// ---------------------------------------------------------------------------
// Test: Malformed and unknown messages are rejected
// ---------------------------------------------------------------------------

func TestParseClientMessage_InvalidJSON(t *testing.T) {
	_, _, err := ParseClientMessage([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseClientMessage_MissingType(t *testing.T) {
	_, _, err := ParseClientMessage([]byte(`{"receiver":"123"}`))
	if err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestParseClientMessage_UnknownType(t *testing.T) {
	msgType, _, err := ParseClientMessage([]byte(`{"type":"receive_message","sender":"x"}`))
	if err == nil {
		t.Fatal("expected error for server-only type")
	}
	if msgType != TypeReceiveMessage {
		t.Errorf("expected reported type %q, got %q", TypeReceiveMessage, msgType)
	}
	if !strings.Contains(err.Error(), "unknown client message type") {
		t.Errorf("unexpected error message: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Test: Creating a receive_message server message
// ---------------------------------------------------------------------------

func TestNewServerMessage_ReceiveMessage(t *testing.T) {
	payload := ReceiveMessageMsg{
		Sender:    "1234567890",
		Content:   "yo",
		Timestamp: "14:05",
	}

	data, err := NewServerMessage(TypeReceiveMessage, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Decode back and verify structure.
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypeReceiveMessage {
		t.Errorf("expected type %q, got %v", TypeReceiveMessage, result["type"])
	}
	if result["sender"] != "1234567890" {
		t.Errorf("expected sender %q, got %v", "1234567890", result["sender"])
	}
	if result["content"] != "yo" {
		t.Errorf("expected content %q, got %v", "yo", result["content"])
	}
	if result["timestamp"] != "14:05" {
		t.Errorf("expected timestamp %q, got %v", "14:05", result["timestamp"])
	}
}

// ---------------------------------------------------------------------------
// Test: NewServerMessage overrides a stale type field in the payload
// ---------------------------------------------------------------------------

func TestNewServerMessage_TypeInjection(t *testing.T) {
	payload := UserStatusMsg{Type: "bogus", User: "1234567890", Status: "online"}

	data, err := NewServerMessage(TypeUserStatus, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if result["type"] != TypeUserStatus {
		t.Errorf("expected type %q, got %v", TypeUserStatus, result["type"])
	}
	if result["status"] != "online" {
		t.Errorf("expected status %q, got %v", "online", result["status"])
	}
}
